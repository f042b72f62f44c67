package main

import (
	"fmt"

	"kitsune-client/internal/session"
	"kitsune-client/pkg/logger"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Print the session token of this profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		kv, _ := openStore(cfg)
		defer kv.Close()

		id := session.NewIdentity(kv, cfg.Session.Key)
		fmt.Fprintln(cmd.OutOrStdout(), id.Get())
		if id.Degraded() {
			logger.Warn("token is not persisted and will change on the next run")
		}
		return nil
	},
}
