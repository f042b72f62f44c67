package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"kitsune-client/internal/model"
	"kitsune-client/internal/view"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the notebook registry and the viewer address",
	RunE:  runWatch,
}

// printViewer stands in for the embedded viewer on a terminal.
type printViewer struct {
	cmd *cobra.Command
}

func (v printViewer) Mount(addr string) {
	fmt.Fprintf(v.cmd.OutOrStdout(), "viewer: %s\n", addr)
}

func (v printViewer) Unmount() {
	fmt.Fprintln(v.cmd.OutOrStdout(), "viewer: loading")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	unsubscribe := a.store.Subscribe(func(s model.RegistryState) {
		p := view.Compose(s, cfg.Viewer.FileSuffix)
		names := make([]string, 0, len(p.Tabs))
		for _, tab := range p.Tabs {
			if tab.Active {
				names = append(names, "["+tab.Name+"]")
				continue
			}
			names = append(names, tab.Name)
		}
		fmt.Fprintf(out, "notebooks: %s\n", strings.Join(names, " "))
	})
	defer unsubscribe()

	mounter := view.NewMounter(printViewer{cmd: cmd}, cfg.Viewer.FileSuffix)
	detach := mounter.Attach(a.store.State(), a.store.Subscribe)
	defer detach()

	return a.sync.Run(ctx)
}
