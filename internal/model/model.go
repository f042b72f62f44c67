package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"kitsune-client/internal/config"
	"kitsune-client/pkg/logger"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
)

// SessionTag puts the session token on every provider request under Header,
// so gateways in front of the model can route by session. An empty Header
// sends nothing.
type SessionTag struct {
	Header string
	Token  SessionToken
}

// NewChatModel builds the chat model for a direct provider. The "kitsune"
// provider has no model on this side; it streams from the backend instead.
func NewChatModel(ctx context.Context, cfg config.ProviderConfig, tag SessionTag) (einoModel.ChatModel, error) {
	switch cfg.Type {
	case config.ProviderDoubao:
		return createDoubaoModel(ctx, cfg.Doubao, tag)
	case config.ProviderOpenAI:
		return createOpenAIModel(ctx, cfg.OpenAI, tag)
	case config.ProviderQwen:
		return createQwenModel(ctx, cfg.Qwen, tag)
	default:
		return nil, fmt.Errorf("provider %q has no chat model", cfg.Type)
	}
}

func createDoubaoModel(ctx context.Context, cfg config.DoubaoConfig, tag SessionTag) (einoModel.ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("doubao: api key is not set")
	}
	logger.Infof("using doubao model %s (key %s)", cfg.Model, maskKey(cfg.APIKey))

	headers := map[string]string{
		"X-Ark-Thinking-Mode": "disable",
	}
	if tag.Header != "" {
		headers[tag.Header] = tag.Token.String()
	}

	timeout := cfg.Timeout
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Model:        cfg.Model,
		Timeout:      &timeout,
		CustomHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("create doubao model: %w", err)
	}
	return chatModel, nil
}

func createOpenAIModel(ctx context.Context, cfg config.OpenAIConfig, tag SessionTag) (einoModel.ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is not set")
	}
	logger.Infof("using openai-compatible model %s at %s (key %s)", cfg.Model, cfg.BaseURL, maskKey(cfg.APIKey))

	chatModel, err := newOpenAIChatModel(ctx, cfg, tag)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return chatModel, nil
}

func createQwenModel(ctx context.Context, cfg config.QwenConfig, tag SessionTag) (einoModel.ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("qwen: api key is not set")
	}
	logger.Infof("using qwen model %s at %s (key %s)", cfg.Model, cfg.BaseURL, maskKey(cfg.APIKey))

	httpClient := &http.Client{
		Transport: newSessionTransport(NewDebugTransport(nil, cfg.DebugRequest), tag),
		Timeout:   cfg.Timeout,
	}

	chatModel, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
		TopP:        &cfg.TopP,
		Timeout:     cfg.Timeout,
		HTTPClient:  httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create qwen model: %w", err)
	}
	return chatModel, nil
}

func maskKey(key string) string {
	if len(key) <= 6 {
		return "***"
	}
	return key[:6] + "..."
}

type sessionTransport struct {
	base http.RoundTripper
	tag  SessionTag
}

func newSessionTransport(base http.RoundTripper, tag SessionTag) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if tag.Header == "" {
		return base
	}
	return &sessionTransport{base: base, tag: tag}
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(t.tag.Header, t.tag.Token.String())
	return t.base.RoundTrip(req)
}

// DebugTransport logs provider requests at debug level with credentials
// redacted.
type DebugTransport struct {
	base    http.RoundTripper
	enabled bool
}

func NewDebugTransport(base http.RoundTripper, enabled bool) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{base: base, enabled: enabled}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.enabled && req.Method == http.MethodPost {
		t.logRequest(req)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil && t.enabled {
		logger.Errorf("provider request %s %s failed: %v", req.Method, req.URL.Redacted(), err)
	}
	return resp, err
}

func (t *DebugTransport) logRequest(req *http.Request) {
	entry := logger.WithField("url", req.URL.Redacted())
	for name, values := range req.Header {
		if isSensitiveHeader(name) {
			entry = entry.WithField("header."+strings.ToLower(name), "[REDACTED]")
			continue
		}
		entry = entry.WithField("header."+strings.ToLower(name), strings.Join(values, ", "))
	}

	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			logger.Errorf("read provider request body: %v", err)
			return
		}
		// the real request still needs the body
		req.Body = io.NopCloser(bytes.NewReader(body))
		entry = entry.WithField("body_bytes", len(body))
		if !containsSensitiveField(body) {
			entry = entry.WithField("body", string(body))
		}
	}

	entry.Debug("provider request")
}

func isSensitiveHeader(name string) bool {
	for _, sensitive := range []string{"authorization", "x-api-key", "x-auth-token", "cookie"} {
		if strings.EqualFold(name, sensitive) {
			return true
		}
	}
	return false
}

func containsSensitiveField(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, field := range []string{"api_key", "apikey", "password", "secret", "token\""} {
		if strings.Contains(lower, `"`+field) {
			return true
		}
	}
	return false
}
