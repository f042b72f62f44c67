package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kitsune-client/internal/model"
	"kitsune-client/internal/utils"
	"kitsune-client/pkg/logger"
)

// HTTPTransport talks to the Kitsune backend: a JSON POST answered with an
// event stream of typed increments.
type HTTPTransport struct {
	endpoint string
	header   string
	client   *http.Client
}

func NewHTTPTransport(baseURL, path, sessionHeader string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = utils.NewStreamingClient(60 * time.Second)
	}
	return &HTTPTransport{
		endpoint: strings.TrimRight(baseURL, "/") + path,
		header:   sessionHeader,
		client:   client,
	}
}

func (t *HTTPTransport) Open(ctx context.Context, req Request) (Stream, error) {
	body, err := json.Marshal(model.ChatRequest{
		ID:       req.SessionID.String(),
		Messages: req.Messages,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if t.header != "" {
		httpReq.Header.Set(t.header, req.SessionID.String())
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send chat request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("chat endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return &httpStream{
		body:   resp.Body,
		reader: utils.NewSSEReader(resp.Body),
	}, nil
}

type httpStream struct {
	body   io.ReadCloser
	reader *utils.SSEReader
	done   bool
}

func (s *httpStream) Recv() (model.ChatChunk, error) {
	for {
		if s.done {
			return model.ChatChunk{}, io.EOF
		}

		event, err := s.reader.Next()
		if errors.Is(err, io.EOF) {
			return model.ChatChunk{}, ErrStreamClosed
		}
		if err != nil {
			return model.ChatChunk{}, fmt.Errorf("read chat stream: %w", err)
		}

		data := strings.TrimSpace(event.Data)
		if data == utils.DoneMarker {
			s.done = true
			continue
		}
		if event.Event == "error" {
			return model.ChatChunk{Type: model.ChunkError, ErrorText: data}, nil
		}

		var chunk model.ChatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil || chunk.Type == "" {
			logger.Warnf("skipping malformed chat increment: %q", truncate(data, 120))
			continue
		}
		chunk.Raw = json.RawMessage(data)
		return chunk, nil
	}
}

func (s *httpStream) Close() error {
	return s.body.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
