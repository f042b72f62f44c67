package chat

import (
	"context"
	"errors"
	"fmt"
	"io"

	"kitsune-client/internal/model"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ModelTransport runs exchanges directly against a chat model instead of the
// Kitsune backend. The session token is not sent anywhere.
type ModelTransport struct {
	model  einoModel.BaseChatModel
	system string
}

func NewModelTransport(m einoModel.BaseChatModel, systemPrompt string) *ModelTransport {
	return &ModelTransport{model: m, system: systemPrompt}
}

func (t *ModelTransport) Open(ctx context.Context, req Request) (Stream, error) {
	messages := toSchemaMessages(t.system, req.Messages)
	if len(messages) == 0 {
		return nil, errors.New("nothing to send")
	}

	reader, err := t.model.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("open model stream: %w", err)
	}
	return &modelStream{reader: reader}, nil
}

func toSchemaMessages(system string, log []model.ChatMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(log)+1)
	if system != "" {
		out = append(out, schema.SystemMessage(system))
	}
	for _, m := range log {
		text := m.Text()
		if text == "" {
			continue
		}
		switch m.Role {
		case model.RoleUser:
			out = append(out, schema.UserMessage(text))
		case model.RoleAssistant:
			out = append(out, schema.AssistantMessage(text, nil))
		}
	}
	return out
}

type modelStream struct {
	reader *schema.StreamReader[*schema.Message]
}

// Recv turns every streamed message into a text increment. Chunks without
// content (role-only or usage frames) are skipped.
func (s *modelStream) Recv() (model.ChatChunk, error) {
	for {
		msg, err := s.reader.Recv()
		if errors.Is(err, io.EOF) {
			return model.ChatChunk{}, io.EOF
		}
		if err != nil {
			return model.ChatChunk{}, fmt.Errorf("model stream: %w", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		return model.ChatChunk{Type: model.ChunkTextDelta, Delta: msg.Content}, nil
	}
}

func (s *modelStream) Close() error {
	s.reader.Close()
	return nil
}
