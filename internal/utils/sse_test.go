package utils

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEReaderParsesEvents(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"",
		`data: [{"name":"Welcome","path":"notebooks/Welcome.py"}]`,
		"",
		"event: status",
		"id: 7",
		"data: line one",
		"data: line two",
		"",
		"retry: 1000",
		"data:no-space",
		"",
		"data: dangling",
	}, "\n")

	r := NewSSEReader(strings.NewReader(stream))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "", ev.Event)
	assert.Equal(t, `[{"name":"Welcome","path":"notebooks/Welcome.py"}]`, ev.Data)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "status", ev.Event)
	assert.Equal(t, "7", ev.ID)
	assert.Equal(t, "line one\nline two", ev.Data)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "no-space", ev.Data)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSSEReaderHandlesCRLF(t *testing.T) {
	r := NewSSEReader(strings.NewReader("data: hi\r\n\r\n"))
	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "hi", ev.Data)
}

func TestSSEWriterRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)

	require.NoError(t, w.Write("state", "a\nb"))
	require.NoError(t, w.Comment("ping"))
	require.NoError(t, w.Close())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	r := NewSSEReader(rec.Body)
	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "state", ev.Event)
	assert.Equal(t, "a\nb", ev.Data)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, DoneMarker, ev.Data)
}
