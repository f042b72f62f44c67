package session

import (
	"errors"
	"sync"
	"testing"

	"kitsune-client/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenKV struct {
	getErr error
	putErr error
	puts   int
}

func (b *brokenKV) Get(string) (string, error) {
	if b.getErr != nil {
		return "", b.getErr
	}
	return "", storage.ErrKeyNotFound
}

func (b *brokenKV) Put(string, string) error {
	b.puts++
	return b.putErr
}

func (b *brokenKV) Delete(string) error { return nil }
func (b *brokenKV) Init() error         { return nil }
func (b *brokenKV) Close() error        { return nil }

func TestGetGeneratesAndPersists(t *testing.T) {
	kv := storage.NewMemoryStorage()
	id := NewIdentity(kv, "")

	token := id.Get()
	parsed, err := uuid.Parse(token.String())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())

	stored, err := kv.Get(DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, token.String(), stored)
	assert.False(t, id.Degraded())
}

func TestGetIsIdempotent(t *testing.T) {
	id := NewIdentity(storage.NewMemoryStorage(), "")

	first := id.Get()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, first, id.Get())
		}()
	}
	wg.Wait()
}

func TestTokenSurvivesAcrossProcesses(t *testing.T) {
	dir := t.TempDir()

	kv := storage.NewDiskStorage(dir)
	require.NoError(t, kv.Init())
	first := NewIdentity(kv, "").Get()
	require.NoError(t, kv.Close())

	reopened := storage.NewDiskStorage(dir)
	require.NoError(t, reopened.Init())
	assert.Equal(t, first, NewIdentity(reopened, "").Get())
}

func TestPersistFailureDegradesQuietly(t *testing.T) {
	kv := &brokenKV{putErr: errors.New("quota exceeded")}
	id := NewIdentity(kv, "")

	token := id.Get()
	assert.NotEmpty(t, token)
	assert.Equal(t, token, id.Get())
	assert.True(t, id.Degraded())
	assert.Equal(t, 1, kv.puts)
}

func TestUnreadableStoreIsNotOverwritten(t *testing.T) {
	kv := &brokenKV{getErr: errors.New("disk gone")}
	id := NewIdentity(kv, "")

	assert.NotEmpty(t, id.Get())
	assert.True(t, id.Degraded())
	assert.Zero(t, kv.puts)
}

func TestNilStore(t *testing.T) {
	id := NewIdentity(nil, "custom")
	assert.NotEmpty(t, id.Get())
	assert.True(t, id.Degraded())
}

func TestVolatileIdentityIsDegraded(t *testing.T) {
	kv := storage.NewMemoryStorage()
	require.NoError(t, kv.Init())
	id := NewVolatileIdentity(kv, "")

	token := id.Get()
	stored, err := kv.Get(DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, token.String(), stored)
	assert.True(t, id.Degraded())
}
