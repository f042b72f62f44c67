package session

import (
	"errors"
	"sync"

	"kitsune-client/internal/model"
	"kitsune-client/internal/storage"
	"kitsune-client/pkg/logger"

	"github.com/google/uuid"
)

// DefaultKey is the fixed name the token is stored under.
const DefaultKey = "kitsune-session-id"

// Identity hands out the profile's session token. The token is created on
// first use and persisted; when persistence fails the token lives only as
// long as this Identity.
type Identity struct {
	store storage.KV
	key   string

	once     sync.Once
	token    model.SessionToken
	degraded bool
	volatile bool
}

func NewIdentity(store storage.KV, key string) *Identity {
	if key == "" {
		key = DefaultKey
	}
	return &Identity{store: store, key: key}
}

// NewVolatileIdentity is NewIdentity over a store that does not outlive the
// process, such as a memory store standing in for a broken disk store. The
// token works as usual but Degraded reports true.
func NewVolatileIdentity(store storage.KV, key string) *Identity {
	i := NewIdentity(store, key)
	i.volatile = true
	return i
}

// Get returns the session token, the same value on every call.
func (i *Identity) Get() model.SessionToken {
	i.once.Do(i.load)
	return i.token
}

// Degraded reports whether the token could not be persisted.
func (i *Identity) Degraded() bool {
	i.once.Do(i.load)
	return i.degraded || i.volatile
}

func (i *Identity) load() {
	if i.store == nil {
		i.useEphemeral(errors.New("no store configured"))
		return
	}

	value, err := i.store.Get(i.key)
	switch {
	case err == nil && value != "":
		i.token = model.SessionToken(value)
		logger.Debugf("reusing session %s", value)
		return
	case err != nil && !errors.Is(err, storage.ErrKeyNotFound):
		// an unreadable store may still hold a token; never overwrite it
		i.useEphemeral(err)
		return
	}

	token := newToken()
	if err := i.store.Put(i.key, token.String()); err != nil {
		i.token = token
		i.degraded = true
		logger.Debugf("session %s not persisted: %v", token, err)
		return
	}
	i.token = token
	logger.Debugf("created session %s", token)
}

func (i *Identity) useEphemeral(cause error) {
	i.token = newToken()
	i.degraded = true
	logger.Debugf("session storage unavailable, using in-memory session %s: %v", i.token, cause)
}

// newToken returns a random (version 4) UUID: 122 random bits.
func newToken() model.SessionToken {
	return model.SessionToken(uuid.NewString())
}
