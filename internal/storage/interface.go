package storage

// KV persists small string values under fixed names, the way a browser
// profile keeps localStorage entries.
type KV interface {
	Get(key string) (string, error)
	Put(key, value string) error
	Delete(key string) error

	Init() error
	Close() error
}

// New returns the store selected by kind ("disk" or "memory"). A disk store
// that fails to initialize is returned together with the error so callers
// can decide whether to degrade.
func New(kind, dataDir string) (KV, error) {
	if kind == "disk" {
		store := NewDiskStorage(dataDir)
		if err := store.Init(); err != nil {
			return store, err
		}
		return store, nil
	}
	store := NewMemoryStorage()
	return store, store.Init()
}
