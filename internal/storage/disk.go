package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"kitsune-client/pkg/logger"
)

const profileFile = "profile.json"

// DiskStorage keeps every key in one JSON document under dataDir, rewritten
// atomically (tmp file + rename) on each change.
type DiskStorage struct {
	dataDir string
	mu      sync.RWMutex
	values  map[string]string
	closed  bool
}

func NewDiskStorage(dataDir string) *DiskStorage {
	return &DiskStorage{
		dataDir: dataDir,
		values:  make(map[string]string),
	}
}

func (d *DiskStorage) Init() error {
	if err := os.MkdirAll(d.dataDir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.load(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Debugf("disk storage ready at %s", d.path())
	return nil
}

func (d *DiskStorage) path() string {
	return filepath.Join(d.dataDir, profileFile)
}

func (d *DiskStorage) load() error {
	data, err := os.ReadFile(d.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	d.mu.Lock()
	d.values = values
	d.mu.Unlock()
	return nil
}

func (d *DiskStorage) save() error {
	path := d.path()
	tempPath := path + ".tmp"

	data, err := json.MarshalIndent(d.values, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

func (d *DiskStorage) Get(key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return "", ErrClosed
	}
	value, exists := d.values[key]
	if !exists {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (d *DiskStorage) Put(key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	previous, existed := d.values[key]
	d.values[key] = value
	if err := d.save(); err != nil {
		if existed {
			d.values[key] = previous
		} else {
			delete(d.values, key)
		}
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) Delete(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	previous, exists := d.values[key]
	if !exists {
		return ErrKeyNotFound
	}
	delete(d.values, key)
	if err := d.save(); err != nil {
		d.values[key] = previous
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	d.values = make(map[string]string)
	return nil
}
