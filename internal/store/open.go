package store

import (
	"context"
	"fmt"
	"path/filepath"
)

const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
	BackendMemory  = "memory"
)

// Watcher is implemented by backends that can observe writes made by other
// processes.
type Watcher interface {
	Watch(ctx context.Context) error
}

// Open returns the file or memory backend, rooted in stateDir. The keyring
// backend is opened by package keyringstore.
func Open(kind, stateDir string) (Store, error) {
	switch kind {
	case "", BackendFile:
		return NewFileStore(filepath.Join(stateDir, "credentials.json"))
	case BackendMemory:
		return NewMemoryStore(Record{}), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (want file or memory)", kind)
	}
}
