// Package keyringstore keeps the credential record in the OS keychain. It
// lives apart from store so that packages which only need the record types
// do not link the keychain drivers.
package keyringstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
	"github.com/rayen0001/tekup-auto-login/internal/store"
)

const (
	ServiceName = "tekup-auto-login"
	recordKey   = "record"
)

// Store keeps the record as one item in the OS keychain.
type Store struct {
	store.Notifier
	ring keyring.Keyring
	mu   sync.Mutex
}

// ErrNoBackend is returned when no system keychain is reachable and no
// password was given for the encrypted file fallback.
var ErrNoBackend = errors.New("no system keyring available; set AUTOLOGIN_KEYRING_PASSWORD to use the encrypted file backend")

// Open opens the platform keyring. The encrypted file backend in fileDir is
// only offered when password is set, so a daemon never waits on a terminal
// prompt.
func Open(fileDir, password string) (*Store, error) {
	allowed, err := allowedBackends(keyring.AvailableBackends(), password)
	if err != nil {
		return nil, err
	}
	cfg := keyring.Config{
		ServiceName:              ServiceName,
		AllowedBackends:          allowed,
		KeychainTrustApplication: true,
		FileDir:                  fileDir,
	}
	if password != "" {
		cfg.FilePasswordFunc = keyring.FixedStringPrompt(password)
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return New(ring), nil
}

// allowedBackends drops the file backend unless a password can unlock it.
func allowedBackends(available []keyring.BackendType, password string) ([]keyring.BackendType, error) {
	out := make([]keyring.BackendType, 0, len(available))
	for _, b := range available {
		if b == keyring.FileBackend && password == "" {
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, ErrNoBackend
	}
	return out, nil
}

func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

func (k *Store) load() (store.Record, error) {
	item, err := k.ring.Get(recordKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return store.Record{}, nil
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("keyring get: %w", err)
	}
	var rec store.Record
	if err := json.Unmarshal(item.Data, &rec); err != nil {
		return store.Record{}, fmt.Errorf("decode keyring item: %w", err)
	}
	return rec, nil
}

func (k *Store) Get(ctx context.Context) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.load()
}

func (k *Store) Set(ctx context.Context, p store.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k.mu.Lock()
	old, err := k.load()
	if err != nil {
		k.mu.Unlock()
		return err
	}
	cur := p.Apply(old)
	data, err := json.Marshal(cur)
	if err != nil {
		k.mu.Unlock()
		return fmt.Errorf("encode keyring item: %w", err)
	}
	if err := k.ring.Set(keyring.Item{
		Key:         recordKey,
		Data:        data,
		Label:       "TEK-UP portal login",
		Description: "credentials for the TEK-UP captive portal",
	}); err != nil {
		k.mu.Unlock()
		return fmt.Errorf("keyring set: %w", err)
	}
	k.mu.Unlock()

	k.Publish(old, cur)
	return nil
}

func (k *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k.mu.Lock()
	old, err := k.load()
	if err != nil {
		k.mu.Unlock()
		return err
	}
	if !old.IsZero() {
		if err := k.ring.Remove(recordKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			k.mu.Unlock()
			return fmt.Errorf("keyring remove: %w", err)
		}
	}
	k.mu.Unlock()

	k.Publish(old, store.Record{})
	return nil
}

var _ store.Store = (*Store)(nil)
