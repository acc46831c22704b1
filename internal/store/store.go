// Package store holds the credential record used for the portal login and
// the backends that persist it.
package store

import (
	"context"
	"strings"
	"sync"
)

const (
	KeyUsername = "username"
	KeyPassword = "password"
	KeyEnabled  = "enabled"
)

// AllKeys lists the record keys in the order they are reported.
var AllKeys = []string{KeyUsername, KeyPassword, KeyEnabled}

// Record is the persisted credential entry. A nil Enabled means the key is
// absent, which counts as enabled.
type Record struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

func (r Record) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

func (r Record) HasCredentials() bool {
	return strings.TrimSpace(r.Username) != "" && r.Password != ""
}

func (r Record) IsZero() bool {
	return r.Username == "" && r.Password == "" && r.Enabled == nil
}

// Patch is a partial write. Nil fields are left untouched.
type Patch struct {
	Username *string
	Password *string
	Enabled  *bool
}

func (p Patch) Apply(r Record) Record {
	if p.Username != nil {
		r.Username = *p.Username
	}
	if p.Password != nil {
		r.Password = *p.Password
	}
	if p.Enabled != nil {
		v := *p.Enabled
		r.Enabled = &v
	}
	return r
}

// Change describes one observed mutation of the record.
type Change struct {
	Keys []string
	Old  Record
	New  Record
}

// EnabledChanged reports whether the effective enabled flag flipped.
func (c Change) EnabledChanged() bool {
	for _, k := range c.Keys {
		if k == KeyEnabled {
			return true
		}
	}
	return false
}

// Diff returns the keys whose values differ between a and b.
func Diff(a, b Record) []string {
	var keys []string
	if a.Username != b.Username {
		keys = append(keys, KeyUsername)
	}
	if a.Password != b.Password {
		keys = append(keys, KeyPassword)
	}
	if !sameBool(a.Enabled, b.Enabled) {
		keys = append(keys, KeyEnabled)
	}
	return keys
}

func sameBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Store is the key-value record shared by the engine and the settings surfaces.
type Store interface {
	Get(ctx context.Context) (Record, error)
	Set(ctx context.Context, p Patch) error
	Clear(ctx context.Context) error
	Subscribe(fn func(Change)) (unsubscribe func())
}

// Bool returns a pointer to v, for building patches.
func Bool(v bool) *bool { return &v }

// String returns a pointer to v, for building patches.
func String(v string) *string { return &v }

// Notifier fans changes out to subscribers. Backends embed it.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Change)
}

func (n *Notifier) Subscribe(fn func(Change)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(Change))
	}
	id := n.next
	n.next++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Publish tells subscribers about the keys that differ between old and cur.
// Nothing is sent when the records are equal.
func (n *Notifier) Publish(old, cur Record) {
	keys := Diff(old, cur)
	if len(keys) == 0 {
		return
	}
	n.mu.Lock()
	subs := make([]func(Change), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	c := Change{Keys: keys, Old: old, New: cur}
	for _, fn := range subs {
		fn(c)
	}
}
