package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRecordEnabledDefault(t *testing.T) {
	assert.True(t, Record{}.IsEnabled())
	assert.True(t, Record{Enabled: Bool(true)}.IsEnabled())
	assert.False(t, Record{Enabled: Bool(false)}.IsEnabled())
}

func TestRecordHasCredentials(t *testing.T) {
	tests := []struct {
		rec  Record
		want bool
	}{
		{Record{}, false},
		{Record{Username: "jdoe"}, false},
		{Record{Password: "pw"}, false},
		{Record{Username: "   ", Password: "pw"}, false},
		{Record{Username: "jdoe", Password: "pw"}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.rec.HasCredentials(), "%+v", tt.rec)
	}
}

func TestDiff(t *testing.T) {
	a := Record{Username: "a", Password: "p"}
	b := Record{Username: "a", Password: "q", Enabled: Bool(false)}
	assert.Equal(t, []string{KeyPassword, KeyEnabled}, Diff(a, b))
	assert.Empty(t, Diff(a, a))
	assert.Equal(t, []string{KeyEnabled}, Diff(Record{Enabled: Bool(true)}, Record{}))
}

// exerciseStore runs the shared contract against any backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	var mu sync.Mutex
	var changes []Change
	unsub := s.Subscribe(func(c Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})
	defer unsub()

	rec, err := s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, rec.IsZero())

	require.NoError(t, s.Set(ctx, Patch{Username: String("jdoe"), Password: String("pw"), Enabled: Bool(true)}))
	rec, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", rec.Username)
	assert.Equal(t, "pw", rec.Password)
	require.NotNil(t, rec.Enabled)
	assert.True(t, *rec.Enabled)

	// partial write keeps the credentials
	require.NoError(t, s.Set(ctx, Patch{Enabled: Bool(false)}))
	rec, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", rec.Username)
	assert.False(t, rec.IsEnabled())

	require.NoError(t, s.Clear(ctx))
	rec, err = s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, rec.IsZero())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 3)
	assert.ElementsMatch(t, AllKeys, changes[0].Keys)
	assert.Equal(t, []string{KeyEnabled}, changes[1].Keys)
	assert.True(t, changes[1].EnabledChanged())
	assert.ElementsMatch(t, AllKeys, changes[2].Keys)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(Record{}))
}

func TestMemoryStoreFailNext(t *testing.T) {
	s := NewMemoryStore(Record{Username: "jdoe", Password: "pw"})
	boom := errors.New("quota exceeded")
	s.FailNext(boom)

	err := s.Set(context.Background(), Patch{Enabled: Bool(false)})
	require.ErrorIs(t, err, boom)

	rec, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, rec.IsEnabled())

	require.NoError(t, s.Set(context.Background(), Patch{Enabled: Bool(false)}))
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore(Record{Enabled: Bool(true)})
	rec, _ := s.Get(context.Background())
	*rec.Enabled = false
	again, _ := s.Get(context.Background())
	assert.True(t, again.IsEnabled())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "credentials.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	exerciseStore(t, s)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "cleared store should remove the file")
}

func TestFileStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), Patch{Username: String("jdoe"), Password: String("pw")}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	rec, err := reopened.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jdoe", rec.Username)
	assert.Nil(t, rec.Enabled, "enabled stays absent when never written")
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	_, err := NewFileStore(path)
	require.Error(t, err)
}

func TestFileStoreWatchExternalWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	got := make(chan Change, 4)
	s.Subscribe(func(c Change) { got <- c })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// another process writing the same file
	other, err := NewFileStore(path)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_ = other.Set(context.Background(), Patch{Enabled: Bool(false)})
		select {
		case c := <-got:
			return c.EnabledChanged()
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 100*time.Millisecond)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("", dir)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(BackendMemory, dir)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open("etcd", dir)
	require.Error(t, err)

	// keyring is opened by its own package
	_, err = Open(BackendKeyring, dir)
	require.Error(t, err)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore(Record{})
	_, err := s.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Set(ctx, Patch{}), context.Canceled)
	assert.ErrorIs(t, s.Clear(ctx), context.Canceled)
}
