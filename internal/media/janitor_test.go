package media

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingRemover struct {
	mu      sync.Mutex
	removed []string
}

func (r *recordingRemover) Remove(_ context.Context, publicID string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, string(kind)+"/"+publicID)
}

func (r *recordingRemover) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string{}, r.removed...)
	sort.Strings(out)
	return out
}

func TestJanitorDrainsOnShutdown(t *testing.T) {
	remover := &recordingRemover{}
	janitor := NewJanitor(remover, JanitorConfig{Workers: 2, QueueSize: 8}, nil)

	janitor.Discard(context.Background(), "https://cdn.example.com/image/a.png")
	janitor.Discard(context.Background(), "https://cdn.example.com/video/b.mp4")
	janitor.Discard(context.Background(), "https://cdn.example.com/raw/c")
	janitor.Discard(context.Background(), "https://cdn.example.com/d.png")
	janitor.Discard(context.Background(), "")

	require.NoError(t, janitor.Shutdown(context.Background()))
	require.Equal(t, []string{"image/a", "raw/c", "video/b"}, remover.snapshot())
}

func TestJanitorRunsInlineAfterShutdown(t *testing.T) {
	remover := &recordingRemover{}
	janitor := NewJanitor(remover, JanitorConfig{}, nil)
	require.NoError(t, janitor.Shutdown(context.Background()))
	require.NoError(t, janitor.Shutdown(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	janitor.Discard(ctx, "https://cdn.example.com/image/late.jpg")
	require.Equal(t, []string{"image/late"}, remover.snapshot())
}

func TestJanitorDiscardsUnderStoredKind(t *testing.T) {
	store := &memoryStore{}
	tr := newTestTransfer(store, nil, TransferConfig{})
	path := filepath.Join(t.TempDir(), "1700000000000-movie")
	quicktime := []byte{0, 0, 0, 0x14, 'f', 't', 'y', 'p', 'q', 't', ' ', ' ', 0, 0, 0, 0, 'q', 't', ' ', ' ', 'm', 'o', 'o', 'v'}
	require.NoError(t, os.WriteFile(path, quicktime, 0o600))

	asset, err := tr.Upload(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, KindRaw, asset.Kind)
	require.Contains(t, store.objects, "raw/fixed-id")

	janitor := NewJanitor(tr, JanitorConfig{Workers: 1, QueueSize: 1}, nil)
	janitor.Discard(context.Background(), asset.URL)
	require.NoError(t, janitor.Shutdown(context.Background()))
	require.Equal(t, []string{"raw/fixed-id"}, store.deletes)
	require.Empty(t, store.objects)
}

func TestRemoveLocalIgnoresMissing(t *testing.T) {
	path := stageImage(t)
	RemoveLocal(context.Background(), path, "", path)
}
