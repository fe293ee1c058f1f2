package memory

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/notesaver/internal/storage"
)

func TestBlobStoreCreate(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.Create(context.Background(), "out", "page.txt", strings.NewReader("content"))
	require.NoError(t, err)
	assert.Equal(t, "memory://out/page.txt", uri)

	data, ok := store.Get("out", "page.txt")
	require.True(t, ok)
	assert.Equal(t, "content", string(data))

	data[0] = 'C'
	again, _ := store.Get("out", "page.txt")
	assert.Equal(t, "content", string(again))

	_, err = store.Create(context.Background(), "out", "page.txt", strings.NewReader("other"))
	require.ErrorIs(t, err, storage.ErrExists)

	_, err = store.Create(context.Background(), "out", "", strings.NewReader("x"))
	require.Error(t, err)

	_, ok = store.Get("out", "missing.txt")
	assert.False(t, ok)
}

func TestBlobStoreCreate_SingleWinner(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Create(context.Background(), "out", "cover.webp", strings.NewReader("img")); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, []string{"out/cover.webp"}, store.Keys())
}
