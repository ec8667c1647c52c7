package identity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/domain"
)

func TestSequence_NextAndReserve(t *testing.T) {
	s := NewSequence(1)
	assert.Equal(t, int64(0), s.Last())
	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Reserve(3))
	assert.Equal(t, int64(4), s.Last())
	assert.Equal(t, int64(5), s.Next())
	assert.Equal(t, int64(6), s.Reserve(0), "empty reservation does not consume keys")
	assert.Equal(t, int64(5), s.Last())
}

func TestSequence_ConcurrentKeysAreUnique(t *testing.T) {
	s := NewSequence(100)
	const workers, perWorker = 8, 250

	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, s.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, k := range local {
				seen[k] = struct{}{}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, int64(100+workers*perWorker-1), s.Last())
}

func TestAllocator_Allocate(t *testing.T) {
	a := NewAllocator(NewSequence(10))
	doc := domain.Document{ID: 7, Title: "Stockholm", URL: "https://sv.wikipedia.org/wiki/Stockholm"}

	segs := a.Allocate(doc, []string{"a", "b", "c"})
	require.Len(t, segs, 3)
	for i, s := range segs {
		assert.Equal(t, int64(10+i), s.SurrogateKey)
		assert.Equal(t, i, s.SegmentID)
		assert.Equal(t, int64(7), s.DocumentID)
		assert.Equal(t, doc.Title, s.Title)
		assert.Equal(t, doc.URL, s.URL)
	}
	assert.Equal(t, "b", segs[1].Content)

	next := a.Allocate(domain.Document{ID: 8}, []string{"d"})
	require.Len(t, next, 1)
	assert.Equal(t, int64(13), next[0].SurrogateKey)
	assert.Equal(t, 0, next[0].SegmentID)

	assert.Empty(t, a.Allocate(domain.Document{ID: 9}, nil))
}
