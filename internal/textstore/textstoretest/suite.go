// Package textstoretest checks TextStore implementations against one shared contract.
package textstoretest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/domain"
)

func seg(key, doc int64, id int, content string) domain.Segment {
	return domain.Segment{
		SurrogateKey: key,
		DocumentID:   doc,
		SegmentID:    id,
		Title:        "Dokument",
		URL:          "https://sv.wikipedia.org/wiki/Dokument",
		Content:      content,
	}
}

// Run exercises a fresh store returned by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) domain.TextStore) {
	t.Run("InsertAndGet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		want := seg(1, 10, 0, "Första stycket.")
		require.NoError(t, s.Insert(ctx, want))

		got, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		_, err = s.Get(ctx, 2)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("DuplicateKey", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, seg(1, 10, 0, "a")))
		err := s.Insert(ctx, seg(1, 11, 0, "b"))
		assert.True(t, errors.Is(err, domain.ErrDuplicateSegment))
	})

	t.Run("DuplicateDocumentSegment", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, seg(1, 10, 0, "a")))
		err := s.Insert(ctx, seg(2, 10, 0, "a igen"))
		assert.True(t, errors.Is(err, domain.ErrDuplicateSegment))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("GetByKeys", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for i := int64(1); i <= 5; i++ {
			require.NoError(t, s.Insert(ctx, seg(i, 10, int(i-1), "x")))
		}
		got, err := s.GetByKeys(ctx, []int64{5, 2, 99})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, 4, got[5].SegmentID)
		assert.Equal(t, 1, got[2].SegmentID)
		assert.NotContains(t, got, int64(99))

		empty, err := s.GetByKeys(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("MaxKeyAndCount", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		maxKey, err := s.MaxKey(ctx)
		require.NoError(t, err)
		assert.Zero(t, maxKey)

		require.NoError(t, s.Insert(ctx, seg(7, 1, 0, "a")))
		require.NoError(t, s.Insert(ctx, seg(3, 1, 1, "b")))
		maxKey, err = s.MaxKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(7), maxKey)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("IndexInfo", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		_, err := s.IndexInfo(ctx)
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		require.NoError(t, s.SaveIndexInfo(ctx, domain.IndexInfo{Model: "tfidf-1", Dimension: 10, Collection: "a"}))
		require.NoError(t, s.SaveIndexInfo(ctx, domain.IndexInfo{Model: "tfidf-2", Dimension: 12, Collection: "b"}))
		info, err := s.IndexInfo(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.IndexInfo{Model: "tfidf-2", Dimension: 12, Collection: "b"}, info)
	})

	t.Run("Clear", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, seg(1, 10, 0, "a")))
		require.NoError(t, s.SaveIndexInfo(ctx, domain.IndexInfo{Model: "m", Dimension: 1, Collection: "c"}))
		require.NoError(t, s.Clear(ctx))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		_, err = s.IndexInfo(ctx)
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		// The same document can be written again after a clear.
		require.NoError(t, s.Insert(ctx, seg(1, 10, 0, "a")))
	})
}
