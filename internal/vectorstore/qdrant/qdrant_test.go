package qdrant

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"semsearch/internal/domain"
	"semsearch/internal/vectorstore"
)

type fakeClient struct {
	collections map[string]uint64
	points      map[uint64]*qdrant.PointStruct
	calls       []string
	failQuery   []error
	closed      bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{collections: map[string]uint64{}, points: map[uint64]*qdrant.PointStruct{}}
}

func (f *fakeClient) HealthCheck(context.Context) (*qdrant.HealthCheckReply, error) {
	return &qdrant.HealthCheckReply{}, nil
}

func (f *fakeClient) CollectionExists(_ context.Context, name string) (bool, error) {
	f.calls = append(f.calls, "exists")
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeClient) DeleteCollection(_ context.Context, name string) error {
	f.calls = append(f.calls, "delete")
	delete(f.collections, name)
	f.points = map[uint64]*qdrant.PointStruct{}
	return nil
}

func (f *fakeClient) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.calls = append(f.calls, "create")
	f.collections[req.GetCollectionName()] = req.GetVectorsConfig().GetParams().GetSize()
	return nil
}

func (f *fakeClient) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	for _, p := range req.GetPoints() {
		f.points[p.GetId().GetNum()] = p
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeClient) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	if len(f.failQuery) > 0 {
		err := f.failQuery[0]
		f.failQuery = f.failQuery[1:]
		return nil, err
	}
	query := req.GetQuery().GetNearest().GetDense().GetData()
	var out []*qdrant.ScoredPoint
	for id, p := range f.points {
		vec := p.GetVectors().GetVector().GetDense().GetData()
		out = append(out, &qdrant.ScoredPoint{
			Id:      qdrant.NewIDNum(id),
			Score:   vectorstore.Cosine(vec, query),
			Payload: p.GetPayload(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit := int(req.GetLimit()); limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeClient) Count(context.Context, *qdrant.CountPoints) (uint64, error) {
	return uint64(len(f.points)), nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func testStorage(c client) *Storage {
	return newStorage(c, Config{Collection: "segments", RetryBackoff: time.Millisecond}, nil)
}

func TestStorage_RecreateDropsExisting(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	s := testStorage(fc)

	require.NoError(t, s.Recreate(ctx, 3))
	assert.Equal(t, []string{"exists", "create"}, fc.calls)
	assert.Equal(t, uint64(3), fc.collections["segments"])

	fc.calls = nil
	require.NoError(t, s.Recreate(ctx, 4))
	assert.Equal(t, []string{"exists", "delete", "create"}, fc.calls)
	assert.Equal(t, uint64(4), fc.collections["segments"])
}

func TestStorage_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	s := testStorage(fc)
	require.NoError(t, s.Recreate(ctx, 2))

	require.NoError(t, s.Upsert(ctx, []domain.VectorPoint{
		{ID: 1, Vector: []float32{1, 0}, Payload: domain.Payload{Title: "Stockholm", URL: "u1", DocumentID: 4, SegmentID: 0}},
		{ID: 2, Vector: []float32{0, 1}, Payload: domain.Payload{Title: "Malmö", URL: "u2", DocumentID: 5, SegmentID: 2}},
	}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := s.Search(ctx, []float32{0.1, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].ID)
	assert.Equal(t, domain.Payload{Title: "Malmö", URL: "u2", DocumentID: 5, SegmentID: 2}, hits[0].Payload)
}

func TestStorage_Validation(t *testing.T) {
	ctx := context.Background()
	s := testStorage(newFakeClient())

	err := s.Upsert(ctx, []domain.VectorPoint{{ID: 1, Vector: []float32{1}}})
	assert.True(t, errors.Is(err, vectorstore.ErrNotDeclared))

	require.NoError(t, s.Recreate(ctx, 2))
	err = s.Upsert(ctx, []domain.VectorPoint{{ID: 1, Vector: []float32{1}}})
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))

	_, err = s.Search(ctx, []float32{1, 0}, 0)
	assert.True(t, errors.Is(err, domain.ErrInvalidLimit))
}

func TestStorage_RetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	fc.failQuery = []error{
		status.Error(grpccodes.Unavailable, "connection reset"),
		status.Error(grpccodes.DeadlineExceeded, "slow"),
	}
	s := testStorage(fc)
	require.NoError(t, s.Recreate(ctx, 2))

	hits, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Empty(t, fc.failQuery)
}

func TestStorage_PermanentErrorsAreNotRetried(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	fc.failQuery = []error{
		status.Error(grpccodes.InvalidArgument, "wrong vector size"),
		status.Error(grpccodes.Unavailable, "never reached"),
	}
	s := testStorage(fc)

	_, err := s.Search(ctx, []float32{1, 0}, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
	assert.Len(t, fc.failQuery, 1)
}

func TestStorage_GivesUpAfterMaxRetries(t *testing.T) {
	fc := newFakeClient()
	for i := 0; i < 10; i++ {
		fc.failQuery = append(fc.failQuery, status.Error(grpccodes.Unavailable, "down"))
	}
	s := newStorage(fc, Config{Collection: "segments", MaxRetries: 2, RetryBackoff: time.Millisecond}, nil)

	_, err := s.Search(context.Background(), []float32{1, 0}, 3)
	require.Error(t, err)
	assert.Equal(t, grpccodes.Unavailable, status.Code(errors.Unwrap(err)))
	assert.Len(t, fc.failQuery, 7)
}

func TestIsTransientError(t *testing.T) {
	assert.True(t, IsTransientError(status.Error(grpccodes.Unavailable, "")))
	assert.True(t, IsTransientError(status.Error(grpccodes.ResourceExhausted, "")))
	assert.False(t, IsTransientError(status.Error(grpccodes.NotFound, "")))
	assert.False(t, IsTransientError(errors.New("plain")))
	assert.False(t, IsTransientError(nil))
}

func TestStorage_Close(t *testing.T) {
	fc := newFakeClient()
	require.NoError(t, testStorage(fc).Close())
	assert.True(t, fc.closed)
}
