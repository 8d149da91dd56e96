package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthill1650-eng/Medscan/constants"
	"github.com/anthill1650-eng/Medscan/internal/common"
	"github.com/anthill1650-eng/Medscan/internal/entity"
)

func newTestRepo(t *testing.T) DocumentRepository {
	t.Helper()
	db, err := Open(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, HealthCheck(context.Background(), db, 0, nil))
	return NewDocumentRepository(db, nil)
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	doc := &entity.Document{
		ID:       "d1",
		Filename: "report.jpg",
		Result: &entity.DocResult{
			DocID:  "d1",
			Status: constants.StatusQueued,
			Pages:  []entity.Page{{ID: "p1", URI: "/uploads/d1/page_1.jpg", Page: 1}},
		},
	}
	require.NoError(t, repo.Create(ctx, doc))

	got, err := repo.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.ID)
	assert.Equal(t, constants.StatusQueued, got.Status, "status defaults to queued")
	assert.Equal(t, "report.jpg", got.Filename)
	require.NotNil(t, got.Result)
	require.Len(t, got.Result.Pages, 1)
	assert.Equal(t, "/uploads/d1/page_1.jpg", got.Result.Pages[0].URI)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetMissing(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Get(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestLifecycleToDone(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.Document{ID: "d1", Filename: "a.jpg"}))
	require.NoError(t, repo.MarkProcessing(ctx, "d1"))

	got, err := repo.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, constants.StatusProcessing, got.Status)

	result := &entity.DocResult{
		DocID:   "d1",
		Status:  constants.StatusDone,
		Pages:   []entity.Page{{ID: "p1", Text: "GLUCOSE 102 H 70-99", Page: 1}},
		Summary: "GLUCOSE 102 H 70-99",
	}
	require.NoError(t, repo.FinishSuccess(ctx, "d1", "GLUCOSE 102 H 70-99", result))

	got, err = repo.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, constants.StatusDone, got.Status)
	assert.Equal(t, "GLUCOSE 102 H 70-99", got.OCRText)
	require.NotNil(t, got.Result)
	assert.Equal(t, "GLUCOSE 102 H 70-99", got.Result.Summary)
}

func TestLifecycleToFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.Document{ID: "d1"}))
	require.NoError(t, repo.MarkProcessing(ctx, "d1"))
	require.NoError(t, repo.FinishFailure(ctx, "d1", "scan unreadable"))

	got, err := repo.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, constants.StatusError, got.Status)
	assert.Equal(t, "scan unreadable", got.ErrorMsg)
}

func TestTerminalRowsAreFrozen(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.Document{ID: "d1"}))
	require.NoError(t, repo.FinishSuccess(ctx, "d1", "text", &entity.DocResult{DocID: "d1", Status: constants.StatusDone}))

	err := repo.MarkProcessing(ctx, "d1")
	require.ErrorIs(t, err, common.ErrConflict)

	err = repo.FinishFailure(ctx, "d1", "late failure")
	require.ErrorIs(t, err, common.ErrConflict)

	got, err := repo.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, constants.StatusDone, got.Status)
	assert.Empty(t, got.ErrorMsg)
}

func TestUpdatesOnMissingRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.ErrorIs(t, repo.MarkProcessing(ctx, "nope"), common.ErrNotFound)
	require.ErrorIs(t, repo.FinishFailure(ctx, "nope", "x"), common.ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.Document{ID: "d1", Filename: "a.jpg"}))
	require.NoError(t, repo.Create(ctx, &entity.Document{ID: "d2", Filename: "b.jpg"}))
	require.NoError(t, repo.Create(ctx, &entity.Document{ID: "d3", Filename: "c.jpg"}))

	docs, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d3", docs[0].ID)
	assert.Equal(t, "d2", docs[1].ID)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
