package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lalith-99/recshare/internal/models"
	"github.com/lalith-99/recshare/internal/repository"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

// sqlLike matches any statement containing fragment.
func sqlLike(fragment string) string {
	return regexp.QuoteMeta(fragment)
}

var followColumns = []string{
	"id", "follower_id", "follower_username", "follower_avatar",
	"followee_id", "followee_username", "followee_avatar", "created_at",
}

func TestFollowStore_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("new edge", func(t *testing.T) {
		mock := newMock(t)
		now := time.Now()
		mock.ExpectQuery(sqlLike("ON CONFLICT (follower_id, followee_id) DO NOTHING")).
			WithArgs(int64(1), int64(2)).
			WillReturnRows(pgxmock.NewRows(followColumns).
				AddRow(int64(10), int64(1), "alice", "", int64(2), "bob", "", now))

		follow, created, err := NewFollowStore(mock).Create(ctx, 1, 2)
		require.NoError(t, err)
		assert.True(t, created)
		require.NotNil(t, follow)
		assert.Equal(t, int64(10), follow.ID)
		assert.Equal(t, "alice", follow.Follower.Username)
		assert.Equal(t, "bob", follow.Followee.Username)
	})

	t.Run("existing edge returns no row", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(sqlLike("ON CONFLICT (follower_id, followee_id) DO NOTHING")).
			WithArgs(int64(1), int64(2)).
			WillReturnRows(pgxmock.NewRows(followColumns))

		follow, created, err := NewFollowStore(mock).Create(ctx, 1, 2)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Nil(t, follow)
	})

	t.Run("unknown followee", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(sqlLike("INSERT INTO follows")).
			WithArgs(int64(1), int64(99)).
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "follows_followee_id_fkey"})

		_, created, err := NewFollowStore(mock).Create(ctx, 1, 99)
		assert.ErrorIs(t, err, repository.ErrInvalidReference)
		assert.False(t, created)
	})
}

func TestFollowStore_DeleteMissing(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(sqlLike("DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2")).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := NewFollowStore(mock).Delete(context.Background(), 1, 2)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSaveStore_SaveIsAnUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert keyed on user and recommendation", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(sqlLike("DO UPDATE SET status = EXCLUDED.status, updated_at = now()")).
			WithArgs(int64(4), int64(7), "watched").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewSaveStore(mock).Save(ctx, 4, 7, models.SaveWatched))
	})

	t.Run("same status again touches nothing", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(sqlLike("WHERE saves.status IS DISTINCT FROM EXCLUDED.status")).
			WithArgs(int64(4), int64(7), "to_watch").
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		require.NoError(t, NewSaveStore(mock).Save(ctx, 4, 7, models.SaveToWatch))
	})

	t.Run("missing recommendation", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(sqlLike("INSERT INTO saves")).
			WithArgs(int64(4), int64(99), "to_watch").
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

		err := NewSaveStore(mock).Save(ctx, 4, 99, models.SaveToWatch)
		assert.ErrorIs(t, err, repository.ErrInvalidReference)
	})
}

func TestSaveStore_RemoveOnlyMatchingStatus(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(sqlLike("DELETE FROM saves WHERE recommendation_id = $1 AND user_id = $2 AND status = $3")).
		WithArgs(int64(7), int64(4), "to_watch").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := NewSaveStore(mock).Remove(context.Background(), 4, 7, models.SaveToWatch)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecommendationStore_UpdateRelinksTags(t *testing.T) {
	ctx := context.Background()
	title := "Arrival"
	tagIDs := []int64{3, 5}

	t.Run("replaces the tag set in one transaction", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(sqlLike("UPDATE recommendations SET title = $1, updated_at = now() WHERE id = $2")).
			WithArgs("Arrival", int64(7)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(sqlLike("DELETE FROM recommendation_tags WHERE recommendation_id = $1")).
			WithArgs(int64(7)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec(sqlLike("INSERT INTO recommendation_tags")).
			WithArgs(int64(7), tagIDs).
			WillReturnResult(pgxmock.NewResult("INSERT", 2))
		mock.ExpectCommit()
		// The reload races a concurrent delete here; the store reports it as missing.
		mock.ExpectQuery(sqlLike("FROM recommendations r JOIN users u")).
			WithArgs(int64(7)).
			WillReturnError(pgx.ErrNoRows)

		rec, err := NewRecommendationStore(mock).Update(ctx, 7, repository.RecommendationPatch{
			Title:  &title,
			TagIDs: &tagIDs,
		})
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("unknown tag rolls back", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(sqlLike("UPDATE recommendations")).
			WithArgs("Arrival", int64(7)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(sqlLike("DELETE FROM recommendation_tags")).
			WithArgs(int64(7)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectExec(sqlLike("INSERT INTO recommendation_tags")).
			WithArgs(int64(7), tagIDs).
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "recommendation_tags_tag_id_fkey"})
		mock.ExpectRollback()

		_, err := NewRecommendationStore(mock).Update(ctx, 7, repository.RecommendationPatch{
			Title:  &title,
			TagIDs: &tagIDs,
		})
		assert.ErrorIs(t, err, repository.ErrInvalidReference)
	})

	t.Run("missing row rolls back without touching tags", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(sqlLike("UPDATE recommendations")).
			WithArgs("Arrival", int64(7)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		_, err := NewRecommendationStore(mock).Update(ctx, 7, repository.RecommendationPatch{
			Title:  &title,
			TagIDs: &tagIDs,
		})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestConstraintErrorsBecomeSentinels(t *testing.T) {
	ctx := context.Background()

	t.Run("taken username", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(sqlLike("INSERT INTO users")).
			WithArgs("alice", "", "hash").
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "users_username_key"})

		_, err := NewUserStore(mock).Create(ctx, "alice", "", "hash")
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})

	t.Run("comment on a deleted recommendation", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(sqlLike("INSERT INTO comments")).
			WithArgs(int64(2), int64(9), "nice").
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

		_, err := NewCommentStore(mock).Create(ctx, 9, 2, "nice")
		assert.ErrorIs(t, err, repository.ErrInvalidReference)
	})

	t.Run("deleting a missing user", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(sqlLike("DELETE FROM users WHERE id = $1")).
			WithArgs(int64(5)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, NewUserStore(mock).Delete(ctx, 5), repository.ErrNotFound)
	})
}
