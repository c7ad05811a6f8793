package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"strayland/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeRepository_InsertLike(t *testing.T) {
	ctx := context.Background()
	insertSQL := regexp.QuoteMeta(`INSERT INTO "likes" ("post_id","voter_id","created_at") VALUES ($1,$2,$3) RETURNING "id"`)

	tests := []struct {
		name         string
		mockBehavior func(mock sqlmock.Sqlmock)
		expectedErr  error
		expectStore  bool
	}{
		{
			name: "Success",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(insertSQL).
					WithArgs(1, "user:7", sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
				mock.ExpectCommit()
			},
		},
		{
			name: "Unique violation maps to conflict",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(insertSQL).
					WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_like_post_voter"})
				mock.ExpectRollback()
			},
			expectedErr: ErrLikeConflict,
		},
		{
			name: "Foreign key violation maps to missing post",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(insertSQL).
					WillReturnError(&pgconn.PgError{Code: "23503"})
				mock.ExpectRollback()
			},
			expectedErr: ErrPostMissing,
		},
		{
			name: "Driver failure is store unavailable",
			mockBehavior: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(insertSQL).
					WillReturnError(errors.New("connection reset by peer"))
				mock.ExpectRollback()
			},
			expectStore: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewLikeRepository(db, noCache())
			tt.mockBehavior(mock)

			like, err := repo.InsertLike(ctx, 1, "user:7")
			switch {
			case tt.expectedErr != nil:
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, like)
			case tt.expectStore:
				assert.True(t, models.HasCode(err, models.CodeStoreUnavailable))
			default:
				require.NoError(t, err)
				assert.Equal(t, uint(11), like.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLikeRepository_FindLike(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db, noCache())
	ctx := context.Background()
	findSQL := regexp.QuoteMeta(`SELECT * FROM "likes" WHERE post_id = $1 AND voter_id = $2 LIMIT $3`)

	mock.ExpectQuery(findSQL).
		WithArgs(3, "anon:abc", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "voter_id"}).AddRow(5, 3, "anon:abc"))
	like, err := repo.FindLike(ctx, 3, "anon:abc")
	require.NoError(t, err)
	require.NotNil(t, like)
	assert.Equal(t, uint(5), like.ID)

	mock.ExpectQuery(findSQL).
		WithArgs(3, "anon:def", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "voter_id"}))
	like, err = repo.FindLike(ctx, 3, "anon:def")
	require.NoError(t, err)
	assert.Nil(t, like)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRepository_CountAndPersist(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db, noCache())
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "likes" WHERE post_id = $1`)).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	count, err := repo.CountLikes(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "likes_count"=$1 WHERE id = $2`)).
		WithArgs(4, 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.UpdatePostLikesCount(ctx, 9, count))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "likes" WHERE "likes"."id" = $1`)).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.DeleteLike(ctx, 5))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRepository_WithPostLock(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db, noCache())
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "posts" WHERE "posts"."id" = \$1 LIMIT \$2 FOR UPDATE`).
		WithArgs(9, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "likes" WHERE post_id = $1`)).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "likes_count"=$1 WHERE id = $2`)).
		WithArgs(2, 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithPostLock(ctx, 9, func(tx LikeStore) error {
		count, err := tx.CountLikes(ctx, 9)
		if err != nil {
			return err
		}
		return tx.UpdatePostLikesCount(ctx, 9, count)
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err = repo.WithPostLock(ctx, 10, func(LikeStore) error {
		t.Fatal("fn must not run for a missing post")
		return nil
	})
	assert.ErrorIs(t, err, ErrPostMissing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRepository_CountFailureIsStoreUnavailable(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db, noCache())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "likes"`)).
		WillReturnError(errors.New("timeout"))

	_, err := repo.CountLikes(context.Background(), 1)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeStoreUnavailable, appErr.Code)
	assert.True(t, appErr.Retryable())
}

func TestLikeRepository_SQLite(t *testing.T) {
	t.Parallel()
	db := setupSQLiteDB(t)
	repo := NewLikeRepository(db, noCache())
	ctx := context.Background()
	post := seedPost(t, db, "sqlite")

	missing, err := repo.GetPost(ctx, post.ID+100)
	require.NoError(t, err)
	assert.Nil(t, missing)

	got, err := repo.GetPost(ctx, post.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	like, err := repo.InsertLike(ctx, post.ID, "user:1")
	require.NoError(t, err)
	assert.NotZero(t, like.ID)

	_, err = repo.InsertLike(ctx, post.ID, "user:1")
	assert.ErrorIs(t, err, ErrLikeConflict)

	_, err = repo.InsertLike(ctx, post.ID, "user:2")
	require.NoError(t, err)

	count, err := repo.CountLikes(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	require.NoError(t, repo.UpdatePostLikesCount(ctx, post.ID, count))

	got, err = repo.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.LikesCount)

	require.NoError(t, repo.DeleteLike(ctx, like.ID))
	require.NoError(t, repo.DeleteLike(ctx, like.ID), "deleting twice is not an error")

	found, err := repo.FindLike(ctx, post.ID, "user:1")
	require.NoError(t, err)
	assert.Nil(t, found)
}
