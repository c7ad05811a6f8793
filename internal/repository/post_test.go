package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"strayland/internal/cache"
	"strayland/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db, noCache())
	ctx := context.Background()

	post := &models.Post{Author: "mika", Title: "Test Post", Content: "Content"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, post)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), post.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetByIDNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db, noCache())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT posts.*, (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count FROM "posts" WHERE "posts"."id" = $1`)).
		WithArgs(42, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), 42)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_ListAndDetail(t *testing.T) {
	t.Parallel()
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db, noCache())
	comments := NewCommentRepository(db, noCache())
	ctx := context.Background()

	older := seedPost(t, db, "older")
	require.NoError(t, db.Model(older).UpdateColumn("created_at", time.Now().Add(-time.Hour)).Error)
	newer := seedPost(t, db, "newer")

	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: older.ID, Author: "a", Text: "first"}))
	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: older.ID, Author: "b", Text: "second"}))

	posts, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, newer.ID, posts[0].ID, "newest first")
	assert.Equal(t, 2, posts[1].CommentsCount)

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, older.ID, page[0].ID)

	detail, err := repo.GetDetail(ctx, older.ID)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 2)
	assert.Equal(t, "first", detail.Comments[0].Text)
	assert.Equal(t, 2, detail.CommentsCount)

	_, err = repo.GetDetail(ctx, 999)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestPostRepository_DeleteCascades(t *testing.T) {
	t.Parallel()
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db, noCache())
	likes := NewLikeRepository(db, noCache())
	comments := NewCommentRepository(db, noCache())
	ctx := context.Background()

	post := seedPost(t, db, "doomed")
	keep := seedPost(t, db, "keeper")
	_, err := likes.InsertLike(ctx, post.ID, "user:1")
	require.NoError(t, err)
	_, err = likes.InsertLike(ctx, keep.ID, "user:1")
	require.NoError(t, err)
	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: post.ID, Author: "a", Text: "bye"}))

	require.NoError(t, repo.Delete(ctx, post.ID))

	var likeCount, commentCount int64
	require.NoError(t, db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&likeCount).Error)
	require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&commentCount).Error)
	assert.Zero(t, likeCount)
	assert.Zero(t, commentCount)

	keptLike, err := likes.FindLike(ctx, keep.ID, "user:1")
	require.NoError(t, err)
	assert.NotNil(t, keptLike, "other posts are untouched")

	err = repo.Delete(ctx, post.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestPostRepository_LikedPostIDsAndPlaces(t *testing.T) {
	t.Parallel()
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db, noCache())
	likes := NewLikeRepository(db, noCache())
	ctx := context.Background()

	a := seedPost(t, db, "a")
	b := seedPost(t, db, "b")
	_, err := likes.InsertLike(ctx, b.ID, "anon:x")
	require.NoError(t, err)

	ids, err := repo.LikedPostIDs(ctx, "anon:x", []uint{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{b.ID}, ids)

	ids, err = repo.LikedPostIDs(ctx, "", []uint{a.ID})
	require.NoError(t, err)
	assert.Empty(t, ids)

	lat, lng := 25.03, 121.56
	shelter := &models.Post{Author: "s", Title: "shelter", PlaceType: models.PlaceTypeShelter, PlaceName: "Riverside", Lat: &lat, Lng: &lng}
	cafe := &models.Post{Author: "c", Title: "cafe", PlaceType: models.PlaceTypeCafe, PlaceName: "Whiskers"}
	require.NoError(t, repo.Create(ctx, shelter))
	require.NoError(t, repo.Create(ctx, cafe))

	all, err := repo.ListWithPlaces(ctx, "", 50)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	shelters, err := repo.ListWithPlaces(ctx, models.PlaceTypeShelter, 50)
	require.NoError(t, err)
	require.Len(t, shelters, 1)
	assert.Equal(t, "Riverside", shelters[0].PlaceName)
}

func TestPostRepository_DetailCacheInvalidation(t *testing.T) {
	t.Parallel()
	db := setupSQLiteDB(t)
	mr := miniredis.RunT(t)
	client, err := cache.NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	store := cache.New(client)

	repo := NewPostRepository(db, store)
	likes := NewLikeRepository(db, store)
	comments := NewCommentRepository(db, store)
	ctx := context.Background()
	post := seedPost(t, db, "cached")

	_, err = repo.GetDetail(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.PostKey(post.ID)))

	require.NoError(t, likes.UpdatePostLikesCount(ctx, post.ID, 3))
	assert.False(t, mr.Exists(cache.PostKey(post.ID)), "count update must invalidate the detail")

	detail, err := repo.GetDetail(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, detail.LikesCount)

	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: post.ID, Author: "a", Text: "hi"}))
	assert.False(t, mr.Exists(cache.PostKey(post.ID)))

	detail, err = repo.GetDetail(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Comments, 1)
}

func TestPostRepository_DetailLikesCountReadFresh(t *testing.T) {
	t.Parallel()
	db := setupSQLiteDB(t)
	mr := miniredis.RunT(t)
	client, err := cache.NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	store := cache.New(client)

	repo := NewPostRepository(db, store)
	ctx := context.Background()
	post := seedPost(t, db, "racy")

	// A reader that loaded the row before a toggle committed can cache it
	// after the toggle's invalidation.
	stale := *post
	stale.LikesCount = 99
	require.NoError(t, store.SetJSON(ctx, cache.PostKey(post.ID), &stale, cache.PostTTL))
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumn("likes_count", 2).Error)

	detail, err := repo.GetDetail(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.LikesCount)

	require.NoError(t, db.Delete(&models.Post{}, post.ID).Error)
	_, err = repo.GetDetail(ctx, post.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.False(t, mr.Exists(cache.PostKey(post.ID)))
}
