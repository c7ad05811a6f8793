package repository

import (
	"context"
	"errors"

	"strayland/internal/cache"
	"strayland/internal/models"
	"strayland/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeStore is the persistence contract of the like toggle engine.
type LikeStore interface {
	// GetPost returns nil, nil when the post does not exist.
	GetPost(ctx context.Context, postID uint) (*models.Post, error)
	// FindLike returns nil, nil when the voter does not like the post.
	FindLike(ctx context.Context, postID uint, voterID string) (*models.Like, error)
	// InsertLike fails with ErrLikeConflict if the pair already exists and
	// with ErrPostMissing if the post row is gone.
	InsertLike(ctx context.Context, postID uint, voterID string) (*models.Like, error)
	// DeleteLike removes a like row; deleting a missing row is not an error.
	DeleteLike(ctx context.Context, likeID uint) error
	CountLikes(ctx context.Context, postID uint) (int64, error)
	UpdatePostLikesCount(ctx context.Context, postID uint, count int64) error
	// WithPostLock runs fn in a transaction holding the post row lock, so
	// concurrent recounts of one post are applied in order. It returns
	// ErrPostMissing when the post row is gone.
	WithPostLock(ctx context.Context, postID uint, fn func(LikeStore) error) error
}

type likeRepository struct {
	db    *gorm.DB
	cache *cache.Store
	log   *observability.RepoLogger
}

// NewLikeRepository creates a LikeStore backed by gorm.
func NewLikeRepository(db *gorm.DB, store *cache.Store) LikeStore {
	return &likeRepository{db: db, cache: store, log: observability.NewRepoLogger("likes")}
}

func (r *likeRepository) GetPost(ctx context.Context, postID uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(ctx, r.log, "get post", err)
	}
	return &post, nil
}

func (r *likeRepository) FindLike(ctx context.Context, postID uint, voterID string) (*models.Like, error) {
	var like models.Like
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND voter_id = ?", postID, voterID).
		Take(&like).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(ctx, r.log, "find like", err)
	}
	return &like, nil
}

func (r *likeRepository) InsertLike(ctx context.Context, postID uint, voterID string) (*models.Like, error) {
	like := &models.Like{PostID: postID, VoterID: voterID}
	err := r.db.WithContext(ctx).Omit("Post").Create(like).Error
	switch {
	case err == nil:
		return like, nil
	case isUniqueViolation(err):
		return nil, ErrLikeConflict
	case isForeignKeyViolation(err):
		return nil, ErrPostMissing
	default:
		return nil, storeError(ctx, r.log, "insert like", err)
	}
}

func (r *likeRepository) DeleteLike(ctx context.Context, likeID uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Like{}, likeID).Error; err != nil {
		return storeError(ctx, r.log, "delete like", err)
	}
	return nil
}

func (r *likeRepository) CountLikes(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("post_id = ?", postID).
		Count(&count).Error; err != nil {
		return 0, storeError(ctx, r.log, "count likes", err)
	}
	return count, nil
}

func (r *likeRepository) UpdatePostLikesCount(ctx context.Context, postID uint, count int64) error {
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("likes_count", count).Error
	if err != nil {
		return storeError(ctx, r.log, "update likes count", err)
	}
	r.cache.Invalidate(ctx, cache.PostKey(postID))
	return nil
}

func (r *likeRepository) WithPostLock(ctx context.Context, postID uint, fn func(LikeStore) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Take(&post, postID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostMissing
		}
		if err != nil {
			return err
		}
		return fn(&likeRepository{db: tx, cache: r.cache, log: r.log})
	})
	switch {
	case err == nil:
		// Readers may have refilled the cache before commit.
		r.cache.Invalidate(ctx, cache.PostKey(postID))
		return nil
	case errors.Is(err, ErrPostMissing):
		return ErrPostMissing
	default:
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return storeError(ctx, r.log, "lock post", err)
	}
}
