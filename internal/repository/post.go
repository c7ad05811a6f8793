// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"strayland/internal/cache"
	"strayland/internal/models"
	"strayland/internal/observability"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// GetDetail returns the post with comments preloaded, served cache-aside.
	// likes_count always comes from the row, never from the cache.
	GetDetail(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	ListWithPlaces(ctx context.Context, placeType string, limit int) ([]*models.Post, error)
	LikedPostIDs(ctx context.Context, voterID string, postIDs []uint) ([]uint, error)
	// Delete removes the post together with its like and comment rows.
	Delete(ctx context.Context, id uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	db    *gorm.DB
	cache *cache.Store
	log   *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB, store *cache.Store) PostRepository {
	return &postRepository{db: db, cache: store, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit("Comments").Create(post).Error; err != nil {
		return storeError(ctx, r.log, "create post", err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := applyPostDetails(r.db.WithContext(ctx)).First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Post", id)
	}
	if err != nil {
		return nil, storeError(ctx, r.log, "get post", err)
	}
	return &post, nil
}

func (r *postRepository) GetDetail(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	var notFound bool
	err := r.cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		err := applyPostDetails(r.db.WithContext(ctx)).
			Preload("Comments", func(db *gorm.DB) *gorm.DB {
				return db.Order("comments.created_at ASC, comments.id ASC")
			}).
			First(&post, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound = true
		}
		return err
	})
	if notFound {
		return nil, models.NewNotFoundError("Post", id)
	}
	if err != nil {
		return nil, storeError(ctx, r.log, "get post detail", err)
	}

	// The cached copy may predate the last toggle; the counter is read fresh.
	var counts []int
	err = r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		Pluck("likes_count", &counts).Error
	if err != nil {
		return nil, storeError(ctx, r.log, "get post likes count", err)
	}
	if len(counts) == 0 {
		r.cache.Invalidate(ctx, cache.PostKey(id))
		return nil, models.NewNotFoundError("Post", id)
	}
	post.LikesCount = counts[0]
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := applyPostDetails(r.db.WithContext(ctx)).
		Order("posts.created_at DESC, posts.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, storeError(ctx, r.log, "list posts", err)
	}
	return posts, nil
}

func (r *postRepository) ListWithPlaces(ctx context.Context, placeType string, limit int) ([]*models.Post, error) {
	q := r.db.WithContext(ctx).
		Where("place_type <> '' AND place_name <> ''")
	if placeType != "" {
		q = q.Where("place_type = ?", placeType)
	}

	var posts []*models.Post
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&posts).Error; err != nil {
		return nil, storeError(ctx, r.log, "list places", err)
	}
	return posts, nil
}

// applyPostDetails adds the comment count subquery; likes_count is stored on the row.
func applyPostDetails(db *gorm.DB) *gorm.DB {
	return db.Select("posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count")
}

func (r *postRepository) LikedPostIDs(ctx context.Context, voterID string, postIDs []uint) ([]uint, error) {
	if voterID == "" || len(postIDs) == 0 {
		return nil, nil
	}
	var liked []uint
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("voter_id = ? AND post_id IN ?", voterID, postIDs).
		Pluck("post_id", &liked).Error
	if err != nil {
		return nil, storeError(ctx, r.log, "liked post ids", err)
	}
	return liked, nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return storeError(ctx, r.log, "delete post", err)
	}
	if deleted == 0 {
		return models.NewNotFoundError("Post", id)
	}

	r.cache.Invalidate(ctx, cache.PostKey(id))
	r.log.LogDelete(ctx, map[string]interface{}{"post_id": id})
	return nil
}
