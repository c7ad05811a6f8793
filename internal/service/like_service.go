package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"strayland/internal/models"
	"strayland/internal/observability"
	"strayland/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// maxInsertAttempts bounds how often a conflicting insert is retried when the
// competing row vanishes before it can be observed.
const maxInsertAttempts = 3

// ToggleResult is the voter's new state for a post and the reconciled count.
type ToggleResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// LikeService flips a voter's like on a post and rewrites the stored counter
// from the authoritative row count.
type LikeService struct {
	store  repository.LikeStore
	logger *observability.StructuredLogger
}

// NewLikeService returns a LikeService over store.
func NewLikeService(store repository.LikeStore) *LikeService {
	return &LikeService{store: store, logger: observability.NewStructuredLogger()}
}

// Toggle likes the post for voterID if it is not liked yet and unlikes it
// otherwise. The returned count equals the number of like rows for the post.
func (s *LikeService) Toggle(ctx context.Context, postID uint, voterID string) (result ToggleResult, err error) {
	start := time.Now()
	span, ctx := observability.NewSpan(ctx, "like.toggle",
		attribute.Int64("post.id", int64(postID)),
	)
	defer func() {
		outcome := "unliked"
		switch {
		case err != nil:
			outcome = "error"
			span.SetError(err)
		case result.Liked:
			outcome = "liked"
		}
		observability.LikeToggles.WithLabelValues(outcome).Inc()
		span.AddAttributes(attribute.String("like.result", outcome))
		span.End()
		s.logger.LogServiceCall(ctx, "LikeService", "Toggle", start, err, map[string]interface{}{
			"post_id":     postID,
			"liked":       result.Liked,
			"likes_count": result.LikesCount,
		})
	}()

	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return ToggleResult{}, models.NewValidationError("voter id is required")
	}
	if len(voterID) > models.MaxVoterIDLength {
		return ToggleResult{}, models.NewValidationError(
			fmt.Sprintf("voter id must be at most %d bytes", models.MaxVoterIDLength))
	}

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return ToggleResult{}, err
	}
	if post == nil {
		return ToggleResult{}, models.NewNotFoundError("Post", postID)
	}

	existing, err := s.store.FindLike(ctx, postID, voterID)
	if err != nil {
		return ToggleResult{}, err
	}

	liked := existing == nil
	if existing != nil {
		if err := s.store.DeleteLike(ctx, existing.ID); err != nil {
			return ToggleResult{}, err
		}
	} else if err := s.like(ctx, postID, voterID); err != nil {
		return ToggleResult{}, err
	}

	count, err := s.reconcile(ctx, postID)
	if err != nil {
		return ToggleResult{}, err
	}
	return ToggleResult{Liked: liked, LikesCount: count}, nil
}

// like inserts the (post, voter) row. A conflict means another request
// already liked the post for this voter, which is the outcome we wanted.
func (s *LikeService) like(ctx context.Context, postID uint, voterID string) error {
	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		inserted, err := s.store.InsertLike(ctx, postID, voterID)
		switch {
		case err == nil:
			return s.ensurePostExists(ctx, postID, inserted)
		case errors.Is(err, repository.ErrPostMissing):
			return models.NewNotFoundError("Post", postID)
		case !errors.Is(err, repository.ErrLikeConflict):
			return err
		}

		observability.LikeConflicts.Inc()
		existing, err := s.store.FindLike(ctx, postID, voterID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
	}
	return models.NewStoreUnavailableError("insert like",
		errors.New("like row did not settle after repeated conflicts"))
}

// ensurePostExists catches a post deleted between the existence check and the
// insert on stores that do not enforce the foreign key.
func (s *LikeService) ensurePostExists(ctx context.Context, postID uint, inserted *models.Like) error {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post != nil {
		return nil
	}
	if inserted != nil {
		if err := s.store.DeleteLike(ctx, inserted.ID); err != nil {
			return err
		}
	}
	return models.NewNotFoundError("Post", postID)
}

// reconcile rewrites the stored counter from the row count. The post lock
// orders concurrent recounts, so the last writer always saw every committed
// like mutation.
func (s *LikeService) reconcile(ctx context.Context, postID uint) (int, error) {
	var count int64
	err := s.store.WithPostLock(ctx, postID, func(tx repository.LikeStore) error {
		var err error
		if count, err = tx.CountLikes(ctx, postID); err != nil {
			return err
		}
		return tx.UpdatePostLikesCount(ctx, postID, count)
	})
	if errors.Is(err, repository.ErrPostMissing) {
		return 0, models.NewNotFoundError("Post", postID)
	}
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
