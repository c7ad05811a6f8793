package server

import (
	"context"
	"log/slog"
	"time"

	"strayland/internal/middleware"
	"strayland/internal/models"
)

const publishTimeout = 2 * time.Second

// PostReactionPayload is broadcast after a like toggle.
type PostReactionPayload struct {
	PostID     uint `json:"post_id"`
	LikesCount int  `json:"likes_count"`
}

// publishFeedEvent fans an event out to feed subscribers. Failures are logged;
// the request that triggered the event has already succeeded.
func (s *Server) publishFeedEvent(ctx context.Context, eventType string, payload any) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.notifier.Publish(ctx, eventType, payload); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish feed event",
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
	}
}

func postCreatedPayload(post *models.Post) map[string]any {
	return map[string]any{
		"post_id":       post.ID,
		"author":        post.Author,
		"title":         post.Title,
		"image_url":     post.ImageURL,
		"thumbnail_url": post.ThumbnailURL,
		"created_at":    post.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func commentCreatedPayload(comment *models.Comment) map[string]any {
	return map[string]any{
		"post_id":    comment.PostID,
		"comment_id": comment.ID,
		"author":     comment.Author,
		"created_at": comment.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
