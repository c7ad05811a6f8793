package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"strayland/internal/models"
	"strayland/internal/repository"
)

const (
	maxAuthorLen  = 80
	maxCommentLen = 2000
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
}

type CreateCommentInput struct {
	PostID  uint
	Author  string
	Text    string
	VoterID string
}

type DeleteCommentInput struct {
	CommentID uint
	VoterID   string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
	}
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	author := strings.TrimSpace(in.Author)
	text := strings.TrimSpace(in.Text)

	if author == "" {
		return nil, models.NewValidationError("Author is required")
	}
	if utf8.RuneCountInString(author) > maxAuthorLen {
		return nil, models.NewValidationError("Author too long (max 80 characters)")
	}
	if text == "" {
		return nil, models.NewValidationError("Text is required")
	}
	if utf8.RuneCountInString(text) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 2000 characters)")
	}

	if _, err := s.postRepo.GetByID(ctx, in.PostID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		PostID:  in.PostID,
		Author:  author,
		Text:    text,
		VoterID: in.VoterID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}

// DeleteComment removes a comment written by the same voter.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.VoterID == "" || comment.VoterID != in.VoterID {
		return nil, models.NewForbiddenError("You can only delete your own comments")
	}
	if err := s.commentRepo.Delete(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}
