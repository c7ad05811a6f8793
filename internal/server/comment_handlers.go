package server

import (
	"strayland/internal/models"
	"strayland/internal/notifications"
	"strayland/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateCommentRequest is the body of POST /api/comments.
type CreateCommentRequest struct {
	PostID uint   `json:"post_id" validate:"required,gt=0"`
	Author string `json:"author" validate:"required,max=80"`
	Text   string `json:"text" validate:"required,max=2000"`
}

// CreateComment handles POST /api/comments
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Param body body CreateCommentRequest true "comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := s.validateRequest(&req); err != nil {
		return mapServiceError(c, err)
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		PostID:  req.PostID,
		Author:  req.Author,
		Text:    req.Text,
		VoterID: voterID(c),
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	s.publishFeedEvent(c.UserContext(), notifications.EventCommentCreated, commentCreatedPayload(comment))
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComments handles GET /api/posts/:id/comments
// @Summary List a post's comments, oldest first
// @Tags comments
// @Param id path int true "post id"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comments, err := s.commentService.ListComments(c.UserContext(), postID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(comments)
}

// DeleteComment handles DELETE /api/comments/:id
// @Summary Delete a comment written by the caller
// @Tags comments
// @Param id path int true "comment id"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} models.ErrorResponse
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comment, err := s.commentService.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		CommentID: id,
		VoterID:   voterID(c),
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true, "id": comment.ID, "post_id": comment.PostID})
}
