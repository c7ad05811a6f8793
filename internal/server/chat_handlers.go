package server

import (
	"strayland/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []models.ChatMessage `json:"messages" validate:"required,min=1,max=30,dive"`
}

// ChatResponse carries the assistant's reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// Chat handles POST /api/chat
// @Summary Ask the assistant
// @Tags chat
// @Accept json
// @Param body body ChatRequest true "conversation so far"
// @Success 200 {object} ChatResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /chat [post]
func (s *Server) Chat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := s.validateRequest(&req); err != nil {
		return mapServiceError(c, err)
	}

	reply, err := s.assistantService.Reply(c.UserContext(), req.Messages)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(ChatResponse{Reply: reply})
}

// GetChatSuggestions handles GET /api/chat/suggestions
// @Summary Assistant name and suggested prompts
// @Tags chat
// @Success 200 {object} service.AssistantProfile
// @Router /chat/suggestions [get]
func (s *Server) GetChatSuggestions(c *fiber.Ctx) error {
	return c.JSON(s.assistantService.Profile())
}
