package server

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GetPlaces handles GET /api/places?type=shelter|cafe
// @Summary List places attached to posts, newest first
// @Tags places
// @Param type query string false "shelter or cafe"
// @Success 200 {array} models.Place
// @Failure 400 {object} models.ErrorResponse
// @Router /places [get]
func (s *Server) GetPlaces(c *fiber.Ctx) error {
	places, err := s.placeService.ListPlaces(c.UserContext(), strings.ToLower(strings.TrimSpace(c.Query("type"))))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(places)
}
