package server

import (
	"io"
	"strconv"
	"strings"

	"strayland/internal/models"
	"strayland/internal/notifications"
	"strayland/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
// @Summary List posts
// @Tags posts
// @Param limit query int false "page size (default 20, max 100)"
// @Param offset query int false "offset"
// @Success 200 {array} models.Post
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Limit:   c.QueryInt("limit", service.DefaultPageSize),
		Offset:  c.QueryInt("offset", 0),
		VoterID: voterID(c),
	})
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post with its comments
// @Tags posts
// @Param id path int true "post id"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id, voterID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts (multipart/form-data)
// @Summary Create a post with an optional image and place
// @Tags posts
// @Accept mpfd
// @Param author formData string true "author"
// @Param title formData string true "title"
// @Param content formData string false "content"
// @Param place_type formData string false "shelter or cafe"
// @Param place_name formData string false "place name"
// @Param lat formData number false "latitude"
// @Param lng formData number false "longitude"
// @Param address formData string false "address"
// @Param image formData file false "image"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	in := service.CreatePostInput{
		VoterID:   voterID(c),
		Author:    c.FormValue("author"),
		Title:     c.FormValue("title"),
		Content:   c.FormValue("content"),
		PlaceType: c.FormValue("place_type"),
		PlaceName: c.FormValue("place_name"),
		Address:   c.FormValue("address"),
	}
	if strings.TrimSpace(in.Author) == "" || strings.TrimSpace(in.Title) == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("author and title are required"))
	}

	var err error
	if in.Lat, err = parseCoordinate(c.FormValue("lat")); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("lat must be a number"))
	}
	if in.Lng, err = parseCoordinate(c.FormValue("lng")); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("lng must be a number"))
	}

	if in.Image, err = s.readImageUpload(c); err != nil {
		return mapServiceError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return mapServiceError(c, err)
	}

	s.publishFeedEvent(c.UserContext(), notifications.EventPostCreated, postCreatedPayload(post))
	return c.Status(fiber.StatusCreated).JSON(post)
}

// readImageUpload returns the optional "image" part, bounded by the upload limit.
func (s *Server) readImageUpload(c *fiber.Ctx) (*service.UploadImageInput, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		// No file part (or not a multipart request).
		return nil, nil
	}

	limit := s.config.MaxUploadBytes
	if s.imageService != nil {
		limit = s.imageService.MaxBytes()
	}
	if fh.Size > limit {
		return nil, models.NewPayloadTooLargeError(limit)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	return &service.UploadImageInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}

func parseCoordinate(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post created by the caller
// @Tags posts
// @Param id path int true "post id"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		PostID:  id,
		VoterID: voterID(c),
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	s.publishFeedEvent(c.UserContext(), notifications.EventPostDeleted, fiber.Map{"post_id": post.ID})
	return c.JSON(fiber.Map{"deleted": true, "id": post.ID})
}

// ToggleLike handles POST /api/posts/:id/like
// @Summary Toggle the caller's like on a post
// @Description Likes the post when the caller has not liked it, otherwise removes the like.
// @Tags posts
// @Param id path int true "post id"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	voter := voterID(c)

	result, err := s.likeService.Toggle(c.UserContext(), id, voter)
	if err != nil {
		return mapServiceError(c, err)
	}

	s.publishFeedEvent(c.UserContext(), notifications.EventPostReactionUpdated, PostReactionPayload{
		PostID:     id,
		LikesCount: result.LikesCount,
	})

	post, err := s.postService.GetPost(c.UserContext(), id, voter)
	if err != nil {
		return mapServiceError(c, err)
	}
	post.LikesCount = result.LikesCount
	post.Liked = result.Liked
	return c.JSON(post)
}
