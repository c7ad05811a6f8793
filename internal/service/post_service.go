package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"strayland/internal/models"
	"strayland/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	maxTitleLen     = 200
	maxContentLen   = 10000
	maxPlaceNameLen = 200
	maxAddressLen   = 300
)

type PostService struct {
	postRepo repository.PostRepository
	likes    repository.LikeStore
	images   *ImageService
}

type CreatePostInput struct {
	VoterID   string
	Author    string
	Title     string
	Content   string
	PlaceType string
	PlaceName string
	Lat       *float64
	Lng       *float64
	Address   string
	Image     *UploadImageInput
}

type ListPostsInput struct {
	Limit   int
	Offset  int
	VoterID string
}

type DeletePostInput struct {
	PostID  uint
	VoterID string
}

func NewPostService(
	postRepo repository.PostRepository,
	likes repository.LikeStore,
	images *ImageService,
) *PostService {
	return &PostService{
		postRepo: postRepo,
		likes:    likes,
		images:   images,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	post := &models.Post{
		Author:    strings.TrimSpace(in.Author),
		Title:     strings.TrimSpace(in.Title),
		Content:   strings.TrimSpace(in.Content),
		VoterID:   in.VoterID,
		PlaceType: strings.ToLower(strings.TrimSpace(in.PlaceType)),
		PlaceName: strings.TrimSpace(in.PlaceName),
		Lat:       in.Lat,
		Lng:       in.Lng,
		Address:   strings.TrimSpace(in.Address),
	}
	if err := validatePost(post); err != nil {
		return nil, err
	}

	var stored *StoredImage
	if in.Image != nil && len(in.Image.Content) > 0 {
		if s.images == nil {
			return nil, models.NewValidationError("Image uploads are disabled")
		}
		var err error
		if stored, err = s.images.Upload(ctx, *in.Image); err != nil {
			return nil, err
		}
		post.ImageURL = stored.URL
		post.ImageKey = stored.Key
		post.ThumbnailURL = stored.ThumbnailURL
		post.ThumbnailKey = stored.ThumbnailKey
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		s.images.Remove(context.WithoutCancel(ctx), stored)
		return nil, err
	}
	return post, nil
}

func validatePost(post *models.Post) error {
	if post.Author == "" {
		return models.NewValidationError("Author is required")
	}
	if utf8.RuneCountInString(post.Author) > maxAuthorLen {
		return models.NewValidationError("Author too long (max 80 characters)")
	}
	if post.Title == "" {
		return models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(post.Title) > maxTitleLen {
		return models.NewValidationError("Title too long (max 200 characters)")
	}
	if utf8.RuneCountInString(post.Content) > maxContentLen {
		return models.NewValidationError("Content too long (max 10000 characters)")
	}

	hasPlaceField := post.PlaceType != "" || post.PlaceName != "" ||
		post.Lat != nil || post.Lng != nil || post.Address != ""
	if !hasPlaceField {
		return nil
	}
	switch post.PlaceType {
	case models.PlaceTypeShelter, models.PlaceTypeCafe:
	case "":
		return models.NewValidationError("place_type is required with a place")
	default:
		return models.NewValidationError("place_type must be shelter or cafe")
	}
	if post.PlaceName == "" {
		return models.NewValidationError("place_name is required with a place")
	}
	if utf8.RuneCountInString(post.PlaceName) > maxPlaceNameLen {
		return models.NewValidationError("place_name too long (max 200 characters)")
	}
	if utf8.RuneCountInString(post.Address) > maxAddressLen {
		return models.NewValidationError("address too long (max 300 characters)")
	}
	if post.Lat != nil && (*post.Lat < -90 || *post.Lat > 90) {
		return models.NewValidationError("lat must be between -90 and 90")
	}
	if post.Lng != nil && (*post.Lng < -180 || *post.Lng > 180) {
		return models.NewValidationError("lng must be between -180 and 180")
	}
	return nil
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	limit, offset := NormalizePage(in.Limit, in.Offset)
	posts, err := s.postRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if in.VoterID == "" || len(posts) == 0 {
		return posts, nil
	}

	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	liked, err := s.postRepo.LikedPostIDs(ctx, in.VoterID, ids)
	if err != nil {
		return nil, err
	}
	likedSet := make(map[uint]struct{}, len(liked))
	for _, id := range liked {
		likedSet[id] = struct{}{}
	}
	for _, p := range posts {
		_, p.Liked = likedSet[p.ID]
	}
	return posts, nil
}

// GetPost returns the post with comments; Liked reflects voterID.
func (s *PostService) GetPost(ctx context.Context, id uint, voterID string) (*models.Post, error) {
	post, err := s.postRepo.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	post.Liked = false
	if voterID != "" {
		like, err := s.likes.FindLike(ctx, id, voterID)
		if err != nil {
			return nil, err
		}
		post.Liked = like != nil
	}
	return post, nil
}

// DeletePost removes a post created by the same voter, then its image objects.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.VoterID == "" || post.VoterID != in.VoterID {
		return nil, models.NewForbiddenError("You can only delete your own posts")
	}
	if err := s.postRepo.Delete(ctx, post.ID); err != nil {
		return nil, err
	}

	s.images.Remove(context.WithoutCancel(ctx), &StoredImage{Key: post.ImageKey, ThumbnailKey: post.ThumbnailKey})
	return post, nil
}

// NormalizePage applies the default page size and the upper bound.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
