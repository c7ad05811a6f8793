package service

import (
	"context"
	"strings"

	"strayland/internal/models"
	"strayland/internal/repository"
)

const placeScanLimit = 500

type PlaceService struct {
	postRepo repository.PostRepository
}

func NewPlaceService(postRepo repository.PostRepository) *PlaceService {
	return &PlaceService{postRepo: postRepo}
}

// ListPlaces returns the distinct places attached to posts, newest first.
// An empty placeType lists every type.
func (s *PlaceService) ListPlaces(ctx context.Context, placeType string) ([]models.Place, error) {
	placeType = strings.ToLower(strings.TrimSpace(placeType))
	switch placeType {
	case "", models.PlaceTypeShelter, models.PlaceTypeCafe:
	default:
		return nil, models.NewValidationError("type must be shelter or cafe")
	}

	posts, err := s.postRepo.ListWithPlaces(ctx, placeType, placeScanLimit)
	if err != nil {
		return nil, err
	}

	places := make([]models.Place, 0, len(posts))
	seen := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		if !p.HasPlace() {
			continue
		}
		key := p.PlaceType + "|" + strings.ToLower(p.PlaceName) + "|" + strings.ToLower(p.Address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		places = append(places, models.Place{
			PostID:    p.ID,
			Type:      p.PlaceType,
			Name:      p.PlaceName,
			Lat:       p.Lat,
			Lng:       p.Lng,
			Address:   p.Address,
			CreatedAt: p.CreatedAt,
		})
	}
	return places, nil
}
