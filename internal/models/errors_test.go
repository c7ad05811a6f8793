package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_WrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStoreUnavailableError("count likes", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "count likes")
	assert.True(t, err.Retryable())
	assert.False(t, NewNotFoundError("Post", 1).Retryable())
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("toggle: %w", NewNotFoundError("Post", 7))

	assert.True(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(wrapped, CodeConflict))
	assert.False(t, HasCode(errors.New("plain"), CodeNotFound))
}

func TestPost_HasPlace(t *testing.T) {
	p := &Post{}
	assert.False(t, p.HasPlace())

	p.PlaceType = PlaceTypeShelter
	assert.False(t, p.HasPlace())

	p.PlaceName = "Riverside Shelter"
	assert.True(t, p.HasPlace())
}
