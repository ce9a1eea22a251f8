package geoerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidation(t *testing.T) {
	err := fmt.Errorf("decode: %w", Validation("geohash", "symbol %q", "a"))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrRange))
	assert.EqualError(t, err, `decode: invalid geohash: symbol "a"`)

	var target *ValidationError
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, "geohash", target.Field)
}

func TestRange(t *testing.T) {
	err := Range("latitude", 91, -90, 90)
	assert.True(t, errors.Is(err, ErrRange))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.EqualError(t, err, "latitude 91 out of range [-90, 90]")
}
