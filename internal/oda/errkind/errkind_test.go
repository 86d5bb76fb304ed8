package errkind_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
)

func TestWrapUnwrapsToKind(t *testing.T) {
	err := errkind.Wrap(errkind.ErrNotFound, "model %q not found", "m1")
	assert.True(t, errors.Is(err, errkind.ErrNotFound))
	assert.False(t, errors.Is(err, errkind.ErrAlreadyExists))
	assert.Equal(t, `model "m1" not found`, err.Error())
}

func TestWrapDistinctKinds(t *testing.T) {
	kinds := []error{
		errkind.ErrNotFound,
		errkind.ErrAlreadyExists,
		errkind.ErrInvalidReference,
		errkind.ErrReservedID,
		errkind.ErrNotPermitted,
		errkind.ErrValidation,
		errkind.ErrOverloaded,
		errkind.ErrInvalidState,
	}
	for i, k := range kinds {
		wrapped := errkind.Wrap(k, "case %d", i)
		for j, other := range kinds {
			if i == j {
				assert.True(t, errors.Is(wrapped, other))
			} else {
				assert.False(t, errors.Is(wrapped, other))
			}
		}
	}
}

func TestReservedIDs(t *testing.T) {
	assert.Equal(t, "__default_llm_config", errkind.DefaultModelID)
	assert.Equal(t, "__default_app", errkind.DefaultAppName)
	assert.Equal(t, "default", errkind.DefaultAgent)
}
