package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := New(KindCapacityExceeded, "event is full")
	wrapped := fmt.Errorf("decide: %w", base)

	assert.Equal(t, KindCapacityExceeded, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindCapacityExceeded))
	assert.False(t, Is(wrapped, KindNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestRetryable(t *testing.T) {
	for _, k := range []Kind{
		KindNotFound, KindDuplicateRegistration, KindRegistrationClosed,
		KindCapacityExceeded, KindInvalidTransition, KindNotEligible,
	} {
		assert.False(t, New(k, "x").Retryable(), k)
	}
	assert.True(t, New(KindUnavailable, "x").Retryable())
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause, "failed to load registration")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load registration", Message(err))
	assert.Equal(t, "internal error", Message(cause))
}
