package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfWrapped(t *testing.T) {
	base := NotFound("cart not found")
	wrapped := fmt.Errorf("load cart: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(nil, KindNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestInternalUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("failed to save cart", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to save cart: connection refused", err.Error())
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), Message(err))
}

func TestStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:          http.StatusNotFound,
		KindInvalidArgument:   http.StatusBadRequest,
		KindInsufficientStock: http.StatusConflict,
		KindConflict:          http.StatusConflict,
		KindUnauthorized:      http.StatusUnauthorized,
		KindForbidden:         http.StatusForbidden,
		KindInternal:          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, Status(kind), kind)
	}
}

func TestMessageKeepsClientErrors(t *testing.T) {
	assert.Equal(t, "quantity must be at least 1", Message(InvalidArgument("quantity must be at least 1")))
}
