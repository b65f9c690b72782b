package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(stderrors.New("boom"), ErrCodeKeyRevoked, "key gone")

	assert.True(t, stderrors.Is(err, ErrKeyRevoked))
	assert.False(t, stderrors.Is(err, ErrSessionExpired))

	wrapped := fmt.Errorf("deliver: %w", err)
	assert.True(t, stderrors.Is(wrapped, ErrKeyRevoked))
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewStoreError("find_by_key", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrStore)
	assert.Equal(t, "find_by_key", err.Details["operation"])
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAsAppError(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewFetchError("http://a/1.png", stderrors.New("404")))

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeFetchFailed, appErr.Code)
	assert.Equal(t, "http://a/1.png", appErr.Details["url"])

	_, ok = AsAppError(stderrors.New("plain"))
	assert.False(t, ok)
}
