package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfFollowsWrapChain(t *testing.T) {
	base := NotFound("question %q not found", "q-1")
	wrapped := fmt.Errorf("submit: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, `question "q-1" not found`, base.Error())
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindStoreUnavailable, cause, "save attempt")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "save attempt: connection refused", err.Error())
	assert.True(t, IsStoreUnavailable(err))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		NotFound("x"):                          http.StatusNotFound,
		Exhausted("x"):                         http.StatusNotFound,
		AlreadyCompleted("x"):                  http.StatusConflict,
		Validation("x"):                        http.StatusBadRequest,
		New(KindStoreUnavailable, "x"):         http.StatusServiceUnavailable,
		New(KindConflict, "x"):                 http.StatusConflict,
		errors.New("unclassified"):             http.StatusInternalServerError,
		fmt.Errorf("w: %w", Validation("bad")): http.StatusBadRequest,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
