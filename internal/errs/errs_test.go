package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	cases := map[int]Kind{
		http.StatusUnauthorized:        Auth,
		http.StatusForbidden:           Permission,
		http.StatusNotFound:            NotFound,
		http.StatusTooManyRequests:     RateLimited,
		http.StatusInternalServerError: ServiceUnavailable,
		http.StatusBadGateway:          ServiceUnavailable,
		http.StatusBadRequest:          Protocol,
		http.StatusConflict:            Protocol,
	}
	for status, want := range cases {
		assert.Equal(t, want, FromStatus(status), "status %d", status)
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := &Error{Kind: RateLimited, Op: "provider.chat", Status: 429}
	wrapped := fmt.Errorf("dispatch: %w", base)

	assert.Equal(t, RateLimited, KindOf(wrapped))
	assert.True(t, Is(wrapped, RateLimited))
	assert.False(t, Is(nil, RateLimited))
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: Auth, Op: "provider.create_agent", Status: 401, Err: errors.New("bad key")}
	assert.Equal(t, "provider.create_agent: auth (status 401): bad key", err.Error())
	assert.Equal(t, "invalid_input", E(InvalidInput, "", "").Error())
}

func TestHTTPMapping(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(Configuration))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(Auth))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(RateLimited))
	assert.Equal(t, http.StatusRequestEntityTooLarge, HTTPStatus(PayloadTooLarge))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Unknown))
	assert.Equal(t, "SERVICE_UNAVAILABLE", Code(ServiceUnavailable))
	assert.Equal(t, "INTERNAL_ERROR", Code(Unknown))
}
