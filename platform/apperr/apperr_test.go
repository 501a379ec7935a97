package apperr

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Unauthorized("no"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		{Conflict("state"), http.StatusConflict},
		{Gone("expired"), http.StatusGone},
		{InvalidScope("scope"), http.StatusUnprocessableEntity},
		{Upstream("vision", fmt.Errorf("timeout")), http.StatusBadGateway},
		{Internal("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.err.Kind, tc.want, got)
		}
	}
}

func TestGetKindUnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", Conflict("parts request is not pending"))
	if !Is(wrapped, KindConflict) {
		t.Fatalf("expected conflict kind through wrapping, got %s", GetKind(wrapped))
	}
	if GetKind(fmt.Errorf("plain")) != KindUnknown {
		t.Fatal("expected unknown kind for plain error")
	}
}
