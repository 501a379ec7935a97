package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"jobflow_backend/platform/apperr"
)

type testConfig struct{ url string }

func (c testConfig) GetWhatsAppURL() string      { return c.url }
func (c testConfig) GetWhatsAppKey() string      { return "user:pass" }
func (c testConfig) GetWhatsAppDeviceID() string { return "device-1" }
func (c testConfig) GetPhoneRegion() string      { return "" }

func TestNewClientDisabled(t *testing.T) {
	if c := NewClient(testConfig{}, nil); c != nil {
		t.Fatalf("expected nil client without url")
	}
	var c *Client
	if err := c.SendMessage(context.Background(), "+16502530000", "hi"); err != nil {
		t.Fatalf("nil client must be a no-op: %v", err)
	}
}

func TestSendMessage(t *testing.T) {
	var got gowaRequest
	var auth, device, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		device = r.Header.Get("X-Device-Id")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(testConfig{url: srv.URL + "/"}, nil)
	if err := c.SendMessage(context.Background(), "(650) 253-0000", "Parts installed!"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if path != "/send/message" || device != "device-1" || auth != formatAuthHeader("user:pass") {
		t.Fatalf("unexpected request path=%q device=%q auth=%q", path, device, auth)
	}
	if got.Phone != "16502530000" || got.Message != "Parts installed!" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestSendMessageGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "device offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(testConfig{url: srv.URL}, nil)
	err := c.SendMessage(context.Background(), "+16502530000", "hi")
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestSendMessageRejectsInvalidNumber(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(testConfig{url: srv.URL}, nil)
	for _, number := range []string{"", "call me", "12345"} {
		err := c.SendMessage(context.Background(), number, "hi")
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%q: expected validation error, got %v", number, err)
		}
	}
	if called {
		t.Fatal("invalid numbers must not reach the gateway")
	}
}

func TestSendMessageGatewayRejection(t *testing.T) {
	tests := []struct {
		status int
		want   apperr.Kind
	}{
		{http.StatusBadRequest, apperr.KindValidation},
		{http.StatusTooManyRequests, apperr.KindUpstream},
		{http.StatusBadGateway, apperr.KindUpstream},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))
		err := NewClient(testConfig{url: srv.URL}, nil).SendMessage(context.Background(), "+16502530000", "hi")
		srv.Close()
		if !apperr.Is(err, tt.want) {
			t.Fatalf("status %d: expected %s, got %v", tt.status, tt.want, err)
		}
	}
}

func TestFormatAuthHeader(t *testing.T) {
	if got := formatAuthHeader("Basic abc"); got != "Basic abc" {
		t.Fatalf("expected passthrough, got %q", got)
	}
	if got := formatAuthHeader("user:pass"); got != "Basic dXNlcjpwYXNz" {
		t.Fatalf("unexpected encoding %q", got)
	}
}
