// Package whatsapp sends text messages through a GOWA gateway. It is the
// SMS-style channel for customers and pros.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jobflow_backend/platform/apperr"
	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"
	"jobflow_backend/platform/phone"
)

// Client posts to the gateway's /send/message endpoint. Unusable numbers and
// rejected messages are apperr Validation errors; transport failures, 429 and
// 5xx are Upstream so the outbox retries them.
type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	phones   phone.Normalizer
	http     *http.Client
	log      *logger.Logger
}

type gowaRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// NewClient returns nil when no gateway URL is configured.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetWhatsAppURL() == "" {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:   cfg.GetWhatsAppKey(),
		deviceID: cfg.GetWhatsAppDeviceID(),
		phones:   phone.NewNormalizer(cfg.GetPhoneRegion()),
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// SendMessage sends message to phoneNumber. A nil client is a no-op.
func (c *Client) SendMessage(ctx context.Context, phoneNumber string, message string) error {
	if c == nil {
		return nil
	}

	e164, err := c.phones.E164(phoneNumber)
	if err != nil {
		return apperr.Validation("whatsapp recipient has no usable phone number")
	}
	normalized := strings.TrimPrefix(e164, "+")

	body, err := json.Marshal(gowaRequest{Phone: normalized, Message: message})
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send/message", bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Upstream("whatsapp gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		detail := fmt.Sprintf("whatsapp gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		// A 4xx other than throttling will fail the same way on every attempt.
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return apperr.Validation(detail)
		}
		return apperr.Upstream("whatsapp gateway unavailable", errors.New(detail))
	}

	if c.log != nil {
		c.log.Debug("whatsapp message sent", "recipient_suffix", lastDigits(normalized, 4))
	}
	return nil
}

func lastDigits(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
