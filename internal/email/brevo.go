package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jobflow_backend/platform/apperr"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoSender posts to Brevo's transactional email API.
type BrevoSender struct {
	apiKey   string
	from     Address
	endpoint string
	client   *http.Client
}

type brevoEmailRequest struct {
	Sender      Address   `json:"sender"`
	To          []Address `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent"`
}

func NewBrevoSender(apiKey string, from Address) *BrevoSender {
	return &BrevoSender{
		apiKey:   apiKey,
		from:     from,
		endpoint: brevoEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *BrevoSender) Send(ctx context.Context, m Message) error {
	body, err := json.Marshal(brevoEmailRequest{
		Sender:      b.from,
		To:          []Address{{Email: m.To}},
		Subject:     m.Subject,
		HTMLContent: m.HTML,
	})
	if err != nil {
		return fmt.Errorf("encode brevo request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return apperr.Upstream("brevo unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	detail := fmt.Sprintf("brevo status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	// 4xx other than throttling means the message itself was refused.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return apperr.Validation(detail)
	}
	return apperr.Upstream("brevo send failed", fmt.Errorf("%s", detail))
}
