package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// SMSGateway sends messages through an HTTP SMS provider. One Send is one
// attempt against the provider; delivery retries are the caller's concern.
type SMSGateway struct {
	baseURL string
	apiKey  string
	sender  string
	client  *resty.Client
}

func NewSMSGateway(baseURL, apiKey, sender string) *SMSGateway {
	client := resty.New()
	client.SetTimeout(15 * time.Second)

	return &SMSGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		sender:  sender,
		client:  client,
	}
}

type smsResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (g *SMSGateway) Send(ctx context.Context, channel, message string) error {
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+g.apiKey).
		SetHeader("X-Request-ID", uuid.NewString()).
		SetBody(map[string]string{
			"from": g.sender,
			"to":   channel,
			"body": message,
		}).
		Post(g.baseURL + "/messages")
	if err != nil {
		return fmt.Errorf("sms gateway request failed: %w", err)
	}
	if resp.StatusCode() >= 300 {
		var parsed smsResponse
		if err := json.Unmarshal(resp.Body(), &parsed); err == nil && parsed.Error != "" {
			return fmt.Errorf("sms gateway rejected message: %s", parsed.Error)
		}
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode())
	}
	return nil
}
