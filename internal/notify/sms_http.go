package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	derrors "aegis/pkg/domain-errors"
)

// HTTPSMSGateway posts outbound texts to an SMS gateway's JSON API.
type HTTPSMSGateway struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewHTTPSMSGateway constructs a gateway client. The per-request deadline
// comes from the caller's context, so the client itself carries no timeout.
func NewHTTPSMSGateway(baseURL, authToken string) *HTTPSMSGateway {
	return &HTTPSMSGateway{
		baseURL:    baseURL,
		authToken:  authToken,
		httpClient: &http.Client{},
	}
}

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (g *HTTPSMSGateway) SendSMS(ctx context.Context, phone, message string) error {
	if g.baseURL == "" {
		return derrors.New(derrors.CodeUnavailable, "sms gateway not configured")
	}

	body, err := json.Marshal(smsRequest{To: phone, Message: message})
	if err != nil {
		return fmt.Errorf("encode sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.authToken)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeUnavailable, "sms gateway unreachable")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return derrors.Newf(derrors.CodeUnavailable, "sms gateway returned %d", resp.StatusCode)
	}
	return nil
}
