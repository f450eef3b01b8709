// Package twilio provides an sms.Provider backed by the Twilio Programmable
// Messaging REST API.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/drivewise/pkg/provider/sms"
)

const (
	defaultBaseURL = "https://api.twilio.com/2010-04-01"
	defaultTimeout = 10 * time.Second
)

var _ sms.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Twilio Provider.
type Option func(*Provider)

// WithBaseURL overrides the API root. Used by tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider implements sms.Provider.
type Provider struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

// New creates a Provider. All three credentials are required.
func New(accountSID, authToken, from string, opts ...Option) (*Provider, error) {
	var errs []error
	if accountSID == "" {
		errs = append(errs, errors.New("account SID must not be empty"))
	}
	if authToken == "" {
		errs = append(errs, errors.New("auth token must not be empty"))
	}
	if from == "" {
		errs = append(errs, errors.New("from number must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("twilio: %w", err)
	}
	p := &Provider{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    defaultBaseURL,
		client:     &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type messageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send implements sms.Provider.
func (p *Provider) Send(ctx context.Context, msg sms.Message) (*sms.Receipt, error) {
	if msg.To == "" || msg.Body == "" {
		return nil, errors.New("twilio: recipient and body are required")
	}
	form := url.Values{
		"To":   {msg.To},
		"From": {p.from},
		"Body": {msg.Body},
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", p.baseURL, url.PathEscape(p.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("twilio: build request: %w", err)
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("twilio: read response: %w", err)
	}
	var mr messageResponse
	_ = json.Unmarshal(raw, &mr)
	if resp.StatusCode >= 300 {
		if mr.Message != "" {
			return nil, fmt.Errorf("twilio: status %d (code %d): %s", resp.StatusCode, mr.Code, mr.Message)
		}
		return nil, fmt.Errorf("twilio: unexpected status %d", resp.StatusCode)
	}
	switch mr.Status {
	case "failed", "undelivered", "canceled":
		return nil, fmt.Errorf("twilio: message %s %s", mr.SID, mr.Status)
	}
	return &sms.Receipt{ID: mr.SID, Status: mr.Status}, nil
}
