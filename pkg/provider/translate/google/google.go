// Package google provides a translate.Provider backed by the Google Cloud
// Translation v2 REST API, authenticated with an API key.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/drivewise/pkg/provider/translate"
)

const (
	defaultBaseURL = "https://translation.googleapis.com/language/translate/v2"
	defaultTimeout = 15 * time.Second
)

var _ translate.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Google Provider.
type Option func(*Provider)

// WithBaseURL overrides the API root. Used by tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider implements translate.Provider.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("google translate: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type translateRequest struct {
	Q      []string `json:"q"`
	Target string   `json:"target"`
	Source string   `json:"source,omitempty"`
	Format string   `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

type detectResponse struct {
	Data struct {
		Detections [][]struct {
			Language   string  `json:"language"`
			Confidence float64 `json:"confidence"`
		} `json:"detections"`
	} `json:"data"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	if req.Text == "" {
		return &translate.Result{DetectedSource: req.Source}, nil
	}
	if req.Target == "" {
		return nil, errors.New("google translate: target language is required")
	}

	var tr translateResponse
	err := p.post(ctx, "", translateRequest{
		Q:      []string{req.Text},
		Target: req.Target,
		Source: req.Source,
		Format: "text",
	}, &tr)
	if err != nil {
		return nil, err
	}
	if len(tr.Data.Translations) == 0 {
		return nil, errors.New("google translate: empty translations in response")
	}
	t := tr.Data.Translations[0]
	return &translate.Result{Text: t.TranslatedText, DetectedSource: t.DetectedSourceLanguage}, nil
}

// Detect implements translate.Provider.
func (p *Provider) Detect(ctx context.Context, text string) (*translate.Detection, error) {
	if strings.TrimSpace(text) == "" {
		return &translate.Detection{Language: "und"}, nil
	}
	var dr detectResponse
	if err := p.post(ctx, "/detect", map[string][]string{"q": {text}}, &dr); err != nil {
		return nil, err
	}
	if len(dr.Data.Detections) == 0 || len(dr.Data.Detections[0]) == 0 {
		return &translate.Detection{Language: "und"}, nil
	}
	d := dr.Data.Detections[0][0]
	return &translate.Detection{Language: d.Language, Confidence: d.Confidence}, nil
}

func (p *Provider) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("google translate: marshal request: %w", err)
	}
	endpoint := p.baseURL + path + "?key=" + url.QueryEscape(p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("google translate: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("google translate: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("google translate: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
			return fmt.Errorf("google translate: status %d: %s", resp.StatusCode, ae.Error.Message)
		}
		return fmt.Errorf("google translate: unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("google translate: decode response: %w", err)
	}
	return nil
}
