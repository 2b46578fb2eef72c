// Package realtime mints short-lived client secrets for browser voice sessions.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// ErrMissingAPIKey means the server has no voice API secret configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not configured: set it in the server environment (OPENAI_API_KEY=your-api-key) or in the realtime.api_key config field")

// UpstreamError reports a rejected or unusable response from the voice API.
type UpstreamError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// SecretMinter is the voice-API collaborator.
type SecretMinter interface {
	CreateClientSecret(ctx context.Context, apiKey string, req *ClientSecretRequest) (*ClientSecretResponse, error)
}

// CredentialRequest is what the browser sends before opening a voice session.
type CredentialRequest struct {
	Language     string `json:"language"`
	CustomPrompt string `json:"customPrompt"`
}

// Proxy is stateless; the API key is looked up on every call.
type Proxy struct {
	minter   SecretMinter
	apiKey   func() string
	model    string
	language string
}

// NewProxy builds a Proxy. defaultLanguage falls back to DefaultLanguage when empty.
func NewProxy(minter SecretMinter, apiKey func() string, model, defaultLanguage string) *Proxy {
	if defaultLanguage == "" {
		defaultLanguage = DefaultLanguage
	}
	return &Proxy{minter: minter, apiKey: apiKey, model: model, language: defaultLanguage}
}

// Configured reports ErrMissingAPIKey when no API key is available right now.
func (p *Proxy) Configured() error {
	if p.key() == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (p *Proxy) key() string {
	if p.apiKey == nil {
		return ""
	}
	return strings.TrimSpace(p.apiKey())
}

// ClientSecret mints a secret for req and returns the opaque value.
func (p *Proxy) ClientSecret(ctx context.Context, req CredentialRequest) (string, error) {
	key := p.key()
	if key == "" {
		log.Printf("realtime config: api key missing")
		return "", ErrMissingAPIKey
	}

	preset := PresetOrDefault(req.Language, p.language)
	upstreamReq := NewClientSecretRequest(p.model, preset, strings.TrimSpace(req.CustomPrompt))

	resp, err := p.minter.CreateClientSecret(ctx, key, upstreamReq)
	if err != nil {
		log.Printf("realtime upstream: %v", err)
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			return "", err
		}
		return "", &UpstreamError{Message: fmt.Sprintf("realtime API request failed: %v", err), Err: err}
	}
	if resp == nil || resp.Value == "" {
		return "", &UpstreamError{Message: "realtime API response missing client secret"}
	}
	return resp.Value, nil
}
