package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.openai.com"
	DefaultModel   = "gpt-realtime"

	clientSecretsPath     = "/v1/realtime/client_secrets"
	secretTTLSeconds      = 600
	audioFormat           = "audio/pcm"
	audioSampleRate       = 24000
	transcriptionModel    = "whisper-1"
	vadThreshold          = 0.5
	vadPrefixPaddingMs    = 300
	vadSilenceDurationMs  = 500
	maxUpstreamErrorBytes = 1 << 16
)

// Client calls the realtime voice API's client secret endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ClientSecretRequest is the body of POST /v1/realtime/client_secrets.
type ClientSecretRequest struct {
	ExpiresAfter ExpiresAfter  `json:"expires_after"`
	Session      SessionConfig `json:"session"`
}

// ExpiresAfter sets the lifetime of the minted secret.
type ExpiresAfter struct {
	Anchor  string `json:"anchor"`
	Seconds int    `json:"seconds"`
}

// SessionConfig describes the realtime session the secret is bound to.
type SessionConfig struct {
	Type             string      `json:"type"`
	Model            string      `json:"model"`
	Instructions     string      `json:"instructions,omitempty"`
	OutputModalities []string    `json:"output_modalities"`
	Audio            AudioConfig `json:"audio"`
}

type AudioConfig struct {
	Input  AudioInput  `json:"input"`
	Output AudioOutput `json:"output"`
}

type AudioInput struct {
	Format        AudioFormat    `json:"format"`
	Transcription *Transcription `json:"transcription,omitempty"`
	TurnDetection *TurnDetection `json:"turn_detection,omitempty"`
}

type AudioOutput struct {
	Format AudioFormat `json:"format"`
	Voice  string      `json:"voice"`
}

type AudioFormat struct {
	Type string `json:"type"`
	Rate int    `json:"rate"`
}

type Transcription struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

// ClientSecretResponse is the upstream success body.
type ClientSecretResponse struct {
	Value     string          `json:"value"`
	ExpiresAt int64           `json:"expires_at"`
	Session   json.RawMessage `json:"session,omitempty"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

// NewClientSecretRequest builds the fixed-shape session request for one preset.
func NewClientSecretRequest(model string, preset Preset, instructions string) *ClientSecretRequest {
	if model == "" {
		model = DefaultModel
	}
	if instructions == "" {
		instructions = preset.Instructions
	}
	format := AudioFormat{Type: audioFormat, Rate: audioSampleRate}
	return &ClientSecretRequest{
		ExpiresAfter: ExpiresAfter{Anchor: "created_at", Seconds: secretTTLSeconds},
		Session: SessionConfig{
			Type:             "realtime",
			Model:            model,
			Instructions:     instructions,
			OutputModalities: []string{"audio"},
			Audio: AudioConfig{
				Input: AudioInput{
					Format:        format,
					Transcription: &Transcription{Model: transcriptionModel, Language: preset.Language},
					TurnDetection: &TurnDetection{
						Type:              "server_vad",
						Threshold:         vadThreshold,
						PrefixPaddingMs:   vadPrefixPaddingMs,
						SilenceDurationMs: vadSilenceDurationMs,
					},
				},
				Output: AudioOutput{Format: format, Voice: preset.Voice},
			},
		},
	}
}

// CreateClientSecret mints an ephemeral secret using apiKey as the bearer credential.
func (c *Client) CreateClientSecret(ctx context.Context, apiKey string, req *ClientSecretRequest) (*ClientSecretResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+clientSecretsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("realtime API request failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("realtime API error: %d", resp.StatusCode)
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamErrorBytes))
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}

	// Success replies echo the session, so they are as large as the instructions.
	var result ClientSecretResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: "invalid realtime API response", Err: err}
	}
	if result.Value == "" {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: "realtime API response missing client secret"}
	}
	return &result, nil
}
