package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"voicelog/internal/models"
	"voicelog/internal/service/realtime"
)

// SaveConversation stores a transcript for the signed-in user.
func (c *Client) SaveConversation(ctx context.Context, text string, debugLogs []string) (*models.Conversation, error) {
	req := map[string]any{"text": text, "debug_logs": debugLogs}
	var rec models.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations", req, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListConversations returns the user's records newest first. limit <= 0 uses the server default.
func (c *Client) ListConversations(ctx context.Context, limit int) ([]*models.Conversation, error) {
	path := "/api/conversations"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var body struct {
		Conversations []*models.Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &body, true); err != nil {
		return nil, err
	}
	if body.Conversations == nil {
		body.Conversations = make([]*models.Conversation, 0)
	}
	return body.Conversations, nil
}

func (c *Client) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var rec models.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(id), nil, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/conversations/"+url.PathEscape(id), nil, nil, true)
}

// RealtimeClientSecret asks the server to mint an ephemeral voice credential.
func (c *Client) RealtimeClientSecret(ctx context.Context, req realtime.CredentialRequest) (string, error) {
	var body struct {
		ClientSecret string `json:"clientSecret"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/realtime", req, &body, false); err != nil {
		return "", err
	}
	return body.ClientSecret, nil
}

// DeleteAccount removes the signed-in user and all of their conversations.
func (c *Client) DeleteAccount(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/api/auth/user", nil, nil, true); err != nil {
		return err
	}
	c.SetAccessToken("")
	c.emit(models.AuthEventSignedOut, nil)
	return nil
}
