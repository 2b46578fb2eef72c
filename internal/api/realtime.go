package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"voicelog/internal/service/realtime"
)

const maxRealtimeBodyBytes = 1 << 20

// createClientSecret mints an ephemeral voice credential. The body is optional.
func (h *Handler) createClientSecret(c *gin.Context) {
	if err := h.realtime.Configured(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var req realtime.CredentialRequest
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRealtimeBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	secret, err := h.realtime.ClientSecret(c.Request.Context(), req)
	if err != nil {
		// Missing key and upstream rejections are both server-side failures.
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clientSecret": secret})
}
