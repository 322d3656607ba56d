package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"practice-trading-engine/internal/auth"
	"practice-trading-engine/internal/vault"
)

// NarrativeKeyRequest sets or rotates one provider's LLM credential.
type NarrativeKeyRequest struct {
	APIKey string `json:"apiKey" binding:"required"`
	Model  string `json:"model,omitempty"`
}

func validNarrativeProvider(name string) bool {
	switch name {
	case "claude", "openai", "deepseek":
		return true
	}
	return false
}

func (s *Server) handleSetNarrativeKey(c *gin.Context) {
	if s.vaultClient == nil {
		errorResponse(c, http.StatusServiceUnavailable, "key storage is not configured")
		return
	}

	provider := c.Param("provider")
	if !validNarrativeProvider(provider) {
		errorResponse(c, http.StatusBadRequest, "provider must be claude, openai, or deepseek")
		return
	}

	var req NarrativeKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	err := s.vaultClient.StoreProviderSecret(c.Request.Context(), vault.ProviderSecret{
		Provider: provider,
		APIKey:   req.APIKey,
		Model:    req.Model,
	})
	if err != nil {
		s.requestLog(c).Error().Err(err).Str("provider", provider).Msg("narrative key store failed")
		errorResponse(c, http.StatusInternalServerError, "failed to store key")
		return
	}

	claims := auth.GetUserClaims(c)
	admin := ""
	if claims != nil {
		admin = claims.Email
	}
	s.requestLog(c).Info().Str("provider", provider).Str("admin", admin).Msg("narrative key rotated")

	successResponse(c, gin.H{"provider": provider})
}

func (s *Server) handleDeleteNarrativeKey(c *gin.Context) {
	if s.vaultClient == nil {
		errorResponse(c, http.StatusServiceUnavailable, "key storage is not configured")
		return
	}

	provider := c.Param("provider")
	if !validNarrativeProvider(provider) {
		errorResponse(c, http.StatusBadRequest, "provider must be claude, openai, or deepseek")
		return
	}

	if err := s.vaultClient.DeleteProviderSecret(c.Request.Context(), provider); err != nil {
		s.requestLog(c).Error().Err(err).Str("provider", provider).Msg("narrative key delete failed")
		errorResponse(c, http.StatusInternalServerError, "failed to delete key")
		return
	}

	claims := auth.GetUserClaims(c)
	admin := ""
	if claims != nil {
		admin = claims.Email
	}
	s.requestLog(c).Info().Str("provider", provider).Str("admin", admin).Msg("narrative key removed")

	successResponse(c, gin.H{"provider": provider})
}
