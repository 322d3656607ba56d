package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"practice-trading-engine/internal/auth"
)

func (s *Server) handleRegister(c *gin.Context) {
	if s.authService == nil {
		errorResponse(c, http.StatusServiceUnavailable, "authentication is disabled")
		return
	}

	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	user, err := s.authService.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			errorResponse(c, http.StatusConflict, "email already registered")
		case errors.Is(err, auth.ErrWeakPassword):
			errorResponse(c, http.StatusBadRequest, err.Error())
		default:
			s.requestLog(c).Error().Err(err).Msg("registration failed")
			errorResponse(c, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"id":          user.ID,
			"email":       user.Email,
			"displayName": user.DisplayName,
			"skillTier":   user.SkillTier,
		},
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	if s.authService == nil {
		errorResponse(c, http.StatusServiceUnavailable, "authentication is disabled")
		return
	}

	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	resp, err := s.authService.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			errorResponse(c, http.StatusUnauthorized, "invalid email or password")
			return
		}
		s.requestLog(c).Error().Err(err).Msg("login failed")
		errorResponse(c, http.StatusInternalServerError, "login failed")
		return
	}

	successResponse(c, resp)
}

func (s *Server) handleGetMe(c *gin.Context) {
	userID := auth.GetUserID(c)
	if userID == "" {
		errorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := s.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			errorResponse(c, http.StatusNotFound, "user not found")
			return
		}
		s.requestLog(c).Error().Err(err).Msg("user lookup failed")
		errorResponse(c, http.StatusInternalServerError, "user lookup failed")
		return
	}
	successResponse(c, user)
}
