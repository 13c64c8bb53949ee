// Package accounts implements HTTP handlers for registration, login, the OIDC
// login flow, and the user's profile and stored API key.
package accounts

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wandertale/wandertale/internal/auth/oidc"
	"github.com/wandertale/wandertale/internal/db/models"
	"github.com/wandertale/wandertale/internal/middleware"
	"github.com/wandertale/wandertale/internal/services"
)

// stateTTL bounds how long an OAuth state parameter stays redeemable.
const stateTTL = 5 * time.Minute

// Handlers handles account endpoints.
type Handlers struct {
	accounts *services.AccountService
	provider *oidc.OIDCProvider // nil when federated login is not configured
	// publicURL is the frontend base URL used for OAuth callback redirects.
	publicURL string

	mu     sync.Mutex
	states map[string]time.Time
}

// NewHandlers creates a new Handlers instance. provider may be nil, in which
// case the OAuth endpoints report that federated login is not configured.
func NewHandlers(accounts *services.AccountService, provider *oidc.OIDCProvider, publicURL string) *Handlers {
	return &Handlers{
		accounts:  accounts,
		provider:  provider,
		publicURL: publicURL,
		states:    make(map[string]time.Time),
	}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	HasCredential bool   `json:"has_credential"`
	CreatedAt     string `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		HasCredential: u.HasCredential(),
		CreatedAt:     u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Register creates a password account and signs the new user in.
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	user, token, err := h.accounts.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email is already registered"})
		case errors.Is(err, services.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			slog.Error("registration failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  toUserResponse(user),
	})
}

// Login verifies a password and issues a session token.
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	user, token, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown email and wrong password produce the same response so the
		// endpoint cannot be used to probe which emails have accounts.
		if errors.Is(err, services.ErrUserNotFound) || errors.Is(err, services.ErrInvalidPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email or password"})
			return
		}
		slog.Error("login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  toUserResponse(user),
	})
}

// OAuthLogin redirects the browser to the identity provider.
// GET /api/v1/auth/oauth/login
func (h *Handlers) OAuthLogin(c *gin.Context) {
	if h.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Federated login is not configured"})
		return
	}

	state, err := generateState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate state"})
		return
	}

	h.mu.Lock()
	h.states[state] = time.Now()
	// Drop expired states while we hold the lock; the map would otherwise
	// grow with every abandoned login attempt.
	for s, created := range h.states {
		if time.Since(created) > stateTTL {
			delete(h.states, s)
		}
	}
	h.mu.Unlock()

	c.Redirect(http.StatusFound, h.provider.GetAuthURL(state))
}

// OAuthCallback completes the authorization-code flow and redirects the
// browser back to the frontend with a session token.
// GET /api/v1/auth/oauth/callback?code=...&state=...
func (h *Handlers) OAuthCallback(c *gin.Context) {
	// callbackError sends the browser back to the frontend callback page with
	// error details as query parameters. Falls back to plain JSON when no
	// frontend URL is configured.
	callbackError := func(errCode, description string) {
		if h.publicURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": description})
			return
		}
		target := fmt.Sprintf(
			"%s/auth/callback?error=%s&error_description=%s",
			h.publicURL,
			url.QueryEscape(errCode),
			url.QueryEscape(description),
		)
		c.Redirect(http.StatusFound, target)
	}

	if h.provider == nil {
		callbackError("provider_not_configured", "Federated login is not configured.")
		return
	}

	code := c.Query("code")
	state := c.Query("state")

	if !h.redeemState(state) {
		callbackError("invalid_state", "Invalid or expired state parameter. Please try signing in again.")
		return
	}

	ctx := c.Request.Context()

	token, err := h.provider.ExchangeCode(ctx, code)
	if err != nil {
		callbackError("token_exchange_failed", "Failed to exchange authorization code for token.")
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		callbackError("no_id_token", "The identity provider did not return an ID token.")
		return
	}

	idToken, err := h.provider.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		callbackError("id_token_invalid", "The ID token could not be verified.")
		return
	}

	sub, email, err := h.provider.ExtractUserInfo(idToken)
	if err != nil {
		callbackError("user_info_failed", "Failed to extract user information from the ID token.")
		return
	}

	user, sessionToken, err := h.accounts.LoginFederated(ctx, sub, email)
	if err != nil {
		slog.Error("federated login failed", "error", err)
		callbackError("login_failed", "Failed to sign in.")
		return
	}

	slog.Info("federated login", "user_id", user.ID)

	if h.publicURL == "" {
		c.JSON(http.StatusOK, gin.H{"token": sessionToken, "user": toUserResponse(user)})
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf(
		"%s/auth/callback?token=%s", h.publicURL, url.QueryEscape(sessionToken),
	))
}

// redeemState consumes a state value. A state is redeemable exactly once and
// only within stateTTL of being issued.
func (h *Handlers) redeemState(state string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	created, ok := h.states[state]
	if !ok {
		return false
	}
	delete(h.states, state)
	return time.Since(created) <= stateTTL
}

// Me returns the signed-in user's profile.
// GET /api/v1/user/me
func (h *Handlers) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	user, err := h.accounts.Profile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		slog.Error("failed to load profile", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

type setKeyRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// SetKey stores the user's Gemini API key, encrypted at rest. The previous
// key, if any, is overwritten.
// PUT /api/v1/user/key
func (h *Handlers) SetKey(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req setKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api_key is required"})
		return
	}

	if err := h.accounts.SetCredential(c.Request.Context(), userID, req.APIKey); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "api_key must not be empty"})
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			slog.Error("failed to store credential", "error", err, "user_id", userID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store API key"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key saved"})
}

// generateState generates a random state string for the OAuth flow.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
