package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fenggwsx/NovaMind/internal/protocol"
	"github.com/fenggwsx/NovaMind/internal/service"
)

func (a *App) handleRegister(c *gin.Context) {
	var req protocol.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "All fields are required")
		return
	}

	user, err := a.accounts.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		a.respondError(c, err, "Failed to register user")
		return
	}
	a.respondWithToken(c, http.StatusCreated, "User registered successfully", user, "Failed to register user")
}

func (a *App) handleLogin(c *gin.Context) {
	var req protocol.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := a.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		a.respondError(c, err, "Failed to login")
		return
	}
	a.respondWithToken(c, http.StatusOK, "Login successful", user, "Failed to login")
}

func (a *App) respondWithToken(c *gin.Context, status int, message string, user *service.UserView, fallback string) {
	token, expiresAt, err := a.tokens.Issue(user.ID, user.Email)
	if err != nil {
		a.respondError(c, err, fallback)
		return
	}
	c.JSON(status, protocol.AuthResponse{
		Message:   message,
		User:      toProtocolUser(user),
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
	})
}

func (a *App) handleProfile(c *gin.Context) {
	user, err := a.accounts.GetProfile(c.Request.Context(), c.Param("email"))
	if err != nil {
		a.respondError(c, err, "Failed to fetch user profile")
		return
	}
	c.JSON(http.StatusOK, protocol.ProfileResponse{User: toProtocolUser(user)})
}

func (a *App) handleGuest(c *gin.Context) {
	guest := a.accounts.NewGuest()
	a.logger.InfoContext(c.Request.Context(), "guest issued", "guest_id", guest.GuestID, "client_ip", c.ClientIP())
	c.JSON(http.StatusCreated, protocol.GuestResponse{User: protocol.Guest{
		GuestID: guest.GuestID,
		Name:    guest.Name,
		Email:   guest.Email,
		IsGuest: true,
	}})
}

func toProtocolUser(user *service.UserView) protocol.User {
	return protocol.User{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		LastLogin: user.LastLogin,
	}
}
