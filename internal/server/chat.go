package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fenggwsx/NovaMind/internal/protocol"
	"github.com/fenggwsx/NovaMind/internal/service"
)

func (a *App) handleChat(c *gin.Context) {
	var req protocol.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "missing required fields: threadId, message, userId, userEmail")
		return
	}
	if !a.authorizeOwner(c, req.UserID) {
		return
	}

	reply, err := a.threads.SendMessage(c.Request.Context(), service.SendRequest{
		ThreadID:  req.ThreadID,
		UserID:    req.UserID,
		UserEmail: req.UserEmail,
		Text:      req.Message,
	})
	if err != nil {
		a.respondError(c, err, "Something went wrong")
		return
	}
	c.JSON(http.StatusOK, protocol.ReplyResponse{Reply: reply})
}

func (a *App) handleAnalyzeImage(c *gin.Context) {
	upload, err := a.receiveImage(c)
	if err != nil {
		a.respondUploadError(c, err)
		return
	}
	defer upload.release()

	userID := c.PostForm(protocol.FieldUserID)
	if !a.authorizeOwner(c, userID) {
		return
	}

	reply, err := a.threads.SendImageMessage(c.Request.Context(), service.ImageRequest{
		ThreadID:  c.PostForm(protocol.FieldThreadID),
		UserID:    userID,
		UserEmail: c.PostForm(protocol.FieldUserEmail),
		Image:     upload.image,
		Question:  c.PostForm(protocol.FieldQuestion),
	})
	if err != nil {
		a.respondError(c, err, "Failed to analyze image")
		return
	}
	c.JSON(http.StatusOK, protocol.ReplyResponse{Reply: reply})
}
