package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fenggwsx/NovaMind/internal/protocol"
	"github.com/fenggwsx/NovaMind/internal/service"
)

func (a *App) handleListThreads(c *gin.Context) {
	userID := c.Query("userId")
	if !a.authorizeOwner(c, userID) {
		return
	}
	summaries, err := a.threads.ListThreads(c.Request.Context(), userID)
	if err != nil {
		a.respondError(c, err, "Failed to fetch threads")
		return
	}
	c.JSON(http.StatusOK, toProtocolSummaries(summaries))
}

func (a *App) handleThreadMessages(c *gin.Context) {
	userID := c.Query("userId")
	if !a.authorizeOwner(c, userID) {
		return
	}
	messages, err := a.threads.GetThreadMessages(c.Request.Context(), c.Param("threadId"), userID)
	if err != nil {
		a.respondError(c, err, "Failed to fetch chat")
		return
	}
	out := make([]protocol.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, protocol.Message{Role: string(m.Role), Content: m.Content})
	}
	c.JSON(http.StatusOK, out)
}

func (a *App) handleDeleteThread(c *gin.Context) {
	userID := c.Query("userId")
	if !a.authorizeOwner(c, userID) {
		return
	}
	if err := a.threads.DeleteThread(c.Request.Context(), c.Param("threadId"), userID); err != nil {
		a.respondError(c, err, "Failed to delete thread")
		return
	}
	c.JSON(http.StatusOK, protocol.DeleteResponse{Success: "Thread deleted successfully"})
}

func toProtocolSummaries(summaries []service.ThreadSummary) []protocol.ThreadSummary {
	out := make([]protocol.ThreadSummary, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, protocol.ThreadSummary{
			ThreadID:     s.ThreadID,
			Title:        s.Title,
			UserEmail:    s.UserEmail,
			MessageCount: s.MessageCount,
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
		})
	}
	return out
}
