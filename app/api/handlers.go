package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/galnetfeed/galnet-archive/app/calendar"
	"github.com/galnetfeed/galnet-archive/app/cfg"
	"github.com/galnetfeed/galnet-archive/app/database"
	"github.com/galnetfeed/galnet-archive/app/search"
	"github.com/galnetfeed/galnet-archive/app/tasks"
)

func NewHandler(repo database.ArticleRepository, engine *search.Engine,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		repo:      repo,
		engine:    engine,
		scheduler: scheduler,
	}
}

func (h *Handler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing q query parameter"})
		return
	}

	result, err := h.engine.Run(query)
	if err != nil {
		h.renderQueryError(c, query, err)
		return
	}

	articles := make([]ArticleResponse, 0, len(result.Articles))
	for _, a := range result.Articles {
		articles = append(articles, toArticleResponse(a))
	}

	c.JSON(http.StatusOK, SearchResponse{
		Articles: articles,
		Returned: len(articles),
		Total:    result.Total,
	})
}

func (h *Handler) Count(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing q query parameter"})
		return
	}

	total, err := h.engine.Count(query)
	if err != nil {
		h.renderQueryError(c, query, err)
		return
	}

	c.JSON(http.StatusOK, CountResponse{Total: total})
}

func (h *Handler) GetArticleByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		// Non-numeric lookups are treated the same as absent rows.
		c.Status(http.StatusNotFound)
		return
	}

	article, err := h.repo.GetByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_by_id", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if article == nil {
		c.Status(http.StatusNotFound)
		return
	}

	c.JSON(http.StatusOK, toArticleResponse(*article))
}

func (h *Handler) GetArticleByUID(c *gin.Context) {
	uid := c.Param("uid")

	article, err := h.repo.GetByUID(uid)
	if err != nil {
		slog.Error("Database error", "operation", "get_by_uid", "uid", uid, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if article == nil {
		c.Status(http.StatusNotFound)
		return
	}

	c.JSON(http.StatusOK, toArticleResponse(*article))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.repo.Count(); err == nil {
		health["articles"] = count
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	count, err := h.repo.Count()
	if err != nil {
		slog.Error("Database error", "operation", "count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": count,
		"version":  cfg.GetVersion(),
	})
}

func (h *Handler) APIUpdate(c *gin.Context) {
	if err := h.scheduler.EnqueueUpdate(); err != nil {
		slog.Error("Error enqueueing update task", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue update task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Archive update enqueued",
	})
}

func (h *Handler) APIRepair(c *gin.Context) {
	if err := h.scheduler.EnqueueRepair(); err != nil {
		slog.Error("Error enqueueing repair task", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue repair task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Corpus repair enqueued",
	})
}

func (h *Handler) renderQueryError(c *gin.Context, query string, err error) {
	var validationErr *search.ValidationError
	var parseErr *calendar.ParseError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason})
	case errors.As(err, &parseErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date: " + parseErr.Raw})
	default:
		slog.Error("Search error", "query", query, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search error"})
	}
}
