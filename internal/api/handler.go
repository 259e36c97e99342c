package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/gitee-activity-harvester/internal/aggregator"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/domain"
	apperrors "github.com/kurihiro0119/gitee-activity-harvester/internal/errors"
	"github.com/kurihiro0119/gitee-activity-harvester/internal/storage"
)

// Handler holds the dependencies for API handlers
type Handler struct {
	storage    storage.Storage
	aggregator aggregator.Aggregator
}

// NewHandler creates a new API handler
func NewHandler(s storage.Storage, a aggregator.Aggregator) *Handler {
	return &Handler{storage: s, aggregator: a}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// GetItems handles GET /api/v1/repos/:owner/:repo/items
func (h *Handler) GetItems(c *gin.Context) {
	owner := c.Param("owner")
	repo := c.Param("repo")

	var category domain.Category
	if raw := c.Query("category"); raw != "" {
		parsed, err := domain.ParseCategory(raw)
		if err != nil {
			respondError(c, apperrors.NewBadRequestError(err.Error()))
			return
		}
		category = parsed
	}

	timeRange, err := parseTimeRange(c)
	if err != nil {
		respondError(c, err)
		return
	}

	records, err := h.storage.GetItems(c.Request.Context(), owner, repo, category, timeRange)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []*domain.Record{}
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

// GetSummary handles GET /api/v1/repos/:owner/:repo/summary
func (h *Handler) GetSummary(c *gin.Context) {
	owner := c.Param("owner")
	repo := c.Param("repo")

	timeRange, err := parseTimeRange(c)
	if err != nil {
		respondError(c, err)
		return
	}

	summary, err := h.aggregator.RepoSummary(c.Request.Context(), owner, repo, timeRange)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func parseTimeRange(c *gin.Context) (domain.TimeRange, error) {
	var timeRange domain.TimeRange

	if start := c.Query("start"); start != "" {
		t, err := parseDate(start)
		if err != nil {
			return timeRange, apperrors.NewBadRequestError("invalid start date: " + start)
		}
		timeRange.Start = t
	}
	if end := c.Query("end"); end != "" {
		t, err := parseDate(end)
		if err != nil {
			return timeRange, apperrors.NewBadRequestError("invalid end date: " + end)
		}
		timeRange.End = t
	}
	return timeRange, nil
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func respondError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		c.JSON(appErr.StatusCode(), gin.H{
			"error": gin.H{
				"code":    string(appErr.Code),
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    string(apperrors.ErrCodeInternal),
			"message": err.Error(),
		},
	})
}
