package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plonguo/portfolio-api/internal/commits"
)

// RecentCommits serves the activity widget from the read-through cache.
// Stale data beats no data: upstream failure only becomes a 500 when the
// cache is empty too.
func (h *Handler) RecentCommits(c *gin.Context) {
	res, err := h.CommitsSvc.RecentActivity(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to fetch commits",
			"commits": []commits.CommitSummary{},
		})
		return
	}

	payload := gin.H{
		"commits": res.Commits,
		"cached":  res.Cached,
	}
	if res.Stale {
		payload["stale"] = true
	}
	c.JSON(http.StatusOK, payload)
}
