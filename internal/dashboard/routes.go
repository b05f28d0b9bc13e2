package dashboard

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/veilworks/rite/internal/release"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router. Everything
// is GET: the dashboard observes, it never advances.
func registerRoutes(router *gin.Engine, db *gorm.DB) {
	api := router.Group("/api")
	api.GET("/tenants", handleTenants(db))
	api.GET("/releases", handleReleaseList(db))
	api.GET("/releases/:id", handleReleaseDetail(db))
	api.GET("/releases/:id/history", handleReleaseHistory(db))
	api.GET("/transitions/recent", handleRecentTransitions(db))
}

func handleTenants(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenants, err := TenantSummary(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tenants": tenants})
	}
}

func handleReleaseList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		releases, err := release.List(db, release.ListFilters{
			TenantID: c.Query("tenant"),
			Status:   c.Query("status"),
			Stage:    c.Query("stage"),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"releases": releases})
	}
}

func handleReleaseDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rel, err := release.Get(db, c.Param("id"))
		if err != nil {
			if errors.Is(err, release.ErrReleaseNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "release not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		next, err := release.NextStages(db, rel.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"release":     rel,
			"next_stages": next,
		})
	}
}

func handleReleaseHistory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		history, err := release.History(db, c.Param("id"))
		if err != nil {
			if errors.Is(err, release.ErrReleaseNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "release not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"history": history})
	}
}

func handleRecentTransitions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		transitions, err := RecentTransitions(db, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"transitions": transitions})
	}
}
