package handler

import (
	"errors"
	"net/http"

	"github.com/blockpress/internal/scheduler"
	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether the database is reachable.
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
	})
}

// ListJobs 返回后台任务的运行状态。
func (a *API) ListJobs(c *gin.Context) {
	if a.jobs == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []scheduler.JobInfo{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": a.jobs.List()})
}

// RunJob 手动触发一次后台任务，不等待其完成。
func (a *API) RunJob(c *gin.Context) {
	name := c.Param("name")
	if a.jobs == nil {
		respondError(c, http.StatusNotFound, "job not found")
		return
	}
	if err := a.jobs.RunNow(name); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			respondError(c, http.StatusNotFound, "job not found")
			return
		}
		a.writeServiceError(c, err)
		return
	}
	info, _ := a.jobs.Get(name)
	c.JSON(http.StatusAccepted, gin.H{"job": info})
}
