package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetTags lists the tags of published posts with usage counts.
func (a *API) GetTags(c *gin.Context) {
	tags, err := a.tags.ListPublished(c.Request.Context())
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}
