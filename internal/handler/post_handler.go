package handler

import (
	"net/http"

	"github.com/blockpress/internal/content"
	"github.com/blockpress/internal/service"
	"github.com/gin-gonic/gin"
)

type editPostRequest struct {
	content.PostFields
	Comment string `json:"comment"`
}

// ListPosts returns posts in every state with per-state counters.
func (a *API) ListPosts(c *gin.Context) {
	result, err := a.posts.List(c.Request.Context(), service.PostFilter{
		Search:  c.Query("search"),
		State:   c.Query("state"),
		Tag:     c.Query("tag"),
		Page:    queryInt(c, "page"),
		PerPage: queryInt(c, "per_page"),
	})
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPost returns a single post in any state.
func (a *API) GetPost(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	post, err := a.posts.Get(c.Request.Context(), id)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "state": post.State()})
}

// CreatePost stores a new draft.
func (a *API) CreatePost(c *gin.Context) {
	var req content.PostFields
	if !bindJSON(c, &req, "invalid post payload") {
		return
	}
	post, err := a.posts.Create(c.Request.Context(), actorID(c), req)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post, "state": post.State()})
}

// UpdatePost edits a post, snapshotting its previous fields. The post returns to draft.
func (a *API) UpdatePost(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req editPostRequest
	if !bindJSON(c, &req, "invalid post payload") {
		return
	}
	post, err := a.posts.Edit(c.Request.Context(), id, actorID(c), req.PostFields, req.Comment)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "state": post.State()})
}

// PublishPost publishes a draft or scheduled post immediately.
func (a *API) PublishPost(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	post, err := a.posts.PublishNow(c.Request.Context(), id, actorID(c))
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "state": post.State()})
}

// DeletePost removes a post and its history.
func (a *API) DeletePost(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := a.posts.Delete(c.Request.Context(), id, actorID(c)); err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListVersions returns a post's history, newest first.
func (a *API) ListVersions(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	versions, err := a.versions.ListVersions(c.Request.Context(), id)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// GetVersion returns one stored snapshot.
func (a *API) GetVersion(c *gin.Context) {
	id, ok := uintParam(c, "versionId")
	if !ok {
		return
	}
	version, err := a.versions.GetVersion(c.Request.Context(), id)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": version})
}

// RestoreVersion edits the post back to a stored snapshot.
func (a *API) RestoreVersion(c *gin.Context) {
	postID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	versionID, ok := uintParam(c, "versionId")
	if !ok {
		return
	}
	post, err := a.posts.Restore(c.Request.Context(), postID, versionID, actorID(c))
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post, "state": post.State()})
}
