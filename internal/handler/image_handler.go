package handler

import (
	"net/http"

	"github.com/blockpress/internal/service"
	"github.com/gin-gonic/gin"
)

// UploadImage 处理图片上传请求，文件字段名为 image。
func (a *API) UploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "image file is required")
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "image file is unreadable")
		return
	}
	defer src.Close()

	item, err := a.images.Upload(c.Request.Context(), actorID(c), file.Filename, src)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"image": item,
		"url":   imageURL(a.siteBaseURL, item.ID),
	})
}

// ListImages 返回图片元数据分页列表。
func (a *API) ListImages(c *gin.Context) {
	result, err := a.images.List(c.Request.Context(), service.ImageFilter{
		Search:  c.Query("search"),
		Page:    queryInt(c, "page"),
		PerPage: queryInt(c, "per_page"),
	})
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ServeImage 输出图片二进制内容。
func (a *API) ServeImage(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	item, err := a.images.Get(c.Request.Context(), id)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, item.MimeType, item.Data)
}

// DeleteImage 删除图片，引用它的图片块保持不变。
func (a *API) DeleteImage(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := a.images.Delete(c.Request.Context(), id, actorID(c)); err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
