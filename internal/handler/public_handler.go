package handler

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/blockpress/internal/content"
	"github.com/blockpress/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	visitorCookieName   = "bp_visitor_id"
	visitorCookieMaxAge = 365 * 24 * 60 * 60
)

// renderedBlock is a block prepared for display.
type renderedBlock struct {
	Type content.BlockKind `json:"type"`
	HTML string            `json:"html"`
}

// ListPublishedPosts returns published posts for readers.
func (a *API) ListPublishedPosts(c *gin.Context) {
	result, err := a.posts.ListPublished(c.Request.Context(), service.PostFilter{
		Search:  c.Query("search"),
		Tag:     c.Query("tag"),
		Page:    queryInt(c, "page"),
		PerPage: queryInt(c, "per_page"),
	})
	if err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"posts":       result.Posts,
		"total":       result.Total,
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total_pages": result.TotalPages,
	})
}

// ShowPost returns a published post with rendered blocks and counts the view.
func (a *API) ShowPost(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	post, err := a.posts.GetPublished(ctx, id)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}

	rendered, err := renderBlocks(post.Content, a.siteBaseURL)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}

	visitorID := a.ensureVisitorID(c)
	counted, err := a.analytics.RecordView(ctx, post.ID, visitorID)
	if err != nil {
		a.log.Warn("record view failed", zap.Uint("post_id", post.ID), zap.Error(err))
	} else if counted {
		post.Views++
	}

	resp := gin.H{
		"post":   post,
		"blocks": rendered,
	}
	if post.SocialImageID != nil {
		resp["social_image_url"] = imageURL(a.siteBaseURL, *post.SocialImageID)
	}
	c.JSON(http.StatusOK, resp)
}

// SharePost counts a share of a published post.
func (a *API) SharePost(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	post, err := a.posts.GetPublished(ctx, id)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}

	shares := post.ShareCount
	if err := a.analytics.IncrementShareCount(ctx, post.ID); err != nil {
		a.log.Warn("record share failed", zap.Uint("post_id", post.ID), zap.Error(err))
	} else {
		shares++
	}
	c.JSON(http.StatusOK, gin.H{"share_count": shares})
}

func renderBlocks(blocks content.Blocks, baseURL string) ([]renderedBlock, error) {
	out := make([]renderedBlock, 0, len(blocks))
	for _, block := range blocks {
		var renderErr error
		markup := content.Match(block,
			func(t content.TextBlock) string {
				rendered, err := content.RenderText(t)
				renderErr = err
				return rendered
			},
			func(img content.ImageBlock) string {
				return renderImage(img, baseURL)
			},
			func(cta content.CTABlock) string {
				return renderCTA(cta)
			},
		)
		if renderErr != nil {
			return nil, renderErr
		}
		out = append(out, renderedBlock{Type: block.Kind(), HTML: markup})
	}
	return out, nil
}

// imageURL links to the public image endpoint under baseURL.
func imageURL(baseURL string, id uint) string {
	return fmt.Sprintf("%s/api/images/%d", baseURL, id)
}

func renderImage(img content.ImageBlock, baseURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<figure class="%s">`, html.EscapeString(blockClasses("image", img.Alignment, img.Size)))
	fmt.Fprintf(&b, `<img src="%s" alt="%s" loading="lazy">`, html.EscapeString(imageURL(baseURL, img.ImageID)), html.EscapeString(img.Alt))
	if img.Caption != "" {
		fmt.Fprintf(&b, `<figcaption>%s</figcaption>`, html.EscapeString(img.Caption))
	}
	b.WriteString(`</figure>`)
	return b.String()
}

func renderCTA(cta content.CTABlock) string {
	variant := cta.ButtonVariant
	if variant == "" {
		variant = "primary"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<aside class="%s">`, html.EscapeString(blockClasses("cta", cta.Alignment, "")))
	if cta.Content != "" {
		fmt.Fprintf(&b, `<p>%s</p>`, html.EscapeString(cta.Content))
	}
	fmt.Fprintf(&b, `<a class="button button-%s" href="%s">%s</a>`,
		html.EscapeString(variant), html.EscapeString(cta.ButtonURL), html.EscapeString(cta.ButtonText))
	b.WriteString(`</aside>`)
	return b.String()
}

func blockClasses(kind, alignment, size string) string {
	classes := []string{"block-" + kind}
	if alignment != "" {
		classes = append(classes, "align-"+alignment)
	}
	if size != "" {
		classes = append(classes, "size-"+size)
	}
	return strings.Join(classes, " ")
}

func (a *API) ensureVisitorID(c *gin.Context) string {
	if id, err := c.Cookie(visitorCookieName); err == nil && strings.TrimSpace(id) != "" {
		return id
	}

	visitorID := uuid.NewString()
	secure := a.secureCookies || c.Request.TLS != nil

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     visitorCookieName,
		Value:    visitorID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		MaxAge:   visitorCookieMaxAge,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
		SameSite: http.SameSiteLaxMode,
	})

	return visitorID
}
