package handler

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	sessionUserIDKey   = "user_id"
	sessionUsernameKey = "username"
	actorContextKey    = "actor_id"
)

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Login 校验账号密码并写入会话，支持 JSON 与表单两种提交方式。
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid login payload")
		return
	}

	user, err := a.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		a.writeServiceError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserIDKey, user.ID)
	session.Set(sessionUsernameKey, user.Username)
	if err := session.Save(); err != nil {
		a.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username, "is_admin": user.IsAdmin})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		a.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AuthRequired 要求请求携带有效会话，并把用户 id 放入上下文。
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(sessionUserIDKey).(uint)
		if !ok || userID == 0 {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}
		c.Set(actorContextKey, userID)
		c.Next()
	}
}

// AdminRequired 在 AuthRequired 之后使用，拒绝非管理员。
func (a *API) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.users.Get(c.Request.Context(), actorID(c))
		if err != nil {
			// 会话指向已删除的用户
			a.writeServiceError(c, errUnauthorizedIfMissing(err))
			c.Abort()
			return
		}
		if !user.IsAdmin {
			respondError(c, http.StatusForbidden, "admin privileges required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Me returns the signed-in user.
func (a *API) Me(c *gin.Context) {
	user, err := a.users.Get(c.Request.Context(), actorID(c))
	if err != nil {
		a.writeServiceError(c, errUnauthorizedIfMissing(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username, "is_admin": user.IsAdmin})
}

func actorID(c *gin.Context) uint {
	if id, ok := c.Get(actorContextKey); ok {
		if v, ok := id.(uint); ok {
			return v
		}
	}
	return 0
}
