package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/medtrack/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	sessionUserID   = "user_id"
	sessionUsername = "username"
)

// ErrInvalidCredentials 表示用户名或密码错误
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator 校验登录凭据并返回用户 ID
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (uint, error)
}

// GormAuthenticator 使用 users 表校验
type GormAuthenticator struct {
	db *gorm.DB
}

func NewGormAuthenticator(gdb *gorm.DB) *GormAuthenticator {
	return &GormAuthenticator{db: gdb}
}

func (a *GormAuthenticator) Authenticate(ctx context.Context, username, password string) (uint, error) {
	user, err := db.Authenticate(a.db.WithContext(ctx), username, password)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}
	return user.ID, nil
}

// StaticAuthenticator 只接受配置中的单个账号，用于内存存储模式
type StaticAuthenticator struct {
	username string
	hash     []byte
}

func NewStaticAuthenticator(username, password string) (*StaticAuthenticator, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(password)), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &StaticAuthenticator{username: strings.TrimSpace(username), hash: hash}, nil
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, username, password string) (uint, error) {
	if strings.TrimSpace(username) != a.username {
		return 0, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}
	return 1, nil
}

type loginPayload struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Login 处理登录请求，支持 JSON 与表单
func (a *API) Login(c *gin.Context) {
	if a.auth == nil {
		respondError(c, http.StatusNotFound, "未启用登录")
		return
	}

	var payload loginPayload
	if err := c.ShouldBind(&payload); err != nil {
		respondError(c, http.StatusBadRequest, "请求格式错误")
		return
	}

	userID, err := a.auth.Authenticate(c.Request.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "用户名或密码错误")
			return
		}
		handleServiceError(c, err, "登录失败")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserID, userID)
	session.Set(sessionUsername, strings.TrimSpace(payload.Username))
	if err := session.Save(); err != nil {
		handleServiceError(c, err, "会话保存失败")
		return
	}

	respondSuccess(c, gin.H{"username": strings.TrimSpace(payload.Username)})
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		handleServiceError(c, err, "会话保存失败")
		return
	}
	respondSuccess(c, nil)
}

// Me 返回当前登录用户
func (a *API) Me(c *gin.Context) {
	if a.auth == nil {
		c.JSON(http.StatusOK, gin.H{"auth_enabled": false})
		return
	}
	session := sessions.Default(c)
	username, _ := session.Get(sessionUsername).(string)
	if session.Get(sessionUserID) == nil {
		respondError(c, http.StatusUnauthorized, "未登录")
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_enabled": true, "username": username})
}

// AuthRequired 是一个简单的认证中间件
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if session.Get(sessionUserID) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "未登录"})
			return
		}
		c.Next()
	}
}
