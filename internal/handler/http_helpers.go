package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medtrack/internal/backup"
	"github.com/medtrack/internal/logger"
	"github.com/medtrack/internal/service"
)

const requestIDKey = "request_id"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func respondSuccess(c *gin.Context, payload gin.H) {
	if payload == nil {
		payload = gin.H{}
	}
	payload["success"] = true
	c.JSON(http.StatusOK, payload)
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// parseUintQuery 缺省时返回 0
func parseUintQuery(c *gin.Context, key string) (uint, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parseIntQuery(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseBoolQuery(c *gin.Context, key string) bool {
	switch strings.ToLower(strings.TrimSpace(c.Query(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// RequestID 为每个请求分配 X-Request-ID，已有值时沿用
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// handleServiceError 把领域错误映射为 HTTP 状态；未知错误记录日志并返回通用提示
func handleServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrMedicationNotFound):
		respondError(c, http.StatusNotFound, "药品不存在")
	case errors.Is(err, service.ErrScheduleNotFound):
		respondError(c, http.StatusNotFound, "服药计划不存在")
	case errors.Is(err, service.ErrInteractionNotFound):
		respondError(c, http.StatusNotFound, "相互作用记录不存在")
	case errors.Is(err, service.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, "参数无效："+validationDetail(err))
	case errors.Is(err, backup.ErrInvalidDocument), errors.Is(err, backup.ErrUnsupportedFormat):
		respondError(c, http.StatusBadRequest, "备份文件无效："+err.Error())
	default:
		logger.Error(fallback, "error", err, "request_id", requestID(c), "path", c.FullPath())
		respondError(c, http.StatusInternalServerError, fallback)
	}
}

func validationDetail(err error) string {
	return strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")
}
