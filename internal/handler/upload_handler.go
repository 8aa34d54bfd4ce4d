package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/medtrack/internal/logger"
	"github.com/medtrack/internal/photo"
)

// UploadMedicationPhoto 处理药品照片上传，字段名为 photo
func (a *API) UploadMedicationPhoto(c *gin.Context) {
	if a.photos == nil {
		respondError(c, http.StatusServiceUnavailable, "照片存储未配置")
		return
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的药品ID")
		return
	}

	// 获取上传的文件
	file, err := c.FormFile("photo")
	if err != nil {
		respondError(c, http.StatusBadRequest, "未找到上传的照片")
		return
	}
	if file.Size > photo.MaxBytes {
		respondError(c, http.StatusBadRequest, "照片不能超过 10MB")
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "读取照片失败")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, photo.MaxBytes+1))
	if err != nil {
		respondError(c, http.StatusBadRequest, "读取照片失败")
		return
	}

	med, err := a.photos.Upload(c.Request.Context(), id, data)
	if err != nil {
		handleServiceError(c, err, "保存照片失败")
		return
	}

	respondSuccess(c, gin.H{
		"photo_url":     med.PhotoURL,
		"thumbnail_url": med.ThumbnailURL,
	})
}

// DeleteMedicationPhoto 清除药品照片
func (a *API) DeleteMedicationPhoto(c *gin.Context) {
	if a.photos == nil {
		respondError(c, http.StatusServiceUnavailable, "照片存储未配置")
		return
	}

	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的药品ID")
		return
	}

	if _, err := a.photos.Remove(c.Request.Context(), id); err != nil {
		handleServiceError(c, err, "删除照片失败")
		return
	}

	respondSuccess(c, nil)
}

// ServePhoto 从照片存储中读取对象，供未公开的 bucket 使用
func (a *API) ServePhoto(c *gin.Context) {
	if a.photos == nil {
		respondError(c, http.StatusNotFound, "照片不存在")
		return
	}

	name := c.Param("name")
	if !photo.ValidName(name) {
		respondError(c, http.StatusNotFound, "照片不存在")
		return
	}

	rc, err := a.photos.Store().Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, photo.ErrNotFound) {
			respondError(c, http.StatusNotFound, "照片不存在")
			return
		}
		logger.Error("open photo failed", "name", name, "error", err, "request_id", requestID(c))
		respondError(c, http.StatusInternalServerError, "读取照片失败")
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}
