package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/medtrack/internal/backup"
)

// ExportBackup 导出整个存储，format 为 json（默认）或 yaml
func (a *API) ExportBackup(c *gin.Context) {
	format, err := backup.NormalizeFormat(c.Query("format"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "不支持的导出格式")
		return
	}

	doc, err := a.backups.Export(c.Request.Context())
	if err != nil {
		handleServiceError(c, err, "导出失败")
		return
	}

	var buf bytes.Buffer
	if err := backup.Encode(&buf, doc, format); err != nil {
		handleServiceError(c, err, "导出失败")
		return
	}

	contentType := "application/json; charset=utf-8"
	if format == backup.FormatYAML {
		contentType = "application/yaml; charset=utf-8"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="medtrack-%s.%s"`, a.clock.Today().Date, format))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// ImportBackup 用上传的文档整体替换存储
func (a *API) ImportBackup(c *gin.Context) {
	format := c.Query("format")
	if format == "" && strings.Contains(c.ContentType(), "yaml") {
		format = backup.FormatYAML
	}
	format, err := backup.NormalizeFormat(format)
	if err != nil {
		respondError(c, http.StatusBadRequest, "不支持的导入格式")
		return
	}

	summary, err := a.backups.ReadFrom(c.Request.Context(), c.Request.Body, format)
	if err != nil {
		handleServiceError(c, err, "导入失败")
		return
	}

	respondSuccess(c, gin.H{"imported": summary})
}
