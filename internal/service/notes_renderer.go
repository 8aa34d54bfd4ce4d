package service

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// NotesRenderer 将药品备注、副作用与服药说明中的 Markdown 渲染为安全 HTML
type NotesRenderer struct {
	markdown  goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// NewNotesRenderer 使用 GFM 扩展与 UGC 白名单策略
func NewNotesRenderer() *NotesRenderer {
	return &NotesRenderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
		),
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// Render 返回净化后的 HTML，空内容返回空字符串
func (r *NotesRenderer) Render(source string) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(source), &buf); err != nil {
		return r.sanitizer.Sanitize(source)
	}
	return r.sanitizer.Sanitize(buf.String())
}
