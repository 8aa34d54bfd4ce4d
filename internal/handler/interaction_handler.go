package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medtrack/internal/service"
)

type interactionPayload struct {
	Medication1ID  uint   `json:"medication1_id"`
	Medication2ID  uint   `json:"medication2_id"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// ListInteractions 返回相互作用，可按 medication_id 过滤
func (a *API) ListInteractions(c *gin.Context) {
	medicationID, err := parseUintQuery(c, "medication_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的药品ID")
		return
	}

	views, err := a.interactions.List(c.Request.Context(), medicationID)
	if err != nil {
		handleServiceError(c, err, "获取相互作用失败")
		return
	}

	items := make([]gin.H, 0, len(views))
	for _, v := range views {
		items = append(items, interactionToPayload(v))
	}
	c.JSON(http.StatusOK, gin.H{"interactions": items})
}

// CreateInteraction 新建相互作用
func (a *API) CreateInteraction(c *gin.Context) {
	var payload interactionPayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}

	item, err := a.interactions.Create(c.Request.Context(), service.InteractionInput{
		Medication1ID:  payload.Medication1ID,
		Medication2ID:  payload.Medication2ID,
		Severity:       payload.Severity,
		Description:    payload.Description,
		Recommendation: payload.Recommendation,
	})
	if err != nil {
		handleServiceError(c, err, "创建相互作用失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": item.ID})
}

// DeleteInteraction 删除相互作用
func (a *API) DeleteInteraction(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的相互作用ID")
		return
	}

	if err := a.interactions.Delete(c.Request.Context(), id); err != nil {
		handleServiceError(c, err, "删除相互作用失败")
		return
	}

	respondSuccess(c, nil)
}
