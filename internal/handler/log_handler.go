package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medtrack/internal/service"
)

type logPayload struct {
	MedicationID uint   `json:"medication_id"`
	ScheduleID   *uint  `json:"schedule_id"`
	Status       string `json:"status"`
	Notes        string `json:"notes"`
	TakenAt      string `json:"taken_at"`
}

// ListLogs 返回服药历史，新记录在前
func (a *API) ListLogs(c *gin.Context) {
	medicationID, err := parseUintQuery(c, "medication_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的药品ID")
		return
	}
	limit, err := parseIntQuery(c, "limit")
	if err != nil || limit < 0 {
		respondError(c, http.StatusBadRequest, "无效的 limit")
		return
	}

	entries, err := a.intake.History(c.Request.Context(), service.HistoryFilter{MedicationID: medicationID, Limit: limit})
	if err != nil {
		handleServiceError(c, err, "获取服药记录失败")
		return
	}

	items := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		items = append(items, logEntryToPayload(e))
	}
	c.JSON(http.StatusOK, gin.H{"logs": items})
}

// CreateLog 记录一次服药，taken 时扣减库存
func (a *API) CreateLog(c *gin.Context) {
	var payload logPayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}

	input := service.LogInput{
		MedicationID: payload.MedicationID,
		ScheduleID:   payload.ScheduleID,
		Status:       payload.Status,
		Notes:        payload.Notes,
	}
	if raw := strings.TrimSpace(payload.TakenAt); raw != "" {
		takenAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "taken_at 需为 RFC3339 时间")
			return
		}
		input.TakenAt = &takenAt
	}

	entry, err := a.intake.LogIntake(c.Request.Context(), input)
	if err != nil {
		handleServiceError(c, err, "记录服药失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": entry.ID, "log": logToPayload(*entry)})
}
