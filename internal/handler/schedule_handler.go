package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/service"
)

type schedulePayload struct {
	MedicationID        uint    `json:"medication_id"`
	Time                *string `json:"time"`
	Frequency           *string `json:"frequency"`
	DaysOfWeek          *string `json:"days_of_week"`
	StartDate           *string `json:"start_date"`
	EndDate             *string `json:"end_date"`
	FoodTiming          *string `json:"food_timing"`
	WithFood            *bool   `json:"with_food"`
	SpecialInstructions *string `json:"special_instructions"`
	Active              *bool   `json:"active"`
}

// foodTiming 兼容旧客户端提交的 with_food 布尔字段
func (p schedulePayload) foodTiming() *string {
	if p.FoodTiming != nil {
		return p.FoodTiming
	}
	if p.WithFood != nil {
		v := db.FoodTimingFromLegacy(*p.WithFood)
		return &v
	}
	return nil
}

func (p schedulePayload) input() service.ScheduleInput {
	return service.ScheduleInput{
		MedicationID:        p.MedicationID,
		Time:                deref(p.Time),
		Frequency:           deref(p.Frequency),
		DaysOfWeek:          deref(p.DaysOfWeek),
		StartDate:           deref(p.StartDate),
		EndDate:             deref(p.EndDate),
		FoodTiming:          deref(p.foodTiming()),
		SpecialInstructions: deref(p.SpecialInstructions),
		Active:              p.Active,
	}
}

func (p schedulePayload) patch() service.SchedulePatch {
	return service.SchedulePatch{
		Time:                p.Time,
		Frequency:           p.Frequency,
		DaysOfWeek:          p.DaysOfWeek,
		StartDate:           p.StartDate,
		EndDate:             p.EndDate,
		FoodTiming:          p.foodTiming(),
		SpecialInstructions: p.SpecialInstructions,
		Active:              p.Active,
	}
}

// ListSchedules 返回计划列表，支持 medication_id 与 active_only
func (a *API) ListSchedules(c *gin.Context) {
	medicationID, err := parseUintQuery(c, "medication_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的药品ID")
		return
	}

	views, err := a.schedules.List(c.Request.Context(), service.ScheduleFilter{
		MedicationID: medicationID,
		ActiveOnly:   parseBoolQuery(c, "active_only"),
	})
	if err != nil {
		handleServiceError(c, err, "获取服药计划失败")
		return
	}

	items := make([]gin.H, 0, len(views))
	for _, v := range views {
		items = append(items, scheduleViewToPayload(v))
	}
	c.JSON(http.StatusOK, gin.H{"schedules": items})
}

// GetSchedule 返回单个计划
func (a *API) GetSchedule(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的计划ID")
		return
	}

	view, err := a.schedules.Get(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err, "获取服药计划失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"schedule": scheduleViewToPayload(*view)})
}

// CreateSchedule 新建计划
func (a *API) CreateSchedule(c *gin.Context) {
	var payload schedulePayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}

	sc, err := a.schedules.Create(c.Request.Context(), payload.input())
	if err != nil {
		handleServiceError(c, err, "创建服药计划失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": sc.ID, "schedule": scheduleToPayload(*sc)})
}

// UpdateSchedule 部分更新计划
func (a *API) UpdateSchedule(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的计划ID")
		return
	}

	var payload schedulePayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}

	sc, err := a.schedules.Update(c.Request.Context(), id, payload.patch())
	if err != nil {
		handleServiceError(c, err, "更新服药计划失败")
		return
	}

	respondSuccess(c, gin.H{"schedule": scheduleToPayload(*sc)})
}

// DeleteSchedule 删除计划
func (a *API) DeleteSchedule(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的计划ID")
		return
	}

	if err := a.schedules.Delete(c.Request.Context(), id); err != nil {
		handleServiceError(c, err, "删除服药计划失败")
		return
	}

	respondSuccess(c, nil)
}
