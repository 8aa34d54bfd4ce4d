package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// TodaySchedule 返回今日计划及服药状态
func (a *API) TodaySchedule(c *gin.Context) {
	day := a.clock.Today()
	items, err := a.insights.ScheduleFor(c.Request.Context(), day)
	if err != nil {
		handleServiceError(c, err, "获取今日计划失败")
		return
	}

	payload := make([]gin.H, 0, len(items))
	for _, item := range items {
		payload = append(payload, resolvedToPayload(item))
	}
	c.JSON(http.StatusOK, gin.H{"date": day.Date, "weekday": day.Weekday, "schedule": payload})
}

// RefillAlerts 返回需要补药的药品，threshold 缺省为配置值
func (a *API) RefillAlerts(c *gin.Context) {
	var threshold *float64
	if raw := strings.TrimSpace(c.Query("threshold")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的阈值")
			return
		}
		threshold = &v
	}

	meds, err := a.insights.RefillAlerts(c.Request.Context(), threshold)
	if err != nil {
		handleServiceError(c, err, "获取补药提醒失败")
		return
	}

	effective := a.insights.RefillThreshold()
	if threshold != nil {
		effective = *threshold
	}
	c.JSON(http.StatusOK, gin.H{"threshold": effective, "medications": medicationsToPayload(meds)})
}

// OutOfStock 返回已用完的药品
func (a *API) OutOfStock(c *gin.Context) {
	meds, err := a.insights.OutOfStock(c.Request.Context())
	if err != nil {
		handleServiceError(c, err, "获取缺药列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"medications": medicationsToPayload(meds)})
}

// AdherenceStats 返回依从率统计，days 缺省为 30
func (a *API) AdherenceStats(c *gin.Context) {
	days, err := parseIntQuery(c, "days")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的天数")
		return
	}
	medicationID, err := parseUintQuery(c, "medication_id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的药品ID")
		return
	}

	report, err := a.insights.Adherence(c.Request.Context(), days, medicationID)
	if err != nil {
		handleServiceError(c, err, "获取依从率失败")
		return
	}

	stats := make([]gin.H, 0, len(report.Stats))
	for _, s := range report.Stats {
		stats = append(stats, statsToPayload(s))
	}
	c.JSON(http.StatusOK, gin.H{
		"period_days": report.PeriodDays,
		"start_date":  report.StartDate,
		"stats":       stats,
	})
}
