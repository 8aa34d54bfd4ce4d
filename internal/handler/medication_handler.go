package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medtrack/internal/service"
)

type medicationPayload struct {
	Name              *string  `json:"name"`
	Dosage            *string  `json:"dosage"`
	Form              *string  `json:"form"`
	Purpose           *string  `json:"purpose"`
	PrescribingDoctor *string  `json:"prescribing_doctor"`
	PrescriptionDate  *string  `json:"prescription_date"`
	SideEffects       *string  `json:"side_effects"`
	Notes             *string  `json:"notes"`
	TotalQuantity     *float64 `json:"total_quantity"`
	RemainingQuantity *float64 `json:"remaining_quantity"`
}

type quantityPayload struct {
	QuantityChange *float64 `json:"quantity_change"`
	IsRefill       bool     `json:"is_refill"`
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func (p medicationPayload) input() service.MedicationInput {
	return service.MedicationInput{
		Name:              deref(p.Name),
		Dosage:            deref(p.Dosage),
		Form:              deref(p.Form),
		Purpose:           deref(p.Purpose),
		PrescribingDoctor: deref(p.PrescribingDoctor),
		PrescriptionDate:  deref(p.PrescriptionDate),
		SideEffects:       deref(p.SideEffects),
		Notes:             deref(p.Notes),
		TotalQuantity:     p.TotalQuantity,
		RemainingQuantity: p.RemainingQuantity,
	}
}

func (p medicationPayload) patch() service.MedicationPatch {
	return service.MedicationPatch{
		Name:              p.Name,
		Dosage:            p.Dosage,
		Form:              p.Form,
		Purpose:           p.Purpose,
		PrescribingDoctor: p.PrescribingDoctor,
		PrescriptionDate:  p.PrescriptionDate,
		SideEffects:       p.SideEffects,
		Notes:             p.Notes,
		TotalQuantity:     p.TotalQuantity,
		RemainingQuantity: p.RemainingQuantity,
	}
}

// ListMedications 返回药品列表，支持 search 与 active_only
func (a *API) ListMedications(c *gin.Context) {
	meds, err := a.medications.List(c.Request.Context(), service.MedicationFilter{
		Search:     c.Query("search"),
		ActiveOnly: parseBoolQuery(c, "active_only"),
	})
	if err != nil {
		handleServiceError(c, err, "获取药品列表失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"medications": medicationsToPayload(meds)})
}

// GetMedication 返回药品详情、计划与最近服药记录
func (a *API) GetMedication(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的药品ID")
		return
	}

	detail, err := a.medications.Get(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err, "获取药品失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"medication": medicationDetailToPayload(*detail)})
}

// CreateMedication 新建药品
func (a *API) CreateMedication(c *gin.Context) {
	var payload medicationPayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}

	med, err := a.medications.Create(c.Request.Context(), payload.input())
	if err != nil {
		handleServiceError(c, err, "创建药品失败")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": med.ID, "medication": medicationToPayload(*med)})
}

// UpdateMedication 部分更新药品
func (a *API) UpdateMedication(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的药品ID")
		return
	}

	var payload medicationPayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}

	med, err := a.medications.Update(c.Request.Context(), id, payload.patch())
	if err != nil {
		handleServiceError(c, err, "更新药品失败")
		return
	}

	respondSuccess(c, gin.H{"medication": medicationToPayload(*med)})
}

// DeleteMedication 删除药品及其计划与服药记录
func (a *API) DeleteMedication(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的药品ID")
		return
	}

	if err := a.medications.Delete(c.Request.Context(), id); err != nil {
		handleServiceError(c, err, "删除药品失败")
		return
	}

	respondSuccess(c, nil)
}

// UpdateQuantity 调整剩余量，is_refill 时补药次数加一
func (a *API) UpdateQuantity(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的药品ID")
		return
	}

	var payload quantityPayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}
	if payload.QuantityChange == nil {
		respondError(c, http.StatusBadRequest, "缺少 quantity_change")
		return
	}

	med, err := a.medications.UpdateQuantity(c.Request.Context(), id, *payload.QuantityChange, payload.IsRefill)
	if err != nil {
		handleServiceError(c, err, "更新库存失败")
		return
	}

	respondSuccess(c, gin.H{
		"remaining_quantity": med.RemainingQuantity,
		"refill_count":       med.RefillCount,
	})
}
