package service

import (
	"sort"

	"github.com/medtrack/internal/db"
)

// DefaultRefillThreshold 是未指定阈值时的补药提醒阈值
const DefaultRefillThreshold = 7

// RefillAlerts 返回剩余量在 (0, threshold] 区间内的药品，剩余最少的排在最前。
// 剩余为 0 属于"已用完"，不在此列，见 OutOfStock。
func RefillAlerts(medications []db.Medication, threshold float64) []db.Medication {
	out := make([]db.Medication, 0)
	for _, m := range medications {
		if m.RemainingQuantity == nil {
			continue
		}
		remaining := *m.RemainingQuantity
		if remaining > 0 && remaining <= threshold {
			out = append(out, m)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].RemainingQuantity < *out[j].RemainingQuantity
	})
	return out
}

// OutOfStock 返回已追踪库存且剩余恰好为 0 的药品
func OutOfStock(medications []db.Medication) []db.Medication {
	out := make([]db.Medication, 0)
	for _, m := range medications {
		if m.RemainingQuantity != nil && *m.RemainingQuantity == 0 {
			out = append(out, m)
		}
	}
	return out
}
