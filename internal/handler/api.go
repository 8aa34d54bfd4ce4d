package handler

import (
	"github.com/medtrack/internal/backup"
	"github.com/medtrack/internal/photo"
	"github.com/medtrack/internal/service"
	"github.com/medtrack/internal/store"
)

// API 汇集 HTTP 处理器共用的服务
type API struct {
	medications  *service.MedicationService
	schedules    *service.ScheduleService
	intake       *service.IntakeService
	insights     *service.InsightService
	interactions *service.InteractionService
	photos       *service.PhotoService
	backups      *backup.Service
	auth         Authenticator
	clock        service.Clock
}

// Options 描述可选依赖；Photos 为空时照片接口返回 503，Auth 为空时不启用登录
type Options struct {
	Clock           service.Clock
	RefillThreshold float64
	Photos          photo.Store
	Auth            Authenticator
}

// NewAPI 基于同一存储构造全部服务
func NewAPI(s store.Store, opts Options) *API {
	notes := service.NewNotesRenderer()
	medications := service.NewMedicationService(s, opts.Clock, notes)

	api := &API{
		medications:  medications,
		schedules:    service.NewScheduleService(s, opts.Clock),
		intake:       service.NewIntakeService(s, opts.Clock),
		insights:     service.NewInsightService(s, opts.Clock, opts.RefillThreshold),
		interactions: service.NewInteractionService(s, opts.Clock),
		backups:      backup.NewService(s),
		auth:         opts.Auth,
		clock:        opts.Clock,
	}
	if opts.Photos != nil {
		api.photos = service.NewPhotoService(opts.Photos, medications)
	}
	return api
}

// Insights 供提醒任务读取今日计划
func (a *API) Insights() *service.InsightService {
	return a.insights
}

// AuthEnabled 表示是否需要登录才能访问 API
func (a *API) AuthEnabled() bool {
	return a.auth != nil
}
