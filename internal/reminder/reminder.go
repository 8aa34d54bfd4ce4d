// Package reminder 定时扫描今日计划，对到点且尚未记录的服药发出提醒。
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/medtrack/internal/logger"
	"github.com/medtrack/internal/service"
	"github.com/robfig/cron/v3"
)

// DefaultSpec 每分钟检查一次
const DefaultSpec = "* * * * *"

// parser 只接受标准 5 段 cron 表达式
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Notification 是一条服药提醒
type Notification struct {
	Date           string
	ScheduleID     uint
	MedicationID   uint
	MedicationName string
	Dosage         string
	Time           string
	FoodTiming     string
	Instructions   string
}

// Notifier 负责投递提醒
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// TodaySource 提供某天的计划
type TodaySource interface {
	ScheduleFor(ctx context.Context, day service.Day) ([]service.ResolvedSchedule, error)
}

// LogNotifier 以结构化日志输出提醒
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	logger.Info("medication reminder",
		"schedule_id", n.ScheduleID,
		"medication", n.MedicationName,
		"dosage", n.Dosage,
		"time", n.Time,
		"food_timing", n.FoodTiming,
		"instructions", n.Instructions,
	)
	return nil
}

// Options 配置提醒任务
type Options struct {
	Spec     string
	Location *time.Location
	Now      func() time.Time
}

// Reminder 按 cron 表达式周期执行 Check
// 同一计划同一天最多提醒一次
type Reminder struct {
	source   TodaySource
	notifier Notifier
	spec     string
	loc      *time.Location
	now      func() time.Time

	mu       sync.Mutex
	sentDate string
	sent     map[uint]struct{}
	cron     *cron.Cron
}

// New 构造 Reminder，cron 表达式非法时返回错误
func New(source TodaySource, notifier Notifier, opts Options) (*Reminder, error) {
	if opts.Spec == "" {
		opts.Spec = DefaultSpec
	}
	if _, err := parser.Parse(opts.Spec); err != nil {
		return nil, fmt.Errorf("invalid reminder spec %q: %w", opts.Spec, err)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}

	return &Reminder{
		source:   source,
		notifier: notifier,
		spec:     opts.Spec,
		loc:      opts.Location,
		now:      opts.Now,
		sent:     map[uint]struct{}{},
	}, nil
}

// Check 执行一次扫描，返回本次发送的提醒数量
func (r *Reminder) Check(ctx context.Context) (int, error) {
	now := r.now().In(r.loc)
	day := service.DayOf(now)
	clock := now.Format("15:04")

	items, err := r.source.ScheduleFor(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("resolve schedule: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sentDate != day.Date {
		r.sentDate = day.Date
		r.sent = map[uint]struct{}{}
	}

	count := 0
	for _, item := range items {
		if item.Status != service.StatusPending || item.Time != clock {
			continue
		}
		if _, done := r.sent[item.ScheduleID]; done {
			continue
		}

		n := Notification{
			Date:           day.Date,
			ScheduleID:     item.ScheduleID,
			MedicationID:   item.MedicationID,
			MedicationName: item.MedicationName,
			Dosage:         item.Dosage,
			Time:           item.Time,
			FoodTiming:     item.FoodTiming,
			Instructions:   item.SpecialInstructions,
		}
		if err := r.notifier.Notify(ctx, n); err != nil {
			logger.Warn("reminder delivery failed", "schedule_id", item.ScheduleID, "error", err)
			continue
		}
		r.sent[item.ScheduleID] = struct{}{}
		count++
	}
	return count, nil
}

// Start 启动 cron 任务，ctx 取消时自动停止
func (r *Reminder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cron != nil {
		r.mu.Unlock()
		return fmt.Errorf("reminder already started")
	}
	c := cron.New(cron.WithParser(parser), cron.WithLocation(r.loc))
	r.cron = c
	r.mu.Unlock()

	if _, err := c.AddFunc(r.spec, func() {
		if n, err := r.Check(ctx); err != nil {
			logger.Error("reminder check failed", "error", err)
		} else if n > 0 {
			logger.Debug("reminders sent", "count", n)
		}
	}); err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}

	c.Start()
	logger.Info("reminders started", "spec", r.spec, "timezone", r.loc.String())

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop 停止 cron 任务并等待进行中的检查结束
func (r *Reminder) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	logger.Debug("reminders stopped")
}
