package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/medtrack/internal/config"
	"github.com/medtrack/internal/db"
	"github.com/medtrack/internal/logger"
	"github.com/medtrack/internal/service"
	"github.com/medtrack/internal/store"
	"github.com/medtrack/internal/store/gormstore"
)

// 演示数据生成器
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("加载配置失败", "error", err)
		os.Exit(1)
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)

	gdb, err := db.Open(db.Options{Driver: cfg.DatabaseDriver, Path: cfg.DatabasePath, DSN: cfg.DatabaseDSN, Silent: true})
	if err != nil {
		logger.Error("数据库初始化失败", "error", err)
		os.Exit(1)
	}
	s := gormstore.New(gdb)
	defer s.Close()

	fmt.Println("开始生成演示数据...")

	if err := db.EnsureUser(gdb, "admin", "admin123"); err != nil {
		logger.Error("创建管理员失败", "error", err)
		os.Exit(1)
	}

	summary, err := seedDemoData(context.Background(), s, service.NewClock(nil, cfg.Location))
	if err != nil {
		logger.Error("生成演示数据失败", "error", err)
		os.Exit(1)
	}
	if summary.Skipped {
		fmt.Println("药品已存在，跳过创建")
		return
	}

	fmt.Println("演示数据生成完成！")
	fmt.Println("用户: admin (密码: admin123)")
	fmt.Printf("药品: %d 种，服药计划: %d 条，服药记录: %d 条，相互作用: %d 条\n",
		summary.Medications, summary.Schedules, summary.Logs, summary.Interactions)
}

type seedSummary struct {
	Skipped      bool
	Medications  int
	Schedules    int
	Logs         int
	Interactions int
}

type demoMedication struct {
	input     service.MedicationInput
	schedules []service.ScheduleInput
}

func quantity(v float64) *float64 { return &v }

func demoMedications(startDate string) []demoMedication {
	return []demoMedication{
		{
			input: service.MedicationInput{
				Name:              "Lisinopril",
				Dosage:            "10mg",
				Form:              "tablet",
				Purpose:           "高血压",
				PrescribingDoctor: "Dr. Chen",
				SideEffects:       "干咳、头晕",
				Notes:             "**早饭后**服用，避免补钾。",
				TotalQuantity:     quantity(30),
			},
			schedules: []service.ScheduleInput{
				{Time: "08:00", Frequency: db.FrequencyDaily, StartDate: startDate, FoodTiming: db.FoodTimingAfter},
			},
		},
		{
			input: service.MedicationInput{
				Name:          "Metformin",
				Dosage:        "500mg",
				Form:          "tablet",
				Purpose:       "2 型糖尿病",
				TotalQuantity: quantity(60),
			},
			schedules: []service.ScheduleInput{
				{Time: "08:00", Frequency: db.FrequencyDaily, StartDate: startDate, FoodTiming: db.FoodTimingAfter},
				{Time: "19:00", Frequency: db.FrequencyDaily, StartDate: startDate, FoodTiming: db.FoodTimingAfter},
			},
		},
		{
			input: service.MedicationInput{
				Name:          "Vitamin D3",
				Dosage:        "1000IU",
				Form:          "capsule",
				Purpose:       "补充维生素 D",
				TotalQuantity: quantity(5),
			},
			schedules: []service.ScheduleInput{
				{Time: "09:00", Frequency: db.FrequencyWeekly, DaysOfWeek: "Mon,Wed,Fri", StartDate: startDate, FoodTiming: db.FoodTimingNone},
			},
		},
		{
			input: service.MedicationInput{
				Name:    "Ibuprofen",
				Dosage:  "200mg",
				Form:    "tablet",
				Purpose: "止痛",
				Notes:   "需要时服用，每日不超过 6 片。",
			},
			schedules: []service.ScheduleInput{
				{Time: "12:00", Frequency: db.FrequencyAsNeeded, StartDate: startDate, SpecialInstructions: "疼痛时服用"},
			},
		},
	}
}

// seedDemoData 写入演示用药品、计划、最近一周的服药记录和一条相互作用；已有药品时不做任何写入
func seedDemoData(ctx context.Context, s store.Store, clock service.Clock) (seedSummary, error) {
	var summary seedSummary

	existing, err := s.Medications(ctx, store.MedicationQuery{})
	if err != nil {
		return summary, fmt.Errorf("list medications: %w", err)
	}
	if len(existing) > 0 {
		summary.Skipped = true
		return summary, nil
	}

	medications := service.NewMedicationService(s, clock, service.NewNotesRenderer())
	schedules := service.NewScheduleService(s, clock)
	intake := service.NewIntakeService(s, clock)
	interactions := service.NewInteractionService(s, clock)

	now := clock.Now()
	startDate := now.AddDate(0, 0, -14).Format("2006-01-02")

	ids := make(map[string]uint)
	for _, demo := range demoMedications(startDate) {
		med, err := medications.Create(ctx, demo.input)
		if err != nil {
			return summary, fmt.Errorf("create medication %s: %w", demo.input.Name, err)
		}
		ids[med.Name] = med.ID
		summary.Medications++

		for _, in := range demo.schedules {
			in.MedicationID = med.ID
			sc, err := schedules.Create(ctx, in)
			if err != nil {
				return summary, fmt.Errorf("create schedule for %s: %w", med.Name, err)
			}
			summary.Schedules++

			if sc.Frequency != db.FrequencyDaily {
				continue
			}
			n, err := seedDailyLogs(ctx, intake, sc, now)
			if err != nil {
				return summary, err
			}
			summary.Logs += n
		}
	}

	if _, err := interactions.Create(ctx, service.InteractionInput{
		Medication1ID:  ids["Lisinopril"],
		Medication2ID:  ids["Ibuprofen"],
		Severity:       "moderate",
		Description:    "NSAIDs 可能减弱 ACE 抑制剂的降压效果",
		Recommendation: "合用时监测血压，尽量缩短布洛芬疗程",
	}); err != nil {
		return summary, fmt.Errorf("create interaction: %w", err)
	}
	summary.Interactions++

	return summary, nil
}

// seedDailyLogs 为每日计划补写过去 7 天的记录，每隔几天制造一次漏服或跳过
func seedDailyLogs(ctx context.Context, intake *service.IntakeService, sc *db.Schedule, now time.Time) (int, error) {
	hour, minute := 8, 0
	fmt.Sscanf(sc.Time, "%d:%d", &hour, &minute)

	count := 0
	for daysAgo := 7; daysAgo >= 1; daysAgo-- {
		day := now.AddDate(0, 0, -daysAgo)
		takenAt := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())

		status := db.LogStatusTaken
		switch {
		case daysAgo%5 == 0:
			status = db.LogStatusMissed
		case daysAgo%6 == 0:
			status = db.LogStatusSkipped
		}

		if _, err := intake.LogIntake(ctx, service.LogInput{
			MedicationID: sc.MedicationID,
			ScheduleID:   &sc.ID,
			Status:       status,
			TakenAt:      &takenAt,
		}); err != nil {
			return count, fmt.Errorf("log intake for schedule %d: %w", sc.ID, err)
		}
		count++
	}
	return count, nil
}
