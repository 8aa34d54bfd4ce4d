package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medtrack/internal/handler"
	"github.com/medtrack/internal/logger"
	"github.com/medtrack/internal/reminder"
	"github.com/medtrack/internal/router"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var noReminders bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and dose reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.GinMode != "" {
				gin.SetMode(cfg.GinMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, gdb, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			photos, err := newPhotoStore(ctx, cfg)
			if err != nil {
				return err
			}
			auth, err := newAuthenticator(cfg, gdb)
			if err != nil {
				return err
			}

			clock := newClock(cfg)
			api := handler.NewAPI(s, handler.Options{
				Clock:           clock,
				RefillThreshold: cfg.RefillThreshold,
				Photos:          photos,
				Auth:            auth,
			})

			if cfg.RemindersEnabled && !noReminders {
				r, err := reminder.New(api.Insights(), reminder.LogNotifier{}, reminder.Options{
					Spec:     cfg.ReminderSpec,
					Location: cfg.Location,
				})
				if err != nil {
					return err
				}
				if err := r.Start(ctx); err != nil {
					return err
				}
				defer r.Stop()
			}

			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           router.SetupRouter(api, cfg),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server listening", "addr", cfg.ListenAddr, "auth", api.AuthEnabled(), "photo_store", cfg.PhotoStore)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&noReminders, "no-reminders", false, "disable dose reminders")
	return cmd
}
