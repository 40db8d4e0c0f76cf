package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sadopc/opsdeck/internal/config"
	"github.com/sadopc/opsdeck/internal/invite"
	"github.com/sadopc/opsdeck/internal/notify"
	"github.com/sadopc/opsdeck/internal/store"
	"github.com/sadopc/opsdeck/internal/tui"
)

const toastLimit = 50

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Println("opsdeck reads its configuration from the environment:")
		fmt.Println(config.Usage())
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := setupLogger(cfg.App.Env, cfg.Log.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	log.WithField("env", cfg.App.Env).Info("starting")

	s, err := store.New(cfg.DB.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if err := seedAdmin(s, cfg.Admin, log); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	center := notify.NewCenter(notify.RecorderFunc(func(userID int64, title, description, variant string) error {
		_, err := s.AddNotification(userID, title, description, variant)
		return err
	}), log, toastLimit)

	svc := invite.NewService(s, invite.LogMailer{Log: log}, cfg.Auth.ResetTTL.Duration(), log)

	if cfg.Invite.Addr != "" {
		gin.SetMode(gin.ReleaseMode)
		router := invite.NewRouter(invite.NewHandler(svc, s, log), cfg.Invite.AllowOrigins)
		srv := invite.NewServer(cfg.Invite.Addr, router)
		go func() {
			log.WithField("addr", cfg.Invite.Addr).Info("invite endpoint listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("invite endpoint stopped")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	exportDir, err := os.UserHomeDir()
	if err != nil {
		exportDir = "."
	}

	app := tui.NewApp(tui.Options{
		Store:       s,
		Center:      center,
		Inviter:     svc,
		SessionTTL:  cfg.Auth.SessionTTL.Duration(),
		ExportDir:   exportDir,
		Log:         log,
		HorizonDays: cfg.Reports.ExpiryHorizonDays,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		log.WithError(err).Error("program exited")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	log.Info("stopped")
}

// setupLogger writes to a file in every environment since the terminal
// belongs to the TUI.
func setupLogger(env, path string) (*logrus.Entry, func(), error) {
	log := logrus.New()

	logFile, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	log.SetOutput(logFile)
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})

	switch env {
	case config.EnvLocal:
		log.SetLevel(logrus.DebugLevel)
	case config.EnvDev:
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetLevel(logrus.WarnLevel)
	}

	return logrus.NewEntry(log), func() { _ = logFile.Close() }, nil
}

func seedAdmin(s *store.Store, admin config.AdminConfig, log logrus.FieldLogger) error {
	if admin.Email == "" {
		return nil
	}
	users, err := s.ListUsers()
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	if _, err := s.Register(admin.Email, admin.Password, "Administrator", store.RoleAdmin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	log.WithField("email", admin.Email).Info("seeded admin account")
	return nil
}
