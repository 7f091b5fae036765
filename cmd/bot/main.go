package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/open-builders/filmbank/internal/bot"
	"github.com/open-builders/filmbank/internal/common/logger"
	"github.com/open-builders/filmbank/internal/config"
	apphttp "github.com/open-builders/filmbank/internal/http"
	"github.com/open-builders/filmbank/internal/platform/redis"
	"github.com/open-builders/filmbank/internal/repository/file"
	"github.com/open-builders/filmbank/internal/service/backup"
	"github.com/open-builders/filmbank/internal/service/ledger"
	"github.com/open-builders/filmbank/internal/service/membership"
	"github.com/open-builders/filmbank/internal/service/notifications"
	"github.com/open-builders/filmbank/internal/service/riddle"
	"github.com/open-builders/filmbank/internal/service/session"
	tg "github.com/open-builders/filmbank/internal/service/telegram"
	"github.com/open-builders/filmbank/internal/service/workflow"
	"github.com/open-builders/filmbank/internal/workers"
)

func main() {
	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		logger.Init("filmbank", "info", false)
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init("filmbank", cfg.LogLevel, cfg.Debug)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Info().
		Int64("target_chat_id", cfg.Telegram.TargetChatID).
		Str("data_path", cfg.Store.DataPath).
		Msg("Starting filmbank")
	if cfg.Admin.Password == "" {
		logger.Warn().Msg("ADMIN_PASS is empty, nobody can log in")
	}
	if cfg.Backup.LocationFallback {
		logger.Error().Str("tz", cfg.Backup.TZName).Msg("Unknown time zone, backups are scheduled in UTC")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := file.NewRepository(cfg.Store.DataPath, logger.Component("store"))
	client := tg.NewClient(cfg.Telegram.BotToken, cfg.Telegram.APIBaseURL, time.Duration(cfg.Telegram.PollTimeoutSec)*time.Second, logger.Component("telegram"))

	notifier := notifications.NewService(client, notifications.Chats{
		Audit:         cfg.Chats.AuditChatID,
		AdminNotify:   cfg.Chats.AdminNotifyChatID,
		Backup:        cfg.Chats.BackupChatID,
		BackupToAudit: cfg.Backup.SendFileToAudit,
	}, logger.Component("notifications"))

	checks := map[string]apphttp.Check{
		"store": func(context.Context) error { return store.Readable() },
	}

	var wg sync.WaitGroup
	start := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	if cfg.Redis.Addr != "" {
		rdb, err := redis.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, audit lines are sent directly")
		} else {
			defer rdb.Close()
			stream := redis.NewAuditStream(rdb, cfg.Redis.AuditStream)
			notifier.WithQueue(stream)
			checks["redis"] = rdb.Healthy
			start(workers.NewAuditStreamWorker(rdb, stream.Key(), notifier, logger.Component("audit_worker")).Start)
		}
	}

	members := membership.NewService(store, notifier, cfg.GracePeriod(), logger.Component("membership"))
	ledgerSvc := ledger.NewService(store, logger.Component("ledger"))
	sessions := session.NewManager(cfg.Admin.Password, cfg.Admin.Allowlist, cfg.SessionTTL(), session.PBKDF2Verifier{}, logger.Component("session"))
	riddles := riddle.NewService(store, tg.NewPublisher(client), notifier, cfg.Telegram.TargetChatID, logger.Component("riddle"))
	engine := workflow.NewEngine(ledgerSvc, riddles, sessions, notifier, cfg.Store.PageSize, logger.Component("workflow"))
	backups := backup.NewService(store, filepath.Clean(cfg.Backup.Dir), notifier, logger.Component("backup"))

	start(workers.NewPurgeWorker(members, notifier, cfg.PurgeInterval(), logger.Component("purge_worker")).Start)
	start(workers.NewBackupWorker(backups, cfg.Backup.Hour, cfg.Backup.Minute, cfg.Backup.Location, logger.Component("backup_worker")).Start)

	if cfg.HTTP.HealthAddr != "" {
		router := apphttp.NewHealthRouter(checks, logger.Component("http"))
		start(func(ctx context.Context) {
			if err := apphttp.Serve(ctx, cfg.HTTP.HealthAddr, router, logger.Component("http")); err != nil {
				logger.Error().Err(err).Msg("Health server stopped")
			}
		})
	}

	b := bot.New(bot.Deps{
		Telegram:  client,
		Ledger:    ledgerSvc,
		Members:   members,
		Riddles:   riddles,
		Sessions:  sessions,
		Workflows: engine,
		Backups:   backups,
		Notifier:  notifier,
	}, bot.Options{
		TargetChatID: cfg.Telegram.TargetChatID,
		PageSize:     cfg.Store.PageSize,
		PollTimeout:  time.Duration(cfg.Telegram.PollTimeoutSec) * time.Second,
	}, logger.Component("bot"))

	notifier.NotifyAdmins(ctx, "✅ filmbank started")
	b.Run(ctx)

	wg.Wait()
	logger.Info().Msg("Shutdown complete")
}
