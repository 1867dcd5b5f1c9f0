package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/api"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/config"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/decision"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/logger"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/metrics"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/notifier"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/pipeline"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/recorder"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/scheduler"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/trigger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sentinel: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log.Info().Str("config", cfgPath).Msg("sentinel starting")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ledger, closeLedger, err := newLedger(cfg, log)
	if err != nil {
		return err
	}
	defer closeLedger()

	ev, err := trigger.NewEvaluator(cfg.Trigger.Thresholds(), ledger,
		trigger.WithLogger(log),
		trigger.WithObserver(m),
		trigger.WithRegimeFactors(cfg.Trigger.RegimeFactors()),
	)
	if err != nil {
		return fmt.Errorf("init evaluator: %w", err)
	}

	validator, err := decision.NewValidator(cfg.Decision)
	if err != nil {
		return fmt.Errorf("init validator: %w", err)
	}
	enhancer, err := decision.NewEnhancer(cfg.Decision)
	if err != nil {
		return fmt.Errorf("init enhancer: %w", err)
	}

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.Enabled() {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec = sr
		}
	}
	defer rec.Close()

	var tn *notifier.TelegramNotifier
	var note notifier.Notifier = notifier.Noop{}
	if cfg.Telegram.Enabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.Proxy, log)
		note = tn
	} else {
		log.Warn().Msg("telegram bot token not set, alerts are disabled")
	}

	p := pipeline.New(pipeline.Deps{
		Evaluator: ev,
		Parser:    decision.NewParser(),
		Validator: validator,
		Enhancer:  enhancer,
		Recorder:  rec,
		Notifier:  note,
		Metrics:   m,
		Log:       log,
	})

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(ctx, ev, note, m, log)
	if err := sched.RegisterAll(cfg.Schedule.PruneCron, cfg.Schedule.StatsCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, p.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(p, reg, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, stopping")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	log.Info().Msg("sentinel stopped")
	return nil
}

// newLedger picks the cooldown backend. Redis lets several replicas share cooldowns.
func newLedger(cfg *config.Config, log zerolog.Logger) (trigger.Ledger, func(), error) {
	if !cfg.Redis.Enabled {
		l, err := trigger.NewMemoryLedger(cfg.Trigger.Cooldown)
		if err != nil {
			return nil, nil, fmt.Errorf("init cooldown ledger: %w", err)
		}
		return l, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}
	l, err := trigger.NewRedisLedger(client, cfg.Redis.Prefix, cfg.Trigger.Cooldown)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("init cooldown ledger: %w", err)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis cooldown ledger")
	return l, func() { client.Close() }, nil
}
