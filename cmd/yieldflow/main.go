package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"YieldFlow/internal/claim"
	"YieldFlow/internal/config"
	"YieldFlow/internal/logger"
	"YieldFlow/internal/metrics"
	"YieldFlow/internal/notifier"
	"YieldFlow/internal/position"
	"YieldFlow/internal/rate"
	"YieldFlow/internal/recorder"
	"YieldFlow/internal/scheduler"
	"YieldFlow/internal/transfer"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFlag := flag.String("config", "configs/config.yaml", "path to the YAML config (or set CONFIG_PATH env var)")
	envFileFlag := flag.String("env-file", ".env", "optional dotenv file loaded before the config")
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	runOnStartFlag := flag.Bool("run-on-start", false, "run one payout sweep immediately (or set RUN_ON_START=true)")
	flag.Parse()

	if err := godotenv.Load(*envFileFlag); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envFileFlag, err)
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		*configFlag = v
	}
	if os.Getenv("RUN_ON_START") == "true" {
		*runOnStartFlag = true
	}

	log := logger.New(*verboseFlag)
	log.Info("yieldflow starting", "version", version, "commit", commit)

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	rates, err := newRateSource(cfg)
	if err != nil {
		return err
	}
	log.Info("rate source", "name", rates.Name())

	store, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("open position store: %w", err)
	}
	defer store.Close()

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(log, cfg.Database.SQLitePath)
		if err != nil {
			log.Warn("init sqlite recorder failed, using noop", "error", err)
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	var exec transfer.Executor
	if cfg.Escrow.DryRun {
		exec = transfer.DryRun{Log: log}
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.Escrow.LedgerPath), 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
		ledger, err := transfer.OpenLedger(log, cfg.Escrow.LedgerPath, cfg.EscrowAccount(), cfg.Escrow.InitialBalance)
		if err != nil {
			return fmt.Errorf("open escrow ledger: %w", err)
		}
		defer ledger.Close()
		exec = ledger
	}
	orch, err := claim.New(claim.Config{
		Escrow:      cfg.EscrowAccount(),
		FeesEnabled: cfg.Fees.Enabled,
		FeeRateBps:  cfg.Fees.RateBps,
	}, exec)
	if err != nil {
		return fmt.Errorf("init claim orchestrator: %w", err)
	}

	mgr, err := position.NewManager(position.Config{
		Logger:   log,
		Store:    store,
		Rates:    rates,
		Claims:   orch,
		Recorder: rec,
	})
	if err != nil {
		return err
	}

	var (
		notify notifier.Notifier = notifier.LogNotifier{Log: log}
		tn     *notifier.TelegramNotifier
	)
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(log, cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		notify = tn
	}

	if cfg.Metrics.Addr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go serveMetrics(log, cfg.Metrics.Addr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.NewScheduler(scheduler.Config{
		Logger:           log,
		Manager:          mgr,
		Rates:            rates,
		Notifier:         notify,
		Recorder:         rec,
		NearThresholdPct: cfg.Schedule.NearThresholdPct,
		Projection: notifier.Projection{
			RateBps: cfg.Projection.RateBps,
			Periods: cfg.Projection.Periods,
			Label:   cfg.Projection.Label,
		},
	})
	if err := sched.RegisterAll(ctx, cfg.Schedule.SweepCron, cfg.Schedule.ReportCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	if *runOnStartFlag {
		log.Info("run-on-start enabled, sweeping now")
		go func() {
			if _, err := sched.Sweep(ctx); err != nil {
				log.Error("initial sweep failed", "error", err)
			}
		}()
	}

	log.Info("yieldflow is running, press Ctrl+C to stop")
	<-ctx.Done()
	log.Info("shutdown signal received, stopping")
	return nil
}

func newRateSource(cfg *config.Config) (rate.Source, error) {
	switch cfg.Rate.Source {
	case config.RateSourceSolana:
		return rate.NewSolanaSource(cfg.Rate.RPCURL, cfg.StateAccount(), cfg.Rate.PriceOffset), nil
	case config.RateSourceMock:
		return rate.NewMockSource(cfg.Rate.MockRate), nil
	case config.RateSourceHTTP:
		return rate.NewHTTPSource(cfg.Rate.APIURL, cfg.Proxy), nil
	default:
		return nil, fmt.Errorf("unknown rate source %q", cfg.Rate.Source)
	}
}

func newStore(cfg *config.Config) (position.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, err
	}
	if cfg.Store.Kind == config.StoreFile {
		return position.NewFileStore(cfg.Store.Path)
	}
	return position.NewBoltStore(cfg.Store.Path, nil)
}

func serveMetrics(log *slog.Logger, addr string) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("failed to start prometheus metrics server listener", "error", err)
		return
	}
	log.Info("prometheus metrics server listening", "address", listener.Addr().String())
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("prometheus metrics server stopped", "error", err)
	}
}
