package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tickgrid/tickgrid/internal/clock"
	"github.com/tickgrid/tickgrid/internal/interval"
	"github.com/tickgrid/tickgrid/internal/model"
	"github.com/tickgrid/tickgrid/internal/monitor"
	"github.com/tickgrid/tickgrid/internal/publisher"
	"github.com/tickgrid/tickgrid/internal/runner"
	"github.com/tickgrid/tickgrid/internal/sampler"
	"github.com/tickgrid/tickgrid/internal/schedule"
	"github.com/tickgrid/tickgrid/internal/storage"
)

// scheduleConfig is one entry of the "schedules" list in config.yaml.
type scheduleConfig struct {
	Name   string `mapstructure:"name"`
	Unit   string `mapstructure:"unit"`
	Period uint16 `mapstructure:"period"`
	Offset uint16 `mapstructure:"offset"`
	Job    string `mapstructure:"job"`
}

func main() {
	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		logger.Fatal("Failed to read config file", zap.Error(err))
	}

	// Gate scheduling on clock sync when configured. Before min_valid the
	// time source reports the unavailable sentinel and job loops hold off.
	src := clock.SystemSource{}
	if minValid := viper.GetString("clock.min_valid"); minValid != "" {
		at, err := time.Parse(time.RFC3339, minValid)
		if err != nil {
			logger.Fatal("Invalid clock.min_valid", zap.Error(err))
		}
		src.MinValid = at
	}
	clock.Default = src

	// Connect to NATS
	opts := []nats.Option{
		nats.Name(viper.GetString("app.name")),
		nats.MaxReconnects(viper.GetInt("nats.max_reconnects")),
		nats.ReconnectWait(viper.GetDuration("nats.reconnect_wait")),
		nats.Timeout(viper.GetDuration("nats.connect_timeout")),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS connection error", zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
	}

	// Connect with retry
	var nc *nats.Conn
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(viper.GetString("nats.urls.0"), opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
	}
	defer nc.Close()

	logger.Info("Connected to NATS successfully",
		zap.String("url", nc.ConnectedUrl()))

	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("Failed to create JetStream context", zap.Error(err))
	}

	// Create tick history storage
	history, err := storage.NewSQLiteTickHistory(logger, viper.GetString("history.path"))
	if err != nil {
		logger.Fatal("Failed to create tick history storage", zap.Error(err))
	}
	defer history.Close()

	// Create tick publisher
	pub, err := publisher.NewTickPublisher(js, logger)
	if err != nil {
		logger.Fatal("Failed to create tick publisher", zap.Error(err))
	}

	// Create runner and register configured jobs
	run := runner.NewRunner(runner.Config{
		RetryDelay: viper.GetDuration("runner.retry_delay"),
	}, pub, history, logger, runner.WithClock(src))

	var schedules []scheduleConfig
	if err := viper.UnmarshalKey("schedules", &schedules); err != nil {
		logger.Fatal("Failed to parse schedules", zap.Error(err))
	}
	if len(schedules) == 0 {
		logger.Fatal("No schedules configured")
	}

	for _, sc := range schedules {
		unit, err := interval.ParseUnit(sc.Unit)
		if err != nil {
			logger.Fatal("Invalid schedule unit",
				zap.String("schedule", sc.Name),
				zap.Error(err))
		}

		spec := interval.Spec{
			Name:   sc.Name,
			Unit:   unit,
			Period: sc.Period,
			Offset: sc.Offset,
		}

		var job runner.Job
		switch sc.Job {
		case "system":
			job = sampler.NewSystem(logger)
		case "heartbeat":
			job = sampler.NewHeartbeat(logger)
		default:
			logger.Fatal("Unknown job type",
				zap.String("schedule", sc.Name),
				zap.String("job", sc.Job))
		}

		if err := run.Register(spec, job); err != nil {
			logger.Fatal("Failed to register job",
				zap.String("schedule", sc.Name),
				zap.Error(err))
		}
	}

	// Create drift monitor with configured rules
	mon := monitor.NewDriftMonitor(logger, js)
	if threshold := viper.GetInt64("alerts.drift_threshold_ms"); threshold > 0 {
		mon.AddRule(&model.AlertRule{
			Name:        "boundary-drift",
			Type:        model.AlertTypeDrift,
			ThresholdMS: threshold,
			Severity:    model.AlertSeverityWarning,
		})
	}
	mon.AddRule(&model.AlertRule{
		Name:     "job-failure",
		Type:     model.AlertTypeJobFailure,
		Severity: model.AlertSeverityError,
	})

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := mon.Start(ctx); err != nil {
		logger.Fatal("Failed to start drift monitor", zap.Error(err))
	}

	if err := run.Start(ctx); err != nil {
		logger.Fatal("Failed to start runner", zap.Error(err))
	}

	// Status reporting on its own wall-clock grid. The schedule is polled
	// with Evaluate from a coarse ticker instead of driving a delay, so
	// the same loop can also host the daily history cleanup.
	statusPeriod := uint16(viper.GetUint32("status.period_seconds"))
	if statusPeriod == 0 {
		statusPeriod = 30
	}
	statusSched, err := schedule.New(interval.Spec{
		Name:   "status-report",
		Unit:   interval.Seconds,
		Period: statusPeriod,
	}, schedule.WithClock(src), schedule.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create status schedule", zap.Error(err))
	}

	retentionDays := viper.GetInt("history.retention_days")
	if retentionDays <= 0 {
		retentionDays = 30
	}

	go func() {
		pollTicker := time.NewTicker(time.Second)
		cleanupTicker := time.NewTicker(24 * time.Hour)
		defer pollTicker.Stop()
		defer cleanupTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollTicker.C:
				if !statusSched.Evaluate() {
					continue
				}

				logger.Info("Status",
					zap.Strings("running_jobs", run.RunningJobs()),
					zap.Int64("last_report_ms", statusSched.LastEvent()),
					zap.Int64("next_report_ms", statusSched.NextEvent()))

				events, err := history.List(ctx, "", 0, 5)
				if err != nil {
					logger.Error("Failed to list tick history", zap.Error(err))
					continue
				}
				for _, ev := range events {
					logger.Info("Recent boundary",
						zap.String("schedule", ev.Schedule),
						zap.Int64("boundary_ms", ev.BoundaryMS),
						zap.Int64("drift_ms", ev.DriftMS),
						zap.Uint64("sequence", ev.Sequence))
				}
			case <-cleanupTicker.C:
				cutoff := time.Now().AddDate(0, 0, -retentionDays).UnixMilli()
				if err := history.DeleteBefore(ctx, cutoff); err != nil {
					logger.Error("Failed to cleanup old tick history", zap.Error(err))
				}
			}
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	run.Stop()
	mon.Stop()

	logger.Info("Server shutting down gracefully")
}
