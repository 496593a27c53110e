package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/internal/tracing"
	"github.com/harun/cortex/pkg/cron"
	"github.com/harun/cortex/pkg/memory"
	"github.com/spf13/cobra"
)

var watchMetricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the notes directory and summarize on schedule",
	Long: `Run in the foreground, watching the notes directory for changed day
files. Changed days are queued and flushed on the cron schedule
(default 23:30 daily), which always covers the current day. Records
left pending by provider outages are retried on each flush. An
optional metrics endpoint exposes Prometheus counters.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "address for the Prometheus /metrics endpoint (e.g. :9464)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if watchMetricsAddr != "" {
		cfg.Watch.MetricsAddr = watchMetricsAddr
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	if err := tracing.InitOpenTelemetry(); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing")
	}
	defer tracing.ShutdownOpenTelemetry(context.Background())
	initJournal(cfg, log)

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ingestor, err := buildIngestor(cfg, log, store)
	if err != nil {
		return err
	}

	if err := memory.EnsureNotesDir(cfg.Notes.Dir); err != nil {
		return fmt.Errorf("failed to create notes directory: %w", err)
	}

	// Dirty day set fed by the watcher, drained by the flush
	var mu sync.Mutex
	dirty := make(map[string]bool)

	watcher, err := memory.NewFileWatcher(log.GetZerolog(), func(path string) {
		date := memory.DateFromDayFile(path)
		if date == "" {
			return
		}
		mu.Lock()
		dirty[date] = true
		mu.Unlock()
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Watch(cfg.Notes.Dir); err != nil {
		watcher.Stop()
		return fmt.Errorf("failed to watch notes directory: %w", err)
	}
	defer watcher.Stop()

	// Flushes run one at a time; the scheduler and shutdown both call it
	var flushMu sync.Mutex
	flush := func(includeToday bool) {
		flushMu.Lock()
		defer flushMu.Unlock()

		ctx := tracing.NewCommandContext(context.Background())

		mu.Lock()
		if includeToday {
			dirty[time.Now().Format("2006-01-02")] = true
		}
		dates := make([]string, 0, len(dirty))
		for date := range dirty {
			dates = append(dates, date)
		}
		dirty = make(map[string]bool)
		mu.Unlock()

		sort.Strings(dates)
		for _, date := range dates {
			if _, err := ingestor.SummarizeDay(ctx, date); err != nil {
				log.Error().Err(err).Str("date", date).Msg("Scheduled summarize failed")
			}
		}

		report, err := ingestor.RetryPending(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Pending retry failed")
			return
		}
		if report.Scanned > 0 {
			log.Info().
				Int("embedded", report.Embedded).
				Int("failed", report.Failed).
				Msg("Pending retry finished")
		}
	}

	sched, err := cron.NewScheduler(cron.Schedule{
		Kind: cron.ScheduleKindCron,
		Expr: cfg.Watch.Cron,
		TZ:   cfg.Watch.Timezone,
	}, func() { flush(true) })
	if err != nil {
		return fmt.Errorf("invalid watch schedule: %w", err)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// Metrics endpoint
	var metricsSrv *http.Server
	if cfg.Watch.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		metricsSrv = &http.Server{Addr: cfg.Watch.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		log.Info().Str("addr", cfg.Watch.MetricsAddr).Msg("Metrics endpoint listening")
	}

	fmt.Printf("Watching %s (schedule: %s)\n", cfg.Notes.Dir, cfg.Watch.Cron)
	fmt.Printf("Next flush: %s\n", sched.NextRun().Format("2006-01-02 15:04:05"))
	fmt.Println("Press Ctrl+C to stop.")

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal")

	fmt.Println("Shutting down, flushing queued days...")
	sched.Stop()
	flush(false)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Metrics server shutdown failed")
		}
	}

	return nil
}
