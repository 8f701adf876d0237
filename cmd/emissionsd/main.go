// Emissions Service - workload energy tracking and CO2 emissions API
//
// @title           CO2 Emissions Prediction API
// @version         1.0
// @description     REST API for querying workload energy measurements and computing their carbon emissions.
//
// @host            localhost:8080
// @BasePath        /
//
// @schemes         http
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/E3-JSI/co2-emissions-prediction/internal/api"
	"github.com/E3-JSI/co2-emissions-prediction/internal/api/handlers"
	"github.com/E3-JSI/co2-emissions-prediction/internal/clock"
	"github.com/E3-JSI/co2-emissions-prediction/internal/flush"
	"github.com/E3-JSI/co2-emissions-prediction/internal/health"
	"github.com/E3-JSI/co2-emissions-prediction/internal/ingest"
	"github.com/E3-JSI/co2-emissions-prediction/internal/intensity"
	"github.com/E3-JSI/co2-emissions-prediction/internal/query"
	"github.com/E3-JSI/co2-emissions-prediction/internal/replay"
	"github.com/E3-JSI/co2-emissions-prediction/internal/scrape"
	"github.com/E3-JSI/co2-emissions-prediction/internal/storage"
	"github.com/E3-JSI/co2-emissions-prediction/pkg/config"

	_ "github.com/E3-JSI/co2-emissions-prediction/docs"
)

func main() {
	// Setup logging, one prefix per component
	logger := log.New(os.Stdout, "[EMISSIONS] ", log.LstdFlags|log.Lmicroseconds)
	ingestLogger := componentLogger("[INGEST] ")
	co2Logger := componentLogger("[CO2] ")
	flushLogger := componentLogger("[FLUSH] ")
	queryLogger := componentLogger("[QUERY] ")

	// Load configuration from environment variables
	cfg := config.DefaultServiceConfig()

	logger.Printf("Starting Emissions Service...")
	logger.Printf("  Mode: %s", cfg.Mode)
	logger.Printf("  Exporter: %s (counter %s)", cfg.Tracker.ExporterURL, cfg.Tracker.CounterName)
	logger.Printf("  Sample Interval: %v", cfg.Tracker.SampleInterval)
	logger.Printf("  Block Capacity: %d, History: %d", cfg.Tracker.BlockCapacity, cfg.Tracker.BlockHistory)

	startupErrs := cfg.Validate()
	for _, problem := range startupErrs {
		logger.Printf("Config problem: %s", problem)
	}
	if cfg.Mode != config.ModeLocal && cfg.Mode != config.ModeDurable {
		logger.Fatalf("Cannot start with mode %q", cfg.Mode)
	}

	clk := clock.RealClock{}

	// Durable store (durable mode only)
	var store storage.DurableStore
	if cfg.Mode == config.ModeDurable {
		influxCfg := storage.InfluxConfig{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		}
		logger.Printf("Connecting to InfluxDB at %s (org=%s, bucket=%s)", influxCfg.URL, influxCfg.Org, influxCfg.Bucket)

		influx, err := storage.NewInfluxStore(influxCfg)
		if err != nil {
			logger.Fatalf("Failed to connect to InfluxDB: %v", err)
		}
		logger.Printf("Connected to InfluxDB")
		defer influx.Close()
		store = influx
	}

	// Carbon-intensity store and its fetch collaborator. In durable mode
	// refreshed values are archived so old-range emissions queries resolve
	// the intensity in effect at the time.
	var intensityOpts []intensity.Option
	if store != nil {
		intensityOpts = append(intensityOpts, intensity.WithArchive(store))
	}
	intensities := intensity.NewStore(cfg.Intensity, clk, co2Logger, intensityOpts...)
	fetcher := intensity.NewElectricityMapsClient(cfg.Intensity.APIURL, cfg.Intensity.APIToken, cfg.Intensity.FetchTimeout)

	// Ingestion pipeline: scraper -> ingestor -> block buffer -> flush queue
	var queue *flush.Queue
	var onComplete ingest.CompletionFunc
	if store != nil {
		queue = flush.NewQueue(cfg.Flush, store, flushLogger)
		onComplete = queue.Enqueue
	}

	ingestor := ingest.NewIngestor(cfg.Tracker.SampleInterval, ingestLogger)
	buffer := ingest.NewBlockBuffer(cfg.Tracker.BlockCapacity, cfg.Tracker.BlockHistory, onComplete, ingestLogger)

	// Counter source: live exporter scrape, or CSV replay when configured.
	var source ingest.Source
	var probe func(context.Context) error
	if cfg.Tracker.ReplayFile != "" {
		logger.Printf("Replaying counter snapshots from %s", cfg.Tracker.ReplayFile)
		replaySource, err := replay.Open(cfg.Tracker.ReplayFile, true, ingestLogger)
		if err != nil {
			logger.Fatalf("Failed to open replay file: %v", err)
		}
		defer replaySource.Close()
		source = replaySource
		probe = func(context.Context) error { return replay.Validate(cfg.Tracker.ReplayFile) }
	} else {
		scraper := scrape.New(cfg.Tracker.ExporterURL, cfg.Tracker.CounterName,
			&http.Client{Timeout: cfg.Tracker.ScrapeTimeout})
		source = scraper
		probe = scraper.Probe
	}

	healthState := health.NewState(cfg.Tracker.SampleInterval, clk)
	sampler := ingest.NewSampler(source, ingestor, buffer, cfg.Tracker.SampleInterval,
		clk, healthState, intensities.Ready(), ingestLogger)

	engine := query.NewEngine(buffer, ingestor, store, intensities, cfg.Tracker.SampleInterval, clk, queryLogger)

	// Startup self-check: the counter source must answer before the
	// service reports ready. Failures degrade readiness instead of
	// crashing, so a late-starting exporter just delays readiness.
	probeCtx, probeCancel := context.WithTimeout(context.Background(), cfg.Tracker.ScrapeTimeout)
	if err := probe(probeCtx); err != nil {
		logger.Printf("Counter source probe failed: %v", err)
		startupErrs = append(startupErrs, fmt.Sprintf("counter source unreachable: %v", err))
	}
	probeCancel()
	healthState.SetStartupResult(startupErrs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Background loops
	wg.Add(1)
	go func() {
		defer wg.Done()
		healthState.LoopStarted(health.LoopIntensity)
		defer healthState.LoopStopped(health.LoopIntensity)
		intensities.Run(ctx, fetcher.FetchIntensity)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		healthState.LoopStarted(health.LoopSampling)
		defer healthState.LoopStopped(health.LoopSampling)
		sampler.Run(ctx)
	}()

	if queue != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			healthState.LoopStarted(health.LoopFlush)
			defer healthState.LoopStopped(health.LoopFlush)
			queue.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		statsLoop(ctx, buffer, queue, logger)
	}()

	// REST API
	stats := func() handlers.ServiceStats {
		s := handlers.ServiceStats{
			Buffer: buffer.Stats(),
			Mode:   string(cfg.Mode),
		}
		if queue != nil {
			s.Flush = queue.Stats()
		}
		return s
	}
	router := api.NewRouter(engine, intensities, healthState, stats, api.RouterConfig{
		DefaultLastN: cfg.API.DefaultLastN,
		MaxLastN:     cfg.API.MaxLastN,
	})

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	go func() {
		logger.Printf("API server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Printf("Received signal %v, shutting down...", sig)

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Error during shutdown: %v", err)
	}

	// Stop the loops; the flush queue drains once more on its way out.
	cancel()
	wg.Wait()

	logger.Println("Emissions service stopped")
}

func componentLogger(prefix string) *log.Logger {
	return log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds)
}

// statsLoop periodically logs pipeline statistics.
func statsLoop(ctx context.Context, buffer *ingest.BlockBuffer, queue *flush.Queue, logger *log.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bs := buffer.Stats()
			if queue != nil {
				qs := queue.Stats()
				logger.Printf("Stats: keys=%d, open_blocks=%d, completed_blocks=%d, flush_pending=%d, flushed=%d",
					bs.TrackedKeys, bs.OpenBlocks, bs.CompletedBlocks, qs.Pending, qs.TotalFlushed)
			} else {
				logger.Printf("Stats: keys=%d, open_blocks=%d, completed_blocks=%d",
					bs.TrackedKeys, bs.OpenBlocks, bs.CompletedBlocks)
			}
		}
	}
}
