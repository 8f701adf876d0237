package ingest

import (
	"context"
	"log"
	"time"

	"github.com/E3-JSI/co2-emissions-prediction/internal/clock"
	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

// Source delivers one snapshot of cumulative joules per workload key.
type Source interface {
	Scrape(ctx context.Context) (map[models.WorkloadKey]float64, error)
}

// ResultRecorder receives the outcome of each sampling cycle. The health
// state implements this to track ingestion staleness.
type ResultRecorder interface {
	RecordIngest(ok bool)
}

// Sampler drives the ingestion loop: scrape the source, derive measurements,
// append them to the block buffer.
type Sampler struct {
	source   Source
	ingestor *Ingestor
	buffer   *BlockBuffer
	interval time.Duration
	clk      clock.Clock
	recorder ResultRecorder
	ready    <-chan struct{}
	logger   *log.Logger
}

// NewSampler creates a sampler. ready, when non-nil, gates the first cycle
// until intensities are bootstrapped. recorder may be nil.
func NewSampler(source Source, ingestor *Ingestor, buffer *BlockBuffer, interval time.Duration,
	clk clock.Clock, recorder ResultRecorder, ready <-chan struct{}, logger *log.Logger) *Sampler {
	return &Sampler{
		source:   source,
		ingestor: ingestor,
		buffer:   buffer,
		interval: interval,
		clk:      clk,
		recorder: recorder,
		ready:    ready,
		logger:   logger,
	}
}

// SampleOnce performs a single sampling cycle and reports whether the scrape
// succeeded. Scrape failures are transient: they are logged and recorded, and
// the next cycle proceeds normally.
func (s *Sampler) SampleOnce(ctx context.Context) bool {
	now := s.clk.Now()

	snapshot, err := s.source.Scrape(ctx)
	if err != nil {
		s.logger.Printf("Sample cycle failed: %v", err)
		s.record(false)
		return false
	}

	for key, joules := range snapshot {
		if m, ok := s.ingestor.Ingest(key, joules, now); ok {
			s.buffer.Append(key, m)
		}
	}

	s.record(true)
	return true
}

// Run executes sampling cycles until the context is cancelled. Each cycle's
// processing time is subtracted from the sleep so the schedule does not
// drift.
func (s *Sampler) Run(ctx context.Context) {
	if s.ready != nil {
		s.logger.Println("Waiting for intensity bootstrap before sampling...")
		select {
		case <-ctx.Done():
			return
		case <-s.ready:
		}
	}

	s.logger.Printf("Sampling every %v", s.interval)
	for {
		start := s.clk.Now()
		s.SampleOnce(ctx)

		wait := s.interval - s.clk.Since(start)
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-s.clk.After(wait):
		}
	}
}

func (s *Sampler) record(ok bool) {
	if s.recorder != nil {
		s.recorder.RecordIngest(ok)
	}
}
