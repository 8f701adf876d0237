// Package scrape fetches the energy exporter's metrics endpoint and extracts
// cumulative joules counters per workload.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

// Exporter label names produced by the energy exporter.
const (
	labelPod       = "pod_name"
	labelContainer = "container_name"
	labelNamespace = "container_namespace"
	labelMode      = "mode"

	// Only dynamic (workload-attributed) energy is tracked.
	modeDynamic = "dynamic"
)

// Scraper fetches and parses the exporter's text exposition.
type Scraper struct {
	url     string
	counter string
	client  *http.Client
}

// New creates a scraper for the given metrics URL. counter is the cumulative
// joules family to extract, with or without the _total suffix.
func New(url, counter string, client *http.Client) *Scraper {
	if client == nil {
		client = http.DefaultClient
	}
	return &Scraper{
		url:     url,
		counter: strings.TrimSuffix(counter, "_total"),
		client:  client,
	}
}

// Scrape performs one fetch of the exporter and returns cumulative joules per
// workload key. Multiple series for the same key (one per energy source) are
// summed into a single counter value.
func (s *Scraper) Scrape(ctx context.Context) (map[models.WorkloadKey]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build exporter request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exporter fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("exporter returned status %d", resp.StatusCode)
	}

	return s.parse(resp.Body)
}

// Probe checks that the exporter is reachable. Used by the startup self-check.
func (s *Scraper) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("exporter check failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("exporter check failed: status %d", resp.StatusCode)
	}
	return nil
}

func (s *Scraper) parse(r io.Reader) (map[models.WorkloadKey]float64, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse exposition: %w", err)
	}

	joules := make(map[models.WorkloadKey]float64)
	for name, family := range families {
		if strings.TrimSuffix(name, "_total") != s.counter {
			continue
		}
		for _, metric := range family.GetMetric() {
			key, ok := workloadKey(metric)
			if !ok {
				continue
			}
			joules[key] += sampleValue(metric)
		}
	}

	return joules, nil
}

// workloadKey extracts the workload tuple from a series' labels, filtering to
// dynamic-mode samples with the identifying labels present.
func workloadKey(metric *dto.Metric) (models.WorkloadKey, bool) {
	var key models.WorkloadKey
	var mode string

	for _, label := range metric.GetLabel() {
		switch label.GetName() {
		case labelPod:
			key.Pod = label.GetValue()
		case labelContainer:
			key.Container = label.GetValue()
		case labelNamespace:
			key.Namespace = label.GetValue()
		case labelMode:
			mode = label.GetValue()
		}
	}

	if mode != modeDynamic || key.Pod == "" || key.Container == "" {
		return models.WorkloadKey{}, false
	}
	return key, true
}

// sampleValue reads the numeric value regardless of whether the exporter
// declares the family as counter, gauge, or untyped.
func sampleValue(metric *dto.Metric) float64 {
	switch {
	case metric.GetCounter() != nil:
		return metric.GetCounter().GetValue()
	case metric.GetGauge() != nil:
		return metric.GetGauge().GetValue()
	case metric.GetUntyped() != nil:
		return metric.GetUntyped().GetValue()
	}
	return 0
}
