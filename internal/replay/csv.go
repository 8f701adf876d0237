// Package replay provides a CSV-backed counter source for running the
// pipeline against recorded exporter data instead of a live endpoint.
package replay

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/E3-JSI/co2-emissions-prediction/pkg/models"
)

// Expected CSV columns (case-insensitive). Each row is one workload's
// cumulative counter reading inside a numbered snapshot; one snapshot is
// what a live scrape would have returned at one instant.
var expectedColumns = []string{
	"snapshot",
	"pod",
	"container",
	"namespace",
	"joules_total",
}

// CSVSource replays recorded counter snapshots. Each Scrape call returns the
// next snapshot in file order. Satisfies ingest.Source.
type CSVSource struct {
	filePath string
	file     *os.File
	reader   *csv.Reader

	headerMap map[string]int
	pending   []row
	loop      bool
	logger    *log.Logger
}

type row struct {
	snapshot int
	key      models.WorkloadKey
	joules   float64
}

// Open creates a replay source for the given file. With loop set, the file
// restarts from the beginning after the last snapshot; counter values then
// jump backwards, which the ingest path treats as a counter reset.
func Open(filePath string, loop bool, logger *log.Logger) (*CSVSource, error) {
	s := &CSVSource{
		filePath: filePath,
		loop:     loop,
		logger:   logger,
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVSource) open() error {
	file, err := os.Open(s.filePath)
	if err != nil {
		return fmt.Errorf("failed to open replay file: %w", err)
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to read replay headers: %w", err)
	}

	headerMap := make(map[string]int)
	for i, h := range headers {
		headerMap[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range expectedColumns {
		if _, ok := headerMap[col]; !ok {
			file.Close()
			return fmt.Errorf("replay file missing required column: %s", col)
		}
	}

	s.file = file
	s.reader = reader
	s.headerMap = headerMap
	s.pending = nil
	return nil
}

// Close closes the underlying file.
func (s *CSVSource) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// Reset rewinds the source to the first snapshot.
func (s *CSVSource) Reset() error {
	if s.file != nil {
		s.file.Close()
	}
	return s.open()
}

// Scrape returns the next snapshot's cumulative joules per workload key.
// After the final snapshot a looping source rewinds; otherwise it reports
// io.EOF and the sampling loop records a failed cycle.
func (s *CSVSource) Scrape(ctx context.Context) (map[models.WorkloadKey]float64, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	rows, err := s.nextSnapshot()
	if err == io.EOF && s.loop {
		s.logger.Printf("Replay reached end of %s, rewinding", s.filePath)
		if err := s.Reset(); err != nil {
			return nil, err
		}
		rows, err = s.nextSnapshot()
	}
	if err != nil {
		return nil, err
	}

	joules := make(map[models.WorkloadKey]float64, len(rows))
	for _, r := range rows {
		joules[r.key] += r.joules
	}
	return joules, nil
}

// nextSnapshot reads rows until the snapshot number changes, holding the
// first row of the following snapshot for the next call.
func (s *CSVSource) nextSnapshot() ([]row, error) {
	var rows []row
	if len(s.pending) > 0 {
		rows = s.pending
		s.pending = nil
	}

	for {
		record, err := s.reader.Read()
		if err == io.EOF {
			if len(rows) == 0 {
				return nil, io.EOF
			}
			return rows, nil
		}
		if err != nil {
			return rows, fmt.Errorf("failed to read replay row: %w", err)
		}

		r, err := s.parseRecord(record)
		if err != nil {
			s.logger.Printf("Skipping malformed replay row: %v", err)
			continue
		}

		if len(rows) > 0 && r.snapshot != rows[0].snapshot {
			s.pending = []row{r}
			return rows, nil
		}
		rows = append(rows, r)
	}
}

// parseRecord converts a CSV record to a counter row.
func (s *CSVSource) parseRecord(record []string) (row, error) {
	getField := func(name string) string {
		if idx, ok := s.headerMap[name]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	r := row{
		key: models.WorkloadKey{
			Pod:       getField("pod"),
			Container: getField("container"),
			Namespace: getField("namespace"),
		},
	}
	if r.key.Pod == "" || r.key.Container == "" {
		return row{}, fmt.Errorf("missing pod or container")
	}

	snapshot, err := strconv.Atoi(getField("snapshot"))
	if err != nil {
		return row{}, fmt.Errorf("invalid snapshot number: %w", err)
	}
	r.snapshot = snapshot

	joules, err := strconv.ParseFloat(getField("joules_total"), 64)
	if err != nil {
		return row{}, fmt.Errorf("invalid joules_total: %w", err)
	}
	r.joules = joules

	return r, nil
}

// Validate checks that the file has the expected format and at least one
// parseable row.
func Validate(filePath string) error {
	source, err := Open(filePath, false, log.New(io.Discard, "", 0))
	if err != nil {
		return err
	}
	defer source.Close()

	rows, err := source.nextSnapshot()
	if err == io.EOF {
		return fmt.Errorf("replay file has no snapshots")
	}
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("replay file has no snapshots")
	}
	return nil
}
