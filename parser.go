package main

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrMissingColumn is returned when the header line lacks a required field.
	ErrMissingColumn = errors.New("required column missing from header")
	// ErrNoHeader is returned when the input ends without a header line.
	ErrNoHeader = errors.New("no header line found")
)

// GroupKey identifies one aggregate: a kernel name plus the shape logged for
// it, if any. A kernel without a shape is its own group.
type GroupKey struct {
	Kernel   string
	Shape    Shape
	HasShape bool
}

// GroupStats accumulates the dispatches committed into one group.
type GroupStats struct {
	Key     GroupKey
	Count   int
	TotalNs int64
	MinNs   int64
	MaxNs   int64

	sumSquares float64
}

func (g *GroupStats) add(durationNs int64) {
	if g.Count == 0 || durationNs < g.MinNs {
		g.MinNs = durationNs
	}
	if durationNs > g.MaxNs {
		g.MaxNs = durationNs
	}
	g.Count++
	g.TotalNs += durationNs
	d := float64(durationNs)
	g.sumSquares += d * d
}

// AvgNs returns the mean duration of the group.
func (g GroupStats) AvgNs() float64 {
	if g.Count == 0 {
		return 0
	}
	return float64(g.TotalNs) / float64(g.Count)
}

// StdDevNs returns the population standard deviation of the group's durations.
func (g GroupStats) StdDevNs() float64 {
	if g.Count < 2 {
		return 0
	}
	avg := g.AvgNs()
	variance := g.sumSquares/float64(g.Count) - avg*avg
	if variance < 0 {
		// rounding on near-identical durations
		return 0
	}
	return math.Sqrt(variance)
}

// ParseStats counts what the aggregator saw while reading a trace.
type ParseStats struct {
	Lines          int `json:"lines"`
	Headers        int `json:"headers"`
	DataRows       int `json:"data_rows"`
	SkippedRows    int `json:"skipped_rows"`
	Annotations    int `json:"annotations"`
	ShapesAttached int `json:"shapes_attached"`
}

// dispatch is the single pending record: the last data row read, still open
// for a shape from the log lines that follow it.
type dispatch struct {
	kernel     string
	durationNs int64
	shape      Shape
	hasShape   bool
}

type headerIndex struct {
	fields      int
	nameIdx     int
	durationIdx int
}

// TraceAggregator consumes a kernel trace line by line. Each data row is held
// as pending until the next data row (or the end of input) commits it, so the
// log lines printed after a dispatch can still attach a shape to it.
type TraceAggregator struct {
	opts   Options
	logger *zap.Logger

	header  *headerIndex
	pending *dispatch

	groups map[GroupKey]*GroupStats
	order  []GroupKey
	stats  ParseStats
}

// NewTraceAggregator creates an aggregator. A nil logger discards output.
func NewTraceAggregator(opts Options, logger *zap.Logger) *TraceAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TraceAggregator{
		opts:   opts,
		logger: logger,
		groups: make(map[GroupKey]*GroupStats),
	}
}

// ProcessLine feeds one raw input line. Only header problems are returned as
// errors; malformed data rows are counted and dropped.
func (ta *TraceAggregator) ProcessLine(raw string) error {
	ta.stats.Lines++
	line := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if line == "" {
		return nil
	}

	if strings.HasPrefix(line, "#") {
		ta.stats.Annotations++
		ta.annotate(line)
		return nil
	}

	if ta.isHeader(line) {
		return ta.resolveHeader(line)
	}

	ta.commit()

	if ta.header == nil {
		ta.skip("row before header", zap.Int("line", ta.stats.Lines))
		return nil
	}

	record, ok := ta.parseRow(line)
	if !ok {
		return nil
	}
	ta.pending = record
	ta.stats.DataRows++
	return nil
}

// Finish commits the last pending row and returns the sorted summary.
func (ta *TraceAggregator) Finish() (*Summary, error) {
	ta.commit()
	if ta.stats.Headers == 0 {
		return nil, ErrNoHeader
	}

	summary := newSummary(ta.groups, ta.order, ta.stats)
	ta.logger.Info("Trace aggregated",
		zap.Int("lines", ta.stats.Lines),
		zap.Int("data_rows", ta.stats.DataRows),
		zap.Int("skipped_rows", ta.stats.SkippedRows),
		zap.Int("shapes_attached", ta.stats.ShapesAttached),
		zap.Int("groups", len(summary.Groups)),
		zap.Int64("total_ns", summary.TotalNs))
	return summary, nil
}

func (ta *TraceAggregator) annotate(line string) {
	// the first shape found for a dispatch wins
	if ta.pending == nil || ta.pending.hasShape {
		return
	}
	shape, ok := ExtractShape(line)
	if !ok {
		return
	}
	ta.pending.shape = shape
	ta.pending.hasShape = true
	ta.stats.ShapesAttached++
}

func (ta *TraceAggregator) isHeader(line string) bool {
	name := ta.opts.KernelNameColumn
	unquoted := strings.TrimPrefix(line, `"`)
	return strings.HasPrefix(unquoted, name+",") || strings.HasPrefix(unquoted, name+`",`)
}

func (ta *TraceAggregator) resolveHeader(line string) error {
	fields, err := splitRecord(line)
	if err != nil {
		return fmt.Errorf("failed to parse header line %d: %w", ta.stats.Lines, err)
	}

	nameIdx := indexOf(fields, ta.opts.KernelNameColumn)
	durationIdx := indexOf(fields, ta.opts.DurationColumn)
	if nameIdx < 0 {
		return fmt.Errorf("%w: %q", ErrMissingColumn, ta.opts.KernelNameColumn)
	}
	if durationIdx < 0 {
		return fmt.Errorf("%w: %q", ErrMissingColumn, ta.opts.DurationColumn)
	}

	ta.header = &headerIndex{
		fields:      len(fields),
		nameIdx:     nameIdx,
		durationIdx: durationIdx,
	}
	ta.stats.Headers++
	ta.logger.Debug("Header resolved",
		zap.Int("line", ta.stats.Lines),
		zap.Int("fields", len(fields)),
		zap.Int("name_index", nameIdx),
		zap.Int("duration_index", durationIdx))
	return nil
}

func (ta *TraceAggregator) parseRow(line string) (*dispatch, bool) {
	row, err := splitRecord(line)
	if err != nil {
		ta.skip("unparseable row", zap.Int("line", ta.stats.Lines), zap.Error(err))
		return nil, false
	}
	if len(row) != ta.header.fields {
		ta.skip("field count mismatch",
			zap.Int("line", ta.stats.Lines),
			zap.Int("fields", len(row)),
			zap.Int("expected", ta.header.fields))
		return nil, false
	}
	if ta.header.nameIdx >= len(row) || ta.header.durationIdx >= len(row) {
		ta.skip("column index out of range", zap.Int("line", ta.stats.Lines))
		return nil, false
	}

	duration, err := strconv.ParseInt(strings.TrimSpace(row[ta.header.durationIdx]), 10, 64)
	if err != nil || duration < 0 {
		ta.skip("invalid duration",
			zap.Int("line", ta.stats.Lines),
			zap.String("value", row[ta.header.durationIdx]))
		return nil, false
	}

	name := row[ta.header.nameIdx]
	if ta.opts.NormalizeNames {
		name = normalizeKernelName(name)
	}
	return &dispatch{kernel: name, durationNs: duration}, true
}

func (ta *TraceAggregator) commit() {
	if ta.pending == nil {
		return
	}
	p := ta.pending
	ta.pending = nil

	key := GroupKey{Kernel: p.kernel, Shape: p.shape, HasShape: p.hasShape}
	g, ok := ta.groups[key]
	if !ok {
		g = &GroupStats{Key: key}
		ta.groups[key] = g
		ta.order = append(ta.order, key)
	}
	g.add(p.durationNs)
}

func (ta *TraceAggregator) skip(reason string, fields ...zap.Field) {
	ta.stats.SkippedRows++
	ta.logger.Debug("Skipping row: "+reason, fields...)
}

// splitRecord parses one line as a single CSV record.
func splitRecord(line string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.Read()
}

func indexOf(fields []string, name string) int {
	for i, f := range fields {
		if f == name {
			return i
		}
	}
	return -1
}

// Aggregate reads a whole trace from r.
func Aggregate(r io.Reader, opts Options, logger *zap.Logger) (*Summary, error) {
	ta := NewTraceAggregator(opts, logger)
	reader := bufio.NewReaderSize(r, 1024*1024)

	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			if perr := ta.ProcessLine(line); perr != nil {
				return nil, perr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read trace: %w", err)
		}
	}

	return ta.Finish()
}

// ParseTraceFile opens and aggregates a trace file.
// Supports both plain and .gz compressed files.
func ParseTraceFile(filename string, opts Options, logger *zap.Logger) (*Summary, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file

	// Check if gzipped
	if strings.HasSuffix(filename, ".gz") {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	summary, err := Aggregate(reader, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	summary.Source = filename
	return summary, nil
}
