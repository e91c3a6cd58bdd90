package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

// Summary is the aggregated view of one trace, groups sorted by total time.
type Summary struct {
	Source  string
	Groups  []GroupStats
	TotalNs int64
	Stats   ParseStats
}

// ReportRow is one display-ready line of the report.
type ReportRow struct {
	Name     string  `json:"name"`
	Kernel   string  `json:"kernel"`
	Shape    string  `json:"shape,omitempty"`
	Count    int     `json:"count"`
	TotalNs  int64   `json:"total_ns"`
	AvgNs    float64 `json:"avg_ns"`
	MinNs    int64   `json:"min_ns"`
	MaxNs    int64   `json:"max_ns"`
	StdDevNs float64 `json:"stddev_ns"`
	Percent  float64 `json:"percent"`
}

func newSummary(groups map[GroupKey]*GroupStats, order []GroupKey, stats ParseStats) *Summary {
	s := &Summary{
		Groups: make([]GroupStats, 0, len(order)),
		Stats:  stats,
	}
	for _, key := range order {
		g := groups[key]
		s.TotalNs += g.TotalNs
		s.Groups = append(s.Groups, *g)
	}

	// Sort by total time descending
	sort.SliceStable(s.Groups, func(i, j int) bool {
		return s.Groups[i].TotalNs > s.Groups[j].TotalNs
	})
	return s
}

// Percent returns the group's share of the trace's total time.
func (s *Summary) Percent(g GroupStats) float64 {
	if s.TotalNs <= 0 {
		return 0
	}
	return float64(g.TotalNs) / float64(s.TotalNs) * 100
}

// DisplayName builds the report name for a group. The bare kernel name is
// truncated first so that the shape suffix is never cut.
func DisplayName(key GroupKey, opts Options) string {
	if key.HasShape {
		return truncateString(key.Kernel, opts.MaxNameWithShape) + " [" + key.Shape.Label() + "]"
	}
	return truncateString(key.Kernel, opts.MaxNameWithoutShape)
}

// Rows converts the groups into report rows, honoring opts.Top.
func (s *Summary) Rows(opts Options) []ReportRow {
	n := len(s.Groups)
	if opts.Top > 0 && opts.Top < n {
		n = opts.Top
	}

	rows := make([]ReportRow, 0, n)
	for _, g := range s.Groups[:n] {
		row := ReportRow{
			Name:     DisplayName(g.Key, opts),
			Kernel:   g.Key.Kernel,
			Count:    g.Count,
			TotalNs:  g.TotalNs,
			AvgNs:    g.AvgNs(),
			MinNs:    g.MinNs,
			MaxNs:    g.MaxNs,
			StdDevNs: g.StdDevNs(),
			Percent:  s.Percent(g),
		}
		if g.Key.HasShape {
			row.Shape = g.Key.Shape.Label()
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteTable writes the fixed-width report table.
func (s *Summary) WriteTable(w io.Writer, opts Options, colorize bool) error {
	headerColor := color.New(color.FgCyan, color.Bold)
	ruleColor := color.New(color.Faint)
	if !colorize {
		headerColor.DisableColor()
		ruleColor.DisableColor()
	}

	width := opts.NameColumnWidth
	header := fmt.Sprintf("%s | %8s | %15s | %15s | %8s",
		runewidth.FillRight("Kernel Name", width), "Count", "Total Time (ms)", "Avg Time (us)", "% Total")
	if _, err := headerColor.Fprintln(w, header); err != nil {
		return err
	}
	if _, err := ruleColor.Fprintln(w, strings.Repeat("-", width+55)); err != nil {
		return err
	}

	for _, r := range s.Rows(opts) {
		_, err := fmt.Fprintf(w, "%s | %8d | %15.3f | %15.3f | %7.1f%%\n",
			runewidth.FillRight(r.Name, width),
			r.Count,
			float64(r.TotalNs)/1e6,
			r.AvgNs/1e3,
			r.Percent)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes the report rows in CSV format
func (s *Summary) WriteCSV(w io.Writer, opts Options) error {
	writer := csv.NewWriter(w)

	headers := []string{
		"kernel_name",
		"shape",
		"count",
		"total_ms",
		"avg_us",
		"min_us",
		"max_us",
		"stddev_us",
		"pct_total",
	}
	if err := writer.Write(headers); err != nil {
		return err
	}

	for _, r := range s.Rows(opts) {
		row := []string{
			r.Kernel,
			r.Shape,
			strconv.Itoa(r.Count),
			fmt.Sprintf("%.3f", float64(r.TotalNs)/1e6),
			fmt.Sprintf("%.3f", r.AvgNs/1e3),
			fmt.Sprintf("%.3f", float64(r.MinNs)/1e3),
			fmt.Sprintf("%.3f", float64(r.MaxNs)/1e3),
			fmt.Sprintf("%.3f", r.StdDevNs/1e3),
			fmt.Sprintf("%.1f", r.Percent),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteJSON writes the report in JSON format
func (s *Summary) WriteJSON(w io.Writer, opts Options) error {
	doc := struct {
		Source  string      `json:"source,omitempty"`
		TotalNs int64       `json:"total_duration_ns"`
		Stats   ParseStats  `json:"stats"`
		Groups  []ReportRow `json:"groups"`
	}{
		Source:  s.Source,
		TotalNs: s.TotalNs,
		Stats:   s.Stats,
		Groups:  s.Rows(opts),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// WriteCategorySummary writes a breakdown of time by kernel category
// followed by the parse statistics.
func (s *Summary) WriteCategorySummary(w io.Writer) {
	type categoryInfo struct {
		name    string
		groups  int
		count   int
		totalNs int64
	}
	byName := make(map[string]*categoryInfo)
	var categories []*categoryInfo

	for _, g := range s.Groups {
		name := categorizeKernel(g.Key.Kernel)
		info, ok := byName[name]
		if !ok {
			info = &categoryInfo{name: name}
			byName[name] = info
			categories = append(categories, info)
		}
		info.groups++
		info.count += g.Count
		info.totalNs += g.TotalNs
	}
	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].totalNs > categories[j].totalNs
	})

	fmt.Fprintf(w, "\n=== Kernel Type Distribution ===\n")
	for _, c := range categories {
		pct := 0.0
		if s.TotalNs > 0 {
			pct = float64(c.totalNs) / float64(s.TotalNs) * 100
		}
		fmt.Fprintf(w, "  %-20s: %4d groups, %6d dispatches, %.3f ms (%.1f%%)\n",
			c.name, c.groups, c.count, float64(c.totalNs)/1e6, pct)
	}

	fmt.Fprintf(w, "\n=== Parse Statistics ===\n")
	fmt.Fprintf(w, "Lines read:       %d\n", s.Stats.Lines)
	fmt.Fprintf(w, "Data rows:        %d\n", s.Stats.DataRows)
	fmt.Fprintf(w, "Skipped rows:     %d\n", s.Stats.SkippedRows)
	fmt.Fprintf(w, "Annotation lines: %d\n", s.Stats.Annotations)
	fmt.Fprintf(w, "Shapes attached:  %d\n", s.Stats.ShapesAttached)
}

// WriteToFile writes the report to a file based on extension
func (s *Summary) WriteToFile(filename string, opts Options) error {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return s.WriteXLSX(filename, opts)
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		err = s.WriteJSON(file, opts)
	case ".csv":
		err = s.WriteCSV(file, opts)
	default:
		err = s.WriteTable(file, opts, false)
	}
	if err != nil {
		return err
	}
	return file.Close()
}
