package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// Match types reported by CompareSummaries.
const (
	MatchExact   = "exact"
	MatchSimilar = "similar"
	MatchRemoved = "removed"
	MatchNewOnly = "new_only"
)

// changeThreshold is the change (in %) beyond which a group counts as
// improved or regressed.
const changeThreshold = 5.0

// CompareResult holds the comparison between two traces
type CompareResult struct {
	BaselineName string
	NewName      string
	BaselineNs   int64
	NewNs        int64
	Matches      []GroupMatch
}

// GroupMatch pairs a baseline group with a group of the new trace.
// Either side is nil when the group exists in one trace only.
type GroupMatch struct {
	BaselineKernel string
	NewKernel      string
	Shape          string
	Baseline       *GroupStats
	New            *GroupStats
	ChangePercent  float64
	HasChange      bool
	MatchType      string
	Signature      string
}

type similarKey struct {
	signature string
	shape     Shape
	hasShape  bool
}

func similarKeyOf(k GroupKey) similarKey {
	return similarKey{signature: kernelSignature(k.Kernel), shape: k.Shape, hasShape: k.HasShape}
}

// CompareTraceFiles aggregates two traces independently and compares them.
func CompareTraceFiles(baselinePath, newPath string, opts Options, logger *zap.Logger) (*CompareResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseline, err := ParseTraceFile(baselinePath, opts, logger.With(zap.String("trace", "baseline")))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze baseline trace: %w", err)
	}
	current, err := ParseTraceFile(newPath, opts, logger.With(zap.String("trace", "new")))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze new trace: %w", err)
	}

	result := CompareSummaries(baseline, current)
	result.BaselineName = filepath.Base(baselinePath)
	result.NewName = filepath.Base(newPath)
	return result, nil
}

// CompareSummaries matches groups between two summaries: first by identical
// key, then by kernel signature with the same shape. Groups left over on
// either side are reported as new_only or removed.
func CompareSummaries(baseline, current *Summary) *CompareResult {
	result := &CompareResult{
		BaselineNs: baseline.TotalNs,
		NewNs:      current.TotalNs,
	}

	byKey := make(map[GroupKey]int)
	bySimilar := make(map[similarKey][]int)
	for i, g := range baseline.Groups {
		byKey[g.Key] = i
		sk := similarKeyOf(g.Key)
		bySimilar[sk] = append(bySimilar[sk], i)
	}

	matched := make(map[int]bool)
	var deferred []int

	// Exact matches take priority over any similar match.
	for i, g := range current.Groups {
		if bi, ok := byKey[g.Key]; ok {
			matched[bi] = true
			result.Matches = append(result.Matches, newGroupMatch(&baseline.Groups[bi], &current.Groups[i], MatchExact))
			continue
		}
		deferred = append(deferred, i)
	}

	for _, i := range deferred {
		g := &current.Groups[i]
		var base *GroupStats
		for _, bi := range bySimilar[similarKeyOf(g.Key)] {
			if !matched[bi] {
				matched[bi] = true
				base = &baseline.Groups[bi]
				break
			}
		}
		if base != nil {
			result.Matches = append(result.Matches, newGroupMatch(base, g, MatchSimilar))
		} else {
			result.Matches = append(result.Matches, newGroupMatch(nil, g, MatchNewOnly))
		}
	}

	for i := range baseline.Groups {
		if !matched[i] {
			result.Matches = append(result.Matches, newGroupMatch(&baseline.Groups[i], nil, MatchRemoved))
		}
	}

	sort.SliceStable(result.Matches, func(i, j int) bool {
		return result.Matches[i].weight() > result.Matches[j].weight()
	})
	return result
}

func newGroupMatch(base, current *GroupStats, matchType string) GroupMatch {
	m := GroupMatch{
		Baseline:  base,
		New:       current,
		MatchType: matchType,
	}

	key := GroupKey{}
	if base != nil {
		key = base.Key
		m.BaselineKernel = base.Key.Kernel
	}
	if current != nil {
		key = current.Key
		m.NewKernel = current.Key.Kernel
	}
	if key.HasShape {
		m.Shape = key.Shape.Label()
	}
	m.Signature = kernelSignature(key.Kernel)

	if base != nil && current != nil && base.AvgNs() > 0 {
		m.ChangePercent = (current.AvgNs() - base.AvgNs()) / base.AvgNs() * 100
		m.HasChange = true
	}
	return m
}

// weight orders matches by the time they account for in the new trace,
// falling back to the baseline for removed groups.
func (m GroupMatch) weight() int64 {
	if m.New != nil {
		return m.New.TotalNs
	}
	return m.Baseline.TotalNs
}

// WriteCompareCSV writes the comparison result to a CSV file
func (r *CompareResult) WriteCompareCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	headers := []string{
		"baseline_kernel",
		"new_kernel",
		"shape",
		"baseline_count",
		"baseline_avg_us",
		"new_count",
		"new_avg_us",
		"change_pct",
		"match_type",
	}
	if err := writer.Write(headers); err != nil {
		return err
	}

	for _, m := range r.Matches {
		row := []string{m.BaselineKernel, m.NewKernel, m.Shape, "", "", "", "", "", m.MatchType}
		if m.Baseline != nil {
			row[3] = fmt.Sprintf("%d", m.Baseline.Count)
			row[4] = fmt.Sprintf("%.3f", m.Baseline.AvgNs()/1e3)
		}
		if m.New != nil {
			row[5] = fmt.Sprintf("%d", m.New.Count)
			row[6] = fmt.Sprintf("%.3f", m.New.AvgNs()/1e3)
		}
		if m.HasChange {
			row[7] = fmt.Sprintf("%.1f", m.ChangePercent)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteSummary writes a human-readable comparison summary
func (r *CompareResult) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "\n=== Trace Comparison Summary ===\n")
	fmt.Fprintf(w, "Baseline: %s (%.3f ms)\n", r.BaselineName, float64(r.BaselineNs)/1e6)
	fmt.Fprintf(w, "New:      %s (%.3f ms)\n", r.NewName, float64(r.NewNs)/1e6)
	if r.BaselineNs > 0 {
		fmt.Fprintf(w, "Total change: %+.1f%%\n", float64(r.NewNs-r.BaselineNs)/float64(r.BaselineNs)*100)
	}
	fmt.Fprintf(w, "\n")

	typeCounts := make(map[string]int)
	for _, m := range r.Matches {
		typeCounts[m.MatchType]++
	}
	fmt.Fprintf(w, "Match Types:\n")
	for _, t := range []string{MatchExact, MatchSimilar, MatchNewOnly, MatchRemoved} {
		fmt.Fprintf(w, "  %s: %d\n", t, typeCounts[t])
	}

	fmt.Fprintf(w, "\n=== Top 10 Changes ===\n")
	var changed []GroupMatch
	for _, m := range r.Matches {
		if m.HasChange {
			changed = append(changed, m)
		}
	}
	sort.SliceStable(changed, func(i, j int) bool {
		return abs(changed[i].ChangePercent) > abs(changed[j].ChangePercent)
	})
	for i := 0; i < min(10, len(changed)); i++ {
		m := changed[i]
		name := truncateString(m.NewKernel, 65)
		if m.Shape != "" {
			name += " [" + m.Shape + "]"
		}
		fmt.Fprintf(w, "%2d. %+7.1f%%  %.3f -> %.3f µs  %s\n",
			i+1, m.ChangePercent, m.Baseline.AvgNs()/1e3, m.New.AvgNs()/1e3, name)
	}
	if len(changed) == 0 {
		fmt.Fprintf(w, "  (none)\n")
	}

	fmt.Fprintf(w, "\n=== Removed Groups (baseline only) ===\n")
	removed := 0
	for _, m := range r.Matches {
		if m.MatchType == MatchRemoved {
			removed++
			fmt.Fprintf(w, "  - %s\n", truncateString(m.BaselineKernel, 75))
		}
	}
	if removed == 0 {
		fmt.Fprintf(w, "  (none)\n")
	}

	fmt.Fprintf(w, "\n=== New Groups (new trace only) ===\n")
	added := 0
	for _, m := range r.Matches {
		if m.MatchType == MatchNewOnly {
			added++
			fmt.Fprintf(w, "  + %.3f µs avg  %s\n", m.New.AvgNs()/1e3, truncateString(m.NewKernel, 60))
		}
	}
	if added == 0 {
		fmt.Fprintf(w, "  (none)\n")
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
