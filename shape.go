package main

import (
	"fmt"
	"regexp"
	"strings"
)

// Shape holds the M, N, K dimensions of a matrix multiply as they were
// written in the library log line. The text is kept verbatim ("0512" stays
// "0512") so that labels compare equal only when the logs agree.
type Shape struct {
	M string
	N string
	K string
}

// Label renders the canonical "M=<m>, N=<n>, K=<k>" form.
func (s Shape) Label() string {
	return fmt.Sprintf("M=%s, N=%s, K=%s", s.M, s.N, s.K)
}

// Positions of M, N, K in a comma separated rocBLAS gemm log line:
// routine name, transA, transB, M, N, K, ...
const (
	gemmFieldM    = 3
	gemmFieldN    = 4
	gemmFieldK    = 5
	gemmMinFields = 6
)

var (
	integerLiteral = regexp.MustCompile(`^[+-]?[0-9]+$`)

	fallbackM = regexp.MustCompile(`(?i)\bm\s*[=:]\s*([0-9]+)`)
	fallbackN = regexp.MustCompile(`(?i)\bn\s*[=:]\s*([0-9]+)`)
	fallbackK = regexp.MustCompile(`(?i)\bk\s*[=:]\s*([0-9]+)`)
)

// ExtractShape looks for a matrix multiply shape in a library log line.
// The positional gemm form is tried first, then the key/value form.
func ExtractShape(line string) (Shape, bool) {
	if s, ok := extractGemmFields(line); ok {
		return s, true
	}
	return extractKeyValueShape(line)
}

// extractGemmFields handles lines such as
// "# rocblas_sgemm,N,T,1024,2048,512,..." where M, N, K sit at fixed positions.
func extractGemmFields(line string) (Shape, bool) {
	if !strings.Contains(strings.ToLower(line), "gemm") {
		return Shape{}, false
	}

	parts := strings.Split(line, ",")
	if len(parts) < gemmMinFields {
		return Shape{}, false
	}

	m := strings.TrimSpace(parts[gemmFieldM])
	n := strings.TrimSpace(parts[gemmFieldN])
	k := strings.TrimSpace(parts[gemmFieldK])
	if !isInteger(m) || !isInteger(n) || !isInteger(k) {
		return Shape{}, false
	}

	return Shape{M: m, N: n, K: k}, true
}

// extractKeyValueShape finds "m=..", "n: ..", "k=.." anywhere in the line,
// case-insensitively and in any order. All three must be present.
func extractKeyValueShape(line string) (Shape, bool) {
	m := fallbackM.FindStringSubmatch(line)
	n := fallbackN.FindStringSubmatch(line)
	k := fallbackK.FindStringSubmatch(line)
	if m == nil || n == nil || k == nil {
		return Shape{}, false
	}
	return Shape{M: m[1], N: n[1], K: k[1]}, true
}

func isInteger(s string) bool {
	return integerLiteral.MatchString(s)
}
