// Package analyzer is the entry point of the structural engine: it checks and
// normalizes raw bytes, runs the lexer and scope parser, and exposes the query
// layer over the result.
package analyzer

import (
	"log/slog"
	"sort"
	"time"

	"pyscope/internal/core/errors"
	"pyscope/internal/engine/lexer"
	"pyscope/internal/engine/scope"
	"pyscope/internal/shared/observability"
)

const NativeEngine = "native"

// Engine extracts a Report from one source text. Implementations hold no
// per-call state and are safe for concurrent use.
type Engine interface {
	Name() string
	Analyze(filename string, text []byte) (*Report, error)
}

type Options struct {
	TabWidth int
	// MaxBytes rejects larger inputs; zero disables the check.
	MaxBytes int64
}

func DefaultOptions() Options {
	return Options{TabWidth: lexer.DefaultOptions().TabWidth}
}

// Native is the tokenizer-driven engine.
type Native struct {
	opts Options
}

var _ Engine = (*Native)(nil)

func NewNative(opts Options) *Native {
	if opts.TabWidth <= 0 {
		opts.TabWidth = DefaultOptions().TabWidth
	}
	return &Native{opts: opts}
}

func (n *Native) Name() string { return NativeEngine }

func (n *Native) Analyze(filename string, text []byte) (*Report, error) {
	start := time.Now()
	src, err := Prepare(filename, text, n.opts.MaxBytes)
	if err != nil {
		return nil, err
	}

	res := lexer.Tokenize(src, lexer.Options{TabWidth: n.opts.TabWidth})
	tree := scope.Parse(res)

	anomalies := make([]lexer.Anomaly, 0, len(res.Anomalies)+len(tree.Anomalies))
	anomalies = append(anomalies, res.Anomalies...)
	anomalies = append(anomalies, tree.Anomalies...)
	sort.SliceStable(anomalies, func(i, j int) bool { return anomalies[i].Line < anomalies[j].Line })

	report := &Report{
		Filename:  filename,
		Engine:    NativeEngine,
		Tree:      tree,
		Comments:  res.Comments,
		Anomalies: anomalies,
		Lines:     res.Lines,
	}
	Record(report, time.Since(start))
	return report, nil
}

// Prepare enforces the size cap, rejects non-text input and normalizes line
// endings.
func Prepare(filename string, text []byte, maxBytes int64) (string, error) {
	if maxBytes > 0 && int64(len(text)) > maxBytes {
		err := errors.Newf(errors.CodeValidationError, "input is %d bytes, limit is %d", len(text), maxBytes)
		return "", errors.AddContext(err, errors.CtxFilename, filename)
	}
	if err := CheckSourceText(text); err != nil {
		return "", errors.AddContext(err, errors.CtxFilename, filename)
	}
	return Normalize(text), nil
}

// Record logs every anomaly of a finished report and updates metrics.
func Record(report *Report, elapsed time.Duration) {
	observability.AnalysisDuration.WithLabelValues(report.Engine).Observe(elapsed.Seconds())
	observability.FilesAnalyzedTotal.Inc()
	for _, a := range report.Anomalies {
		observability.AnomaliesTotal.WithLabelValues(string(a.Kind)).Inc()
		slog.Warn("recovered malformed source", "file", report.Filename, "line", a.Line, "kind", a.Kind, "detail", a.Message)
	}
	if report.Tree != nil && report.Tree.Malformed {
		slog.Error("scope tree failed its nesting check", "file", report.Filename, "engine", report.Engine)
	}
}
