// Package reconcile matches normalized upload rows against each other or
// against a truth source and scores the outcome per row or tracking group.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/insightdelivered/order-reconciler/internal/extractor"
	"github.com/insightdelivered/order-reconciler/internal/models"
	"github.com/insightdelivered/order-reconciler/internal/parser"
	"github.com/insightdelivered/order-reconciler/internal/truthsource"
)

var (
	ErrNoPayloads   = errors.New("no files supplied")
	ErrNoUsableRows = errors.New("no usable rows found")
)

// FileHeaders records the headers seen in one uploaded file.
type FileHeaders struct {
	File    string
	Role    models.SourceMode
	Headers []string
}

// NoRowsError is returned when none of the supplied files produced a row.
type NoRowsError struct {
	Files []FileHeaders
}

func (e *NoRowsError) Error() string {
	parts := make([]string, len(e.Files))
	for i, f := range e.Files {
		parts[i] = fmt.Sprintf("%s (%s): [%s]", f.File, f.Role, strings.Join(f.Headers, ", "))
	}
	return fmt.Sprintf("%v in any uploaded file; headers found: %s", ErrNoUsableRows, strings.Join(parts, "; "))
}

func (e *NoRowsError) Unwrap() error { return ErrNoUsableRows }

// Config configures an Engine.
type Config struct {
	// Source is the truth source; nil when none is configured.
	Source truthsource.Source
	// Policy defaults to DefaultPolicy when nil. A zero Policy is honored.
	Policy         *Policy
	MaxConcurrency int
	RequestTimeout time.Duration
	Logger         logrus.FieldLogger
}

// Options are the per-request choices of the caller.
type Options struct {
	Strategy models.Strategy
	Modes    []models.SourceMode
}

// Engine runs one reconciliation request end to end.
type Engine struct {
	cfg    Config
	policy Policy
}

func NewEngine(cfg Config) *Engine {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	policy := DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = l
	}
	return &Engine{cfg: cfg, policy: policy}
}

// SelectStrategy resolves the requested strategy. Auto merges when several
// files are supplied or there is no truth source, and verifies otherwise.
func SelectStrategy(requested models.Strategy, payloads int, hasSource bool) (models.Strategy, error) {
	switch requested {
	case models.StrategyMerge:
		return models.StrategyMerge, nil
	case models.StrategyVerify:
		if !hasSource {
			return "", fmt.Errorf("verify strategy: %w", truthsource.ErrNotConfigured)
		}
		return models.StrategyVerify, nil
	case models.StrategyAuto, "":
		if payloads > 1 || !hasSource {
			return models.StrategyMerge, nil
		}
		return models.StrategyVerify, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", requested)
	}
}

// Run parses payloads, applies the selected strategy and summarizes.
// Per-row failures become ERROR results; only request-level problems are
// returned as errors.
func (e *Engine) Run(ctx context.Context, payloads []models.FilePayload, opts Options) (*models.Report, error) {
	start := time.Now()
	requestID := uuid.NewString()
	log := e.cfg.Logger.WithField("requestId", requestID)

	if len(payloads) == 0 {
		return nil, ErrNoPayloads
	}
	strategy, err := SelectStrategy(opts.Strategy, len(payloads), e.cfg.Source != nil)
	if err != nil {
		return nil, err
	}

	rows, err := e.parseAll(payloads)
	if err != nil {
		return nil, err
	}

	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}

	var details []models.ReconciliationResult
	switch strategy {
	case models.StrategyMerge:
		details = Merge(rows)
	case models.StrategyVerify:
		v := &Verifier{Source: e.cfg.Source, Policy: e.policy, Modes: opts.Modes}
		details = e.verifyAll(ctx, v, rows)
	}

	summary := Summarize(strategy, details)
	for _, d := range details {
		if d.Verdict == models.VerdictError {
			log.WithFields(logrus.Fields{
				"sourceFile": d.SourceFile,
				"row":        d.Row,
				"tracking":   d.TrackingUpload,
			}).Warn(d.Reason)
		}
	}
	log.WithFields(logrus.Fields{
		"strategy":   strategy,
		"files":      len(payloads),
		"rows":       len(rows),
		"results":    len(details),
		"errors":     summary.Count(models.VerdictError),
		"durationMs": time.Since(start).Milliseconds(),
	}).Info("reconciliation finished")

	return &models.Report{
		RequestID: requestID,
		Strategy:  strategy,
		Summary:   summary,
		Details:   details,
	}, nil
}

type parsedFile struct {
	rows    []models.UploadRow
	headers []string
	err     error
}

// parseAll decodes every payload concurrently. Rows are concatenated in
// payload order. A format error in any file fails the request.
func (e *Engine) parseAll(payloads []models.FilePayload) ([]models.UploadRow, error) {
	parsed := make([]parsedFile, len(payloads))

	var wg sync.WaitGroup
	for i, p := range payloads {
		wg.Add(1)
		go func(i int, p models.FilePayload) {
			defer wg.Done()
			parsed[i] = parsePayload(p)
		}(i, p)
	}
	wg.Wait()

	var rows []models.UploadRow
	for i, pf := range parsed {
		if pf.err != nil {
			return nil, fmt.Errorf("%s: %w", payloads[i].Filename, pf.err)
		}
		rows = append(rows, pf.rows...)
	}

	if len(rows) == 0 {
		noRows := &NoRowsError{}
		for i, pf := range parsed {
			noRows.Files = append(noRows.Files, FileHeaders{
				File:    payloads[i].Filename,
				Role:    payloads[i].Role,
				Headers: pf.headers,
			})
		}
		return nil, noRows
	}
	return rows, nil
}

func parsePayload(p models.FilePayload) (pf parsedFile) {
	defer func() {
		if r := recover(); r != nil {
			pf = parsedFile{err: fmt.Errorf("parsing failed: %v", r)}
		}
	}()

	table, err := extractor.ReadWithHeaders(p.Filename, p.Data, parser.HeaderScore(p.Role))
	if err != nil {
		return parsedFile{err: err}
	}
	prs, err := parser.New(p.Role)
	if err != nil {
		return parsedFile{err: err}
	}
	return parsedFile{rows: prs.Parse(table, p.Filename), headers: table.Headers}
}

// verifyAll checks rows with at most MaxConcurrency in flight. Output follows
// input order. Rows that cannot start before the deadline resolve to ERROR.
func (e *Engine) verifyAll(ctx context.Context, v *Verifier, rows []models.UploadRow) []models.ReconciliationResult {
	results := make([]models.ReconciliationResult, len(rows))
	sem := make(chan struct{}, e.cfg.MaxConcurrency)

	var wg sync.WaitGroup
	for i, row := range rows {
		if ctx.Err() != nil {
			results[i] = errorResult(row, deadlineReason)
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = errorResult(row, deadlineReason)
			continue
		}

		wg.Add(1)
		go func(i int, row models.UploadRow) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					results[i] = errorResult(row, fmt.Sprint(r))
				}
			}()
			results[i] = v.Verify(ctx, row)
		}(i, row)
	}
	wg.Wait()
	return results
}
