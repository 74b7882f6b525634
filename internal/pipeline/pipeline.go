// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nativeship/nativeship/pkg/types"
)

const (
	// Fatal stages stop the run on error.
	Fatal Policy = iota
	// BestEffort stages log their error and let the run continue.
	BestEffort
)

const (
	outcomeContinue outcomeKind = iota
	outcomeAbort
)

type (
	// Policy decides what a stage error means for the run.
	Policy int

	outcomeKind int

	// Outcome is the tagged result of a stage: Continue or Abort(code).
	Outcome struct {
		kind outcomeKind
		code types.ExitCode
	}

	// StageFunc runs one stage against the shared run state.
	StageFunc func(ctx context.Context, st *State) (Outcome, error)

	// Stage is a named step with a failure policy.
	Stage struct {
		Name   string
		Policy Policy
		Run    StageFunc
	}

	// Result summarizes a run.
	Result struct {
		// Code is the process exit code the run maps to.
		Code types.ExitCode
		// Completed lists the stages that ran to the end, in order. Best-effort
		// stages that failed are included.
		Completed []string
		// Stopped names the stage that ended the run early, if any.
		Stopped string
		// Warnings are the tolerated errors of best-effort stages.
		Warnings []error
	}

	// Pipeline runs stages in order.
	Pipeline struct {
		stages []Stage
		logger *log.Logger
	}
)

// Continue lets the run proceed to the next stage.
func Continue() Outcome { return Outcome{kind: outcomeContinue} }

// Abort stops the run and makes code the process exit code.
func Abort(code types.ExitCode) Outcome { return Outcome{kind: outcomeAbort, code: code} }

// IsAbort reports whether the outcome stops the run.
func (o Outcome) IsAbort() bool { return o.kind == outcomeAbort }

// Code returns the abort exit code, or ExitSuccess for Continue.
func (o Outcome) Code() types.ExitCode {
	if o.kind == outcomeAbort {
		return o.code
	}
	return types.ExitSuccess
}

// String implements fmt.Stringer.
func (o Outcome) String() string {
	if o.IsAbort() {
		return fmt.Sprintf("abort(%s)", o.code)
	}
	return "continue"
}

// String implements fmt.Stringer.
func (p Policy) String() string {
	switch p {
	case Fatal:
		return "fatal"
	case BestEffort:
		return "best-effort"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// New creates a pipeline over stages. A nil logger discards logs.
func New(logger *log.Logger, stages ...Stage) *Pipeline {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pipeline{stages: stages, logger: logger}
}

// Stages returns the stage names in run order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Run executes the stages in order. The returned error is the error that
// stopped the run (a fatal stage error, an aborting stage's error, or context
// cancellation); Result.Code is the exit code the run maps to either way.
func (p *Pipeline) Run(ctx context.Context, st *State) (Result, error) {
	var res Result

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			res.Code = types.ExitFailure
			res.Stopped = stage.Name
			return res, err
		}

		start := time.Now()
		p.logger.Debug("stage started", "stage", stage.Name, "policy", stage.Policy)
		outcome, err := stage.Run(ctx, st)
		elapsed := time.Since(start).Round(time.Millisecond)

		if outcome.IsAbort() {
			p.logger.Error("stage aborted the run", "stage", stage.Name, "code", outcome.Code(), "elapsed", elapsed)
			res.Code = outcome.Code()
			res.Stopped = stage.Name
			return res, err
		}

		if err != nil {
			if stage.Policy == BestEffort && ctx.Err() == nil {
				p.logger.Warn("stage failed, continuing", "stage", stage.Name, "error", err)
				res.Warnings = append(res.Warnings, err)
				res.Completed = append(res.Completed, stage.Name)
				continue
			}
			p.logger.Error("stage failed", "stage", stage.Name, "elapsed", elapsed)
			res.Code = types.ExitFailure
			res.Stopped = stage.Name
			return res, err
		}

		p.logger.Info("stage finished", "stage", stage.Name, "elapsed", elapsed)
		res.Completed = append(res.Completed, stage.Name)
	}

	res.Code = types.ExitSuccess
	return res, nil
}
