// Package pipeline runs an ordered list of weighted processing stages over a
// captured artifact, reporting cumulative progress as each stage completes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alkime/wardrobe/internal/artifact"
)

// ErrNoArtifact is the cause recorded when a stage returns without output.
var ErrNoArtifact = errors.New("stage produced no artifact")

// Handler performs one stage. Its output is the next stage's input.
// Long-running handlers should return promptly once ctx is done.
type Handler func(ctx context.Context, in artifact.Artifact) (artifact.Artifact, error)

// Progress is reported when a stage starts (Done false) and when it
// completes (Done true). Percent is the cumulative weight of completed stages.
type Progress struct {
	Stage   string
	Index   int
	Total   int
	Percent int
	Done    bool
}

// StageError reports which stage failed and why.
type StageError struct {
	Stage string
	Index int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline is an immutable, validated sequence of stages.
type Pipeline struct {
	spec     Spec
	handlers []Handler
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for stage lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New validates spec and binds a handler to each stage by name.
func New(spec Spec, handlers map[string]Handler, opts ...Option) (*Pipeline, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	bound := make([]Handler, len(spec.Stages))

	for i, st := range spec.Stages {
		h, ok := handlers[st.Name]
		if !ok || h == nil {
			return nil, fmt.Errorf("%w: no handler for stage %q", ErrInvalidSpec, st.Name)
		}

		bound[i] = h
	}

	p := &Pipeline{
		spec:     Spec{Stages: append([]StageSpec(nil), spec.Stages...)},
		handlers: bound,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Spec returns a copy of the stage spec.
func (p *Pipeline) Spec() Spec {
	return Spec{Stages: append([]StageSpec(nil), p.spec.Stages...)}
}

// Run executes every stage in order against in. Progress is delivered to
// report on the calling goroutine. Cancellation is checked at every stage
// boundary and returned as ctx.Err(); stage errors are returned as
// *StageError and stop the run.
func (p *Pipeline) Run(
	ctx context.Context,
	in artifact.Artifact,
	report func(Progress),
) (artifact.Artifact, error) {
	if report == nil {
		report = func(Progress) {}
	}

	total := len(p.spec.Stages)
	current := in
	completed := 0

	for i, st := range p.spec.Stages {
		if err := ctx.Err(); err != nil {
			p.logger.Info("pipeline cancelled", "before_stage", st.Name)
			return artifact.Artifact{}, err
		}

		report(Progress{Stage: st.Name, Index: i, Total: total, Percent: clampPercent(completed)})

		p.logger.Info("stage started", "stage", st.Name, "index", i, "total", total)
		started := time.Now()

		out, err := p.handlers[i](ctx, current)

		if ctxErr := ctx.Err(); ctxErr != nil {
			p.logger.Info("pipeline cancelled", "stage", st.Name)
			return artifact.Artifact{}, ctxErr
		}

		if err == nil && out.IsZero() {
			err = ErrNoArtifact
		}

		if err != nil {
			p.logger.Warn("stage failed", "stage", st.Name, "index", i, "error", err)
			return artifact.Artifact{}, &StageError{Stage: st.Name, Index: i, Err: err}
		}

		completed += st.Weight
		p.logger.Info("stage finished",
			"stage", st.Name,
			"duration", time.Since(started),
			"output", out.Path,
			"progress", clampPercent(completed))

		report(Progress{Stage: st.Name, Index: i, Total: total, Percent: clampPercent(completed), Done: true})

		current = out
	}

	return current, nil
}
