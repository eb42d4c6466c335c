package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/irreview/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each reading what earlier steps stored
// in the run.
type Step interface {
	// Do executes the pipeline step.
	// Returns an error if the step fails critically; non-critical problems
	// should be recorded in the run log and return nil.
	Do(ctx context.Context, run *model.Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// final steps run after steps, whatever their outcome.
	final []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. The last error is still returned.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalStep appends a step that runs after all regular steps, even
// when one of them failed or the context was cancelled. Its error is
// logged and not returned.
func (p *Pipeline) AddFinalStep(step Step) {
	p.final = append(p.final, step)
}

// Execute runs all pipeline steps in sequence, then the final steps.
// Cancellation is checked before each step. The first error stops the
// run unless WithContinueOnError is set; it is recorded in the run log
// and returned.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	err := p.execute(ctx, run)
	if err != nil {
		run.Meta.Error = err.Error()
	}

	// Final steps must not be skipped because ctx was cancelled.
	finalCtx := context.WithoutCancel(ctx)
	for _, step := range p.final {
		if ferr := step.Do(finalCtx, run); ferr != nil {
			p.logger.Error("final step failed", "step", step.Name(), "error", ferr)
		}
	}
	return err
}

func (p *Pipeline) execute(ctx context.Context, run *model.Run) error {
	var lastErr error
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"run_id", run.Meta.RunID,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"run_id", run.Meta.RunID,
				"error", err,
			)
			if !p.continueOnError {
				return err
			}
			lastErr = err
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"run_id", run.Meta.RunID,
		)
		run.Meta.Steps = append(run.Meta.Steps, step.Name())
	}
	return lastErr
}

// StepCount returns the number of regular steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order, final
// steps last.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps)+len(p.final))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.final {
		names = append(names, step.Name())
	}
	return names
}
