package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/irreview/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, run *model.Run) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, run *model.Run) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, run)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func newRun(t *testing.T) *model.Run {
	t.Helper()
	return model.NewRun("run-1", "/in/q1.pdf", t.TempDir(), time.Date(2025, 5, 14, 9, 0, 0, 0, time.UTC))
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.continueOnError {
			t.Error("continueOnError should default to false")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		if p := New(WithContinueOnError(true)); !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

func TestPipelineStepNames(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})
	p.AddFinalStep(&mockStep{name: "last"})

	if p.StepCount() != 3 {
		t.Errorf("StepCount() = %d, want 3", p.StepCount())
	}
	if got := p.StepNames(); !slices.Equal(got, []string{"first", "second", "third", "last"}) {
		t.Errorf("StepNames() = %v", got)
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order and records them", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *model.Run) error {
				order = append(order, name)
				return nil
			}}
		}

		p := New()
		p.AddSteps(record("a"), record("b"))
		p.AddFinalStep(record("final"))

		run := newRun(t)
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !slices.Equal(order, []string{"a", "b", "final"}) {
			t.Errorf("order = %v", order)
		}
		if !slices.Equal(run.Meta.Steps, []string{"a", "b"}) {
			t.Errorf("Meta.Steps = %v", run.Meta.Steps)
		}
	})

	t.Run("stops on first error but runs final steps", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *model.Run) error { return errBoom }}
		skipped := &mockStep{name: "skipped"}
		final := &mockStep{name: "final"}

		p := New()
		p.AddSteps(failing, skipped)
		p.AddFinalStep(final)

		run := newRun(t)
		if err := p.Execute(context.Background(), run); !errors.Is(err, errBoom) {
			t.Fatalf("Execute() error = %v, want %v", err, errBoom)
		}
		if skipped.callCount != 0 {
			t.Error("step after a failure was executed")
		}
		if final.callCount != 1 {
			t.Error("final step was not executed")
		}
		if run.Meta.Error != "boom" {
			t.Errorf("Meta.Error = %q", run.Meta.Error)
		}
	})

	t.Run("continues after an error when configured", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")
		after := &mockStep{name: "after"}

		p := New(WithContinueOnError(true))
		p.AddSteps(&mockStep{name: "failing", doFunc: func(context.Context, *model.Run) error { return errBoom }}, after)

		run := newRun(t)
		if err := p.Execute(context.Background(), run); !errors.Is(err, errBoom) {
			t.Errorf("Execute() error = %v, want %v", err, errBoom)
		}
		if after.callCount != 1 {
			t.Error("step after the failure was not executed")
		}
		if !slices.Equal(run.Meta.Steps, []string{"after"}) {
			t.Errorf("Meta.Steps = %v", run.Meta.Steps)
		}
	})

	t.Run("respects cancellation between steps", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		first := &mockStep{name: "first", doFunc: func(context.Context, *model.Run) error {
			cancel()
			return nil
		}}
		second := &mockStep{name: "second"}
		var finalCtxErr error
		final := &mockStep{name: "final", doFunc: func(ctx context.Context, _ *model.Run) error {
			finalCtxErr = ctx.Err()
			return nil
		}}

		p := New()
		p.AddSteps(first, second)
		p.AddFinalStep(final)

		if err := p.Execute(ctx, newRun(t)); !errors.Is(err, context.Canceled) {
			t.Errorf("Execute() error = %v, want context.Canceled", err)
		}
		if second.callCount != 0 {
			t.Error("step ran after cancellation")
		}
		if final.callCount != 1 || finalCtxErr != nil {
			t.Errorf("final step calls = %d, ctx err = %v", final.callCount, finalCtxErr)
		}
	})

	t.Run("final step error is not returned", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddFinalStep(&mockStep{name: "final", doFunc: func(context.Context, *model.Run) error {
			return errors.New("disk full")
		}})
		if err := p.Execute(context.Background(), newRun(t)); err != nil {
			t.Errorf("Execute() error = %v", err)
		}
	})
}
