package capability

import (
	"context"
	"time"

	"cheshire/internal/core"
)

// PipelineProcessor is the frozen pre-exec-post chain bound to one action.
// The step lists are defensive copies taken at construction; the same
// processor instance serves every request for its action concurrently, so
// steps must be thread-safe.
type PipelineProcessor struct {
	capability  string
	action      string
	inputShape  core.Shape
	outputShape core.Shape
	pre         []core.PreProcessor
	exec        core.Executor
	post        []core.PostProcessor
}

// NewPipelineProcessor assembles a processor with frozen step lists.
func NewPipelineProcessor(capability, action string, input, output core.Shape,
	pre []core.PreProcessor, exec core.Executor, post []core.PostProcessor) *PipelineProcessor {
	p := &PipelineProcessor{
		capability:  capability,
		action:      action,
		inputShape:  input,
		outputShape: output,
		pre:         make([]core.PreProcessor, len(pre)),
		exec:        exec,
		post:        make([]core.PostProcessor, len(post)),
	}
	copy(p.pre, pre)
	copy(p.post, post)
	return p
}

// Action returns the action name this processor serves.
func (p *PipelineProcessor) Action() string { return p.action }

// InputShape returns the declared input shape.
func (p *PipelineProcessor) InputShape() core.Shape { return p.inputShape }

// OutputShape returns the declared output shape.
func (p *PipelineProcessor) OutputShape() core.Shape { return p.outputShape }

// Execute folds the input through the pre steps, applies the executor, then
// folds the result through the post steps. The fold is strictly sequential;
// each step observes the shared context bag and receives the previous step's
// value. Step errors abort the run and are wrapped with the capability,
// action, and step that raised them; the cause is preserved for status
// mapping. An expired request deadline fails the next step boundary with a
// timeout error.
func (p *PipelineProcessor) Execute(ctx *core.PipelineContext, in *core.CanonicalInput) (*core.CanonicalOutput, error) {
	ctx.SetIfAbsent(core.MetaPipelineAt, time.Now())

	acc := in
	for _, step := range p.pre {
		if ctx.Expired() {
			return nil, core.NewTimeoutError("pre step " + step.Name())
		}
		next, err := step.Apply(ctx, acc)
		if err != nil {
			return nil, p.wrap(step.Name(), err)
		}
		acc = next
	}

	if ctx.Expired() {
		return nil, core.NewTimeoutError("executor " + p.exec.Name())
	}
	out, err := p.exec.Execute(ctx, acc)
	if err != nil {
		return nil, p.wrap(p.exec.Name(), err)
	}

	for _, step := range p.post {
		if ctx.Expired() {
			return nil, core.NewTimeoutError("post step " + step.Name())
		}
		out, err = step.Apply(ctx, out)
		if err != nil {
			return nil, p.wrap(step.Name(), err)
		}
	}

	if out.Shape() != p.outputShape {
		out = out.WithShape(p.outputShape)
	}
	return out, nil
}

// Outcome is the result delivered by the async entry point.
type Outcome struct {
	Output *core.CanonicalOutput
	Err    error
}

// ExecuteAsync schedules a synchronous Execute on its own goroutine and
// returns a single-delivery channel. A context cancelled before the run
// starts short-circuits with the context's error.
func (p *PipelineProcessor) ExecuteAsync(ctx context.Context, pctx *core.PipelineContext, in *core.CanonicalInput) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		if err := ctx.Err(); err != nil {
			ch <- Outcome{Err: err}
			return
		}
		out, err := p.Execute(pctx, in)
		ch <- Outcome{Output: out, Err: err}
	}()
	return ch
}

func (p *PipelineProcessor) wrap(step string, err error) error {
	return &core.ExecutionError{
		Capability: p.capability,
		Action:     p.action,
		Step:       step,
		Err:        err,
	}
}
