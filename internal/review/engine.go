package review

import (
	"context"
	"time"

	"github.com/reposage/reposage/internal/fault"
	"github.com/reposage/reposage/internal/loggy"
)

// Generator is the single model capability the engine needs. Satisfied
// by gemini.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Engine turns a prompt into a validated AnalysisResult. The Generator
// owns the per-attempt deadline and transport retries; the engine owns
// the single schema-repair re-prompt.
type Engine struct {
	generator Generator
	builder   *PromptBuilder
	logger    *loggy.Logger
}

// NewEngine creates an analysis engine.
func NewEngine(generator Generator, builder *PromptBuilder, logger *loggy.Logger) *Engine {
	return &Engine{
		generator: generator,
		builder:   builder,
		logger:    logger,
	}
}

// Analyze invokes the model with prompt and validates the response.
// A malformed response earns exactly one repair attempt, re-prompting
// with the schema restated; a second malformed response surfaces the
// fault unchanged. Invalid data is never coerced into a result.
func (e *Engine) Analyze(ctx context.Context, prompt string) (*AnalysisResult, error) {
	raw, err := e.invoke(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result, err := ParseResult(raw)
	if err == nil {
		return result, nil
	}
	if !fault.IsKind(err, fault.KindMalformedResponse) {
		return nil, err
	}

	e.logger.Warn("model response failed validation, attempting repair", "error", err)

	repairPrompt, buildErr := e.builder.Repair(prompt, err.Error())
	if buildErr != nil {
		return nil, err
	}

	raw, invokeErr := e.invoke(ctx, repairPrompt)
	if invokeErr != nil {
		return nil, invokeErr
	}

	result, repairErr := ParseResult(raw)
	if repairErr != nil {
		return nil, repairErr
	}

	e.logger.Info("repair re-prompt produced a valid response")
	return result, nil
}

// invoke runs one model call, mapping a blown caller deadline onto the
// timeout fault. Per-attempt deadlines and retry budgets are the
// generator's to enforce.
func (e *Engine) invoke(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	raw, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded && fault.KindOf(err) != fault.KindTimeout {
			return "", fault.Wrap(fault.KindTimeout, err, "model invocation cancelled by deadline")
		}
		return "", err
	}

	e.logger.Debug("model invocation finished",
		"elapsed", time.Since(start),
		"prompt_bytes", len(prompt),
		"response_bytes", len(raw))
	return raw, nil
}
