package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposage/reposage/internal/fault"
	"github.com/reposage/reposage/internal/loggy"
)

// scriptedGenerator returns canned responses (or errors) in order.
type scriptedGenerator struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fault.Wrap(fault.KindTimeout, err, "scripted context expired")
	}

	i := g.calls
	g.calls++
	g.prompts = append(g.prompts, prompt)

	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return "", fault.New(fault.KindInternal, "scripted generator exhausted")
}

func testEngine(g Generator) *Engine {
	return NewEngine(g, NewPromptBuilder(DepthStandard), loggy.NewNoopLogger())
}

func TestEngineAnalyzeValidFirstTry(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{validResponse()}}

	result, err := testEngine(gen).Analyze(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 75, result.OverallScore)
	assert.Equal(t, GradeC, result.Grade)
}

func TestEngineRepairsMalformedResponse(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"Sorry, I can only review code in prose form.",
		validResponse(),
	}}

	result, err := testEngine(gen).Analyze(context.Background(), "the prompt")
	require.NoError(t, err)
	require.Equal(t, 2, gen.calls)
	assert.Equal(t, GradeC, result.Grade)

	// The second call is the repair re-prompt carrying the schema
	// reminder plus the original request.
	assert.Contains(t, gen.prompts[1], "could not be parsed")
	assert.Contains(t, gen.prompts[1], "the prompt")
}

func TestEngineSurfacesSecondMalformedResponse(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"not json",
		"still not json",
	}}

	_, err := testEngine(gen).Analyze(context.Background(), "the prompt")
	require.Error(t, err)
	assert.Equal(t, 2, gen.calls, "exactly one repair attempt is allowed")
	assert.Equal(t, fault.KindMalformedResponse, fault.KindOf(err))
}

func TestEngineDoesNotRepairTransportErrors(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{
		fault.New(fault.KindQuotaExceeded, "quota exhausted"),
	}}

	_, err := testEngine(gen).Analyze(context.Background(), "the prompt")
	require.Error(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, fault.KindQuotaExceeded, fault.KindOf(err))
}

func TestEngineMapsCallerDeadlineToTimeoutFault(t *testing.T) {
	slow := generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := testEngine(slow).Analyze(ctx, "the prompt")
	require.Error(t, err)
	assert.Equal(t, fault.KindTimeout, fault.KindOf(err))
}

func TestEngineDoesNotRepairTimeoutFaults(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{
		fault.New(fault.KindTimeout, "model call deadline exceeded"),
	}}

	_, err := testEngine(gen).Analyze(context.Background(), "the prompt")
	require.Error(t, err)
	assert.Equal(t, 1, gen.calls, "timeouts are the generator's to retry, not the engine's")
	assert.Equal(t, fault.KindTimeout, fault.KindOf(err))
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
