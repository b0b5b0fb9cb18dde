package gate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

func ok(v string) Func[string] {
	return func(context.Context) (string, error) { return v, nil }
}

func fail(msg string) Func[string] {
	return func(context.Context) (string, error) { return "", errors.New(msg) }
}

func TestExecute_FallbackOnlyPrimaryFails(t *testing.T) {
	g := New(logger.NewTest(t))
	res, err := Execute(context.Background(), g, "aggregate", fail("primary exploded"), ok("from secondary"), Policy{Mode: ModeDefault, Fallback: true})
	require.NoError(t, err)
	assert.Equal(t, "from secondary", res.Value)
	assert.Equal(t, SourceSecondaryFallback, res.Source)
	assert.Equal(t, "primary exploded", res.FallbackReason)
}

func TestExecute_PrimarySucceeds(t *testing.T) {
	g := New(logger.NewTest(t))
	var secondaryCalls atomic.Int32
	secondary := func(context.Context) (string, error) {
		secondaryCalls.Add(1)
		return "s", nil
	}
	res, err := Execute[string](context.Background(), g, "aggregate", ok("p"), secondary, Policy{Fallback: true})
	require.NoError(t, err)
	assert.Equal(t, SourcePrimary, res.Source)
	assert.Empty(t, res.FallbackReason)
	assert.Zero(t, secondaryCalls.Load())
}

func TestExecute_ActiveMode(t *testing.T) {
	g := New(logger.NewTest(t))
	res, err := Execute(context.Background(), g, "aggregate", ok("p"), ok("s"), Policy{Mode: ModeActive})
	require.NoError(t, err)
	assert.Equal(t, SourceSecondary, res.Source)

	res, err = Execute(context.Background(), g, "aggregate", ok("p"), fail("warehouse down"), Policy{Mode: ModeActive, Fallback: true})
	require.NoError(t, err)
	assert.Equal(t, SourcePrimaryFallback, res.Source)
	assert.Equal(t, "warehouse down", res.FallbackReason)
}

func TestExecute_NoFallbackPropagates(t *testing.T) {
	g := New(logger.NewTest(t))
	_, err := Execute(context.Background(), g, "aggregate", fail("boom"), ok("s"), Policy{})
	assert.EqualError(t, err, "boom")
}

func TestExecute_BothFailReturnsFinalErrorUnmodified(t *testing.T) {
	g := New(logger.NewTest(t))
	final := errors.New("secondary also down")
	secondary := func(context.Context) (string, error) { return "", final }
	_, err := Execute(context.Background(), g, "aggregate", fail("primary down"), secondary, Policy{Fallback: true})
	assert.Same(t, final, err)
}

func TestExecute_NilBackendIsUnavailable(t *testing.T) {
	g := New(logger.NewTest(t))
	res, err := Execute(context.Background(), g, "aggregate", ok("p"), nil, Policy{Mode: ModeActive, Fallback: true})
	require.NoError(t, err)
	assert.Equal(t, SourcePrimaryFallback, res.Source)
	assert.Contains(t, res.FallbackReason, "not configured")

	_, err = Execute[string](context.Background(), g, "aggregate", nil, nil, Policy{})
	assert.True(t, survey.IsCode(err, survey.CodeBackendFailure))
}

func TestExecute_SpeculativeKeepsProvenance(t *testing.T) {
	g := New(logger.NewTest(t))
	slowPrimary := func(ctx context.Context) (string, error) {
		time.Sleep(10 * time.Millisecond)
		return "p", nil
	}
	res, err := Execute[string](context.Background(), g, "aggregate", slowPrimary, ok("s"), Policy{Fallback: true, Speculative: true})
	require.NoError(t, err)
	assert.Equal(t, "p", res.Value)
	assert.Equal(t, SourcePrimary, res.Source)

	res, err = Execute(context.Background(), g, "aggregate", fail("nope"), ok("s"), Policy{Fallback: true, Speculative: true})
	require.NoError(t, err)
	assert.Equal(t, SourceSecondaryFallback, res.Source)
	assert.Equal(t, "nope", res.FallbackReason)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeDefault, m)
	m, err = ParseMode("ACTIVE")
	require.NoError(t, err)
	assert.Equal(t, ModeActive, m)
	_, err = ParseMode("both")
	assert.True(t, survey.IsCode(err, survey.CodeValidation))
}
