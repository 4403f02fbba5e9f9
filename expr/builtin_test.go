package expr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/srgresolver/attribute"
	"github.com/c360/srgresolver/sourceset"
)

func TestSyncError(t *testing.T) {
	e, err := ParseExpression("syncError(2,'pull','ref')")
	require.NoError(t, err)

	objects := map[string]*attribute.Map{
		"pull": attribute.MapOf("updateTime", 0.1, "latency", 0.05),
		"ref":  attribute.MapOf("latency", 0.02),
	}
	v, err := e.Eval(Global(objects, nil))
	require.NoError(t, err)
	n, err := v.Number()
	require.NoError(t, err)

	// q/(12*dt) * (t1^4 - t2^4) with t1 = 0.13, t2 = 0.03
	want := 2.0 / (12 * 0.1) * (math.Pow(0.13, 4) - math.Pow(0.03, 4))
	assert.InDelta(t, want, n, 1e-12)
}

func TestSyncErrorZeroUpdateTime(t *testing.T) {
	e, err := ParseExpression("syncError(2,'pull','ref')")
	require.NoError(t, err)

	objects := map[string]*attribute.Map{
		"pull": attribute.MapOf("updateTime", 0, "latency", 0.05),
		"ref":  attribute.MapOf("latency", 0.02),
	}
	v, err := e.Eval(Global(objects, nil))
	require.NoError(t, err)
	n, err := v.Number()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSyncErrorMissingEdge(t *testing.T) {
	e, err := ParseExpression("syncError(2,'pull','ref')")
	require.NoError(t, err)
	_, err = e.Eval(Global(map[string]*attribute.Map{}, nil))
	assert.Error(t, err)
}

func TestSyncErrorArity(t *testing.T) {
	_, err := ParseExpression("syncError(1,'pull')")
	assert.Error(t, err)
}

func TestSteadyState(t *testing.T) {
	e, err := ParseExpression("steadyState(1,'A',0.01,0.001)")
	require.NoError(t, err)

	v, err := e.Eval(Global(map[string]*attribute.Map{}, nil))
	require.NoError(t, err)
	n, err := v.Number()
	require.NoError(t, err)
	assert.False(t, math.IsNaN(n))
	assert.False(t, math.IsInf(n, 0))
	assert.GreaterOrEqual(t, n, 0.0)
}

func TestSteadyStateBadKind(t *testing.T) {
	e, err := ParseExpression("steadyState(1,'X',0.01,0.001)")
	require.NoError(t, err)
	_, err = e.Eval(Global(map[string]*attribute.Map{}, nil))
	assert.Error(t, err)
}

func TestSteadyStateArity(t *testing.T) {
	// argument count must be 1 + 3*n
	_, err := ParseExpression("steadyState(1,'A',0.01)")
	assert.Error(t, err)
}

func TestSteadyStateLocalContextRefused(t *testing.T) {
	e, err := ParseExpression("steadyState(1,'A',0.01,0.001)")
	require.NoError(t, err)
	_, err = e.Eval(Local(attribute.NewMap(), nil))
	assert.Error(t, err)
}

func TestSourceCount(t *testing.T) {
	sources := sourceset.New("cam1:e", "cam2:e", "imu1:e")

	tests := []struct {
		input string
		want  float64
	}{
		{"sourceCount()", 3},
		{"sourceCount('cam')", 2},
		{"sourceCount('imu')", 1},
		{"sourceCount('gps')", 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			e, err := ParseExpression(tt.input)
			require.NoError(t, err)

			// global context counts the match sources
			v, err := e.Eval(Global(nil, sources))
			require.NoError(t, err)
			n, err := v.Number()
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			// local context counts the edge sources
			v, err = e.Eval(Local(attribute.NewMap(), sources))
			require.NoError(t, err)
			n, err = v.Number()
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestUnknownFunction(t *testing.T) {
	e, err := ParseExpression("frobnicate(1)")
	require.NoError(t, err)

	// without a hook the evaluation fails and is dropped at the boundary
	_, err = e.Eval(Context{})
	assert.Error(t, err)

	// a domain hook resolves it by name
	ctx := Context{}.WithHook(func(name string, args []attribute.Value) (attribute.Value, error) {
		assert.Equal(t, "frobnicate", name)
		require.Len(t, args, 1)
		return attribute.Number(99), nil
	})
	v, err := e.Eval(ctx)
	require.NoError(t, err)
	n, err := v.Number()
	require.NoError(t, err)
	assert.Equal(t, 99.0, n)
}
