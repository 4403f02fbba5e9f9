package expr

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/c360/srgresolver/attribute"
	"github.com/c360/srgresolver/errors"
)

// evalSyncError computes the error of synchronizing a pull input with a
// reference input. Arguments: motion model q, name of the pulled edge, name
// of the reference edge. The pulled edge must carry updateTime and latency,
// the reference edge latency.
func evalSyncError(c Context, args []Expr) (attribute.Value, error) {
	if !c.IsGlobal() {
		return attribute.Value{}, errors.ErrLocalNotAllowed
	}

	qv, err := args[0].Eval(c)
	if err != nil {
		return attribute.Value{}, err
	}
	q, err := qv.Number()
	if err != nil {
		return attribute.Value{}, err
	}

	syncName, err := evalText(c, args[1])
	if err != nil {
		return attribute.Value{}, err
	}
	refName, err := evalText(c, args[2])
	if err != nil {
		return attribute.Value{}, err
	}

	sync := c.ObjectAttributes(syncName)
	ref := c.ObjectAttributes(refName)
	if sync == nil || ref == nil {
		return attribute.Value{}, fmt.Errorf("%w: edge not found", errors.ErrObjectNotFound)
	}

	updateTime, err := attrNumber(sync, "updateTime")
	if err != nil {
		return attribute.Value{}, err
	}
	syncLatency, err := attrNumber(sync, "latency")
	if err != nil {
		return attribute.Value{}, err
	}
	refLatency, err := attrNumber(ref, "latency")
	if err != nil {
		return attribute.Value{}, err
	}

	// avoid division by zero
	if updateTime < 1e-10 {
		return attribute.Number(0), nil
	}

	t1 := math.Max(0, syncLatency-refLatency+updateTime)
	t2 := math.Max(0, syncLatency-refLatency)
	result := q / (12.0 * updateTime) * (t1*t1*t1*t1 - t2*t2*t2*t2)
	return attribute.Number(result), nil
}

// evalSteadyState computes the steady-state solution of a simple two-state
// Kalman filter with state update S_n+1 = S_n * [1, dt; 0, 1].
//
// For an explanation, see: D. Allen and G. Welch, "A General Method for
// Comparing the Expected Performance of Tracking and Motion Capture
// Systems", VRST 2005.
//
// The function has 1 + 3*n arguments:
//   - arg 1: q defining the motion model Q = q * [1/3*dt^3, 1/2*dt^2; 1/2*dt^2, dt]
//   - arg 3*i+2: "A" for absolute (H = [1, 0]), "R" for relative (H = [0, 1]) measurement
//   - arg 3*i+3: dt, the time between measurements
//   - arg 3*i+4: r, the measurement variance
func evalSteadyState(c Context, args []Expr) (attribute.Value, error) {
	if !c.IsGlobal() {
		return attribute.Value{}, errors.ErrLocalNotAllowed
	}

	qv, err := args[0].Eval(c)
	if err != nil {
		return attribute.Value{}, err
	}
	q, err := qv.Number()
	if err != nil {
		return attribute.Value{}, err
	}

	psiSum := mat.NewDense(4, 4, nil)
	for start := 1; start < len(args); start += 3 {
		kind, err := evalText(c, args[start])
		if err != nil {
			return attribute.Value{}, err
		}
		dtv, err := args[start+1].Eval(c)
		if err != nil {
			return attribute.Value{}, err
		}
		dt, err := dtv.Number()
		if err != nil {
			return attribute.Value{}, err
		}
		rv, err := args[start+2].Eval(c)
		if err != nil {
			return attribute.Value{}, err
		}
		r, err := rv.Number()
		if err != nil {
			return attribute.Value{}, err
		}

		var psi *mat.Dense
		switch kind {
		case "A":
			// measurement of absolute value
			psi = mat.NewDense(4, 4, []float64{
				1.0 - 1/r*(q*dt*dt*dt)/6.0, dt, -(q * dt * dt * dt) / 6.0, (q * dt * dt) / 2.0,
				-1 / r * (q * dt * dt) / 2.0, 1.0, -(q * dt * dt) / 2.0, q * dt,
				1 / r, 0.0, 1.0, 0.0,
				-1 / r * dt, 0.0, -dt, 1.0,
			})
		case "R":
			// measurement of velocity
			psi = mat.NewDense(4, 4, []float64{
				1.0, dt + 1/r*(q*dt*dt)/2.0, -(q * dt * dt * dt) / 6.0, (q * dt * dt) / 2.0,
				0.0, 1.0 + 1/r*(q*dt), -(q * dt * dt) / 2.0, q * dt,
				0.0, 0.0, 1.0, 0.0,
				0.0, 1 / r, -dt, 1.0,
			})
		default:
			return attribute.Value{}, fmt.Errorf("steadyState: unknown measurement type %q", kind)
		}
		psiSum.Add(psiSum, psi)
	}

	// complex eigenvectors of psiSum
	var eig mat.Eigen
	if !eig.Factorize(psiSum, mat.EigenRight) {
		return attribute.Value{}, errors.ErrSingularMatrix
	}
	vectors := mat.NewCDense(4, 4, nil)
	eig.VectorsTo(vectors)

	// B and C submatrices of the eigenvector matrix
	var b, cm [2][2]complex128
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			b[i][j] = vectors.At(i, j)
			cm[i][j] = vectors.At(i+2, j)
		}
	}

	// invert C
	det := cm[0][0]*cm[1][1] - cm[0][1]*cm[1][0]
	if det == 0 {
		return attribute.Value{}, errors.ErrSingularMatrix
	}
	ci00 := cm[1][1] / det
	ci10 := -cm[1][0] / det

	// result is the (0,0) entry of B * C^-1
	result := b[0][0]*ci00 + b[0][1]*ci10
	return attribute.Number(cmplx.Abs(result)), nil
}

// evalSourceCount counts the information sources whose identifiers start
// with a given prefix; without an argument it counts all sources. In a
// local context the enclosing edge's sources are counted, in a global
// context those of the whole match.
func evalSourceCount(c Context, args []Expr) (attribute.Value, error) {
	sources := c.Sources()
	if len(args) == 0 {
		return attribute.Number(float64(len(sources))), nil
	}
	prefix, err := evalText(c, args[0])
	if err != nil {
		return attribute.Value{}, err
	}
	return attribute.Number(float64(sources.CountPrefix(prefix))), nil
}

func evalText(c Context, e Expr) (string, error) {
	v, err := e.Eval(c)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func attrNumber(attrs *attribute.Map, key string) (float64, error) {
	v, ok := attrs.Get(key)
	if !ok {
		return 0, fmt.Errorf("%w: missing attribute %s", errors.ErrNotANumber, key)
	}
	return v.Number()
}
