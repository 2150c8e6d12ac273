// Package abundance estimates relative organism abundances from the
// reference hash matrix. The estimate solves a weighted L1 regression posed
// as a linear program: residuals between the reference matrix applied to the
// abundance vector and the observed sample vector are split into positive
// and negative parts, weighted by a false-positive weight, and minimized
// subject to nonnegative abundances.
package abundance

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kodh49/YACHT/internal/sig"
	"github.com/kodh49/YACHT/internal/store"
)

// Estimate one organism's share of the sample.
type Estimate struct {
	OrganismName string
	Abundance    float64
}

// RecoverFromVectors solves
//
//	minimize  tau*sum(u) + (1-tau)*sum(v),  tau = 1/(w+1)
//	s.t.      u - v + A*x = y,  x, u, v >= 0
//
// and returns x. A is the K-hash by N-organism incidence matrix and y the
// sample vector over the same hash index.
func RecoverFromVectors(a *mat.Dense, y []float64, w float64) ([]float64, error) {
	if w <= 0 {
		return nil, fmt.Errorf("false positive weight must be positive, got %v", w)
	}
	k, n := a.Dims()
	if len(y) != k {
		return nil, fmt.Errorf("sample vector length %d does not match matrix rows %d", len(y), k)
	}

	tau := 1 / (w + 1)

	// Standard form over z = [x; u; v].
	c := make([]float64, n+2*k)
	for i := 0; i < k; i++ {
		c[n+i] = tau
		c[n+k+i] = 1 - tau
	}

	aeq := mat.NewDense(k, n+2*k, nil)
	aeq.Slice(0, k, 0, n).(*mat.Dense).Copy(a)
	for i := 0; i < k; i++ {
		aeq.Set(i, n+i, 1)
		aeq.Set(i, n+k+i, -1)
	}

	_, z, err := lp.Simplex(c, aeq, y, 1e-10, nil)
	if err != nil {
		return nil, fmt.Errorf("solving abundance program: %w", err)
	}
	return z[:n], nil
}

// RecoverFromStore builds the reference matrix and sample vector from a
// trained database and solves for abundances. Organisms keep manifest order.
func RecoverFromStore(ctx context.Context, db *store.ReferenceDB, sample *sig.NamedSketch, w float64, logger *zap.Logger) ([]Estimate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	hashes, genomes, entries, err := db.HashMatrix(ctx)
	if err != nil {
		return nil, err
	}
	if len(genomes) == 0 {
		return nil, fmt.Errorf("reference database holds no genomes")
	}
	if len(hashes) == 0 {
		return nil, fmt.Errorf("reference database holds no hashes")
	}

	logger.Info("building abundance program",
		zap.Int("hashes", len(hashes)),
		zap.Int("organisms", len(genomes)),
		zap.Float64("false_positive_weight", w))

	a := mat.NewDense(len(hashes), len(genomes), nil)
	for _, e := range entries {
		a.Set(e.Row, e.Col, 1)
	}
	y := make([]float64, len(hashes))
	for i, h := range hashes {
		y[i] = float64(sample.Sketch.Abundance(h))
	}

	x, err := RecoverFromVectors(a, y, w)
	if err != nil {
		return nil, err
	}

	out := make([]Estimate, len(genomes))
	for i, g := range genomes {
		out[i] = Estimate{OrganismName: g.OrganismName, Abundance: x[i]}
	}
	return out, nil
}
