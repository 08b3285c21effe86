package kernels

import (
	"context"

	"github.com/Oisin-M/cellrank/cellgraph"
)

// ConnectivityKernel estimates transitions from the undirected k-NN
// connectivity graph alone: P(i→j) is the normalized edge weight. The
// resulting chain is a reversible random walk, useful as a smoothing
// term in combinations with directed kernels.
type ConnectivityKernel struct {
	ds  *cellgraph.Dataset
	eps float64
	tm  *TransitionMatrix
}

// ConnectivityOption configures a ConnectivityKernel.
type ConnectivityOption func(*ConnectivityKernel)

// WithConnectivityEps overrides the stochasticity tolerance.
func WithConnectivityEps(eps float64) ConnectivityOption {
	return func(k *ConnectivityKernel) { k.eps = eps }
}

// NewConnectivityKernel constructs the kernel; validation happens in
// Compute so construction never fails.
func NewConnectivityKernel(ds *cellgraph.Dataset, opts ...ConnectivityOption) *ConnectivityKernel {
	k := &ConnectivityKernel{ds: ds, eps: DefaultEpsilon}
	for _, opt := range opts {
		opt(k)
	}

	return k
}

// Compute row-normalizes the connectivity graph. Cells without
// neighbors become self-loops.
func (k *ConnectivityKernel) Compute(ctx context.Context) error {
	if k.ds == nil {
		return ErrNilDataset
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := k.ds.Conn()
	if err != nil {
		return ErrNoConnectivities
	}

	n := conn.N()
	rows := make([]RowEntries, n)
	for i := 0; i < n; i++ {
		cols, weights := conn.Row(i)
		if len(cols) == 0 {
			rows[i] = selfLoopRow(i)

			continue
		}
		probs := append([]float64(nil), weights...)
		if !normalizeRow(probs) {
			rows[i] = selfLoopRow(i)

			continue
		}
		rows[i] = RowEntries{Cols: append([]int(nil), cols...), Probs: probs}
	}

	tm, err := NewTransition(rows, k.eps)
	if err != nil {
		return err
	}
	k.tm = tm

	return nil
}

// Transition returns the computed matrix, nil before Compute.
func (k *ConnectivityKernel) Transition() *TransitionMatrix { return k.tm }
