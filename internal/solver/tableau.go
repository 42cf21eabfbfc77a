package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	primalTol = 1e-7
	pivotTol  = 1e-9
	// refactorEvery is how many pivots a tableau takes before it is rebuilt from the base matrix.
	refactorEvery = 100
)

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	// lpStalled covers iteration limits and singular bases.
	lpStalled
)

// basis is enough to rebuild a tableau: the basic column of every row and, for the
// nonbasic columns, whether they rest on their upper bound.
type basis struct {
	head  []int
	upper []bool
}

// tableau runs a bounded dual simplex over A·x - s = 0. Columns below n are structural and
// column n+i is the logical of row i, so the row bounds become bounds on that column.
type tableau struct {
	m, n   int
	base   *mat.Dense
	t      *mat.Dense
	cost   []float64
	lo, hi []float64
	d      []float64
	x      []float64
	head   []int
	pos    []int
	upper  []bool
	// nonbasic is scratch space holding x with the basic entries zeroed.
	nonbasic []float64
	since    int
	pivots   int
}

func newTableau(rows []boundedRow, n int, cost []float64) *tableau {
	m := len(rows)
	cols := n + m
	tb := &tableau{
		m:        m,
		n:        n,
		base:     mat.NewDense(m, cols, nil),
		t:        mat.NewDense(m, cols, nil),
		cost:     make([]float64, cols),
		lo:       make([]float64, cols),
		hi:       make([]float64, cols),
		d:        make([]float64, cols),
		x:        make([]float64, cols),
		head:     make([]int, m),
		pos:      make([]int, cols),
		upper:    make([]bool, cols),
		nonbasic: make([]float64, cols),
	}
	copy(tb.cost, cost)
	for j := 0; j < n; j++ {
		tb.hi[j] = math.Inf(1)
	}
	for i, r := range rows {
		for j, v := range r.coefs {
			tb.base.Set(i, j, v)
		}
		tb.base.Set(i, n+i, -1)
		tb.lo[n+i], tb.hi[n+i] = r.lo, r.hi
	}
	return tb
}

// slackBasis makes every logical basic and every structural nonbasic.
func (tb *tableau) slackBasis() basis {
	b := basis{head: make([]int, tb.m), upper: make([]bool, tb.n+tb.m)}
	for i := range b.head {
		b.head[i] = tb.n + i
	}
	return b
}

func (tb *tableau) snapshot() basis {
	return basis{
		head:  append([]int(nil), tb.head...),
		upper: append([]bool(nil), tb.upper...),
	}
}

// factor rebuilds the tableau for b from the base matrix. It reports false when the basis
// is singular.
func (tb *tableau) factor(b basis) bool {
	tb.t.Copy(tb.base)
	for i := 0; i < tb.m; i++ {
		k := b.head[i]
		pr, best := -1, 0.0
		for r := i; r < tb.m; r++ {
			if v := math.Abs(tb.t.At(r, k)); v > best {
				pr, best = r, v
			}
		}
		if pr < 0 || best < 1e-11 {
			return false
		}
		if pr != i {
			ri, rp := tb.t.RawRowView(i), tb.t.RawRowView(pr)
			for j := range ri {
				ri[j], rp[j] = rp[j], ri[j]
			}
		}
		tb.eliminate(i, k)
	}

	copy(tb.head, b.head)
	for k := range tb.pos {
		tb.pos[k] = -1
	}
	copy(tb.d, tb.cost)
	for i, k := range tb.head {
		tb.pos[k] = i
		if c := tb.cost[k]; c != 0 {
			floats.AddScaled(tb.d, -c, tb.t.RawRowView(i))
		}
	}

	copy(tb.upper, b.upper)
	for k := range tb.x {
		if tb.pos[k] < 0 {
			tb.place(k)
		}
	}
	tb.since = 0
	tb.update()
	return true
}

// eliminate scales row r so column q holds a one there and clears q from every other row.
func (tb *tableau) eliminate(r, q int) {
	pivot := tb.t.RawRowView(r)
	floats.Scale(1/pivot[q], pivot)
	pivot[q] = 1
	for i := 0; i < tb.m; i++ {
		if i == r {
			continue
		}
		row := tb.t.RawRowView(i)
		if f := row[q]; f != 0 {
			floats.AddScaled(row, -f, pivot)
			row[q] = 0
		}
	}
}

// place puts a nonbasic column on the bound its reduced cost asks for.
func (tb *tableau) place(k int) {
	lo, hi := tb.lo[k], tb.hi[k]
	up := tb.upper[k]
	switch {
	case tb.d[k] < -pivotTol && !math.IsInf(hi, 1):
		up = true
	case tb.d[k] > pivotTol && !math.IsInf(lo, -1):
		up = false
	}
	if up && math.IsInf(hi, 1) {
		up = false
	}
	if !up && math.IsInf(lo, -1) {
		up = true
	}
	tb.upper[k] = up

	v := lo
	if up {
		v = hi
	}
	if math.IsInf(v, 0) {
		v = 0
	}
	tb.x[k] = v
}

// update recomputes the basic values from the nonbasic ones.
func (tb *tableau) update() {
	for k, v := range tb.x {
		if tb.pos[k] >= 0 {
			tb.nonbasic[k] = 0
		} else {
			tb.nonbasic[k] = v
		}
	}
	for i, k := range tb.head {
		tb.x[k] = -floats.Dot(tb.t.RawRowView(i), tb.nonbasic)
	}
}

// setBounds changes the bounds of column k. Basic values are left for dual to repair.
func (tb *tableau) setBounds(k int, lo, hi float64) {
	tb.lo[k], tb.hi[k] = lo, hi
	if tb.pos[k] < 0 {
		tb.place(k)
		tb.update()
	}
}

// dual restores primal feasibility while keeping the reduced costs dual feasible. The
// current basis must be dual feasible on entry.
func (tb *tableau) dual(limit int) lpStatus {
	for iter := 0; iter < limit; iter++ {
		r, worst := -1, primalTol
		for i, h := range tb.head {
			v := tb.x[h]
			var viol float64
			switch {
			case v < tb.lo[h]-primalTol:
				viol = tb.lo[h] - v
			case v > tb.hi[h]+primalTol:
				viol = v - tb.hi[h]
			default:
				continue
			}
			if viol > worst {
				r, worst = i, viol
			}
		}
		if r < 0 {
			return lpOptimal
		}

		h := tb.head[r]
		rise := tb.x[h] < tb.lo[h]
		row := tb.t.RawRowView(r)
		q, ratio, alpha := -1, math.Inf(1), 0.0
		for k, a := range row {
			if tb.pos[k] >= 0 || tb.lo[k] == tb.hi[k] || math.Abs(a) < pivotTol {
				continue
			}
			// x_h moves by -a for every unit x_k moves away from its bound.
			if ((a < 0) != tb.upper[k]) != rise {
				continue
			}
			t := math.Abs(tb.d[k]) / math.Abs(a)
			if t < ratio-1e-12 || (t <= ratio+1e-12 && math.Abs(a) > math.Abs(alpha)) {
				q, ratio, alpha = k, t, a
			}
		}
		if q < 0 {
			return lpInfeasible
		}

		tb.pivot(r, q)
		tb.upper[h] = !rise
		if rise {
			tb.x[h] = tb.lo[h]
		} else {
			tb.x[h] = tb.hi[h]
		}
		if tb.since >= refactorEvery {
			if !tb.factor(tb.snapshot()) {
				return lpStalled
			}
			continue
		}
		tb.update()
	}
	return lpStalled
}

// pivot brings column q into the basis in place of the column basic in row r.
func (tb *tableau) pivot(r, q int) {
	tb.pivots++
	tb.since++
	tb.eliminate(r, q)
	if f := tb.d[q]; f != 0 {
		floats.AddScaled(tb.d, -f, tb.t.RawRowView(r))
		tb.d[q] = 0
	}
	h := tb.head[r]
	tb.pos[h] = -1
	tb.pos[q] = r
	tb.head[r] = q
}

// objective is the minimized cost of the structural columns.
func (tb *tableau) objective() float64 {
	return floats.Dot(tb.cost[:tb.n], tb.x[:tb.n])
}
