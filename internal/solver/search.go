package solver

import (
	"container/heap"
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

// artificialBound boxes columns that no row bounds from above and that the objective pushes
// upward, so the dual simplex can start from the slack basis.
const artificialBound = 1e9

// term is one coefficient seen from a row (idx is the column) or from a column (idx is the row).
type term struct {
	idx  int
	coef float64
}

type node struct {
	// bound is the relaxation value this node cannot beat.
	bound  float64
	lo, hi []float64
	basis  basis
	seq    int
}

func (n *node) child() *node {
	return &node{
		bound: n.bound,
		lo:    append([]float64(nil), n.lo...),
		hi:    append([]float64(nil), n.hi...),
	}
}

// nodeQueue keeps open nodes best bound first, oldest first among equals.
type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	if q[i].bound != q[j].bound {
		return q[i].bound < q[j].bound
	}
	return q[i].seq < q[j].seq
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x any) { *q = append(*q, x.(*node)) }

func (q *nodeQueue) Pop() any {
	old := *q
	nd := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return nd
}

func (q nodeQueue) top() *node { return q[0] }

// search is a branch and bound over one relaxation. Objective values are kept as
// minimizations of the relaxation's cost vector.
type search struct {
	rel        *relaxation
	tab        *tableau
	n          int
	rowTerms   [][]term
	colTerms   [][]term
	lo0, hi0   []float64
	artificial []bool
	mixed      bool

	gap        float64
	intTol     float64
	exactNodes int
	maxNodes   int
	limit      int

	best       []float64
	bestObj    float64
	nodes      int
	seq        int
	incomplete bool

	log     zerolog.Logger
	verbose int
}

func newSearch(rel *relaxation, e *SimplexEngine, opts Options) *search {
	n := len(rel.names)
	s := &search{
		rel:        rel,
		n:          n,
		gap:        math.Max(opts.MIPGap, 0),
		intTol:     e.IntegralityTolerance,
		exactNodes: e.ExactNodes,
		maxNodes:   e.MaxNodes,
		bestObj:    math.Inf(1),
		log:        zerolog.Nop(),
		verbose:    opts.Verbosity,
	}
	if n == 0 {
		return s
	}

	s.tab = newTableau(rel.rows, n, rel.costs())
	s.limit = 50 * (len(rel.rows) + s.tab.m + n)
	s.rowTerms = make([][]term, len(rel.rows))
	s.colTerms = make([][]term, n)
	for i, r := range rel.rows {
		terms := make([]term, 0, len(r.coefs))
		for j, v := range r.coefs {
			terms = append(terms, term{idx: j, coef: v})
		}
		sort.Slice(terms, func(a, b int) bool { return terms[a].idx < terms[b].idx })
		s.rowTerms[i] = terms
		for _, t := range terms {
			s.colTerms[t.idx] = append(s.colTerms[t.idx], term{idx: i, coef: t.coef})
		}
	}
	for _, integer := range rel.integer {
		if !integer {
			s.mixed = true
		}
	}

	s.boxColumns()
	s.lo0 = append([]float64(nil), s.tab.lo[:n]...)
	s.hi0 = append([]float64(nil), s.tab.hi[:n]...)
	return s
}

// boxColumns tightens structural upper bounds to what single rows imply and puts an
// artificial box on the columns the objective would push past any bound.
func (s *search) boxColumns() {
	hi := s.tab.hi
	for i, r := range s.rel.rows {
		pos, neg := true, true
		for _, t := range s.rowTerms[i] {
			pos = pos && t.coef > 0
			neg = neg && t.coef < 0
		}
		limit := math.Inf(1)
		switch {
		case pos && !math.IsInf(r.hi, 1):
			limit = r.hi
		case neg && !math.IsInf(r.lo, -1):
			limit = r.lo
		default:
			continue
		}
		for _, t := range s.rowTerms[i] {
			hi[t.idx] = math.Min(hi[t.idx], math.Max(limit/t.coef, 0))
		}
	}

	s.artificial = make([]bool, s.n)
	for j := 0; j < s.n; j++ {
		if math.IsInf(hi[j], 1) && s.tab.cost[j] < 0 {
			hi[j] = artificialBound
			s.artificial[j] = true
		}
	}
}

func (s *search) run(ctx context.Context) (domain.SolverStatus, []float64) {
	if ctx.Err() != nil {
		return s.interrupted("deadline")
	}
	if s.n == 0 {
		return domain.StatusOptimal, []float64{}
	}

	tab := s.tab
	if !tab.factor(tab.slackBasis()) {
		return domain.StatusUndefined, nil
	}
	switch tab.dual(s.limit) {
	case lpInfeasible:
		return domain.StatusInfeasible, nil
	case lpStalled:
		s.log.Error().Int("pivots", tab.pivots).Msg("root relaxation stalled")
		return domain.StatusUndefined, nil
	}
	if status, ok := s.settle(); !ok {
		return status, nil
	}
	if s.fractional(tab.x) < 0 {
		return domain.StatusOptimal, s.structural(tab.x)
	}

	root := &node{bound: tab.objective(), lo: s.lo0, hi: s.hi0, basis: tab.snapshot()}
	if s.verbose >= 3 {
		s.log.Debug().Float64("bound", s.rel.sign*root.bound).Msg("root relaxation solved")
	}
	s.seed()
	if !s.restore(root) || tab.dual(s.limit) != lpOptimal {
		s.log.Error().Msg("root relaxation could not be restored")
		return s.interrupted("restore")
	}

	queue := &nodeQueue{}
	cur := root
	for {
		if ctx.Err() != nil {
			return s.interrupted("deadline")
		}
		if s.maxNodes > 0 && s.nodes >= s.maxNodes {
			return s.interrupted("node limit")
		}

		if cur == nil {
			for queue.Len() > 0 && !s.improves(queue.top().bound) {
				heap.Pop(queue)
			}
			if queue.Len() == 0 {
				break
			}
			if s.closed(queue.top().bound) {
				return s.gapClosed(queue.top().bound)
			}
			nd := heap.Pop(queue).(*node)
			s.nodes++
			if !s.restore(nd) {
				s.incomplete = true
				continue
			}
			if !s.solveNode() {
				continue
			}
			nd.bound = tab.objective()
			cur = nd
		}

		if !s.improves(cur.bound) {
			cur = nil
			continue
		}
		bound := cur.bound
		if queue.Len() > 0 && queue.top().bound < bound {
			bound = queue.top().bound
		}
		if s.closed(bound) {
			return s.gapClosed(bound)
		}

		j := s.fractional(tab.x)
		if j < 0 {
			s.offer(tab.x)
			cur = nil
			continue
		}

		v := tab.x[j]
		f := math.Floor(v)
		down, up := cur.child(), cur.child()
		down.hi[j] = f
		up.lo[j] = f + 1
		near, far := down, up
		if v-f >= 0.5 {
			near, far = up, down
		}
		// Implied bounds are not rounded, so a child box can be empty.
		if far.lo[j] <= far.hi[j] {
			far.basis = tab.snapshot()
			far.seq = s.seq
			s.seq++
			heap.Push(queue, far)
		}
		if near.lo[j] > near.hi[j] {
			cur = nil
			continue
		}

		// The nearer child continues on the current tableau.
		tab.setBounds(j, near.lo[j], near.hi[j])
		s.nodes++
		if !s.solveNode() {
			cur = nil
			continue
		}
		near.bound = tab.objective()
		cur = near
	}

	return s.finish()
}

// solveNode reoptimizes the tableau after a bound change. A stalled node is dropped
// unexplored, which rules out claiming optimality later.
func (s *search) solveNode() bool {
	switch s.tab.dual(s.limit) {
	case lpOptimal:
		return true
	case lpStalled:
		s.incomplete = true
		if s.verbose >= 3 {
			s.log.Debug().Int("nodes", s.nodes).Msg("node relaxation stalled")
		}
	}
	return false
}

// settle takes artificially boxed columns off their box when that costs nothing. One that
// still improves the objective there means the relaxation is unbounded.
func (s *search) settle() (domain.SolverStatus, bool) {
	tab := s.tab
	for round := 0; round <= s.n; round++ {
		flipped := false
		for j := 0; j < s.n; j++ {
			if !s.artificial[j] || tab.pos[j] >= 0 || !tab.upper[j] {
				continue
			}
			if tab.d[j] < -pivotTol {
				return domain.StatusUnbounded, false
			}
			tab.upper[j] = false
			tab.x[j] = tab.lo[j]
			flipped = true
		}
		if !flipped {
			break
		}
		tab.update()
		switch tab.dual(s.limit) {
		case lpInfeasible:
			return domain.StatusInfeasible, false
		case lpStalled:
			return domain.StatusUndefined, false
		}
	}
	for j := 0; j < s.n; j++ {
		if s.artificial[j] && tab.x[j] > artificialBound/2 {
			return domain.StatusUnbounded, false
		}
	}
	return domain.StatusOptimal, true
}

func (s *search) restore(nd *node) bool {
	copy(s.tab.lo[:s.n], nd.lo)
	copy(s.tab.hi[:s.n], nd.hi)
	return s.tab.factor(nd.basis)
}

// seed looks for incumbents before the tree search starts: a dive from the root relaxation,
// then the root point rounded down and repaired. It leaves the tableau anywhere.
func (s *search) seed() {
	point := s.structural(s.tab.x)
	s.dive()
	if x := s.repair(point); x != nil {
		s.offer(s.polish(x))
	}
}

// dive fixes the column nearest to integrality one side at a time until the relaxation is
// integral or both sides fail.
func (s *search) dive() {
	tab := s.tab
	for step := 0; step < 2*s.n; step++ {
		j, dist := -1, 1.0
		for k := 0; k < s.n; k++ {
			if !s.rel.integer[k] {
				continue
			}
			f := tab.x[k] - math.Floor(tab.x[k])
			if f > s.intTol && f < 1-s.intTol && math.Min(f, 1-f) < dist {
				j, dist = k, math.Min(f, 1-f)
			}
		}
		if j < 0 {
			s.offer(tab.x)
			return
		}

		v := tab.x[j]
		f := math.Floor(v)
		sides := [2][2]float64{{tab.lo[j], f}, {f + 1, tab.hi[j]}}
		if v-f >= 0.5 {
			sides[0], sides[1] = sides[1], sides[0]
		}
		moved := false
		for _, b := range sides {
			if b[0] > b[1] {
				continue
			}
			tab.setBounds(j, b[0], b[1])
			if tab.dual(s.limit) == lpOptimal && s.improves(tab.objective()) {
				moved = true
				break
			}
		}
		if !moved {
			return
		}
	}
}

// repair rounds the integer columns of point down and then walks row violations to zero
// with unit moves, each time taking the move that removes the most violation.
func (s *search) repair(point []float64) []float64 {
	x := s.structural(point)
	for j := 0; j < s.n; j++ {
		if s.rel.integer[j] {
			x[j] = math.Min(s.hi0[j], math.Max(s.lo0[j], math.Floor(x[j]+s.intTol)))
		}
	}
	act := s.activity(x)

	lastCol, lastStep := -1, 0
	for move := 0; move < 20*s.n+len(s.rel.rows); move++ {
		bad := -1
		for i, a := range act {
			if s.violation(i, a) > 0 {
				bad = i
				break
			}
		}
		if bad < 0 {
			s.fill(x, act)
			return x
		}

		rise := act[bad] < s.rel.rows[bad].lo
		pick, step := -1, 0
		var pickDelta, pickCost float64
		for _, t := range s.rowTerms[bad] {
			j := t.idx
			if !s.rel.integer[j] {
				continue
			}
			st := 1
			if (t.coef > 0) != rise {
				st = -1
			}
			if j == lastCol && st == -lastStep {
				continue
			}
			if next := x[j] + float64(st); next < s.lo0[j] || next > s.hi0[j] {
				continue
			}
			delta := 0.0
			for _, c := range s.colTerms[j] {
				delta += s.violation(c.idx, act[c.idx]+c.coef*float64(st)) - s.violation(c.idx, act[c.idx])
			}
			cost := s.tab.cost[j] * float64(st)
			if pick < 0 || delta < pickDelta || (delta == pickDelta && cost < pickCost) {
				pick, step, pickDelta, pickCost = j, st, delta, cost
			}
		}
		if pick < 0 {
			return nil
		}

		x[pick] += float64(step)
		lastCol, lastStep = pick, step
		for _, c := range s.colTerms[pick] {
			act[c.idx] += c.coef * float64(step)
		}
	}
	return nil
}

// fill raises profitable integer columns one unit at a time, cheapest cost first, while every
// row stays satisfied.
func (s *search) fill(x, act []float64) {
	order := make([]int, 0, s.n)
	for j := 0; j < s.n; j++ {
		if s.rel.integer[j] && !s.artificial[j] && s.tab.cost[j] < 0 {
			order = append(order, j)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return s.tab.cost[order[a]] < s.tab.cost[order[b]] })

	for _, j := range order {
		for x[j]+1 <= s.hi0[j] {
			fits := true
			for _, c := range s.colTerms[j] {
				a := act[c.idx] + c.coef
				if a > s.rel.rows[c.idx].hi+1e-9 || a < s.rel.rows[c.idx].lo-1e-9 {
					fits = false
					break
				}
			}
			if !fits {
				break
			}
			x[j]++
			for _, c := range s.colTerms[j] {
				act[c.idx] += c.coef
			}
		}
	}
}

// polish fixes the integer columns of x and reoptimizes the continuous ones.
func (s *search) polish(x []float64) []float64 {
	if !s.mixed {
		return x
	}
	for j := 0; j < s.n; j++ {
		if s.rel.integer[j] {
			s.tab.setBounds(j, x[j], x[j])
		}
	}
	if s.tab.dual(s.limit) == lpOptimal {
		return s.structural(s.tab.x)
	}
	return x
}

func (s *search) activity(x []float64) []float64 {
	act := make([]float64, len(s.rel.rows))
	for i, terms := range s.rowTerms {
		for _, t := range terms {
			act[i] += t.coef * x[t.idx]
		}
	}
	return act
}

func (s *search) violation(row int, a float64) float64 {
	r := s.rel.rows[row]
	switch {
	case a < r.lo-1e-9:
		return r.lo - a
	case a > r.hi+1e-9:
		return a - r.hi
	}
	return 0
}

// fractional returns the integer column furthest from integrality, or -1.
func (s *search) fractional(x []float64) int {
	best, gap := -1, s.intTol
	for j := 0; j < s.n; j++ {
		if !s.rel.integer[j] {
			continue
		}
		if d := math.Abs(x[j] - math.Round(x[j])); d > gap {
			best, gap = j, d
		}
	}
	return best
}

func (s *search) offer(x []float64) {
	obj := floats.Dot(s.tab.cost[:s.n], x[:s.n])
	if !s.improves(obj) {
		return
	}
	s.best, s.bestObj = s.structural(x), obj
	if s.verbose >= 3 {
		s.log.Debug().Float64("objective", s.rel.sign*obj).Int("nodes", s.nodes).Msg("new incumbent")
	}
}

func (s *search) slack() float64 {
	if s.best == nil {
		return 0
	}
	return 1e-9 * math.Max(1, math.Abs(s.bestObj))
}

// improves reports whether a relaxation value could still beat the incumbent.
func (s *search) improves(bound float64) bool {
	return s.best == nil || bound < s.bestObj-s.slack()
}

// closed reports whether the incumbent is within the relative gap of bound, once the exact
// node budget is spent.
func (s *search) closed(bound float64) bool {
	if s.best == nil || s.nodes < s.exactNodes {
		return false
	}
	return s.bestObj-bound <= s.gap*math.Max(1, math.Abs(s.bestObj))
}

func (s *search) gapClosed(bound float64) (domain.SolverStatus, []float64) {
	if s.verbose >= 2 {
		s.log.Info().
			Int("nodes", s.nodes).
			Float64("objective", s.rel.sign*s.bestObj).
			Float64("bound", s.rel.sign*bound).
			Msg("branch and bound closed the gap")
	}
	if s.incomplete {
		return domain.StatusFeasibleNonOptimal, s.best
	}
	return domain.StatusOptimal, s.best
}

func (s *search) interrupted(reason string) (domain.SolverStatus, []float64) {
	if s.verbose >= 1 {
		s.log.Warn().Str("reason", reason).Int("nodes", s.nodes).Bool("incumbent", s.best != nil).Msg("branch and bound interrupted")
	}
	if s.best == nil {
		return domain.StatusUndefined, nil
	}
	return domain.StatusFeasibleNonOptimal, s.best
}

func (s *search) finish() (domain.SolverStatus, []float64) {
	if s.verbose >= 2 {
		s.log.Info().Int("nodes", s.nodes).Bool("incumbent", s.best != nil).Msg("branch and bound finished")
	}
	switch {
	case s.best == nil && s.incomplete:
		return domain.StatusUndefined, nil
	case s.best == nil:
		return domain.StatusNoFeasibleSolution, nil
	case s.incomplete:
		return domain.StatusFeasibleNonOptimal, s.best
	}
	return domain.StatusOptimal, s.best
}

func (s *search) structural(x []float64) []float64 {
	return append([]float64(nil), x[:s.n]...)
}
