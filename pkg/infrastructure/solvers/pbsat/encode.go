package pbsat

import (
	"fmt"

	"github.com/crillab/gophersat/solver"
	"github.com/samber/lo"

	"github.com/mrodz/mql-grouping-engine/pkg/optimization"
)

// encoding is a model translated to gophersat pseudo-boolean constraints
type encoding struct {
	constrs    []solver.PBConstr
	costLits   []solver.Lit
	costWeight []int
	// infeasible is set when some unconditional constraint can never hold
	infeasible bool
	// culprit names the first such constraint
	culprit string
}

// encode translates every constraint to "weighted sum of literals >= bound" form.
// Enforcement literals are folded in with a weight equal to the bound, so a false
// enforcement literal satisfies the constraint on its own. gophersat rejects a
// constraint naming a variable twice, so repeated literals are merged first.
func encode(model *optimization.Model) (*encoding, error) {
	enc := &encoding{}
	numVars := model.NumVars()

	for _, c := range model.Constraints() {
		for _, lit := range append(append([]optimization.Literal(nil), c.Lits...), c.Enforcement...) {
			if lit.Var < 1 || int(lit.Var) > numVars {
				return nil, fmt.Errorf("constraint %s references unknown variable %d", c.Name, lit.Var)
			}
		}

		lits, bound := atLeastForm(c)
		if bound <= 0 {
			// holds under every assignment
			continue
		}
		terms := make([]weighted, 0, len(lits)+len(c.Enforcement))
		for _, lit := range lits {
			terms = append(terms, weighted{lit: dimacs(lit), weight: 1})
		}
		for _, e := range c.Enforcement {
			terms = append(terms, weighted{lit: dimacs(e.Not()), weight: bound})
		}

		ints, weights, bound := merge(terms, bound)
		if bound <= 0 {
			continue
		}
		if len(c.Enforcement) == 0 && bound > lo.Sum(weights) && !enc.infeasible {
			enc.infeasible = true
			enc.culprit = c.Name
		}
		enc.constrs = append(enc.constrs, solver.PBConstr{Lits: ints, Weights: weights, AtLeast: bound})
	}

	// maximizing w*l is minimizing w*not(l); weights are summed per variable,
	// a negated literal contributing -w up to a constant
	coef := make(map[optimization.BoolVar]int64)
	var vars []optimization.BoolVar
	for _, term := range model.Objective() {
		if _, ok := coef[term.Lit.Var]; !ok {
			vars = append(vars, term.Lit.Var)
		}
		if term.Lit.Negated {
			coef[term.Lit.Var] -= term.Weight
		} else {
			coef[term.Lit.Var] += term.Weight
		}
	}
	for _, v := range vars {
		switch w := coef[v]; {
		case w > 0:
			enc.costLits = append(enc.costLits, solver.IntToLit(int32(-v)))
			enc.costWeight = append(enc.costWeight, int(w))
		case w < 0:
			enc.costLits = append(enc.costLits, solver.IntToLit(int32(v)))
			enc.costWeight = append(enc.costWeight, int(-w))
		}
	}

	return enc, nil
}

// weighted is one term of an "at least" constraint, lit in DIMACS form
type weighted struct {
	lit    int
	weight int
}

// merge sums the weights of repeated literals and cancels complementary pairs.
// A pair x, not(x) always contributes the smaller of its two weights, so that
// amount is taken off the bound and only the remainder is kept on one side.
func merge(terms []weighted, bound int) ([]int, []int, int) {
	total := make(map[int]int, len(terms))
	var order []int
	for _, t := range terms {
		if _, ok := total[t.lit]; !ok {
			order = append(order, t.lit)
		}
		total[t.lit] += t.weight
	}

	lits := make([]int, 0, len(order))
	weights := make([]int, 0, len(order))
	for _, lit := range order {
		w := total[lit]
		if opposite, ok := total[-lit]; ok {
			if w < opposite || (w == opposite && lit < 0) {
				continue
			}
			bound -= opposite
			w -= opposite
			if w == 0 {
				continue
			}
		}
		lits = append(lits, lit)
		weights = append(weights, w)
	}
	return lits, weights, bound
}

// atLeastForm rewrites sum(lits) <= b as sum(not lits) >= len(lits)-b
func atLeastForm(c *optimization.Constraint) ([]optimization.Literal, int) {
	if c.Op == optimization.GreaterOrEqual {
		return c.Lits, c.Bound
	}
	negated := make([]optimization.Literal, len(c.Lits))
	for i, lit := range c.Lits {
		negated[i] = lit.Not()
	}
	return negated, len(c.Lits) - c.Bound
}

func dimacs(lit optimization.Literal) int {
	if lit.Negated {
		return -int(lit.Var)
	}
	return int(lit.Var)
}

// problem builds the gophersat problem, anchoring every model variable so the
// solver's variable count matches the model's
func (e *encoding) problem(numVars int) *solver.Problem {
	constrs := make([]solver.PBConstr, 0, len(e.constrs)+1)
	constrs = append(constrs, e.constrs...)
	if numVars > 0 {
		// trivially true, only present so variable numVars is counted
		constrs = append(constrs, solver.PBConstr{Lits: []int{numVars}, AtLeast: 0})
	}
	pb := solver.ParsePBConstrs(constrs)
	if len(e.costLits) > 0 {
		pb.SetCostFunc(e.costLits, e.costWeight)
	}
	return pb
}
