// Package optimization holds a solver-agnostic boolean optimization model.
//
// A Model is a set of boolean variables, cardinality constraints over literals
// (sum of true literals compared to a bound), optionally enforced only when a set of
// literals holds, and a linear objective over literals to maximize. Backends under
// pkg/infrastructure/solvers translate it to their own formulation.
package optimization

import "fmt"

// BoolVar is a boolean decision variable. Indices start at 1.
type BoolVar int32

// Literal is a variable or its negation
type Literal struct {
	Var     BoolVar
	Negated bool
}

// Lit returns the positive literal of v
func (v BoolVar) Lit() Literal {
	return Literal{Var: v}
}

// Not returns the negative literal of v
func (v BoolVar) Not() Literal {
	return Literal{Var: v, Negated: true}
}

// Not returns the opposite literal
func (l Literal) Not() Literal {
	return Literal{Var: l.Var, Negated: !l.Negated}
}

// Eval returns the truth value of l under values, indexed by variable-1
func (l Literal) Eval(values []bool) bool {
	index := int(l.Var) - 1
	v := index >= 0 && index < len(values) && values[index]
	return v != l.Negated
}

// Lits converts variables to positive literals
func Lits(vars ...BoolVar) []Literal {
	lits := make([]Literal, len(vars))
	for i, v := range vars {
		lits[i] = v.Lit()
	}
	return lits
}

// Comparison is the relation between a literal sum and a bound
type Comparison int

const (
	LessOrEqual Comparison = iota
	GreaterOrEqual
)

func (c Comparison) String() string {
	if c == GreaterOrEqual {
		return ">="
	}
	return "<="
}

// Constraint requires the number of true literals in Lits to compare to Bound.
// When Enforcement is non-empty the constraint only applies if all of its literals hold.
type Constraint struct {
	Name        string
	Lits        []Literal
	Op          Comparison
	Bound       int
	Enforcement []Literal
}

// OnlyEnforceIf makes the constraint conditional on lits
func (c *Constraint) OnlyEnforceIf(lits ...Literal) *Constraint {
	c.Enforcement = append(c.Enforcement, lits...)
	return c
}

// Active reports whether all enforcement literals hold
func (c *Constraint) Active(values []bool) bool {
	for _, lit := range c.Enforcement {
		if !lit.Eval(values) {
			return false
		}
	}
	return true
}

// Count returns the number of true literals
func (c *Constraint) Count(values []bool) int {
	count := 0
	for _, lit := range c.Lits {
		if lit.Eval(values) {
			count++
		}
	}
	return count
}

// Satisfied reports whether values satisfy the constraint
func (c *Constraint) Satisfied(values []bool) bool {
	if !c.Active(values) {
		return true
	}
	count := c.Count(values)
	if c.Op == GreaterOrEqual {
		return count >= c.Bound
	}
	return count <= c.Bound
}

func (c *Constraint) String() string {
	s := fmt.Sprintf("%s: sum(%d lits) %s %d", c.Name, len(c.Lits), c.Op, c.Bound)
	if len(c.Enforcement) > 0 {
		s += fmt.Sprintf(" if %d lits", len(c.Enforcement))
	}
	return s
}

// WeightedLiteral is one objective term
type WeightedLiteral struct {
	Lit    Literal
	Weight int64
}

// Model is a boolean optimization model
type Model struct {
	names       []string
	constraints []*Constraint
	objective   []WeightedLiteral
}

// NewModel creates an empty model
func NewModel() *Model {
	return &Model{}
}

// NewBoolVar adds a variable
func (m *Model) NewBoolVar(name string) BoolVar {
	m.names = append(m.names, name)
	return BoolVar(len(m.names))
}

// NumVars returns the number of variables
func (m *Model) NumVars() int {
	return len(m.names)
}

// VarName returns the name given to v
func (m *Model) VarName(v BoolVar) string {
	index := int(v) - 1
	if index < 0 || index >= len(m.names) {
		return fmt.Sprintf("v%d", v)
	}
	return m.names[index]
}

// AddLessOrEqual adds sum(lits) <= bound
func (m *Model) AddLessOrEqual(name string, lits []Literal, bound int) *Constraint {
	return m.add(name, lits, LessOrEqual, bound)
}

// AddGreaterOrEqual adds sum(lits) >= bound
func (m *Model) AddGreaterOrEqual(name string, lits []Literal, bound int) *Constraint {
	return m.add(name, lits, GreaterOrEqual, bound)
}

// AddImplication adds a => b
func (m *Model) AddImplication(name string, a, b Literal) *Constraint {
	return m.add(name, []Literal{a.Not(), b}, GreaterOrEqual, 1)
}

func (m *Model) add(name string, lits []Literal, op Comparison, bound int) *Constraint {
	owned := make([]Literal, len(lits))
	copy(owned, lits)
	c := &Constraint{Name: name, Lits: owned, Op: op, Bound: bound}
	m.constraints = append(m.constraints, c)
	return c
}

// Constraints returns the model's constraints in insertion order
func (m *Model) Constraints() []*Constraint {
	return m.constraints
}

// Maximize replaces the objective
func (m *Model) Maximize(terms []WeightedLiteral) {
	m.objective = append([]WeightedLiteral(nil), terms...)
}

// Objective returns the objective terms
func (m *Model) Objective() []WeightedLiteral {
	return m.objective
}

// Evaluate returns the objective value of values
func (m *Model) Evaluate(values []bool) int64 {
	var total int64
	for _, term := range m.objective {
		if term.Lit.Eval(values) {
			total += term.Weight
		}
	}
	return total
}

// Violations returns the constraints that values break
func (m *Model) Violations(values []bool) []*Constraint {
	var violated []*Constraint
	for _, c := range m.constraints {
		if !c.Satisfied(values) {
			violated = append(violated, c)
		}
	}
	return violated
}
