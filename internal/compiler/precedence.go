package compiler

// Precedence orders binding power from loosest to tightest, per §4.2's
// table: None, Assignment, Or, And, Equality, Comparison, Term, Factor,
// Exponent, Unary, Call, Primary.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecExponent
	PrecUnary
	PrecCall
	PrecPrimary
)
