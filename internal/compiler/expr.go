package compiler

import (
	"strconv"

	"jmpl/internal/bytecode"
	"jmpl/internal/lexer"
	"jmpl/internal/vm"
)

// parseFn is a Pratt prefix or infix handler. Method expressions on
// *compiler (e.g. (*compiler).variable) satisfy this type directly.
type parseFn func(c *compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokenNumber:     {prefix: (*compiler).number},
		lexer.TokenString:     {prefix: (*compiler).stringLiteral},
		lexer.TokenTrue:       {prefix: (*compiler).literal},
		lexer.TokenFalse:      {prefix: (*compiler).literal},
		lexer.TokenNull:       {prefix: (*compiler).literal},
		lexer.TokenIdentifier: {prefix: (*compiler).variable},

		lexer.TokenLeftParen:   {prefix: (*compiler).grouping, infix: (*compiler).call, precedence: PrecCall},
		lexer.TokenLeftBracket: {infix: (*compiler).subscript, precedence: PrecCall},
		lexer.TokenLeftBrace:   {prefix: (*compiler).setLiteral},

		lexer.TokenMinus: {prefix: (*compiler).unary, infix: (*compiler).binary, precedence: PrecTerm},
		lexer.TokenPlus:  {infix: (*compiler).binary, precedence: PrecTerm},
		lexer.TokenStar:  {infix: (*compiler).binary, precedence: PrecFactor},
		lexer.TokenSlash: {infix: (*compiler).binary, precedence: PrecFactor},
		lexer.TokenCaret: {infix: (*compiler).binary, precedence: PrecExponent},

		lexer.TokenIntersect: {infix: (*compiler).binary, precedence: PrecTerm},
		lexer.TokenUnion:     {infix: (*compiler).binary, precedence: PrecTerm},

		lexer.TokenEqualEqual:   {infix: (*compiler).binary, precedence: PrecEquality},
		lexer.TokenNotEqual:     {infix: (*compiler).binary, precedence: PrecEquality},
		lexer.TokenIn:           {infix: (*compiler).binary, precedence: PrecEquality},
		lexer.TokenGreater:      {infix: (*compiler).binary, precedence: PrecComparison},
		lexer.TokenGreaterEqual: {infix: (*compiler).binary, precedence: PrecComparison},
		lexer.TokenLess:         {infix: (*compiler).binary, precedence: PrecComparison},
		lexer.TokenLessEqual:    {infix: (*compiler).binary, precedence: PrecComparison},

		lexer.TokenAnd:     {infix: (*compiler).and_, precedence: PrecAnd},
		lexer.TokenOr:      {infix: (*compiler).or_, precedence: PrecOr},
		lexer.TokenXor:     {infix: (*compiler).xor_, precedence: PrecOr},
		lexer.TokenImplies: {infix: (*compiler).implies_, precedence: PrecOr},

		lexer.TokenNot:  {prefix: (*compiler).unary},
		lexer.TokenHash: {prefix: (*compiler).unary},
		lexer.TokenSum:  {prefix: (*compiler).unary},
	}
}

func getRule(t lexer.TokenType) parseRule {
	return rules[t]
}

func (c *compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

func (c *compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := getRule(c.previous.Type).prefix
	if prefix == nil {
		c.error("expected an expression")
		return
	}
	canAssign := prec <= PrecAssignment
	prefix(c, canAssign)

	for prec <= getRule(c.current.Type).precedence {
		c.advance()
		infix := getRule(c.previous.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(lexer.TokenAssign) {
		c.error("invalid assignment target")
	}
}

// --- literals --------------------------------------------------------

func (c *compiler) number(canAssign bool) {
	n, _ := strconv.ParseFloat(c.previous.Lexeme, 64)
	c.emitConstant(vm.NumberValue(n))
}

func (c *compiler) literal(canAssign bool) {
	switch c.previous.Type {
	case lexer.TokenTrue:
		c.emitOp(bytecode.OpTrue)
	case lexer.TokenFalse:
		c.emitOp(bytecode.OpFalse)
	case lexer.TokenNull:
		c.emitOp(bytecode.OpNull)
	}
}

func (c *compiler) stringLiteral(canAssign bool) {
	codePoints, err := decodeStringLexeme(c.previous.Lexeme)
	if err != "" {
		c.error(err)
		return
	}
	obj := c.vm.NewStringFromRunes(codePoints)
	c.emitConstant(vm.ObjectValue(obj))
}

// variable resolves an identifier as a variable reference/assignment,
// except for a fixed set of builtin call forms (arb, subset, properSubset,
// difference, mod) that the scanner's grammar gives no dedicated operator
// token for; these shadow ordinary variables of the same name when
// immediately applied to an argument list.
func (c *compiler) variable(canAssign bool) {
	name := c.previous
	if c.check(lexer.TokenLeftParen) {
		switch name.Lexeme {
		case "arb":
			c.builtinUnaryCall(bytecode.OpArb)
			return
		case "subset":
			c.builtinBinaryCall(bytecode.OpSubsetEq)
			return
		case "properSubset":
			c.builtinBinaryCall(bytecode.OpSubset)
			return
		case "difference":
			c.builtinBinaryCall(bytecode.OpSetDifference)
			return
		case "mod":
			c.builtinBinaryCall(bytecode.OpMod)
			return
		}
	}
	c.namedVariable(name, canAssign)
}

func (c *compiler) builtinUnaryCall(op bytecode.OpCode) {
	c.advance() // '('
	c.expression()
	c.consume(lexer.TokenRightParen, "expected ')'")
	c.emitOp(op)
}

func (c *compiler) builtinBinaryCall(op bytecode.OpCode) {
	c.advance() // '('
	c.expression()
	c.consume(lexer.TokenComma, "expected ','")
	c.expression()
	c.consume(lexer.TokenRightParen, "expected ')'")
	c.emitOp(op)
}

// --- grouping, tuples, sets --------------------------------------------

// grouping handles '(' already consumed as the prefix token. Per the
// omission grammar: "(" ")" is the empty tuple; "(e)" alone is a plain
// parenthesized expression; "(e,)" is a 1-tuple; "(e, e, ...)" is an
// N-tuple; "(a … b)" / "(a, n … b)" are arithmetic-progression tuples.
func (c *compiler) grouping(canAssign bool) {
	if c.match(lexer.TokenRightParen) {
		c.emitOp(bytecode.OpCreateTuple)
		c.emitByte(0)
		return
	}
	if c.isComprehensionStart() {
		c.comprehension(func() {
			c.emitOp(bytecode.OpCreateTuple)
			c.emitByte(0)
		}, lexer.TokenRightParen, 1)
		return
	}
	c.expression()

	switch {
	case c.match(lexer.TokenEllipsis):
		c.expression()
		c.consume(lexer.TokenRightParen, "expected ')' after tuple omission")
		c.emitOp(bytecode.OpTupleOmission)
		c.emitByte(0)

	case c.match(lexer.TokenComma):
		if c.match(lexer.TokenRightParen) {
			c.emitOp(bytecode.OpCreateTuple)
			c.emitByte(1)
			return
		}
		c.expression()
		if c.match(lexer.TokenEllipsis) {
			c.expression()
			c.consume(lexer.TokenRightParen, "expected ')' after tuple omission")
			c.emitOp(bytecode.OpTupleOmission)
			c.emitByte(1)
			return
		}
		count := 2
		for c.match(lexer.TokenComma) {
			c.expression()
			count++
			if count > 255 {
				c.error("too many tuple elements")
			}
		}
		c.consume(lexer.TokenRightParen, "expected ')' after tuple elements")
		c.emitOp(bytecode.OpCreateTuple)
		c.emitByte(byte(count))

	default:
		c.consume(lexer.TokenRightParen, "expected ')' after expression")
	}
}

// setLiteral handles '{' already consumed as the prefix token, mirroring
// grouping's omission grammar but for sets (and with no bare-grouping
// case, since "{e}" is always a 1-element set).
func (c *compiler) setLiteral(canAssign bool) {
	if c.match(lexer.TokenRightBrace) {
		c.emitOp(bytecode.OpSetCreate)
		return
	}
	if c.isComprehensionStart() {
		c.comprehension(func() {
			c.emitOp(bytecode.OpSetCreate)
		}, lexer.TokenRightBrace, 0)
		return
	}
	c.expression()

	switch {
	case c.match(lexer.TokenEllipsis):
		c.expression()
		c.consume(lexer.TokenRightBrace, "expected '}' after set omission")
		c.emitOp(bytecode.OpSetOmission)
		c.emitByte(0)

	case c.match(lexer.TokenComma):
		c.expression()
		if c.match(lexer.TokenEllipsis) {
			c.expression()
			c.consume(lexer.TokenRightBrace, "expected '}' after set omission")
			c.emitOp(bytecode.OpSetOmission)
			c.emitByte(1)
			return
		}
		count := 2
		for c.match(lexer.TokenComma) {
			c.expression()
			count++
			if count > 255 {
				c.error("too many set elements")
			}
		}
		c.consume(lexer.TokenRightBrace, "expected '}' after set elements")
		c.emitOp(bytecode.OpSetInsert)
		c.emitByte(byte(count))

	default:
		c.consume(lexer.TokenRightBrace, "expected '}' after set element")
		c.emitOp(bytecode.OpSetInsert)
		c.emitByte(1)
	}
}

// --- calls and subscripts -----------------------------------------------

func (c *compiler) call(canAssign bool) {
	argCount := 0
	if !c.check(lexer.TokenRightParen) {
		for {
			c.expression()
			argCount++
			if argCount > 255 {
				c.error("can't have more than 255 arguments")
			}
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightParen, "expected ')' after arguments")
	c.emitOp(bytecode.OpCall)
	c.emitByte(byte(argCount))
}

// subscript handles '[' already consumed, with the indexed value already
// on the stack. Single index: `s[i]`. Slice: `s[i … j]`, with either
// bound omittable for an open end (`s[… j]`, `s[i …]`).
func (c *compiler) subscript(canAssign bool) {
	if c.match(lexer.TokenEllipsis) {
		c.emitOp(bytecode.OpNull) // open start
		c.expression()
		c.consume(lexer.TokenRightBracket, "expected ']' after slice")
		c.emitOp(bytecode.OpSubscript)
		c.emitByte(1)
		return
	}

	c.expression()
	if c.match(lexer.TokenEllipsis) {
		if c.match(lexer.TokenRightBracket) {
			c.emitOp(bytecode.OpNull) // open end
			c.emitOp(bytecode.OpSubscript)
			c.emitByte(1)
			return
		}
		c.expression()
		c.consume(lexer.TokenRightBracket, "expected ']' after slice")
		c.emitOp(bytecode.OpSubscript)
		c.emitByte(1)
		return
	}
	c.consume(lexer.TokenRightBracket, "expected ']' after index")
	c.emitOp(bytecode.OpSubscript)
	c.emitByte(0)
}

// --- unary and binary operators ------------------------------------------

func (c *compiler) unary(canAssign bool) {
	opType := c.previous.Type
	c.parsePrecedence(PrecUnary)
	switch opType {
	case lexer.TokenMinus:
		c.emitOp(bytecode.OpNegate)
	case lexer.TokenNot:
		c.emitOp(bytecode.OpNot)
	case lexer.TokenHash:
		c.emitOp(bytecode.OpSize)
	case lexer.TokenSum:
		c.emitOp(bytecode.OpSum)
	}
}

func (c *compiler) binary(canAssign bool) {
	opType := c.previous.Type
	rule := getRule(opType)
	if opType == lexer.TokenCaret {
		c.parsePrecedence(rule.precedence) // right-associative
	} else {
		c.parsePrecedence(rule.precedence + 1)
	}
	switch opType {
	case lexer.TokenPlus:
		c.emitOp(bytecode.OpAdd)
	case lexer.TokenMinus:
		c.emitOp(bytecode.OpSubtract)
	case lexer.TokenStar:
		c.emitOp(bytecode.OpMultiply)
	case lexer.TokenSlash:
		c.emitOp(bytecode.OpDivide)
	case lexer.TokenCaret:
		c.emitOp(bytecode.OpExponent)
	case lexer.TokenIntersect:
		c.emitOp(bytecode.OpSetIntersect)
	case lexer.TokenUnion:
		c.emitOp(bytecode.OpSetUnion)
	case lexer.TokenEqualEqual:
		c.emitOp(bytecode.OpEqual)
	case lexer.TokenNotEqual:
		c.emitOp(bytecode.OpNotEqual)
	case lexer.TokenIn:
		c.emitOp(bytecode.OpSetIn)
	case lexer.TokenGreater:
		c.emitOp(bytecode.OpGreater)
	case lexer.TokenGreaterEqual:
		c.emitOp(bytecode.OpGreaterEqual)
	case lexer.TokenLess:
		c.emitOp(bytecode.OpLess)
	case lexer.TokenLessEqual:
		c.emitOp(bytecode.OpLessEqual)
	}
}

// and_ short-circuits: if the left operand (already on the stack) is
// falsey, its value is left in place as the result and the right operand
// is never evaluated.
func (c *compiler) and_(canAssign bool) {
	endJump := c.emitJump(bytecode.OpJumpIfFalse2)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(PrecAnd + 1)
	c.patchJump(endJump)
}

// or_ mirrors and_: a truthy left operand short-circuits to itself.
func (c *compiler) or_(canAssign bool) {
	elseJump := c.emitJump(bytecode.OpJumpIfFalse2)
	endJump := c.emitJump(bytecode.OpJump)
	c.patchJump(elseJump)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(PrecOr + 1)
	c.patchJump(endJump)
}

// implies_ compiles `a => b` as the material conditional ¬a ∨ b, reusing
// or_'s short-circuit shape: negate the left operand in place, then fall
// through to the same peek/pop/evaluate-right pattern.
func (c *compiler) implies_(canAssign bool) {
	c.emitOp(bytecode.OpNot)
	elseJump := c.emitJump(bytecode.OpJumpIfFalse2)
	endJump := c.emitJump(bytecode.OpJump)
	c.patchJump(elseJump)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(PrecOr + 1)
	c.patchJump(endJump)
}

// xor_ has no dedicated opcode (and, unlike and/or, can't short-circuit —
// both operands always execute), so it's built from existing primitives:
// double-NOT coerces each operand to a genuine boolean, and two distinct
// booleans are exactly the xor.
func (c *compiler) xor_(canAssign bool) {
	c.emitOp(bytecode.OpNot)
	c.emitOp(bytecode.OpNot)
	c.parsePrecedence(PrecOr + 1)
	c.emitOp(bytecode.OpNot)
	c.emitOp(bytecode.OpNot)
	c.emitOp(bytecode.OpNotEqual)
}

// --- comprehensions -------------------------------------------------------

// isComprehensionStart reports whether the upcoming tokens are a
// comprehension's generator clause (`x ∈ ...`) rather than an ordinary
// element expression. Disambiguating by lookahead alone (without
// backtracking) means a bare membership test can never be the first
// element of a set/tuple literal or grouping — write `let b := x ∈ S;
// {b}` instead, documented as a deliberate grammar trade-off.
func (c *compiler) isComprehensionStart() bool {
	return c.check(lexer.TokenIdentifier) && c.pos < len(c.tokens) && c.tokens[c.pos].Type == lexer.TokenIn
}

// comprehension compiles `x ∈ S : head` (the generator clause precedes the
// head expression, unlike mathematical notation's `{head : x ∈ S}` —
// necessary so this single-pass compiler can resolve head's uses of x
// before it has seen the whole construct). makeAccumulator emits the
// empty-collection opcode (OP_SET_CREATE or OP_CREATE_TUPLE 0); tupleFlag
// selects OP_COLLECT_INSERT's set/tuple behavior.
func (c *compiler) comprehension(makeAccumulator func(), closeTok lexer.TokenType, tupleFlag byte) {
	c.beginScope()

	makeAccumulator()
	accumSlot := len(c.frame.locals)
	c.addLocal("")
	c.markInitialized()

	varName := c.current.Lexeme
	c.advance() // generator variable
	c.advance() // '∈'

	c.emitOp(bytecode.OpNull)
	xSlot := len(c.frame.locals)
	c.addLocal(varName)
	c.markInitialized()

	c.expression() // source set, tuple, or string
	c.emitOp(bytecode.OpCreateIterator)

	loopStart := len(c.chunk().Code)
	exitJump := c.emitJump(bytecode.OpIterate)
	c.emitOp(bytecode.OpSetLocal)
	c.emitByte(byte(xSlot))
	c.emitOp(bytecode.OpPop)

	c.consume(lexer.TokenColon, "expected ':' after comprehension source")
	c.emitOp(bytecode.OpGetLocal)
	c.emitByte(byte(accumSlot))
	c.expression() // head, evaluated once per element
	c.emitOp(bytecode.OpCollectInsert)
	c.emitByte(tupleFlag)

	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitOp(bytecode.OpPop) // exhausted iterator object

	c.consume(closeTok, "expected closing delimiter after comprehension")

	// Discard the generator variable's slot; the accumulator's slot,
	// directly beneath it on the stack, becomes the comprehension's
	// result value — so this bypasses endScope's generic cleanup (which
	// always pops everything) in favor of a single manual pop.
	c.emitOp(bytecode.OpPop)
	c.frame.scopeDepth--
	c.frame.locals = c.frame.locals[:accumSlot]
}
