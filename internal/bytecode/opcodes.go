// Package bytecode defines the instruction set and chunk format emitted by
// the compiler and executed by the VM.
package bytecode

// OpCode identifies a single bytecode instruction. Operands, when present,
// follow the opcode byte directly in the Chunk's code stream.
type OpCode byte

const (
	// Constants and literals.
	OpConstant OpCode = iota // u16 constant index -> push
	OpNull                   // push null
	OpTrue                   // push true
	OpFalse                  // push false

	// Stack management.
	OpPop   // discard top of stack
	OpStash // copy top of stack into the frame's implicit-return register

	// Locals, globals, upvalues.
	OpGetLocal
	OpSetLocal
	OpGetGlobal // u16 constant index (name)
	OpDefineGlobal
	OpSetGlobal
	OpGetUpvalue // u8 upvalue index
	OpSetUpvalue
	OpCloseUpvalue

	// Comparisons.
	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual

	// Arithmetic and unary.
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpExponent
	OpMod
	OpNegate
	OpNot

	// Control flow.
	OpJump         // u16 absolute offset
	OpJumpIfFalse  // u16 absolute offset, pops condition
	OpJumpIfFalse2 // u16 absolute offset, peeks (does not pop) condition
	OpLoop         // u16 absolute offset of the (earlier) loop start

	// Calls and closures.
	OpCall    // u8 argument count
	OpClosure // u16 constant index (function) + upvalueCount*(isLocal u8, index u8)
	OpReturn  // u8 implicit flag

	// Sets.
	OpSetCreate
	OpSetInsert     // collect u8 pending elements from the stack into a fresh set
	OpSetOmission   // u8 flag (0 = one bound, 1 = second-and-last)
	OpSetIn
	OpSetIntersect
	OpSetUnion
	OpSetDifference
	OpSubset
	OpSubsetEq
	OpSize
	OpArb

	// Tuples.
	OpCreateTuple   // u8 element count
	OpTupleOmission // u8 flag, mirrors OpSetOmission but preserves order

	// Strings / generic subscript.
	OpSubscript // u8 flag (0 = single index, 1 = slice)

	// Iteration.
	OpCreateIterator
	OpIterate // u16 jump-if-exhausted offset

	// Aggregation.
	OpSum // pops a set or tuple of numbers, pushes their total

	// Comprehensions.
	OpCollectInsert // u8 flag (0 = set, 1 = tuple); pops value then accumulator, mutates in place
)

var opcodeNames = map[OpCode]string{
	OpConstant:       "OP_CONSTANT",
	OpNull:           "OP_NULL",
	OpTrue:           "OP_TRUE",
	OpFalse:          "OP_FALSE",
	OpPop:            "OP_POP",
	OpStash:          "OP_STASH",
	OpGetLocal:       "OP_GET_LOCAL",
	OpSetLocal:       "OP_SET_LOCAL",
	OpGetGlobal:      "OP_GET_GLOBAL",
	OpDefineGlobal:   "OP_DEFINE_GLOBAL",
	OpSetGlobal:      "OP_SET_GLOBAL",
	OpGetUpvalue:     "OP_GET_UPVALUE",
	OpSetUpvalue:     "OP_SET_UPVALUE",
	OpCloseUpvalue:   "OP_CLOSE_UPVALUE",
	OpEqual:          "OP_EQUAL",
	OpNotEqual:       "OP_NOT_EQUAL",
	OpGreater:        "OP_GREATER",
	OpGreaterEqual:   "OP_GREATER_EQUAL",
	OpLess:           "OP_LESS",
	OpLessEqual:      "OP_LESS_EQUAL",
	OpAdd:            "OP_ADD",
	OpSubtract:       "OP_SUBTRACT",
	OpMultiply:       "OP_MULTIPLY",
	OpDivide:         "OP_DIVIDE",
	OpExponent:       "OP_EXPONENT",
	OpMod:            "OP_MOD",
	OpNegate:         "OP_NEGATE",
	OpNot:            "OP_NOT",
	OpJump:           "OP_JUMP",
	OpJumpIfFalse:    "OP_JUMP_IF_FALSE",
	OpJumpIfFalse2:   "OP_JUMP_IF_FALSE_2",
	OpLoop:           "OP_LOOP",
	OpCall:           "OP_CALL",
	OpClosure:        "OP_CLOSURE",
	OpReturn:         "OP_RETURN",
	OpSetCreate:      "OP_SET_CREATE",
	OpSetInsert:      "OP_SET_INSERT",
	OpSetOmission:    "OP_SET_OMISSION",
	OpSetIn:          "OP_SET_IN",
	OpSetIntersect:   "OP_SET_INTERSECT",
	OpSetUnion:       "OP_SET_UNION",
	OpSetDifference:  "OP_SET_DIFFERENCE",
	OpSubset:         "OP_SUBSET",
	OpSubsetEq:       "OP_SUBSETEQ",
	OpSize:           "OP_SIZE",
	OpArb:            "OP_ARB",
	OpCreateTuple:    "OP_CREATE_TUPLE",
	OpTupleOmission:  "OP_TUPLE_OMISSION",
	OpSubscript:      "OP_SUBSCRIPT",
	OpCreateIterator: "OP_CREATE_ITERATOR",
	OpIterate:        "OP_ITERATE",
	OpSum:            "OP_SUM",
	OpCollectInsert:  "OP_COLLECT_INSERT",
}

func (op OpCode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "OP_UNKNOWN"
}
