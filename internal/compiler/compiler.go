// Package compiler implements JMPL's single-pass Pratt compiler: source
// text goes in, a compiled top-level function object comes out, with no
// separate AST stage in between. It depends on internal/lexer, internal/
// bytecode, and internal/vm, never the reverse, so the VM never needs to
// import the compiler.
package compiler

import (
	"jmpl/internal/bytecode"
	jmplerr "jmpl/internal/errors"
	"jmpl/internal/lexer"
	"jmpl/internal/vm"
)

type funcKind int

const (
	funcKindScript funcKind = iota
	funcKindFunction
)

// localSlot tracks one local variable's name, the scope depth it was
// declared at (-1 while its initializer is still being compiled, so a
// variable can't read itself), and whether it has been captured by a
// nested closure (in which case popping it must close its upvalue).
type localSlot struct {
	name       string
	depth      int
	isCaptured bool
}

// upvalDesc records how the i-th upvalue of a function is sourced: either
// directly from a local slot of the immediately enclosing frame, or from
// one of the enclosing frame's own upvalues (for upvalues threaded through
// more than one level of nesting).
type upvalDesc struct {
	index   uint8
	isLocal bool
}

// frameState is one nested level of function compilation: its own
// FunctionObject/Chunk, locals, upvalues, and scope depth. enclosing
// threads back to the frame compiling the function this one is nested in
// (nil for the top-level script).
type frameState struct {
	enclosing   *frameState
	function    *vm.FunctionObject
	functionObj *vm.Object
	kind        funcKind
	locals      []localSlot
	upvalues    []upvalDesc
	scopeDepth  int
}

// compiler drives the single pass: it holds the full pre-scanned token
// stream (a Pratt parser still only looks one token ahead, but there's no
// harm in scanning eagerly rather than threading a lazy scanner through)
// and the chain of frameStates for whatever function is currently being
// compiled.
type compiler struct {
	vm     *vm.VM
	tokens []lexer.Token
	pos    int

	previous lexer.Token
	current  lexer.Token

	hadError  bool
	panicMode bool
	firstErr  *jmplerr.Error

	frame *frameState
}

// Compile scans and compiles source into a top-level script function, or
// returns the first compile error encountered. Panic-mode recovery lets
// the compiler keep scanning after an error to surface at most one
// diagnostic per call rather than cascading; only the first is returned.
func Compile(vmInstance *vm.VM, source string) (*vm.Object, error) {
	scanner := lexer.NewScanner(source)
	c := &compiler{vm: vmInstance, tokens: scanner.ScanTokens()}

	vmInstance.GC().SetCompilerRoots(c.markCompilerRoots)
	defer vmInstance.GC().SetCompilerRoots(nil)

	c.beginFrame(nil, funcKindScript, "")
	c.advance()

	for !c.check(lexer.TokenEOF) {
		isReturn := c.declaration()
		if isReturn {
			break
		}
	}
	c.emitReturn(true)
	fnObj, _ := c.endFrame()

	if c.hadError {
		return nil, c.firstErr
	}
	return fnObj, nil
}

// --- token stream -----------------------------------------------------

func (c *compiler) advance() {
	c.previous = c.current
	for {
		if c.pos < len(c.tokens) {
			c.current = c.tokens[c.pos]
			c.pos++
		} else {
			c.current = lexer.Token{Type: lexer.TokenEOF, Line: c.previous.Line}
		}
		if c.current.Type != lexer.TokenError {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *compiler) check(t lexer.TokenType) bool {
	return c.current.Type == t
}

func (c *compiler) match(t lexer.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *compiler) consume(t lexer.TokenType, message string) {
	if c.check(t) {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// matchStatementEnd consumes a trailing ';' if present. JMPL statements
// are ';'-separated rather than ';'-terminated, so the final statement of
// a body legally has none.
func (c *compiler) matchStatementEnd() {
	c.match(lexer.TokenSemicolon)
}

func (c *compiler) errorAtCurrent(message string) { c.errorAt(c.current, message) }
func (c *compiler) error(message string)          { c.errorAt(c.previous, message) }

func (c *compiler) errorAt(tok lexer.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	if c.firstErr == nil {
		c.firstErr = jmplerr.NewCompileError(tok.Line, tok.Lexeme, message)
	}
}

// synchronize discards tokens after a compile error until it finds a
// statement boundary (a consumed ';') or the start of a new declaration,
// so one bad statement doesn't cascade into spurious follow-on errors.
func (c *compiler) synchronize() {
	c.panicMode = false
	for !c.check(lexer.TokenEOF) {
		if c.previous.Type == lexer.TokenSemicolon {
			return
		}
		switch c.current.Type {
		case lexer.TokenLet, lexer.TokenFunc, lexer.TokenIf, lexer.TokenWhile,
			lexer.TokenReturn, lexer.TokenOut:
			return
		}
		c.advance()
	}
}

// --- bytecode emission --------------------------------------------------

func (c *compiler) chunk() *vm.Chunk { return c.frame.function.Chunk }

func (c *compiler) emitByte(b byte)             { c.chunk().Write(b, c.previous.Line) }
func (c *compiler) emitOp(op bytecode.OpCode)    { c.chunk().WriteOp(op, c.previous.Line) }
func (c *compiler) emitU16(v uint16)             { c.chunk().WriteU16(v, c.previous.Line) }

func (c *compiler) emitConstant(v vm.Value) {
	idx := c.chunk().AddConstant(v)
	if idx > 0xFFFF {
		c.error("too many constants in one chunk")
		idx = 0
	}
	c.emitOp(bytecode.OpConstant)
	c.emitU16(uint16(idx))
}

// emitJump writes op followed by a placeholder u16 operand, returning the
// operand's offset for patchJump to fill in once the jump target is known.
// Every jump/loop opcode here takes an ABSOLUTE code offset, so patching
// never needs relative-distance arithmetic.
func (c *compiler) emitJump(op bytecode.OpCode) int {
	c.emitOp(op)
	offset := len(c.chunk().Code)
	c.emitU16(0xFFFF)
	return offset
}

func (c *compiler) patchJump(offset int) {
	target := uint16(len(c.chunk().Code))
	c.chunk().Code[offset] = byte(target >> 8)
	c.chunk().Code[offset+1] = byte(target)
}

func (c *compiler) emitLoop(loopStart int) {
	c.emitOp(bytecode.OpLoop)
	c.emitU16(uint16(loopStart))
}

func (c *compiler) emitReturn(implicit bool) {
	c.emitOp(bytecode.OpReturn)
	if implicit {
		c.emitByte(1)
	} else {
		c.emitByte(0)
	}
}

// --- frames and scopes ---------------------------------------------------

func (c *compiler) beginFrame(enclosing *frameState, kind funcKind, name string) {
	fn := &vm.FunctionObject{Chunk: vm.NewChunk()}
	if name != "" {
		nameObj := c.vm.NewString(name)
		c.vm.GC().PushTemp(vm.ObjectValue(nameObj))
		fn.Name = nameObj
	}
	fnObj := c.vm.GC().NewFunction(fn)
	c.vm.GC().PushTemp(vm.ObjectValue(fnObj))
	f := &frameState{enclosing: enclosing, function: fn, functionObj: fnObj, kind: kind}
	// Slot 0 is reserved for the running closure itself (never named, so
	// it can never be resolved by name, but it occupies base+0).
	f.locals = append(f.locals, localSlot{name: "", depth: 0})
	c.frame = f
	// From here fnObj is reachable through markCompilerRoots walking
	// c.frame, which transitively marks fn.Name when it blackens fnObj.
	c.vm.GC().PopTemp()
	if name != "" {
		c.vm.GC().PopTemp()
	}
}

// markCompilerRoots is registered with the GC for the duration of Compile
// so a collection triggered mid-compile sees every frame currently being
// built, not just the ones already linked into an enclosing chunk's
// constant pool.
func (c *compiler) markCompilerRoots(g *vm.GC) {
	for f := c.frame; f != nil; f = f.enclosing {
		g.MarkObject(f.functionObj)
	}
}

// endFrame pops the current frame, restoring the enclosing one, and
// returns the compiled function object together with its upvalue
// descriptors (for the caller to emit OP_CLOSURE against).
func (c *compiler) endFrame() (*vm.Object, []upvalDesc) {
	f := c.frame
	c.frame = f.enclosing
	return f.functionObj, f.upvalues
}

func (c *compiler) beginScope() { c.frame.scopeDepth++ }

func (c *compiler) endScope() {
	c.frame.scopeDepth--
	locals := c.frame.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > c.frame.scopeDepth {
		if locals[len(locals)-1].isCaptured {
			c.emitOp(bytecode.OpCloseUpvalue)
		} else {
			c.emitOp(bytecode.OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	c.frame.locals = locals
}

// --- declarations and statements -----------------------------------------

// declaration parses one declaration or statement and reports whether it
// was a bare `return` at THIS nesting level. A function body (and the
// top-level script) is a maximal run of such calls that ends the instant
// one reports true, or at EOF if none ever does — JMPL has no block
// delimiter token, so the textual extent of a body is bounded by its own
// return statement rather than by braces or indentation.
func (c *compiler) declaration() bool {
	var isReturn bool
	switch {
	case c.match(lexer.TokenLet):
		c.letDeclaration()
	case c.match(lexer.TokenFunc):
		c.funcDeclaration()
	default:
		isReturn = c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
	return isReturn
}

// declarationAsStatement compiles a single declaration/statement for a
// one-statement body (if/then/else and while/do branches). A `return`
// nested in such a branch still emits OP_RETURN and fires at runtime
// whenever control reaches it; it just doesn't end the *enclosing*
// function body's textual extent, since that's bounded only by a return
// parsed directly at the enclosing body's own level.
func (c *compiler) declarationAsStatement() {
	c.beginScope()
	c.declaration()
	c.endScope()
}

func (c *compiler) letDeclaration() {
	global := c.parseVariable("expected variable name")
	c.consume(lexer.TokenAssign, "expected ':=' after variable name")
	c.expression()
	c.matchStatementEnd()
	c.defineVariable(global)
}

func (c *compiler) funcDeclaration() {
	global := c.parseVariable("expected function name")
	name := c.previous.Lexeme
	c.markInitialized() // lets the function reference itself recursively
	c.compileFunctionBody(funcKindFunction, name)
	c.defineVariable(global)
}

// compileFunctionBody parses "(" params ")" ":" body and, once compiled,
// emits OP_CLOSURE (plus its upvalue descriptor pairs) into the now
// again-current enclosing frame.
func (c *compiler) compileFunctionBody(kind funcKind, name string) {
	c.beginFrame(c.frame, kind, name)
	c.beginScope()

	c.consume(lexer.TokenLeftParen, "expected '(' after function name")
	if !c.check(lexer.TokenRightParen) {
		for {
			c.frame.function.Arity++
			if c.frame.function.Arity > 255 {
				c.errorAtCurrent("can't have more than 255 parameters")
			}
			paramConst := c.parseVariable("expected parameter name")
			c.defineVariable(paramConst)
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightParen, "expected ')' after parameters")
	c.consume(lexer.TokenColon, "expected ':' before function body")

	for !c.check(lexer.TokenEOF) {
		isReturn := c.declaration()
		if isReturn {
			break
		}
	}
	c.emitReturn(true)

	fnObj, upvalues := c.endFrame()

	constIdx := c.chunk().AddConstant(vm.ObjectValue(fnObj))
	if constIdx > 0xFFFF {
		c.error("too many constants in one chunk")
	}
	c.emitOp(bytecode.OpClosure)
	c.emitU16(uint16(constIdx))
	for _, uv := range upvalues {
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.index)
	}
}

// statement parses one statement and reports whether it was a bare
// `return` (see declaration's doc comment).
func (c *compiler) statement() bool {
	switch {
	case c.match(lexer.TokenReturn):
		c.returnStatement()
		return true
	case c.match(lexer.TokenIf):
		c.ifStatement()
	case c.match(lexer.TokenWhile):
		c.whileStatement()
	case c.match(lexer.TokenOut):
		c.outStatement()
	default:
		c.expressionStatement()
	}
	return false
}

func (c *compiler) returnStatement() {
	c.expression()
	c.matchStatementEnd()
	c.emitReturn(false)
}

func (c *compiler) ifStatement() {
	c.expression()
	c.consume(lexer.TokenThen, "expected 'then'")
	thenJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.declarationAsStatement()
	if c.match(lexer.TokenElse) {
		elseSkip := c.emitJump(bytecode.OpJump)
		c.patchJump(thenJump)
		c.declarationAsStatement()
		c.patchJump(elseSkip)
	} else {
		c.patchJump(thenJump)
	}
}

func (c *compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	c.expression()
	c.consume(lexer.TokenDo, "expected 'do'")
	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.declarationAsStatement()
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
}

// outStatement compiles `out e` as sugar for the expression-statement
// `println(e)`: it behaves exactly like any other expression statement
// (including participating in implicit return), it just doesn't require
// `println` to be looked up by the user's own source text.
func (c *compiler) outStatement() {
	printConst := c.identifierConstant(lexer.Token{Lexeme: "println"})
	c.emitOp(bytecode.OpGetGlobal)
	c.emitU16(printConst)
	c.expression()
	c.emitOp(bytecode.OpCall)
	c.emitByte(1)
	c.matchStatementEnd()
	c.emitOp(bytecode.OpStash)
	c.emitOp(bytecode.OpPop)
}

// expressionStatement always stashes its value before popping it:
// implicit return is unconditional (every function returns whichever
// expression-statement last executed, unless an explicit `return` fired
// first), so the stash register simply gets overwritten by each one in
// turn as control flows through the body.
func (c *compiler) expressionStatement() {
	c.expression()
	c.matchStatementEnd()
	c.emitOp(bytecode.OpStash)
	c.emitOp(bytecode.OpPop)
}

// --- variables -----------------------------------------------------------

func (c *compiler) parseVariable(message string) uint16 {
	c.consume(lexer.TokenIdentifier, message)
	c.declareVariable()
	if c.frame.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous)
}

func (c *compiler) identifierConstant(tok lexer.Token) uint16 {
	nameObj := c.vm.NewString(tok.Lexeme)
	return uint16(c.chunk().AddConstant(vm.ObjectValue(nameObj)))
}

func (c *compiler) declareVariable() {
	if c.frame.scopeDepth == 0 {
		return
	}
	name := c.previous.Lexeme
	locals := c.frame.locals
	for i := len(locals) - 1; i >= 0; i-- {
		l := locals[i]
		if l.depth != -1 && l.depth < c.frame.scopeDepth {
			break
		}
		if l.name == name {
			c.error("variable with this name already declared in this scope")
		}
	}
	c.addLocal(name)
}

func (c *compiler) addLocal(name string) {
	if len(c.frame.locals) >= 256 {
		c.error("too many local variables in function")
		return
	}
	c.frame.locals = append(c.frame.locals, localSlot{name: name, depth: -1})
}

func (c *compiler) markInitialized() {
	if c.frame.scopeDepth == 0 {
		return
	}
	c.frame.locals[len(c.frame.locals)-1].depth = c.frame.scopeDepth
}

func (c *compiler) defineVariable(global uint16) {
	if c.frame.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOp(bytecode.OpDefineGlobal)
	c.emitU16(global)
}

func (c *compiler) resolveLocal(f *frameState, name string) int {
	for i := len(f.locals) - 1; i >= 0; i-- {
		if f.locals[i].name == name {
			if f.locals[i].depth == -1 {
				c.error("can't read a local variable in its own initializer")
			}
			return i
		}
	}
	return -1
}

func (c *compiler) resolveUpvalue(f *frameState, name string) int {
	if f.enclosing == nil {
		return -1
	}
	if local := c.resolveLocal(f.enclosing, name); local != -1 {
		f.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(f, uint8(local), true)
	}
	if up := c.resolveUpvalue(f.enclosing, name); up != -1 {
		return c.addUpvalue(f, uint8(up), false)
	}
	return -1
}

func (c *compiler) addUpvalue(f *frameState, index uint8, isLocal bool) int {
	for i, uv := range f.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(f.upvalues) >= 256 {
		c.error("too many closure variables in function")
		return 0
	}
	f.upvalues = append(f.upvalues, upvalDesc{index: index, isLocal: isLocal})
	f.function.UpvalueCount = len(f.upvalues)
	return len(f.upvalues) - 1
}

func (c *compiler) namedVariable(name lexer.Token, canAssign bool) {
	var getOp, setOp bytecode.OpCode
	var arg int
	if local := c.resolveLocal(c.frame, name.Lexeme); local != -1 {
		getOp, setOp, arg = bytecode.OpGetLocal, bytecode.OpSetLocal, local
	} else if up := c.resolveUpvalue(c.frame, name.Lexeme); up != -1 {
		getOp, setOp, arg = bytecode.OpGetUpvalue, bytecode.OpSetUpvalue, up
	} else {
		idx := c.identifierConstant(name)
		if canAssign && c.match(lexer.TokenAssign) {
			c.expression()
			c.emitOp(bytecode.OpSetGlobal)
			c.emitU16(idx)
			return
		}
		c.emitOp(bytecode.OpGetGlobal)
		c.emitU16(idx)
		return
	}
	if canAssign && c.match(lexer.TokenAssign) {
		c.expression()
		c.emitOp(setOp)
		c.emitByte(byte(arg))
		return
	}
	c.emitOp(getOp)
	c.emitByte(byte(arg))
}
