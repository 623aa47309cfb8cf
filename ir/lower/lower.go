// Package lower implements the EIR→LIR lowering pass: turning an
// expression tree into a well-formed CFG of blocks with explicit
// terminators and phi nodes.
//
// Control-flow-bearing expression kinds (`if`, `while`, `for`, `iter`,
// `try`) are unrolled into block/terminator shape. `call`, `assign`,
// `effect`, `spawn`, `await`, `send` and `recv` get dedicated flat-SSA
// instruction forms since those map directly onto the instruction set;
// channel creation lowers to an effect-shaped instruction named after
// the primitive. Everything else (literals, variable/node references,
// `lambda`, `callExpr`, `fix`, `refCell`, `deref`, and the multi-way
// async forms `par`, `select` and `race`) lowers to an `assign`
// instruction carrying the subexpression inline, executed by the
// expression evaluator at CFG run time (the same design decision
// already made for `callExpr`: give it an evaluator-backed semantics
// rather than a full closure-call ABI in LIR).
package lower

import (
	"fmt"

	"github.com/layeredvm/layeredvm/ir/docmodel"
)

type builder struct {
	blocks     map[string]*docmodel.Block
	order      []string
	cur        string
	nextBlockN int
	nextValN   int
}

func newBuilder() *builder {
	b := &builder{blocks: map[string]*docmodel.Block{}}
	b.cur = b.freshBlock()
	return b
}

func (b *builder) freshBlock() string {
	id := fmt.Sprintf("bb%d", b.nextBlockN)
	b.nextBlockN++
	b.blocks[id] = &docmodel.Block{ID: id}
	b.order = append(b.order, id)
	return id
}

func (b *builder) freshVal() string {
	id := fmt.Sprintf("v%d", b.nextValN)
	b.nextValN++
	return id
}

func (b *builder) emit(instr docmodel.Instruction) {
	blk := b.blocks[b.cur]
	blk.Instructions = append(blk.Instructions, instr)
}

func (b *builder) setTerm(t docmodel.Terminator) {
	b.blocks[b.cur].Terminator = t
}

func (b *builder) emitInline(e *docmodel.Expr) string {
	id := b.freshVal()
	b.emit(docmodel.Instruction{Kind: docmodel.InstrAssign, Target: id, InlineExpr: e})
	return id
}

func (b *builder) emitVoid() string {
	return b.emitInline(&docmodel.Expr{Kind: docmodel.ExprLit, LitKind: "void"})
}

// scope maps a lexically-bound name (from `let`/`try` catchParam) to the
// CFG value id currently holding it. It is a compile-time-only table used
// during lowering; it has no runtime counterpart (the CFG engine has no
// lexical environment of its own, only node-id/value-id bindings).
type scope map[string]string

func (s scope) extend(name, id string) scope {
	out := make(scope, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[name] = id
	return out
}

// Lower produces a block-node implementing expr, suitable for execution
// by ir/cfg. Each call starts a fresh block/value id namespace.
func Lower(expr *docmodel.Expr) (entry string, blocks map[string]*docmodel.Block, err error) {
	b := newBuilder()
	entryBlock := b.cur
	resultID, err := lowerExpr(expr, b, scope{})
	if err != nil {
		return "", nil, err
	}
	if b.blocks[b.cur].Terminator.Kind == "" {
		b.setTerm(docmodel.Terminator{Kind: docmodel.TermReturn, ValueID: resultID})
	}
	return entryBlock, b.blocks, nil
}

func lowerExpr(expr *docmodel.Expr, b *builder, sc scope) (string, error) {
	if expr == nil {
		return b.emitVoid(), nil
	}
	switch expr.Kind {
	case docmodel.ExprVar:
		if id, ok := sc[expr.Name]; ok {
			return id, nil
		}
		return b.emitInline(expr), nil

	case docmodel.ExprRef:
		return expr.RefID, nil

	case docmodel.ExprCall:
		argIDs := make([]string, len(expr.Args))
		for i, a := range expr.Args {
			if a.RefID != "" {
				argIDs[i] = a.RefID
				continue
			}
			id, err := lowerExpr(a.Expr, b, sc)
			if err != nil {
				return "", err
			}
			argIDs[i] = id
		}
		target := b.freshVal()
		b.emit(docmodel.Instruction{Kind: docmodel.InstrOp, Target: target, NS: expr.NS, Name: expr.Name, ArgIDs: argIDs})
		return target, nil

	case docmodel.ExprAIRRef:
		argIDs := make([]string, len(expr.Args))
		for i, a := range expr.Args {
			if a.RefID != "" {
				argIDs[i] = a.RefID
				continue
			}
			id, err := lowerExpr(a.Expr, b, sc)
			if err != nil {
				return "", err
			}
			argIDs[i] = id
		}
		target := b.freshVal()
		b.emit(docmodel.Instruction{Kind: docmodel.InstrCall, Target: target, Callee: expr.Name, ArgIDs: argIDs})
		return target, nil

	case docmodel.ExprLet:
		valID, err := lowerExpr(expr.Value, b, sc)
		if err != nil {
			return "", err
		}
		return lowerExpr(expr.Body, b, sc.extend(expr.Name, valID))

	case docmodel.ExprSeq:
		if _, err := lowerExpr(expr.First, b, sc); err != nil {
			return "", err
		}
		return lowerExpr(expr.Then2, b, sc)

	case docmodel.ExprAssign:
		valID, err := lowerExpr(expr.Value, b, sc)
		if err != nil {
			return "", err
		}
		b.emit(docmodel.Instruction{Kind: docmodel.InstrAssignRef, Target: expr.Target, ValueID: valID})
		return b.emitVoid(), nil

	case docmodel.ExprEffect:
		argIDs := make([]string, len(expr.Args))
		for i, a := range expr.Args {
			if a.RefID != "" {
				argIDs[i] = a.RefID
				continue
			}
			id, err := lowerExpr(a.Expr, b, sc)
			if err != nil {
				return "", err
			}
			argIDs[i] = id
		}
		target := b.freshVal()
		b.emit(docmodel.Instruction{Kind: docmodel.InstrEffect, Target: target, EffectOp: expr.EffectOp, ArgIDs: argIDs})
		return target, nil

	case docmodel.ExprIf:
		return lowerIf(expr, b, sc)

	case docmodel.ExprWhile:
		return lowerLoop(expr.Cond, nil, expr.Body, nil, b, sc)

	case docmodel.ExprFor:
		if _, err := lowerExpr(expr.Init, b, sc); err != nil {
			return "", err
		}
		return lowerLoop(expr.Cond, nil, expr.Body, expr.Update, b, sc)

	case docmodel.ExprIter:
		// iter desugars to the same shape as `for`/`while` (no init clause).
		return lowerLoop(expr.Cond, nil, expr.Body, nil, b, sc)

	case docmodel.ExprTry:
		return lowerTry(expr, b, sc)

	case docmodel.ExprSpawn:
		return lowerSpawn(expr, b, sc)

	case docmodel.ExprAwait:
		futID, err := lowerExpr(expr.Entry, b, sc)
		if err != nil {
			return "", err
		}
		target := b.freshVal()
		b.emit(docmodel.Instruction{Kind: docmodel.InstrAwait, Target: target, FutureID: futID})
		return target, nil

	case docmodel.ExprSend:
		chID, err := lowerExpr(expr.Channel, b, sc)
		if err != nil {
			return "", err
		}
		valID, err := lowerExpr(expr.Value, b, sc)
		if err != nil {
			return "", err
		}
		target := b.freshVal()
		b.emit(docmodel.Instruction{Kind: docmodel.InstrChannelOp, ChanOp: docmodel.ChanOpSend, Channel: chID, ValueID: valID, Target: target})
		return target, nil

	case docmodel.ExprRecv:
		chID, err := lowerExpr(expr.Channel, b, sc)
		if err != nil {
			return "", err
		}
		target := b.freshVal()
		b.emit(docmodel.Instruction{Kind: docmodel.InstrChannelOp, ChanOp: docmodel.ChanOpRecv, Channel: chID, Target: target})
		return target, nil

	case docmodel.ExprChan:
		// Channel creation lowers to an effect-shaped instruction whose
		// op names the primitive; the runtime's channel store backs the
		// `channel` effect.
		variantID := b.emitInline(&docmodel.Expr{Kind: docmodel.ExprLit, LitKind: "string", LitStr: expr.Variant})
		bufID := b.emitInline(&docmodel.Expr{Kind: docmodel.ExprLit, LitKind: "int", LitInt: int64(expr.BufferSize)})
		target := b.freshVal()
		b.emit(docmodel.Instruction{Kind: docmodel.InstrEffect, Target: target, EffectOp: "channel", ArgIDs: []string{variantID, bufID}})
		return target, nil

	default:
		// lit, lambda, callExpr, fix, refCell, deref, and the multi-way
		// async forms (par/select/race, whose timeout/fallback operands
		// are evaluated lazily): evaluated in place by the expression
		// evaluator.
		return b.emitInline(expr), nil
	}
}

// lowerSpawn lowers the spawn entry expression into its own sub-CFG
// within the same block node, then emits a spawn instruction pointing at
// that sub-CFG's entry block. The spawned task drives those blocks
// through the same engine loop as the parent.
func lowerSpawn(expr *docmodel.Expr, b *builder, sc scope) (string, error) {
	argIDs := make([]string, len(expr.Args))
	for i, a := range expr.Args {
		if a.RefID != "" {
			argIDs[i] = a.RefID
			continue
		}
		id, err := lowerExpr(a.Expr, b, sc)
		if err != nil {
			return "", err
		}
		argIDs[i] = id
	}

	parent := b.cur
	entryBlock := b.freshBlock()
	b.cur = entryBlock
	resultID, err := lowerExpr(expr.Entry, b, sc)
	if err != nil {
		return "", err
	}
	if b.blocks[b.cur].Terminator.Kind == "" {
		b.setTerm(docmodel.Terminator{Kind: docmodel.TermReturn, ValueID: resultID})
	}
	b.cur = parent

	target := b.freshVal()
	b.emit(docmodel.Instruction{Kind: docmodel.InstrSpawn, Target: target, EntryID: entryBlock, ArgIDs: argIDs})
	return target, nil
}

func lowerIf(expr *docmodel.Expr, b *builder, sc scope) (string, error) {
	condID, err := lowerExpr(expr.Cond, b, sc)
	if err != nil {
		return "", err
	}
	thenBlock := b.freshBlock()
	elseBlock := b.freshBlock()
	mergeBlock := b.freshBlock()
	b.setTerm(docmodel.Terminator{Kind: docmodel.TermBranch, Cond: condID, Then: thenBlock, Else: elseBlock})

	b.cur = thenBlock
	thenID, err := lowerExpr(expr.Then, b, sc)
	if err != nil {
		return "", err
	}
	thenExit := b.cur
	b.setTerm(docmodel.Terminator{Kind: docmodel.TermJump, To: mergeBlock})

	b.cur = elseBlock
	elseID, err := lowerExpr(expr.Else, b, sc)
	if err != nil {
		return "", err
	}
	elseExit := b.cur
	b.setTerm(docmodel.Terminator{Kind: docmodel.TermJump, To: mergeBlock})

	b.cur = mergeBlock
	result := b.freshVal()
	b.emit(docmodel.Instruction{Kind: docmodel.InstrPhi, Target: result, Sources: []docmodel.PhiSource{
		{Block: thenExit, ID: thenID},
		{Block: elseExit, ID: elseID},
	}})
	return result, nil
}

// lowerLoop builds the standard header/body/exit loop shape shared by
// `while`, `for` and `iter`. update, when non-nil, is lowered at the end
// of the body before jumping back to the header.
func lowerLoop(cond, _ *docmodel.Expr, body, update *docmodel.Expr, b *builder, sc scope) (string, error) {
	headerBlock := b.freshBlock()
	b.setTerm(docmodel.Terminator{Kind: docmodel.TermJump, To: headerBlock})

	bodyBlock := b.freshBlock()
	exitBlock := b.freshBlock()

	b.cur = headerBlock
	condID, err := lowerExpr(cond, b, sc)
	if err != nil {
		return "", err
	}
	b.setTerm(docmodel.Terminator{Kind: docmodel.TermBranch, Cond: condID, Then: bodyBlock, Else: exitBlock})

	b.cur = bodyBlock
	if _, err := lowerExpr(body, b, sc); err != nil {
		return "", err
	}
	if update != nil {
		if _, err := lowerExpr(update, b, sc); err != nil {
			return "", err
		}
	}
	b.setTerm(docmodel.Terminator{Kind: docmodel.TermJump, To: headerBlock})

	b.cur = exitBlock
	return b.emitVoid(), nil
}

// lowerTry lowers `try` to a branch on whether the try body produced an
// error value, with an optional third arm for `fallback`.
func lowerTry(expr *docmodel.Expr, b *builder, sc scope) (string, error) {
	tryID, err := lowerExpr(expr.TryBody, b, sc)
	if err != nil {
		return "", err
	}
	checkID := b.freshVal()
	b.emit(docmodel.Instruction{Kind: docmodel.InstrOp, Target: checkID, NS: "core", Name: "isError", ArgIDs: []string{tryID}})

	contBlock := b.freshBlock()
	catchBlock := b.freshBlock()
	mergeBlock := b.freshBlock()
	b.setTerm(docmodel.Terminator{Kind: docmodel.TermBranch, Cond: checkID, Then: catchBlock, Else: contBlock})

	b.cur = contBlock
	contExit := b.cur
	b.setTerm(docmodel.Terminator{Kind: docmodel.TermJump, To: mergeBlock})

	b.cur = catchBlock
	catchID, err := lowerExpr(expr.CatchBody, b, sc.extend(expr.CatchParam, tryID))
	if err != nil {
		return "", err
	}

	if expr.Fallback == nil {
		catchExit := b.cur
		b.setTerm(docmodel.Terminator{Kind: docmodel.TermJump, To: mergeBlock})
		b.cur = mergeBlock
		result := b.freshVal()
		b.emit(docmodel.Instruction{Kind: docmodel.InstrPhi, Target: result, Sources: []docmodel.PhiSource{
			{Block: contExit, ID: tryID},
			{Block: catchExit, ID: catchID},
		}})
		return result, nil
	}

	fallbackCheckID := b.freshVal()
	b.emit(docmodel.Instruction{Kind: docmodel.InstrOp, Target: fallbackCheckID, NS: "core", Name: "isError", ArgIDs: []string{catchID}})
	fallbackBlock := b.freshBlock()
	catchOKBlock := b.freshBlock()
	b.setTerm(docmodel.Terminator{Kind: docmodel.TermBranch, Cond: fallbackCheckID, Then: fallbackBlock, Else: catchOKBlock})

	b.cur = catchOKBlock
	catchOKExit := b.cur
	b.setTerm(docmodel.Terminator{Kind: docmodel.TermJump, To: mergeBlock})

	b.cur = fallbackBlock
	fallbackID, err := lowerExpr(expr.Fallback, b, sc)
	if err != nil {
		return "", err
	}
	fallbackExit := b.cur
	b.setTerm(docmodel.Terminator{Kind: docmodel.TermJump, To: mergeBlock})

	b.cur = mergeBlock
	result := b.freshVal()
	b.emit(docmodel.Instruction{Kind: docmodel.InstrPhi, Target: result, Sources: []docmodel.PhiSource{
		{Block: contExit, ID: tryID},
		{Block: catchOKExit, ID: catchID},
		{Block: fallbackExit, ID: fallbackID},
	}})
	return result, nil
}
