// Package cfg implements the LIR block-execution loop: instruction and
// terminator dispatch, predecessor-tracked phi resolution, the step
// budget, and the PIR fork/join/suspend/spawn/channelOp/await surface.
package cfg

import (
	"context"
	"sync"
	"time"

	"github.com/layeredvm/layeredvm/ir/async"
	"github.com/layeredvm/layeredvm/ir/docmodel"
	"github.com/layeredvm/layeredvm/ir/emit"
	"github.com/layeredvm/layeredvm/ir/eval"
	"github.com/layeredvm/layeredvm/ir/metrics"
	"github.com/layeredvm/layeredvm/ir/store"
	"github.com/layeredvm/layeredvm/ir/value"
)

// DefaultMaxSteps bounds the block-revisit counter when a caller does not
// override it via WithMaxSteps.
const DefaultMaxSteps = 10_000

// Engine drives one LIR block node's execution. It is built fresh per
// run (via NewEngine); Blocks and Eval may be shared read-only across
// concurrent task goroutines once the run starts, since every mutable
// binding lives in the per-run or per-branch vals map, never on Engine
// itself.
type Engine struct {
	Eval     *eval.Evaluator
	Blocks   map[string]*docmodel.Block
	MaxSteps int
	Emit     emit.Emitter
	Metrics  metrics.Metrics
	RunID    string
	Async    *async.Scheduler
	Store    store.Store
}

// NewEngine constructs an Engine ready to run blocks, applying opts over
// sane defaults (unbounded-looking but finite step budget, a null
// emitter, no-op metrics, no async runtime).
func NewEngine(ev *eval.Evaluator, blocks map[string]*docmodel.Block, opts ...Option) *Engine {
	e := &Engine{
		Eval:     ev,
		Blocks:   blocks,
		MaxSteps: DefaultMaxSteps,
		Emit:     emit.NewNullEmitter(),
		Metrics:  metrics.NopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drives execution from entry to a terminal return/exit, a fork that
// completes without reaching its continuation (handled as a parent-side
// continue), or a NonTermination/validation error.
func (e *Engine) Run(entry string) value.Value {
	if e.Async != nil {
		e.Async.EnterRoot()
		defer e.Async.ExitRoot()
	}
	e.Emit.Emit(emit.Event{RunID: e.RunID, Msg: "run_start", Meta: map[string]interface{}{"entry": entry}})
	vals := map[string]value.Value{}
	result := e.runFrom(entry, vals, "", &forkState{}, "")
	status := "ok"
	if result.IsError() {
		status = "error"
	}
	e.Emit.Emit(emit.Event{RunID: e.RunID, Msg: "run_complete", Meta: map[string]interface{}{"status": status}})
	return result
}

// runFrom is the shared block loop used both for the root run and for
// fork branch tasks. continuation/fs/taskID are only meaningful when
// called as a fork branch (see execFork); plain runs pass ""/no-op
// state.
func (e *Engine) runFrom(start string, vals map[string]value.Value, continuation string, fs *forkState, taskID string) value.Value {
	current := start
	predecessor := ""
	visited := map[string]bool{}
	steps := 0
	stepNum := 0

	for {
		if continuation != "" && current == continuation {
			if !fs.tryClaim(taskID) {
				return value.Void()
			}
			// Won the race to run the continuation: fall through and
			// execute it as part of this branch's own task.
		}

		if e.Async != nil {
			if v := e.Async.CheckGlobalSteps(); v.IsError() {
				return v
			}
		}

		blk, ok := e.Blocks[current]
		if !ok {
			return value.Errf(value.CodeValidationError, "unknown block %q", current)
		}
		if visited[current] {
			steps++
			if steps > e.MaxSteps {
				e.Metrics.IncrementNonTermination(e.RunID)
				return value.Errf(value.CodeNonTermination, "exceeded step budget (%d) revisiting block %q", e.MaxSteps, current)
			}
		}
		visited[current] = true

		stepStart := time.Now()
		for _, instr := range blk.Instructions {
			e.execInstr(instr, vals, predecessor)
		}

		next, result, done := e.execTerm(blk.Terminator, vals, predecessor)
		status := "ok"
		if done && result.IsError() {
			status = "error"
		}
		stepNum++
		e.Metrics.RecordStepLatency(e.RunID, current, time.Since(stepStart), status)
		e.Emit.Emit(emit.Event{RunID: e.RunID, Step: stepNum, BlockID: current, TaskID: taskID, Msg: "block_exit", Meta: map[string]interface{}{"status": status}})
		if e.Store != nil {
			_ = e.Store.Save(context.Background(), store.Checkpoint{
				RunID: e.RunID,
				Step:  stepNum,
				Block: current,
				Vals:  store.Snapshot(vals),
			})
		}

		if done {
			return result
		}
		predecessor = current
		current = next
	}
}

// resolveID looks up a value id in the current block's vals map, falling
// back to the document-level expression-node bindings.
func (e *Engine) resolveID(id string, vals map[string]value.Value) value.Value {
	if v, ok := vals[id]; ok {
		return v
	}
	if v, ok := e.Eval.Nodes[id]; ok {
		return v
	}
	return value.Errf(value.CodeUnboundIdentifier, "unbound id %q", id)
}

func (e *Engine) resolveArgs(ids []string, vals map[string]value.Value) []value.Value {
	out := make([]value.Value, len(ids))
	for i, id := range ids {
		out[i] = e.resolveID(id, vals)
	}
	return out
}

func copyVals(vals map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(vals))
	for k, v := range vals {
		out[k] = v
	}
	return out
}

func (e *Engine) execInstr(instr docmodel.Instruction, vals map[string]value.Value, predecessor string) {
	switch instr.Kind {
	case docmodel.InstrAssign:
		vals[instr.Target] = e.Eval.Eval(instr.InlineExpr, eval.NewEnvironment())

	case docmodel.InstrOp:
		op, ok := e.Eval.Ops.LookupOperator(instr.NS, instr.Name)
		if !ok {
			vals[instr.Target] = value.Errf(value.CodeUnknownOperator, "unknown operator %s:%s", instr.NS, instr.Name)
			return
		}
		args := e.resolveArgs(instr.ArgIDs, vals)
		if len(args) != len(op.Params) {
			vals[instr.Target] = value.Errf(value.CodeArityError, "%s:%s: expected %d args, got %d", instr.NS, instr.Name, len(op.Params), len(args))
			return
		}
		vals[instr.Target] = op.Fn(args...)

	case docmodel.InstrCall:
		e.execCall(instr, vals)

	case docmodel.InstrPhi:
		vals[instr.Target] = e.resolvePhi(instr.Sources, vals, predecessor)

	case docmodel.InstrEffect:
		e.execEffect(instr, vals)

	case docmodel.InstrAssignRef:
		e.Eval.Refs.Set(instr.Target, e.resolveID(instr.ValueID, vals))

	case docmodel.InstrSpawn:
		e.execSpawn(instr, vals)

	case docmodel.InstrChannelOp:
		e.execChannelOp(instr, vals)

	case docmodel.InstrAwait:
		e.execAwait(instr, vals)

	default:
		vals[instr.Target] = value.Errf(value.CodeValidationError, "unknown instruction kind %q", instr.Kind)
	}
}

// execCall resolves `call` against the named AIR definitions: LIR call
// targets a named definition rather than an arbitrary closure value; an
// unresolvable callee reports DomainError rather than panicking.
func (e *Engine) execCall(instr docmodel.Instruction, vals map[string]value.Value) {
	def, ok := e.Eval.AIRDefs[instr.Callee]
	if !ok {
		vals[instr.Target] = value.Errf(value.CodeDomainError, "call: %q is not implemented (no AIR definition and no closure ABI)", instr.Callee)
		return
	}
	args := e.resolveArgs(instr.ArgIDs, vals)
	if len(args) != len(def.Params) {
		vals[instr.Target] = value.Errf(value.CodeArityError, "call %s: expected %d args, got %d", instr.Callee, len(def.Params), len(args))
		return
	}
	defEnv := eval.NewEnvironment()
	for i, p := range def.Params {
		defEnv = defEnv.Extend(p, args[i])
	}
	vals[instr.Target] = e.Eval.Eval(def.Body, defEnv)
}

func (e *Engine) execEffect(instr docmodel.Instruction, vals map[string]value.Value) {
	eff, ok := e.Eval.EffReg.LookupEffect(instr.EffectOp)
	if !ok {
		if instr.Target != "" {
			vals[instr.Target] = value.Errf(value.CodeUnknownOperator, "unknown effect %q", instr.EffectOp)
		}
		return
	}
	args := e.resolveArgs(instr.ArgIDs, vals)
	if len(args) != len(eff.Params) {
		if instr.Target != "" {
			vals[instr.Target] = value.Errf(value.CodeArityError, "effect %s: expected %d args, got %d", instr.EffectOp, len(eff.Params), len(args))
		}
		return
	}
	result := eff.Fn(e.Eval.Eff, args...)
	e.Eval.Eff.RecordEffect(instr.EffectOp, args)
	e.Emit.Emit(emit.Event{RunID: e.RunID, Msg: "effect", Meta: map[string]interface{}{"op": instr.EffectOp}})
	if instr.Target != "" {
		vals[instr.Target] = result
	}
}

// resolvePhi picks the source whose block matches predecessor (tie-break
// in source order); if none match, the first bound non-error source;
// otherwise DomainError.
func (e *Engine) resolvePhi(sources []docmodel.PhiSource, vals map[string]value.Value, predecessor string) value.Value {
	for _, src := range sources {
		if src.Block == predecessor {
			return e.resolveID(src.ID, vals)
		}
	}
	for _, src := range sources {
		v := e.resolveID(src.ID, vals)
		if !v.IsError() {
			return v
		}
	}
	return value.Err(value.CodeDomainError, "phi: no matching source for predecessor")
}

// execTerm executes a block's terminator, returning either the next
// block id (done=false) or a completion value (done=true).
func (e *Engine) execTerm(term docmodel.Terminator, vals map[string]value.Value, predecessor string) (next string, result value.Value, done bool) {
	switch term.Kind {
	case docmodel.TermJump:
		return term.To, value.Value{}, false

	case docmodel.TermBranch:
		cond := e.resolveID(term.Cond, vals)
		if cond.IsError() {
			return "", cond, true
		}
		if cond.Kind != value.KindBool {
			return "", value.Err(value.CodeTypeError, "branch: condition must be bool"), true
		}
		if cond.Bool {
			return term.Then, value.Value{}, false
		}
		return term.Else, value.Value{}, false

	case docmodel.TermReturn:
		if term.ValueID == "" {
			return "", value.Void(), true
		}
		return "", e.resolveID(term.ValueID, vals), true

	case docmodel.TermExit:
		if term.Code == "" {
			return "", value.Void(), true
		}
		return "", e.resolveID(term.Code, vals), true

	case docmodel.TermFork:
		return e.execFork(term, vals)

	case docmodel.TermJoin:
		return e.execJoin(term, vals)

	case docmodel.TermSuspend:
		return e.execSuspend(term, vals)

	default:
		return "", value.Errf(value.CodeValidationError, "unknown terminator kind %q", term.Kind), true
	}
}

// forkState coordinates the "continuation runs exactly once, in whichever
// branch gets there first" guarantee.
type forkState struct {
	mu       sync.Mutex
	executed bool
	winner   string
}

func (fs *forkState) tryClaim(taskID string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.executed {
		return false
	}
	fs.executed = true
	fs.winner = taskID
	return true
}

func (e *Engine) execFork(term docmodel.Terminator, vals map[string]value.Value) (string, value.Value, bool) {
	if e.Async == nil {
		return "", value.Err(value.CodeDomainError, "fork requires an async runtime"), true
	}
	fs := &forkState{}
	for _, br := range term.Branches {
		br := br
		branchVals := copyVals(vals)
		e.Async.SpawnWithID(br.TaskID, func() value.Value {
			return e.runFrom(br.Block, branchVals, term.Continuation, fs, br.TaskID)
		})
	}
	// All branch tasks are created above, before this terminator's
	// effects are observed by the caller; that satisfies the "created
	// before fork returns" guarantee regardless of await ordering below.
	for _, br := range term.Branches {
		e.Async.Await(br.TaskID)
	}

	fs.mu.Lock()
	executed, winner := fs.executed, fs.winner
	fs.mu.Unlock()

	if executed {
		return "", e.Async.Await(winner), true
	}
	return term.Continuation, value.Value{}, false
}

func (e *Engine) execJoin(term docmodel.Terminator, vals map[string]value.Value) (string, value.Value, bool) {
	if e.Async == nil {
		return "", value.Err(value.CodeDomainError, "join requires an async runtime"), true
	}
	for _, taskID := range term.Tasks {
		result := e.Async.Await(taskID)
		if cellID, ok := term.Results[taskID]; ok {
			e.Eval.Refs.Set(cellID, result)
		}
	}
	return term.To, value.Value{}, false
}

func (e *Engine) execSuspend(term docmodel.Terminator, vals map[string]value.Value) (string, value.Value, bool) {
	if e.Async == nil {
		return "", value.Err(value.CodeDomainError, "suspend requires an async runtime"), true
	}
	fut := e.resolveID(term.Future, vals)
	if fut.IsError() {
		return "", fut, true
	}
	if fut.Kind != value.KindFuture {
		return "", value.Err(value.CodeTypeError, "suspend: expected a future"), true
	}
	vals[term.Future] = e.Async.Await(fut.FutureHandle.TaskID)
	return term.ResumeBlock, value.Value{}, false
}

func (e *Engine) execSpawn(instr docmodel.Instruction, vals map[string]value.Value) {
	if e.Async == nil {
		vals[instr.Target] = value.Err(value.CodeDomainError, "spawn requires an async runtime")
		return
	}
	args := e.resolveArgs(instr.ArgIDs, vals)
	for _, a := range args {
		if a.IsError() {
			vals[instr.Target] = a
			return
		}
	}
	branchVals := copyVals(vals)
	entryID := instr.EntryID
	t := e.Async.Spawn(func() value.Value {
		return e.runFrom(entryID, branchVals, "", &forkState{}, "")
	})
	vals[instr.Target] = t.Future()
}

func (e *Engine) execAwait(instr docmodel.Instruction, vals map[string]value.Value) {
	if e.Async == nil {
		vals[instr.Target] = value.Err(value.CodeDomainError, "await requires an async runtime")
		return
	}
	f := e.resolveID(instr.FutureID, vals)
	if f.IsError() {
		vals[instr.Target] = f
		return
	}
	if f.Kind != value.KindFuture {
		vals[instr.Target] = value.Err(value.CodeTypeError, "await: expected a future")
		return
	}
	vals[instr.Target] = e.Async.Await(f.FutureHandle.TaskID)
}

func (e *Engine) execChannelOp(instr docmodel.Instruction, vals map[string]value.Value) {
	store := func(v value.Value) {
		if instr.Target != "" {
			vals[instr.Target] = v
		}
	}
	if e.Async == nil {
		store(value.Err(value.CodeDomainError, "channelOp requires an async runtime"))
		return
	}
	chanVal := e.resolveID(instr.Channel, vals)
	if chanVal.IsError() {
		store(chanVal)
		return
	}
	if chanVal.Kind != value.KindChannel {
		store(value.Err(value.CodeTypeError, "channelOp: expected a channel"))
		return
	}
	ch, ok := e.Async.LookupChannel(chanVal.ChannelH.ID)
	if !ok {
		store(value.Errf(value.CodeDomainError, "unknown channel %q", chanVal.ChannelH.ID))
		return
	}

	switch instr.ChanOp {
	case docmodel.ChanOpSend:
		v := e.resolveID(instr.ValueID, vals)
		if v.IsError() {
			store(v)
			return
		}
		store(e.Async.ChannelSend(ch, v))
	case docmodel.ChanOpRecv:
		store(e.Async.ChannelRecv(ch))
	case docmodel.ChanOpTrySend:
		v := e.resolveID(instr.ValueID, vals)
		if v.IsError() {
			store(v)
			return
		}
		store(e.Async.ChannelTrySend(ch, v))
	case docmodel.ChanOpTryRecv:
		store(e.Async.ChannelTryRecv(ch))
	default:
		store(value.Errf(value.CodeUnknownOperator, "unknown channelOp %q", instr.ChanOp))
	}
}
