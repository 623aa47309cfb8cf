package eval

import (
	"github.com/layeredvm/layeredvm/ir/docmodel"
	"github.com/layeredvm/layeredvm/ir/registry"
	"github.com/layeredvm/layeredvm/ir/value"
)

// Evaluator recursively evaluates AIR/CIR/EIR expression trees.
// It is stateless except for the collaborators it holds: node-id bindings
// (populated by the orchestrator's expression-node prepass), named AIR
// definitions, the operator/effect registries, the ref-cell store, and
// (optionally) an AsyncHost for documents that use PIR forms without first
// lowering to a CFG.
type Evaluator struct {
	Nodes   map[string]value.Value
	AIRDefs map[string]docmodel.AIRDef
	Ops     registry.OperatorRegistry
	EffReg  registry.EffectRegistry
	Eff     *registry.Effects
	Refs    *RefStore
	Async   AsyncHost
}

// NewEvaluator wires the collaborators above into an Evaluator ready to
// run expression trees. Nodes/AIRDefs may be extended by callers after
// construction (the orchestrator's prepass binds node ids incrementally).
func NewEvaluator(ops registry.OperatorRegistry, effReg registry.EffectRegistry, eff *registry.Effects, refs *RefStore) *Evaluator {
	return &Evaluator{
		Nodes:   map[string]value.Value{},
		AIRDefs: map[string]docmodel.AIRDef{},
		Ops:     ops,
		EffReg:  effReg,
		Eff:     eff,
		Refs:    refs,
	}
}

// Eval evaluates expr under env. No Go panic ever escapes this call:
// any panic raised by an operator/effect implementation is recovered at
// this boundary and reified as a DomainError value.
func (ev *Evaluator) Eval(expr *docmodel.Expr, env *Environment) (result value.Value) {
	defer func() {
		if r := recover(); r != nil {
			result = value.Errf(value.CodeDomainError, "evaluator panic: %v", r)
		}
	}()
	return ev.eval(expr, env)
}

func (ev *Evaluator) eval(expr *docmodel.Expr, env *Environment) value.Value {
	if expr == nil {
		return value.Void()
	}
	switch expr.Kind {
	case docmodel.ExprLit:
		return ev.evalLit(expr)
	case docmodel.ExprRef:
		return ev.evalRef(expr)
	case docmodel.ExprVar:
		return ev.evalVar(expr, env)
	case docmodel.ExprCall:
		return ev.evalCall(expr, env)
	case docmodel.ExprIf:
		return ev.evalIf(expr, env)
	case docmodel.ExprLet:
		return ev.evalLet(expr, env)
	case docmodel.ExprLambda:
		return ev.evalLambda(expr, env)
	case docmodel.ExprCallExpr:
		return ev.evalCallExpr(expr, env)
	case docmodel.ExprFix:
		return ev.evalFix(expr, env)
	case docmodel.ExprAIRRef:
		return ev.evalAIRRef(expr, env)
	case docmodel.ExprSeq:
		return ev.evalSeq(expr, env)
	case docmodel.ExprAssign:
		return ev.evalAssign(expr, env)
	case docmodel.ExprWhile:
		return ev.evalWhile(expr, env)
	case docmodel.ExprFor:
		return ev.evalFor(expr, env)
	case docmodel.ExprIter:
		return ev.evalIter(expr, env)
	case docmodel.ExprEffect:
		return ev.evalEffect(expr, env)
	case docmodel.ExprRefCell:
		cell := ev.Refs.Allocate(expr.Target)
		return value.Value{Kind: value.KindRefCell, Ref: cell}
	case docmodel.ExprDeref:
		return ev.Refs.Get(expr.Target)
	case docmodel.ExprTry:
		return ev.evalTry(expr, env)
	case docmodel.ExprSpawn, docmodel.ExprAwait, docmodel.ExprPar, docmodel.ExprChan,
		docmodel.ExprSend, docmodel.ExprRecv, docmodel.ExprSelect, docmodel.ExprRace:
		return ev.evalAsync(expr, env)
	default:
		return value.Errf(value.CodeUnknownOperator, "unknown expression kind %q", expr.Kind)
	}
}

func (ev *Evaluator) evalLit(expr *docmodel.Expr) value.Value {
	switch expr.LitKind {
	case "bool":
		return value.Bool(expr.LitBool)
	case "int":
		return value.Int(expr.LitInt)
	case "float":
		return value.Float(expr.LitFlt)
	case "string":
		return value.Str(expr.LitStr)
	case "void", "":
		return value.Void()
	default:
		return value.Errf(value.CodeTypeError, "unsupported literal kind %q", expr.LitKind)
	}
}

func (ev *Evaluator) evalRef(expr *docmodel.Expr) value.Value {
	v, ok := ev.Nodes[expr.RefID]
	if !ok {
		return value.Errf(value.CodeUnboundIdentifier, "unbound node reference %q", expr.RefID)
	}
	return v
}

func (ev *Evaluator) evalVar(expr *docmodel.Expr, env *Environment) value.Value {
	v, ok := env.Lookup(expr.Name)
	if !ok {
		return value.Errf(value.CodeUnboundIdentifier, "unbound identifier %q", expr.Name)
	}
	return v
}

// resolveArgs evaluates each Arg (inline expression or by-id reference)
// in order, in env.
func (ev *Evaluator) resolveArgs(args []docmodel.Arg, env *Environment) []value.Value {
	out := make([]value.Value, len(args))
	for i, a := range args {
		if a.RefID != "" {
			out[i] = ev.evalRef(&docmodel.Expr{RefID: a.RefID})
			continue
		}
		out[i] = ev.eval(a.Expr, env)
	}
	return out
}

func (ev *Evaluator) evalCall(expr *docmodel.Expr, env *Environment) value.Value {
	op, ok := ev.Ops.LookupOperator(expr.NS, expr.Name)
	if !ok {
		return value.Errf(value.CodeUnknownOperator, "unknown operator %s:%s", expr.NS, expr.Name)
	}
	if len(expr.Args) != len(op.Params) {
		return value.Errf(value.CodeArityError, "%s:%s: expected %d args, got %d",
			expr.NS, expr.Name, len(op.Params), len(expr.Args))
	}
	args := ev.resolveArgs(expr.Args, env)
	return op.Fn(args...)
}

func (ev *Evaluator) evalIf(expr *docmodel.Expr, env *Environment) value.Value {
	cond := ev.eval(expr.Cond, env)
	if cond.IsError() {
		return cond
	}
	if cond.Kind != value.KindBool {
		return value.Err(value.CodeTypeError, "if: condition must be bool")
	}
	if cond.Bool {
		return ev.eval(expr.Then, env)
	}
	return ev.eval(expr.Else, env)
}

func (ev *Evaluator) evalLet(expr *docmodel.Expr, env *Environment) value.Value {
	v := ev.eval(expr.Value, env)
	if v.IsError() {
		return v
	}
	return ev.eval(expr.Body, env.Extend(expr.Name, v))
}

func (ev *Evaluator) evalLambda(expr *docmodel.Expr, env *Environment) value.Value {
	return value.Value{Kind: value.KindClosure, ClosureV: &value.Closure{
		Params: expr.Params,
		Body:   expr.Body,
		Env:    env,
	}}
}

// applyClosure invokes cl with the given (already-evaluated) args. If
// fewer args are supplied than cl has params, it returns a residual
// closure over the remaining params (partial application).
func (ev *Evaluator) applyClosure(cl *value.Closure, args []value.Value) value.Value {
	if native, ok := cl.Body.(nativeFn); ok {
		return native(ev, args)
	}
	body, ok := cl.Body.(*docmodel.Expr)
	if !ok {
		return value.Err(value.CodeDomainError, "closure has no evaluable body")
	}
	if len(args) > len(cl.Params) {
		return value.Errf(value.CodeArityError, "closure: expected at most %d args, got %d", len(cl.Params), len(args))
	}
	capturedEnv, _ := cl.Env.(*Environment)
	if capturedEnv == nil {
		capturedEnv = NewEnvironment()
	}
	if len(args) < len(cl.Params) {
		boundEnv := capturedEnv
		for i, a := range args {
			boundEnv = boundEnv.Extend(cl.Params[i], a)
		}
		return value.Value{Kind: value.KindClosure, ClosureV: &value.Closure{
			Params: cl.Params[len(args):],
			Body:   body,
			Env:    boundEnv,
			Name:   cl.Name,
		}}
	}
	callEnv := capturedEnv
	for i, p := range cl.Params {
		callEnv = callEnv.Extend(p, args[i])
	}
	return ev.eval(body, callEnv)
}

func (ev *Evaluator) evalCallExpr(expr *docmodel.Expr, env *Environment) value.Value {
	fnVal := ev.eval(expr.Fn, env)
	if fnVal.IsError() {
		return fnVal
	}
	if fnVal.Kind != value.KindClosure {
		return value.Err(value.CodeTypeError, "callExpr: fn does not evaluate to a closure")
	}
	args := ev.resolveArgs(expr.Args, env)
	for _, a := range args {
		if a.IsError() {
			return a
		}
	}
	return ev.applyClosure(fnVal.ClosureV, args)
}

// nativeFn marks a Closure.Body as Go-implemented rather than an *Expr
// tree; used to build the self-referential closure that `fix` produces.
type nativeFn func(ev *Evaluator, args []value.Value) value.Value

func (ev *Evaluator) evalFix(expr *docmodel.Expr, env *Environment) value.Value {
	fnVal := ev.eval(expr.FixFn, env)
	if fnVal.IsError() {
		return fnVal
	}
	if fnVal.Kind != value.KindClosure || len(fnVal.ClosureV.Params) != 1 {
		return value.Err(value.CodeTypeError, "fix: expects a closure of exactly one parameter")
	}
	gen := fnVal.ClosureV
	selfParam := gen.Params[0]
	genBody, ok := gen.Body.(*docmodel.Expr)
	if !ok {
		return value.Err(value.CodeDomainError, "fix: generator closure has no evaluable body")
	}
	genEnv, _ := gen.Env.(*Environment)
	if genEnv == nil {
		genEnv = NewEnvironment()
	}

	var self value.Value
	self = value.Value{Kind: value.KindClosure, ClosureV: &value.Closure{
		Name: "fix-self",
		Body: nativeFn(func(ev *Evaluator, args []value.Value) value.Value {
			inner := ev.eval(genBody, genEnv.Extend(selfParam, self))
			if inner.IsError() {
				return inner
			}
			if inner.Kind != value.KindClosure {
				return value.Err(value.CodeTypeError, "fix: generator body did not produce a closure")
			}
			return ev.applyClosure(inner.ClosureV, args)
		}),
	}}
	return self
}

func (ev *Evaluator) evalAIRRef(expr *docmodel.Expr, env *Environment) value.Value {
	def, ok := ev.AIRDefs[expr.Name]
	if !ok {
		return value.Errf(value.CodeUnboundIdentifier, "unknown AIR definition %q", expr.Name)
	}
	if len(expr.Args) != len(def.Params) {
		return value.Errf(value.CodeArityError, "airRef %s: expected %d args, got %d", expr.Name, len(def.Params), len(expr.Args))
	}
	args := ev.resolveArgs(expr.Args, env)
	defEnv := NewEnvironment()
	for i, p := range def.Params {
		if args[i].IsError() {
			return args[i]
		}
		defEnv = defEnv.Extend(p, args[i])
	}
	return ev.eval(def.Body, defEnv)
}

func (ev *Evaluator) evalSeq(expr *docmodel.Expr, env *Environment) value.Value {
	first := ev.eval(expr.First, env)
	if first.IsError() {
		return first
	}
	return ev.eval(expr.Then2, env)
}

func (ev *Evaluator) evalAssign(expr *docmodel.Expr, env *Environment) value.Value {
	v := ev.eval(expr.Value, env)
	if v.IsError() {
		return v
	}
	ev.Refs.Set(expr.Target, v)
	return value.Void()
}

func (ev *Evaluator) evalWhile(expr *docmodel.Expr, env *Environment) value.Value {
	for {
		cond := ev.eval(expr.Cond, env)
		if cond.IsError() {
			return cond
		}
		if cond.Kind != value.KindBool {
			return value.Err(value.CodeTypeError, "while: condition must be bool")
		}
		if !cond.Bool {
			return value.Void()
		}
		if r := ev.eval(expr.Body, env); r.IsError() {
			return r
		}
	}
}

func (ev *Evaluator) evalFor(expr *docmodel.Expr, env *Environment) value.Value {
	if init := ev.eval(expr.Init, env); init.IsError() {
		return init
	}
	for {
		cond := ev.eval(expr.Cond, env)
		if cond.IsError() {
			return cond
		}
		if cond.Kind != value.KindBool {
			return value.Err(value.CodeTypeError, "for: condition must be bool")
		}
		if !cond.Bool {
			return value.Void()
		}
		if r := ev.eval(expr.Body, env); r.IsError() {
			return r
		}
		if u := ev.eval(expr.Update, env); u.IsError() {
			return u
		}
	}
}

// evalIter runs the iteration predicate/body pair the same way `while`
// does; lowering gives `iter` the shared for/while loop shape with no
// init or update clause, and
// the tree-walking evaluator mirrors that choice for documents that are
// evaluated without first being lowered.
func (ev *Evaluator) evalIter(expr *docmodel.Expr, env *Environment) value.Value {
	return ev.evalWhile(expr, env)
}

func (ev *Evaluator) evalEffect(expr *docmodel.Expr, env *Environment) value.Value {
	eff, ok := ev.EffReg.LookupEffect(expr.EffectOp)
	if !ok {
		return value.Errf(value.CodeUnknownOperator, "unknown effect %q", expr.EffectOp)
	}
	if len(expr.Args) != len(eff.Params) {
		return value.Errf(value.CodeArityError, "effect %s: expected %d args, got %d", expr.EffectOp, len(eff.Params), len(expr.Args))
	}
	args := ev.resolveArgs(expr.Args, env)
	for _, a := range args {
		if a.IsError() {
			return a
		}
	}
	result := eff.Fn(ev.Eff, args...)
	ev.Eff.RecordEffect(expr.EffectOp, args)
	return result
}

func (ev *Evaluator) evalTry(expr *docmodel.Expr, env *Environment) value.Value {
	v := ev.eval(expr.TryBody, env)
	if !v.IsError() {
		return v
	}
	caught := ev.eval(expr.CatchBody, env.Extend(expr.CatchParam, v))
	if caught.IsError() && expr.Fallback != nil {
		return ev.eval(expr.Fallback, env)
	}
	return caught
}

func (ev *Evaluator) evalAsync(expr *docmodel.Expr, env *Environment) value.Value {
	if ev.Async == nil {
		return value.Err(value.CodeDomainError, "async expression evaluated without an async runtime attached")
	}
	switch expr.Kind {
	case docmodel.ExprSpawn:
		args := ev.resolveArgs(expr.Args, env)
		for _, a := range args {
			if a.IsError() {
				return a
			}
		}
		return ev.Async.Spawn(ev, expr.Entry, env, args)
	case docmodel.ExprAwait:
		f := ev.eval(expr.Entry, env)
		if f.IsError() {
			return f
		}
		return ev.Async.Await(f)
	case docmodel.ExprPar:
		futures := make([]value.Value, 0, len(expr.Tasks))
		for _, t := range expr.Tasks {
			f := ev.Async.Spawn(ev, t, env, nil)
			if f.IsError() {
				return f
			}
			futures = append(futures, f)
		}
		results := make([]value.Value, len(futures))
		for i, f := range futures {
			results[i] = ev.Async.Await(f)
		}
		return value.List(results...)
	case docmodel.ExprChan:
		return ev.Async.Channel(value.ChannelVariant(expr.Variant), expr.BufferSize)
	case docmodel.ExprSend:
		ch := ev.eval(expr.Channel, env)
		if ch.IsError() {
			return ch
		}
		v := ev.eval(expr.Value, env)
		if v.IsError() {
			return v
		}
		return ev.Async.ChannelSend(ch, v)
	case docmodel.ExprRecv:
		ch := ev.eval(expr.Channel, env)
		if ch.IsError() {
			return ch
		}
		return ev.Async.ChannelRecv(ch)
	case docmodel.ExprSelect:
		futures := make([]value.Value, 0, len(expr.Tasks))
		for _, t := range expr.Tasks {
			f := ev.eval(t, env)
			if f.IsError() {
				return f
			}
			futures = append(futures, f)
		}
		var fallback func() value.Value
		if expr.Fallback != nil {
			fallback = func() value.Value { return ev.eval(expr.Fallback, env) }
		}
		return ev.Async.Select(futures, expr.TimeoutMS, fallback, expr.ReturnIndex)
	case docmodel.ExprRace:
		futures := make([]value.Value, 0, len(expr.Tasks))
		for _, t := range expr.Tasks {
			f := ev.eval(t, env)
			if f.IsError() {
				return f
			}
			futures = append(futures, f)
		}
		return ev.Async.Race(futures)
	default:
		return value.Errf(value.CodeUnknownOperator, "unsupported async expression kind %q", expr.Kind)
	}
}
