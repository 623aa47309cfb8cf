package registry

import "github.com/layeredvm/layeredvm/ir/value"

// Builtin is a minimal, in-memory OperatorRegistry/EffectRegistry
// implementation covering the `core:` namespace. Real deployments supply
// their own registry (operator and effect registries are external
// collaborators); this exists so the engine is exercisable without one.
type Builtin struct {
	ops     map[string]Operator
	effects map[string]Effect
}

// NewBuiltin constructs a Builtin registry pre-populated with `core:`
// arithmetic/comparison/logical operators and a couple of illustrative
// effects (`print`, `sleep`).
func NewBuiltin() *Builtin {
	b := &Builtin{
		ops:     map[string]Operator{},
		effects: map[string]Effect{},
	}
	b.registerCore()
	b.registerEffects()
	return b
}

func key(ns, name string) string { return ns + ":" + name }

// Register adds or replaces an operator entry under ns:name.
func (b *Builtin) Register(ns, name string, op Operator) {
	b.ops[key(ns, name)] = op
}

// RegisterEffect adds or replaces an effect entry.
func (b *Builtin) RegisterEffect(op string, e Effect) {
	b.effects[op] = e
}

func (b *Builtin) LookupOperator(ns, name string) (Operator, bool) {
	op, ok := b.ops[key(ns, name)]
	return op, ok
}

func (b *Builtin) LookupEffect(op string) (Effect, bool) {
	e, ok := b.effects[op]
	return e, ok
}

func numArith(name string, fn func(a, b int64) int64, ffn func(a, b float64) float64) Operator {
	return Operator{
		Params:  []string{"a", "b"},
		Returns: "int|float",
		Pure:    true,
		Fn: func(args ...value.Value) value.Value {
			if len(args) != 2 {
				return value.Errf(value.CodeArityError, "%s: expected 2 args, got %d", name, len(args))
			}
			a, b := args[0], args[1]
			if a.IsError() {
				return a
			}
			if b.IsError() {
				return b
			}
			if a.Kind == value.KindInt && b.Kind == value.KindInt {
				if name == "div" && b.Int == 0 {
					return value.Err(value.CodeDivideByZero, "integer division by zero")
				}
				return value.Int(fn(a.Int, b.Int))
			}
			af, aok := asFloat(a)
			bf, bok := asFloat(b)
			if !aok || !bok {
				return value.Errf(value.CodeTypeError, "%s: expected numeric operands", name)
			}
			if name == "div" && bf == 0 {
				return value.Err(value.CodeDivideByZero, "float division by zero")
			}
			return value.Float(ffn(af, bf))
		},
	}
}

func asFloat(v value.Value) (float64, bool) {
	switch v.Kind {
	case value.KindInt:
		return float64(v.Int), true
	case value.KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

func (b *Builtin) registerCore() {
	b.Register("core", "add", numArith("add",
		func(a, c int64) int64 { return a + c },
		func(a, c float64) float64 { return a + c }))
	b.Register("core", "sub", numArith("sub",
		func(a, c int64) int64 { return a - c },
		func(a, c float64) float64 { return a - c }))
	b.Register("core", "mul", numArith("mul",
		func(a, c int64) int64 { return a * c },
		func(a, c float64) float64 { return a * c }))
	b.Register("core", "div", numArith("div",
		func(a, c int64) int64 { return a / c },
		func(a, c float64) float64 { return a / c }))

	b.Register("core", "eq", Operator{
		Params: []string{"a", "b"}, Returns: "bool", Pure: true,
		Fn: func(args ...value.Value) value.Value {
			if len(args) != 2 {
				return value.Err(value.CodeArityError, "eq: expected 2 args")
			}
			if args[0].IsError() {
				return args[0]
			}
			if args[1].IsError() {
				return args[1]
			}
			return value.Bool(args[0].Equal(args[1]))
		},
	})
	b.Register("core", "lt", Operator{
		Params: []string{"a", "b"}, Returns: "bool", Pure: true,
		Fn: func(args ...value.Value) value.Value {
			if len(args) != 2 {
				return value.Err(value.CodeArityError, "lt: expected 2 args")
			}
			a, c := args[0], args[1]
			if a.IsError() {
				return a
			}
			if c.IsError() {
				return c
			}
			af, aok := asFloat(a)
			cf, cok := asFloat(c)
			if !aok || !cok {
				return value.Err(value.CodeTypeError, "lt: expected numeric operands")
			}
			return value.Bool(af < cf)
		},
	})
	b.Register("core", "not", Operator{
		Params: []string{"a"}, Returns: "bool", Pure: true,
		Fn: func(args ...value.Value) value.Value {
			if len(args) != 1 {
				return value.Err(value.CodeArityError, "not: expected 1 arg")
			}
			a := args[0]
			if a.IsError() {
				return a
			}
			if a.Kind != value.KindBool {
				return value.Err(value.CodeTypeError, "not: expected bool")
			}
			return value.Bool(!a.Bool)
		},
	})
	b.Register("core", "and", Operator{
		Params: []string{"a", "b"}, Returns: "bool", Pure: true,
		Fn: func(args ...value.Value) value.Value {
			if len(args) != 2 {
				return value.Err(value.CodeArityError, "and: expected 2 args")
			}
			a, c := args[0], args[1]
			if a.IsError() {
				return a
			}
			if c.IsError() {
				return c
			}
			if a.Kind != value.KindBool || c.Kind != value.KindBool {
				return value.Err(value.CodeTypeError, "and: expected bool operands")
			}
			return value.Bool(a.Bool && c.Bool)
		},
	})
	b.Register("core", "or", Operator{
		Params: []string{"a", "b"}, Returns: "bool", Pure: true,
		Fn: func(args ...value.Value) value.Value {
			if len(args) != 2 {
				return value.Err(value.CodeArityError, "or: expected 2 args")
			}
			a, c := args[0], args[1]
			if a.IsError() {
				return a
			}
			if c.IsError() {
				return c
			}
			if a.Kind != value.KindBool || c.Kind != value.KindBool {
				return value.Err(value.CodeTypeError, "or: expected bool operands")
			}
			return value.Bool(a.Bool || c.Bool)
		},
	})
	b.Register("core", "isError", Operator{
		Params: []string{"a"}, Returns: "bool", Pure: true,
		Fn: func(args ...value.Value) value.Value {
			if len(args) != 1 {
				return value.Err(value.CodeArityError, "isError: expected 1 arg")
			}
			return value.Bool(args[0].IsError())
		},
	})
}

func (b *Builtin) registerEffects() {
	b.RegisterEffect("print", Effect{
		Params: []string{"msg"},
		Fn: func(eff *Effects, args ...value.Value) value.Value {
			return value.Void()
		},
	})
	b.RegisterEffect("sleep", Effect{
		Params: []string{"ms"},
		Fn: func(eff *Effects, args ...value.Value) value.Value {
			return value.Void()
		},
	})
	b.RegisterEffect("channel", Effect{
		Params: []string{"variant", "bufferSize"},
		Fn: func(eff *Effects, args ...value.Value) value.Value {
			if len(args) != 2 {
				return value.Errf(value.CodeArityError, "channel: expected 2 args, got %d", len(args))
			}
			if eff.CreateChannel == nil {
				return value.Err(value.CodeDomainError, "channel creation requires an async runtime")
			}
			if args[0].Kind != value.KindString || args[1].Kind != value.KindInt {
				return value.Err(value.CodeTypeError, "channel: expected (string variant, int bufferSize)")
			}
			return eff.CreateChannel(value.ChannelVariant(args[0].String), int(args[1].Int))
		},
	})
	b.registerDetectEffects()
}

// registerDetectEffects wires document-facing hooks for the race and
// deadlock detectors. Documents call these around ref-cell accesses and
// critical sections to opt into detection; without a
// detector attached (sequential/no-async runs) they are no-ops.
func (b *Builtin) registerDetectEffects() {
	b.RegisterEffect("recordAccess", Effect{
		Params: []string{"location", "write"},
		Fn: func(eff *Effects, args ...value.Value) value.Value {
			if len(args) != 2 {
				return value.Errf(value.CodeArityError, "recordAccess: expected 2 args, got %d", len(args))
			}
			if eff.RecordAccess != nil {
				eff.RecordAccess(args[0].String, args[1].Bool)
			}
			return value.Void()
		},
	})
	b.RegisterEffect("lock", Effect{
		Params: []string{"lock"},
		Fn: func(eff *Effects, args ...value.Value) value.Value {
			if len(args) != 1 {
				return value.Errf(value.CodeArityError, "lock: expected 1 arg, got %d", len(args))
			}
			if eff.Lock != nil {
				eff.Lock(args[0].String)
			}
			return value.Void()
		},
	})
	b.RegisterEffect("lockAcquired", Effect{
		Params: []string{"lock"},
		Fn: func(eff *Effects, args ...value.Value) value.Value {
			if len(args) != 1 {
				return value.Errf(value.CodeArityError, "lockAcquired: expected 1 arg, got %d", len(args))
			}
			if eff.LockAcquired != nil {
				eff.LockAcquired(args[0].String)
			}
			return value.Void()
		},
	})
	b.RegisterEffect("unlock", Effect{
		Params: []string{"lock"},
		Fn: func(eff *Effects, args ...value.Value) value.Value {
			if len(args) != 1 {
				return value.Errf(value.CodeArityError, "unlock: expected 1 arg, got %d", len(args))
			}
			if eff.Unlock != nil {
				eff.Unlock(args[0].String)
			}
			return value.Void()
		},
	})
}
