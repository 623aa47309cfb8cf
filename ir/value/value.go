// Package value implements the tagged-variant runtime value model shared by
// every IR layer (AIR/CIR/EIR/LIR/PIR).
package value

import "fmt"

// Kind discriminates the variant carried by a Value.
type Kind string

const (
	KindVoid         Kind = "void"
	KindBool         Kind = "bool"
	KindInt          Kind = "int"
	KindFloat        Kind = "float"
	KindString       Kind = "string"
	KindList         Kind = "list"
	KindMap          Kind = "map"
	KindSet          Kind = "set"
	KindOption       Kind = "option"
	KindRefCell      Kind = "refCell"
	KindFuture       Kind = "future"
	KindChannel      Kind = "channel"
	KindError        Kind = "error"
	KindSelectResult Kind = "selectResult"
	KindOpaque       Kind = "opaque"
	KindClosure      Kind = "closure"
)

// FutureStatus is the lifecycle state of a future handle.
type FutureStatus string

const (
	FutureStatusPending FutureStatus = "pending"
	FutureStatusReady   FutureStatus = "ready"
	FutureStatusError   FutureStatus = "error"
)

// ChannelVariant names the fairness/semantics hint carried on a channel handle.
type ChannelVariant string

const (
	ChannelMPSC      ChannelVariant = "mpsc"
	ChannelSPSC      ChannelVariant = "spsc"
	ChannelMPMC      ChannelVariant = "mpmc"
	ChannelBroadcast ChannelVariant = "broadcast"
)

// Well-known error codes surfaced to callers. These never panic out of
// the evaluator or CFG loop; they are always reified as Value error tags.
const (
	CodeUnboundIdentifier = "UnboundIdentifier"
	CodeUnknownOperator   = "UnknownOperator"
	CodeArityError        = "ArityError"
	CodeTypeError         = "TypeError"
	CodeDomainError       = "DomainError"
	CodeDivideByZero      = "DivideByZero"
	CodeNonTermination    = "NonTermination"
	CodeValidationError   = "ValidationError"
	CodeSelectTimeout     = "SelectTimeout"
)

// RefCell is the one identity-bearing mutable cell in the value model.
// It is allocated once and mutated in place thereafter.
type RefCell struct {
	ID    string
	Value Value
}

// Future is an opaque handle into the async scheduler.
type Future struct {
	TaskID string
	Status FutureStatus
}

// Channel is an opaque handle into the channel store.
type Channel struct {
	ID         string
	Variant    ChannelVariant
	BufferSize int
}

// SelectResult is produced by `select` when returnIndex=true.
type SelectResult struct {
	Index int32
	Value Value
}

// Opaque wraps a foreign handle the evaluator does not interpret.
type Opaque struct {
	Name string
}

// ErrorPayload is the first-class error carried by a Value tagged KindError.
// Errors propagate by short-circuit: any operator receiving one returns it
// unchanged unless it is an explicit error-inspecting operator.
type ErrorPayload struct {
	Code    string
	Message string
}

// Closure is produced by `lambda`; it captures the defining environment.
// Env is an opaque capture (an *eval.Environment in practice); the value
// package stays evaluator-agnostic so it holds it as `any`.
type Closure struct {
	Params []string
	Body   any // *docmodel.Expr in practice; kept untyped so value does not import docmodel
	Env    any
	Name   string // non-empty for fix-bound self-recursive closures
}

// Value is the tagged-variant runtime value. Exactly one of the payload
// fields is meaningful, selected by Kind. Containers (List/Map/Set) are
// logically persistent: every mutation returns a new Value, and existing
// references are left unchanged.
type Value struct {
	Kind Kind

	Bool   bool
	Int    int64
	Float  float64
	String string

	List []Value
	// Map and Set store their Go-native composite directly; the exported
	// accessors reconstruct primitive values from the reversible hash-key
	// prefixes (see hash.go).
	Map map[string]Value
	Set map[string]struct{}

	OptionInner *Value // nil means option is empty

	Ref          *RefCell
	FutureHandle Future
	ChannelH     Channel
	Err          *ErrorPayload
	Select       *SelectResult
	OpaqueH      Opaque
	ClosureV     *Closure
}

func Void() Value                 { return Value{Kind: KindVoid} }
func Bool(b bool) Value           { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value           { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value       { return Value{Kind: KindFloat, Float: f} }
func Str(s string) Value          { return Value{Kind: KindString, String: s} }
func Opq(name string) Value       { return Value{Kind: KindOpaque, OpaqueH: Opaque{Name: name}} }
func NoneOption() Value           { return Value{Kind: KindOption} }
func SomeOption(inner Value) Value {
	v := inner
	return Value{Kind: KindOption, OptionInner: &v}
}

// List constructs a persistent list value. The backing slice is copied so
// callers cannot mutate it out from under the returned Value.
func List(elems ...Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{Kind: KindList, List: cp}
}

// Err constructs a first-class error value.
func Err(code, message string) Value {
	return Value{Kind: KindError, Err: &ErrorPayload{Code: code, Message: message}}
}

// Errf is a convenience wrapper formatting the message.
func Errf(code, format string, args ...any) Value {
	return Err(code, fmt.Sprintf(format, args...))
}

// IsError reports whether v is a first-class error value.
func (v Value) IsError() bool { return v.Kind == KindError }

// Equal performs a structural (deep) equality check, used by the core:eq
// operator and by tests; set/map membership goes through HashKey instead. Closures and opaque handles compare by identity
// proxy (pointer/name) since they carry no useful structural content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindVoid:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		return v.Float == o.Float
	case KindString:
		return v.String == o.String
	case KindList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, vv := range v.Map {
			ov, ok := o.Map[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	case KindSet:
		if len(v.Set) != len(o.Set) {
			return false
		}
		for k := range v.Set {
			if _, ok := o.Set[k]; !ok {
				return false
			}
		}
		return true
	case KindOption:
		if (v.OptionInner == nil) != (o.OptionInner == nil) {
			return false
		}
		if v.OptionInner == nil {
			return true
		}
		return v.OptionInner.Equal(*o.OptionInner)
	case KindRefCell:
		return v.Ref == o.Ref
	case KindFuture:
		return v.FutureHandle.TaskID == o.FutureHandle.TaskID
	case KindChannel:
		return v.ChannelH.ID == o.ChannelH.ID
	case KindError:
		return v.Err.Code == o.Err.Code && v.Err.Message == o.Err.Message
	case KindSelectResult:
		return v.Select.Index == o.Select.Index && v.Select.Value.Equal(o.Select.Value)
	case KindOpaque:
		return v.OpaqueH.Name == o.OpaqueH.Name
	case KindClosure:
		return v.ClosureV == o.ClosureV
	default:
		return false
	}
}

// Render is a debug rendering; not used for hashing (see hash.go). Not
// named String because the string payload field already claims that name.
func (v Value) Render() string {
	switch v.Kind {
	case KindVoid:
		return "void"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindString:
		return v.String
	case KindError:
		return fmt.Sprintf("error(%s, %s)", v.Err.Code, v.Err.Message)
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}
