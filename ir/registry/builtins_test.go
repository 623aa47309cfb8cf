package registry

import (
	"testing"

	"github.com/layeredvm/layeredvm/ir/value"
)

func TestBuiltinArithmeticIntAndFloat(t *testing.T) {
	b := NewBuiltin()
	add, ok := b.LookupOperator("core", "add")
	if !ok {
		t.Fatal("expected core:add to be registered")
	}
	if got := add.Fn(value.Int(2), value.Int(3)); got.Kind != value.KindInt || got.Int != 5 {
		t.Fatalf("expected int(5), got %+v", got)
	}
	if got := add.Fn(value.Float(1.5), value.Int(2)); got.Kind != value.KindFloat || got.Float != 3.5 {
		t.Fatalf("expected float(3.5), got %+v", got)
	}
}

func TestBuiltinDivByZero(t *testing.T) {
	b := NewBuiltin()
	div, _ := b.LookupOperator("core", "div")
	got := div.Fn(value.Int(1), value.Int(0))
	if !got.IsError() || got.Err.Code != value.CodeDivideByZero {
		t.Fatalf("expected DivideByZero, got %+v", got)
	}
}

func TestBuiltinArityErrorAndErrorPropagation(t *testing.T) {
	b := NewBuiltin()
	add, _ := b.LookupOperator("core", "add")
	if got := add.Fn(value.Int(1)); !got.IsError() || got.Err.Code != value.CodeArityError {
		t.Fatalf("expected ArityError, got %+v", got)
	}
	boom := value.Err(value.CodeDomainError, "boom")
	if got := add.Fn(boom, value.Int(1)); !got.IsError() || got.Err.Code != value.CodeDomainError {
		t.Fatalf("expected the error operand to short-circuit, got %+v", got)
	}
}

func TestBuiltinComparisonAndLogical(t *testing.T) {
	b := NewBuiltin()
	eq, _ := b.LookupOperator("core", "eq")
	if got := eq.Fn(value.Int(3), value.Int(3)); got.Kind != value.KindBool || !got.Bool {
		t.Fatalf("expected true, got %+v", got)
	}
	lt, _ := b.LookupOperator("core", "lt")
	if got := lt.Fn(value.Int(1), value.Int(2)); got.Kind != value.KindBool || !got.Bool {
		t.Fatalf("expected true, got %+v", got)
	}
	not, _ := b.LookupOperator("core", "not")
	if got := not.Fn(value.Bool(false)); got.Kind != value.KindBool || !got.Bool {
		t.Fatalf("expected true, got %+v", got)
	}
	and, _ := b.LookupOperator("core", "and")
	if got := and.Fn(value.Bool(true), value.Bool(false)); got.Kind != value.KindBool || got.Bool {
		t.Fatalf("expected false, got %+v", got)
	}
	or, _ := b.LookupOperator("core", "or")
	if got := or.Fn(value.Bool(true), value.Bool(false)); got.Kind != value.KindBool || !got.Bool {
		t.Fatalf("expected true, got %+v", got)
	}
	isErr, _ := b.LookupOperator("core", "isError")
	if got := isErr.Fn(value.Err(value.CodeDomainError, "x")); got.Kind != value.KindBool || !got.Bool {
		t.Fatalf("expected true, got %+v", got)
	}
}

func TestBuiltinUnknownOperatorLookupMiss(t *testing.T) {
	b := NewBuiltin()
	if _, ok := b.LookupOperator("core", "frobnicate"); ok {
		t.Fatal("expected lookup miss for an unregistered operator")
	}
}

func TestBuiltinDetectEffectsNoOpWithoutHooks(t *testing.T) {
	b := NewBuiltin()
	recordAccess, ok := b.LookupEffect("recordAccess")
	if !ok {
		t.Fatal("expected recordAccess effect to be registered")
	}
	eff := &Effects{}
	if got := recordAccess.Fn(eff, value.Str("x"), value.Bool(true)); got.Kind != value.KindVoid {
		t.Fatalf("expected void when no RecordAccess hook is wired, got %+v", got)
	}

	lock, _ := b.LookupEffect("lock")
	if got := lock.Fn(eff, value.Str("m")); got.Kind != value.KindVoid {
		t.Fatalf("expected void when no Lock hook is wired, got %+v", got)
	}

	lockAcquired, _ := b.LookupEffect("lockAcquired")
	if got := lockAcquired.Fn(eff, value.Str("m")); got.Kind != value.KindVoid {
		t.Fatalf("expected void when no LockAcquired hook is wired, got %+v", got)
	}

	unlock, _ := b.LookupEffect("unlock")
	if got := unlock.Fn(eff, value.Str("m")); got.Kind != value.KindVoid {
		t.Fatalf("expected void when no Unlock hook is wired, got %+v", got)
	}
}

func TestBuiltinDetectEffectsInvokeWiredHooks(t *testing.T) {
	b := NewBuiltin()
	var gotLoc string
	var gotWrite bool
	var lockedName, acquiredName, unlockedName string
	eff := &Effects{
		RecordAccess: func(location string, write bool) { gotLoc, gotWrite = location, write },
		Lock:         func(lock string) { lockedName = lock },
		LockAcquired: func(lock string) { acquiredName = lock },
		Unlock:       func(lock string) { unlockedName = lock },
	}

	recordAccess, _ := b.LookupEffect("recordAccess")
	recordAccess.Fn(eff, value.Str("cell1"), value.Bool(true))
	if gotLoc != "cell1" || !gotWrite {
		t.Fatalf("expected RecordAccess to be invoked with (cell1,true), got (%q,%v)", gotLoc, gotWrite)
	}

	lock, _ := b.LookupEffect("lock")
	lock.Fn(eff, value.Str("m1"))
	if lockedName != "m1" {
		t.Fatalf("expected Lock to be invoked with m1, got %q", lockedName)
	}

	lockAcquired, _ := b.LookupEffect("lockAcquired")
	lockAcquired.Fn(eff, value.Str("m1"))
	if acquiredName != "m1" {
		t.Fatalf("expected LockAcquired to be invoked with m1, got %q", acquiredName)
	}

	unlock, _ := b.LookupEffect("unlock")
	unlock.Fn(eff, value.Str("m1"))
	if unlockedName != "m1" {
		t.Fatalf("expected Unlock to be invoked with m1, got %q", unlockedName)
	}
}

func TestBuiltinRegisterOverridesExisting(t *testing.T) {
	b := NewBuiltin()
	b.Register("core", "add", Operator{
		Params: []string{"a", "b"}, Returns: "int", Pure: true,
		Fn: func(args ...value.Value) value.Value { return value.Int(-1) },
	})
	add, _ := b.LookupOperator("core", "add")
	if got := add.Fn(value.Int(1), value.Int(2)); got.Int != -1 {
		t.Fatalf("expected the override to take effect, got %+v", got)
	}
}

func TestBuiltinChannelEffectRequiresRuntime(t *testing.T) {
	b := NewBuiltin()
	channel, ok := b.LookupEffect("channel")
	if !ok {
		t.Fatal("expected channel effect to be registered")
	}
	got := channel.Fn(&Effects{}, value.Str("mpsc"), value.Int(0))
	if !got.IsError() || got.Err.Code != value.CodeDomainError {
		t.Fatalf("expected DomainError without a CreateChannel hook, got %+v", got)
	}

	wired := &Effects{CreateChannel: func(variant value.ChannelVariant, bufferSize int) value.Value {
		if variant != value.ChannelMPSC || bufferSize != 3 {
			t.Fatalf("expected (mpsc, 3), got (%s, %d)", variant, bufferSize)
		}
		return value.Value{Kind: value.KindChannel, ChannelH: value.Channel{ID: "ch-1", Variant: variant, BufferSize: bufferSize}}
	}}
	got = channel.Fn(wired, value.Str("mpsc"), value.Int(3))
	if got.Kind != value.KindChannel || got.ChannelH.ID != "ch-1" {
		t.Fatalf("expected the created channel handle, got %+v", got)
	}
}
