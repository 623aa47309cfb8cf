package eval

import (
	"github.com/layeredvm/layeredvm/ir/docmodel"
	"github.com/layeredvm/layeredvm/ir/value"
)

// AsyncHost is the narrow facade the expression evaluator consumes to
// execute PIR (async) expression forms directly, without first lowering
// to LIR. ir/async's Host, an adapter over its Scheduler, implements
// this interface; an Evaluator
// with a nil Async field rejects async expr kinds with a DomainError
// rather than panicking.
type AsyncHost interface {
	Spawn(ev *Evaluator, entry *docmodel.Expr, env *Environment, args []value.Value) value.Value
	Await(future value.Value) value.Value
	Channel(variant value.ChannelVariant, bufferSize int) value.Value
	ChannelSend(channel, val value.Value) value.Value
	ChannelRecv(channel value.Value) value.Value
	Select(futures []value.Value, timeoutMS int, fallback func() value.Value, returnIndex bool) value.Value
	Race(futures []value.Value) value.Value
}
