package async

import (
	"sync"

	"github.com/layeredvm/layeredvm/ir/value"
)

// Channel is the runtime-side backing for a channel handle.
// Non-broadcast variants are backed directly by a native Go channel,
// whose buffered/unbuffered rendezvous semantics are exactly the FIFO
// queue required here. Broadcast fans a sent value out to every
// currently-registered subscriber; a subscriber that registers after the
// send misses it.
type Channel struct {
	id      string
	variant value.ChannelVariant
	buf     int

	ch chan value.Value // non-broadcast variants

	mu   sync.Mutex
	subs []chan value.Value // broadcast variant
}

func newChannel(id string, variant value.ChannelVariant, bufferSize int) *Channel {
	c := &Channel{id: id, variant: variant, buf: bufferSize}
	if variant != value.ChannelBroadcast {
		c.ch = make(chan value.Value, bufferSize)
	}
	return c
}

func (c *Channel) handle() value.Value {
	return value.Value{Kind: value.KindChannel, ChannelH: value.Channel{ID: c.id, Variant: c.variant, BufferSize: c.buf}}
}

func (c *Channel) subscribe() chan value.Value {
	sub := make(chan value.Value, 1)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

func (c *Channel) unsubscribe(sub chan value.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			return
		}
	}
}

func (c *Channel) broadcast(v value.Value) {
	c.mu.Lock()
	subs := make([]chan value.Value, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()
	for _, sub := range subs {
		select {
		case sub <- v:
		default:
			// A lagging subscriber misses the message rather than
			// blocking the sender; broadcast is best-effort fan-out.
		}
	}
}
