package session

// inboxBufferSize bounds the producer-facing mailbox a single ingest
// adapter posts into; it is unrelated to the broadcast fan-out buffer.
const inboxBufferSize = 256

// channel is one live stream's mailbox plus broadcast sink, per spec §4.D.
// Its task loop forwards every Packet/ClockRef from the inbox to the
// broadcast sink and terminates on Disconnect.
type channel struct {
	name  string
	inbox chan Message
	bcast *broadcaster
	done  chan struct{}
}

func newChannel(name string) *channel {
	return &channel{
		name:  name,
		inbox: make(chan Message, inboxBufferSize),
		bcast: newBroadcaster(),
		done:  make(chan struct{}),
	}
}

// run is the per-channel task described in spec §5 ("each session fan-out
// is one task"). onDisconnect is invoked exactly once, after the loop
// exits, so the owning Manager can drop the channel from its registry —
// the implicit Release a Disconnect message triggers.
func (c *channel) run(onDisconnect func(name string)) {
	defer close(c.done)
	defer c.bcast.closeAll()
	for msg := range c.inbox {
		if msg.Kind == MessageDisconnect {
			break
		}
		c.bcast.publish(msg)
	}
	onDisconnect(c.name)
}
