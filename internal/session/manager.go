package session

import "fmt"

// TriggerFunc is invoked for every registered trigger sink when its event
// fires. The only defined event is "create_session", fired with the new
// stream's name and a fresh Subscription onto its broadcast sink, per
// spec §4.D.
type TriggerFunc func(name string, sub *Subscription)

// Inbox is the write side of a channel's mailbox: an ingest adapter posts
// Packet/ClockRef/Disconnect messages here.
type Inbox chan<- Message

type createRequest struct {
	name  string
	reply chan createReply
}

type createReply struct {
	inbox Inbox
	err   error
}

type releaseRequest struct {
	name string
}

type joinRequest struct {
	name  string
	reply chan joinReply
}

type joinReply struct {
	inbox Inbox
	sub   *Subscription
	err   error
}

type registerTriggerRequest struct {
	event string
	sink  TriggerFunc
}

// Manager is the process-wide session broker from spec §4.D: a single
// mailbox goroutine serializes Create/Release/Join/RegisterTrigger against
// a registry of named channels, mirroring the teacher's sync.Map-guarded
// downStreamerManager (downstream/mng.go) but replacing its Pull-blocks-
// until-done model with a fire-and-forget request/reply mailbox so callers
// never block each other out.
type Manager struct {
	requests chan any
	done     chan struct{}
}

// NewManager starts the broker's mailbox goroutine and returns a handle to
// it. Callers must eventually cancel the returned stop function to let the
// goroutine exit once every channel has been released.
func NewManager() (*Manager, func()) {
	m := &Manager{
		requests: make(chan any, 32),
		done:     make(chan struct{}),
	}
	stop := make(chan struct{})
	go m.loop(stop)
	return m, func() { close(stop) }
}

func (m *Manager) loop(stop <-chan struct{}) {
	defer close(m.done)

	channels := make(map[string]*channel)
	triggers := make(map[string][]TriggerFunc)

	for {
		select {
		case <-stop:
			return
		case req := <-m.requests:
			switch r := req.(type) {
			case createRequest:
				if _, exists := channels[r.name]; exists {
					r.reply <- createReply{err: fmt.Errorf("session: stream %q already exists", r.name)}
					continue
				}
				ch := newChannel(r.name)
				channels[r.name] = ch
				go ch.run(func(name string) {
					m.requests <- releaseRequest{name: name}
				})
				r.reply <- createReply{inbox: ch.inbox}
				sub := ch.bcast.subscribe()
				for _, fn := range triggers["create_session"] {
					fn(r.name, sub)
				}
			case releaseRequest:
				if ch, ok := channels[r.name]; ok {
					delete(channels, r.name)
					select {
					case ch.inbox <- Message{Kind: MessageDisconnect}:
					default:
						go func() { ch.inbox <- Message{Kind: MessageDisconnect} }()
					}
				}
			case joinRequest:
				ch, ok := channels[r.name]
				if !ok {
					r.reply <- joinReply{err: fmt.Errorf("session: stream %q not found", r.name)}
					continue
				}
				r.reply <- joinReply{inbox: ch.inbox, sub: ch.bcast.subscribe()}
			case registerTriggerRequest:
				triggers[r.event] = append(triggers[r.event], r.sink)
			}
		}
	}
}

// Create allocates a new channel for name, registers it, fires every
// create_session trigger with (name, a fresh subscription), and returns the
// inbox writer the caller's ingest adapter posts to.
func (m *Manager) Create(name string) (Inbox, error) {
	reply := make(chan createReply, 1)
	m.requests <- createRequest{name: name, reply: reply}
	res := <-reply
	return res.inbox, res.err
}

// Release removes the named channel; its broadcast sink's readers observe
// EOF. A no-op if the name is unknown.
func (m *Manager) Release(name string) {
	m.requests <- releaseRequest{name: name}
}

// Join returns the inbox writer and a new broadcast subscription for an
// existing channel.
func (m *Manager) Join(name string) (Inbox, *Subscription, error) {
	reply := make(chan joinReply, 1)
	m.requests <- joinRequest{name: name, reply: reply}
	res := <-reply
	return res.inbox, res.sub, res.err
}

// RegisterTrigger appends sink to the trigger table for event. The only
// event this package fires is "create_session".
func (m *Manager) RegisterTrigger(event string, sink TriggerFunc) {
	m.requests <- registerTriggerRequest{event: event, sink: sink}
}
