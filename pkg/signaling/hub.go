package signaling

import (
	"context"

	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/LingByte/TutorConnect/pkg/lifecycle"
	"github.com/LingByte/TutorConnect/pkg/metrics"
	"go.uber.org/zap"
)

// Peer is one signaling connection as seen by the hub.
type Peer interface {
	ID() string
	// Deliver queues env for the peer without blocking. It returns false when
	// the peer cannot keep up.
	Deliver(env *Envelope) bool
	// Close tears down the transport. It must be safe to call more than once.
	Close()
}

type evRegister struct{ peer Peer }

type evUnregister struct{ peer Peer }

type evSignal struct {
	peer Peer
	sig  *Signal
}

type evSnapshot struct{ reply chan Snapshot }

// Snapshot is a point-in-time copy of the hub state.
type Snapshot struct {
	Connections int            `json:"connections"`
	Rooms       []RoomSnapshot `json:"rooms"`
}

// Room returns the snapshot of one room.
func (s Snapshot) Room(id string) (RoomSnapshot, bool) {
	for _, r := range s.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return RoomSnapshot{}, false
}

type Options struct {
	QueueSize int
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Publisher lifecycle.Publisher
	Instance  string
}

// Hub owns the room registry and every routing decision. All state changes
// happen on the goroutine running Run; everything else talks to it through a
// single event channel, so events from one connection are handled in the
// order they were submitted.
type Hub struct {
	events    chan any
	done      chan struct{}
	peers     map[string]Peer
	registry  *Registry
	evicted   []Peer
	logger    *zap.Logger
	metrics   *metrics.Metrics
	publisher lifecycle.Publisher
	instance  string
}

func NewHub(opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = constants.DefaultHubQueue
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.Publisher == nil {
		opts.Publisher = lifecycle.Nop{}
	}
	return &Hub{
		events:    make(chan any, opts.QueueSize),
		done:      make(chan struct{}),
		peers:     make(map[string]Peer),
		registry:  NewRegistry(),
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
		instance:  opts.Instance,
	}
}

// Run processes events until ctx is cancelled, then closes every peer.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("signaling hub started", zap.String("instance", h.instance))
	defer func() {
		close(h.done)
		for _, p := range h.peers {
			p.Close()
		}
		h.logger.Info("signaling hub stopped", zap.Int("connections", len(h.peers)))
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.events:
			h.handle(ev)
			h.flushEvicted()
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Register announces a new connection. The peer receives its welcome frame
// before anything else.
func (h *Hub) Register(ctx context.Context, p Peer) error {
	return h.enqueue(ctx, evRegister{peer: p})
}

// Unregister removes the connection from every room it joined. Nothing is
// delivered to it afterwards.
func (h *Hub) Unregister(p Peer) {
	_ = h.enqueue(context.Background(), evUnregister{peer: p})
}

// Dispatch submits a validated inbound signal from p.
func (h *Hub) Dispatch(ctx context.Context, p Peer, sig *Signal) error {
	return h.enqueue(ctx, evSignal{peer: p, sig: sig})
}

// Snapshot asks the event loop for a copy of the current rooms.
func (h *Hub) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := h.enqueue(ctx, evSnapshot{reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-h.done:
		return Snapshot{}, ErrHubClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Reject records an inbound frame that failed validation. The sender gets no
// reply.
func (h *Hub) Reject(p Peer, err error) {
	reason := dropReason(err)
	h.metrics.Dropped.WithLabelValues(reason).Inc()
	h.logger.Warn("dropping invalid message",
		zap.String("connection", p.ID()),
		zap.String("reason", reason),
		zap.Error(err))
}

func (h *Hub) enqueue(ctx context.Context, ev any) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	select {
	case h.events <- ev:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) handle(ev any) {
	switch e := ev.(type) {
	case evRegister:
		h.register(e.peer)
	case evUnregister:
		h.disconnect(e.peer, "disconnect")
	case evSignal:
		if !h.current(e.peer) {
			return
		}
		switch e.sig.Kind {
		case KindJoin:
			h.join(e.peer, e.sig.Room)
		case KindLeave:
			h.leave(e.peer, e.sig.Room)
		default:
			h.relay(e.peer, e.sig)
		}
	case evSnapshot:
		e.reply <- Snapshot{Connections: len(h.peers), Rooms: h.registry.Snapshot()}
	}
}

// current reports whether p is the live registration for its id.
func (h *Hub) current(p Peer) bool {
	live, ok := h.peers[p.ID()]
	return ok && live == p
}

func (h *Hub) register(p Peer) {
	if old, ok := h.peers[p.ID()]; ok && old != p {
		h.logger.Warn("connection id reused, dropping previous peer", zap.String("connection", p.ID()))
		h.disconnect(old, "disconnect")
	}
	h.peers[p.ID()] = p
	h.metrics.Connections.Inc()
	h.logger.Debug("connection registered", zap.String("connection", p.ID()))
	h.send(p, welcomeEnvelope(p.ID()))
}

func (h *Hub) join(p Peer, room string) {
	others, added := h.registry.Join(p.ID(), room)
	h.send(p, allUsersEnvelope(room, others))
	if !added {
		return
	}

	h.metrics.Joins.Inc()
	h.metrics.Rooms.Set(float64(h.registry.RoomCount()))
	h.logger.Info("joined room",
		zap.String("connection", p.ID()),
		zap.String("room", room),
		zap.Int("participants", len(others)+1))

	notice := presenceEnvelope(constants.MessageUserJoined, room, p.ID())
	for _, id := range others {
		h.sendTo(id, notice)
	}

	evType := lifecycle.ParticipantJoined
	if len(others) == 0 {
		evType = lifecycle.RoomOpened
	}
	h.publisher.Publish(lifecycle.Event{
		Type:         evType,
		Room:         room,
		Connection:   p.ID(),
		Participants: len(others) + 1,
	})
}

func (h *Hub) leave(p Peer, room string) {
	remaining, removed := h.registry.Leave(p.ID(), room)
	if !removed {
		h.drop(p, room, "not_member")
		return
	}
	h.depart(p.ID(), room, remaining, constants.MessageUserLeft, "leave")
}

// disconnect forgets p entirely. Each room it was in hears about it once.
func (h *Hub) disconnect(p Peer, reason string) {
	if !h.current(p) {
		return
	}
	delete(h.peers, p.ID())
	h.metrics.Connections.Dec()

	for _, d := range h.registry.Disconnect(p.ID()) {
		h.depart(p.ID(), d.Room, d.Remaining, constants.MessageUserDisconnected, reason)
	}
	h.logger.Debug("connection unregistered", zap.String("connection", p.ID()), zap.String("reason", reason))
	p.Close()
}

func (h *Hub) depart(id, room string, remaining []string, msgType, reason string) {
	h.metrics.Leaves.WithLabelValues(reason).Inc()
	h.metrics.Rooms.Set(float64(h.registry.RoomCount()))
	h.logger.Info("left room",
		zap.String("connection", id),
		zap.String("room", room),
		zap.String("reason", reason),
		zap.Int("participants", len(remaining)))

	notice := presenceEnvelope(msgType, room, id)
	for _, other := range remaining {
		h.sendTo(other, notice)
	}

	evType := lifecycle.ParticipantLeft
	if len(remaining) == 0 {
		evType = lifecycle.RoomClosed
	}
	h.publisher.Publish(lifecycle.Event{
		Type:         evType,
		Room:         room,
		Connection:   id,
		Participants: len(remaining),
		Reason:       reason,
	})
}

func (h *Hub) relay(p Peer, sig *Signal) {
	if !h.registry.IsMember(p.ID(), sig.Room) {
		h.drop(p, sig.Room, "not_member")
		return
	}
	env := sig.relayEnvelope(p.ID())

	if sig.Kind.IsNegotiation() && sig.Target != "" {
		switch {
		case sig.Target == p.ID():
			h.drop(p, sig.Room, "self_target")
		case !h.registry.IsMember(sig.Target, sig.Room):
			h.drop(p, sig.Room, "unknown_target")
		default:
			h.sendTo(sig.Target, env)
			h.metrics.Relayed.WithLabelValues(sig.Kind.String(), "direct").Inc()
		}
		return
	}

	for _, id := range h.registry.Others(sig.Room, p.ID()) {
		h.sendTo(id, env)
		h.metrics.Relayed.WithLabelValues(sig.Kind.String(), "broadcast").Inc()
	}
}

func (h *Hub) drop(p Peer, room, reason string) {
	h.metrics.Dropped.WithLabelValues(reason).Inc()
	h.logger.Debug("message dropped",
		zap.String("connection", p.ID()),
		zap.String("room", room),
		zap.String("reason", reason))
}

func (h *Hub) sendTo(id string, env *Envelope) {
	if p, ok := h.peers[id]; ok {
		h.send(p, env)
	}
}

// send hands env to p. A peer whose queue is full is evicted once the current
// event is done.
func (h *Hub) send(p Peer, env *Envelope) {
	if p.Deliver(env) {
		return
	}
	h.metrics.Dropped.WithLabelValues("slow_consumer").Inc()
	h.logger.Warn("send queue full, evicting connection", zap.String("connection", p.ID()))
	h.evicted = append(h.evicted, p)
}

func (h *Hub) flushEvicted() {
	for len(h.evicted) > 0 {
		p := h.evicted[0]
		h.evicted = h.evicted[1:]
		h.disconnect(p, "evicted")
	}
	h.evicted = nil
}
