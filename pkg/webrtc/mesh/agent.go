package mesh

import (
	"fmt"
	"sync"

	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/LingByte/TutorConnect/pkg/signaling"
	rtcconfig "github.com/LingByte/TutorConnect/pkg/webrtc/config"
	"github.com/bytedance/sonic"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Signaler carries envelopes to the signaling server.
type Signaler interface {
	Send(env *signaling.Envelope) error
}

// ChatMessage is a chat line relayed by the server.
type ChatMessage struct {
	From     string
	Username string
	Text     string
}

// Agent keeps one peer connection per remote member of a room. The newcomer
// initiates: offers go out only on all-users, and an offer from a peer we have
// not seen yet gets a connection created on the spot.
type Agent struct {
	opt      *rtcconfig.WebRTCOption
	signaler Signaler
	logger   *zap.Logger
	username string

	mu      sync.Mutex
	self    string
	room    string
	peers   map[string]*remotePeer
	pending map[string][]webrtc.ICECandidateInit // candidates from peers without a connection yet
	closed  bool

	// OnChat is called for every chat-message received.
	OnChat func(ChatMessage)
	// OnPeerData is called for data channel messages from a peer.
	OnPeerData func(peer string, data []byte)
	// OnPeerState reports peer connection state changes.
	OnPeerState func(peer string, state webrtc.PeerConnectionState)
}

type remotePeer struct {
	id         string
	pc         *webrtc.PeerConnection
	dc         *webrtc.DataChannel
	candidates []webrtc.ICECandidateInit // held until the remote description is set
}

func NewAgent(opt *rtcconfig.WebRTCOption, signaler Signaler, username string, logger *zap.Logger) *Agent {
	if opt == nil {
		opt = rtcconfig.DefaultWebRTCOption()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if username == "" {
		username = constants.DefaultDisplayName
	}
	return &Agent{
		opt:      opt,
		signaler: signaler,
		logger:   logger,
		username: username,
		peers:    make(map[string]*remotePeer),
		pending:  make(map[string][]webrtc.ICECandidateInit),
	}
}

// ID is the connection id assigned by the server, empty before welcome.
func (a *Agent) ID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.self
}

func (a *Agent) Room() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.room
}

// Peers returns the ids of the current remote peers.
func (a *Agent) Peers() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.peers))
	for id := range a.peers {
		out = append(out, id)
	}
	return out
}

func (a *Agent) Join(room string) error {
	a.mu.Lock()
	a.room = room
	a.mu.Unlock()
	return a.signaler.Send(&signaling.Envelope{Type: constants.MessageJoinRoom, Room: room})
}

// Leave leaves the room and drops every peer connection.
func (a *Agent) Leave() error {
	a.mu.Lock()
	room := a.room
	a.room = ""
	peers := a.detachAll()
	a.mu.Unlock()

	closePeers(peers)
	if room == "" {
		return nil
	}
	return a.signaler.Send(&signaling.Envelope{Type: constants.MessageLeaveRoom, Room: room})
}

func (a *Agent) SendChat(text string) error {
	room := a.Room()
	if room == "" {
		return fmt.Errorf("not in a room")
	}
	return a.signaler.Send(&signaling.Envelope{
		Type:     constants.MessageChat,
		Room:     room,
		Message:  text,
		Username: a.username,
	})
}

// Broadcast writes data to every open peer data channel.
func (a *Agent) Broadcast(data []byte) int {
	a.mu.Lock()
	channels := make([]*webrtc.DataChannel, 0, len(a.peers))
	for _, p := range a.peers {
		if p.dc != nil && p.dc.ReadyState() == webrtc.DataChannelStateOpen {
			channels = append(channels, p.dc)
		}
	}
	a.mu.Unlock()

	sent := 0
	for _, dc := range channels {
		if err := dc.Send(data); err == nil {
			sent++
		}
	}
	return sent
}

// Close drops every peer connection. The agent ignores envelopes afterwards.
func (a *Agent) Close() {
	a.mu.Lock()
	a.closed = true
	peers := a.detachAll()
	a.mu.Unlock()
	closePeers(peers)
}

// HandleEnvelope applies one server frame.
func (a *Agent) HandleEnvelope(env *signaling.Envelope) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return nil
	}

	switch env.Type {
	case constants.MessageWelcome:
		a.mu.Lock()
		a.self = env.ID
		a.mu.Unlock()
		return nil
	case constants.MessageAllUsers:
		return a.handleAllUsers(env)
	case constants.MessageUserJoined:
		// the newcomer will send us an offer
		a.logger.Debug("peer joined", zap.String("peer", env.ID), zap.String("room", env.Room))
		return nil
	case constants.MessageUserLeft, constants.MessageUserDisconnected:
		a.removePeer(env.ID)
		return nil
	case constants.MessageOffer:
		if !a.addressedToMe(env) {
			return nil
		}
		return a.handleOffer(env)
	case constants.MessageAnswer:
		if !a.addressedToMe(env) {
			return nil
		}
		return a.handleAnswer(env)
	case constants.MessageCandidate:
		if !a.addressedToMe(env) {
			return nil
		}
		return a.handleCandidate(env)
	case constants.MessageChat:
		if a.OnChat != nil {
			a.OnChat(ChatMessage{From: env.From, Username: env.Username, Text: env.Message})
		}
		return nil
	default:
		a.logger.Debug("ignoring envelope", zap.String("type", env.Type))
		return nil
	}
}

func (a *Agent) addressedToMe(env *signaling.Envelope) bool {
	if env.From == "" {
		return false
	}
	self := a.ID()
	return env.To == "" || self == "" || env.To == self
}

func (a *Agent) handleAllUsers(env *signaling.Envelope) error {
	for _, id := range env.Users {
		if id == a.ID() {
			continue
		}
		if err := a.offer(env.Room, id); err != nil {
			a.logger.Warn("offer failed", zap.String("peer", id), zap.Error(err))
		}
	}
	return nil
}

func (a *Agent) offer(room, id string) error {
	p, created, err := a.peer(room, id, true)
	if err != nil || !created {
		return err
	}
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return a.sendDescription(constants.MessageOffer, room, id, offer)
}

func (a *Agent) handleOffer(env *signaling.Envelope) error {
	var desc webrtc.SessionDescription
	if err := sonic.Unmarshal(env.Offer, &desc); err != nil {
		return fmt.Errorf("decode offer from %s: %w", env.From, err)
	}

	p, _, err := a.peer(env.Room, env.From, false)
	if err != nil {
		return err
	}
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}
	a.flushCandidates(p)

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return a.sendDescription(constants.MessageAnswer, env.Room, env.From, answer)
}

func (a *Agent) handleAnswer(env *signaling.Envelope) error {
	a.mu.Lock()
	p, ok := a.peers[env.From]
	a.mu.Unlock()
	if !ok {
		a.logger.Debug("answer from unknown peer", zap.String("peer", env.From))
		return nil
	}

	var desc webrtc.SessionDescription
	if err := sonic.Unmarshal(env.Answer, &desc); err != nil {
		return fmt.Errorf("decode answer from %s: %w", env.From, err)
	}
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	a.flushCandidates(p)
	return nil
}

func (a *Agent) handleCandidate(env *signaling.Envelope) error {
	var cand webrtc.ICECandidateInit
	if err := sonic.Unmarshal(env.Candidate, &cand); err != nil {
		return fmt.Errorf("decode candidate from %s: %w", env.From, err)
	}

	a.mu.Lock()
	p, ok := a.peers[env.From]
	if !ok {
		a.pending[env.From] = append(a.pending[env.From], cand)
		a.mu.Unlock()
		return nil
	}
	if p.pc.RemoteDescription() == nil {
		p.candidates = append(p.candidates, cand)
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()
	return p.pc.AddICECandidate(cand)
}

// peer returns the connection to id, creating it when missing.
func (a *Agent) peer(room, id string, initiator bool) (*remotePeer, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.peers[id]; ok {
		return p, false, nil
	}

	pc, err := webrtc.NewPeerConnection(a.opt.Configuration())
	if err != nil {
		return nil, false, fmt.Errorf("new peer connection: %w", err)
	}
	p := &remotePeer{id: id, pc: pc, candidates: a.pending[id]}
	delete(a.pending, id)

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		body, err := sonic.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		if err := a.signaler.Send(&signaling.Envelope{
			Type:      constants.MessageCandidate,
			Room:      room,
			To:        id,
			Candidate: body,
		}); err != nil {
			a.logger.Debug("send candidate failed", zap.String("peer", id), zap.Error(err))
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		a.logger.Debug("peer connection state", zap.String("peer", id), zap.String("state", state.String()))
		if a.OnPeerState != nil {
			a.OnPeerState(id, state)
		}
	})

	if initiator {
		dc, err := pc.CreateDataChannel(a.opt.GetDataChannel(), nil)
		if err != nil {
			pc.Close()
			return nil, false, fmt.Errorf("create data channel: %w", err)
		}
		a.attachDataChannel(p, dc)
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			a.mu.Lock()
			a.attachDataChannel(p, dc)
			a.mu.Unlock()
		})
	}

	a.peers[id] = p
	return p, true, nil
}

func (a *Agent) attachDataChannel(p *remotePeer, dc *webrtc.DataChannel) {
	p.dc = dc
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if a.OnPeerData != nil {
			a.OnPeerData(p.id, msg.Data)
		}
	})
}

func (a *Agent) flushCandidates(p *remotePeer) {
	a.mu.Lock()
	held := p.candidates
	p.candidates = nil
	a.mu.Unlock()

	for _, c := range held {
		if err := p.pc.AddICECandidate(c); err != nil {
			a.logger.Debug("add buffered candidate failed", zap.String("peer", p.id), zap.Error(err))
		}
	}
}

func (a *Agent) sendDescription(msgType, room, to string, desc webrtc.SessionDescription) error {
	body, err := sonic.Marshal(desc)
	if err != nil {
		return err
	}
	env := &signaling.Envelope{Type: msgType, Room: room, To: to}
	if msgType == constants.MessageOffer {
		env.Offer = body
	} else {
		env.Answer = body
	}
	return a.signaler.Send(env)
}

func (a *Agent) removePeer(id string) {
	a.mu.Lock()
	p, ok := a.peers[id]
	delete(a.peers, id)
	delete(a.pending, id)
	a.mu.Unlock()
	if ok {
		closePeers([]*remotePeer{p})
	}
}

// detachAll empties the peer table. The caller holds a.mu.
func (a *Agent) detachAll() []*remotePeer {
	out := make([]*remotePeer, 0, len(a.peers))
	for id, p := range a.peers {
		out = append(out, p)
		delete(a.peers, id)
	}
	a.pending = make(map[string][]webrtc.ICECandidateInit)
	return out
}

func closePeers(peers []*remotePeer) {
	for _, p := range peers {
		_ = p.pc.Close()
	}
}
