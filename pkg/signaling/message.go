package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/bytedance/sonic"
)

// Envelope is the JSON frame exchanged with clients in both directions.
// Bodies are kept as raw JSON and forwarded byte for byte.
type Envelope struct {
	Type      string          `json:"type"`
	Room      string          `json:"room,omitempty"`
	ID        string          `json:"id,omitempty"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Users     []string        `json:"users,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Message   string          `json:"message,omitempty"`
	Username  string          `json:"username,omitempty"`
}

// Kind tags a validated inbound Signal.
type Kind int

const (
	KindJoin Kind = iota + 1
	KindLeave
	KindOffer
	KindAnswer
	KindCandidate
	KindChat
)

var kindTypes = map[Kind]string{
	KindJoin:      constants.MessageJoinRoom,
	KindLeave:     constants.MessageLeaveRoom,
	KindOffer:     constants.MessageOffer,
	KindAnswer:    constants.MessageAnswer,
	KindCandidate: constants.MessageCandidate,
	KindChat:      constants.MessageChat,
}

// String returns the wire type of the kind.
func (k Kind) String() string {
	if t, ok := kindTypes[k]; ok {
		return t
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsNegotiation reports whether k is an offer, answer or candidate.
func (k Kind) IsNegotiation() bool {
	return k == KindOffer || k == KindAnswer || k == KindCandidate
}

// Chat is the body of a chat-message.
type Chat struct {
	Text        string
	DisplayName string
}

// Signal is an inbound message after boundary validation. Exactly one of Body
// (negotiation kinds) or Chat (KindChat) is meaningful.
type Signal struct {
	Kind   Kind
	Room   string
	Target string
	Body   json.RawMessage
	Chat   Chat
}

// Decode parses and validates one client frame.
func Decode(data []byte) (*Signal, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return FromEnvelope(&env)
}

// FromEnvelope validates an already parsed frame.
func FromEnvelope(env *Envelope) (*Signal, error) {
	var kind Kind
	switch env.Type {
	case constants.MessageJoinRoom:
		kind = KindJoin
	case constants.MessageLeaveRoom:
		kind = KindLeave
	case constants.MessageOffer:
		kind = KindOffer
	case constants.MessageAnswer:
		kind = KindAnswer
	case constants.MessageCandidate:
		kind = KindCandidate
	case constants.MessageChat:
		kind = KindChat
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if env.Room == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRoom, kind)
	}
	sig := &Signal{Kind: kind, Room: env.Room}

	switch kind {
	case KindOffer:
		sig.Body = env.Offer
	case KindAnswer:
		sig.Body = env.Answer
	case KindCandidate:
		sig.Body = env.Candidate
	case KindChat:
		if env.Message == "" {
			return nil, fmt.Errorf("%w: chat text", ErrMissingBody)
		}
		sig.Chat = Chat{Text: env.Message, DisplayName: env.Username}
		if sig.Chat.DisplayName == "" {
			sig.Chat.DisplayName = constants.DefaultDisplayName
		}
	}

	if kind.IsNegotiation() {
		if isEmptyBody(sig.Body) {
			return nil, fmt.Errorf("%w: %s", ErrMissingBody, kind)
		}
		sig.Target = env.To
	}
	return sig, nil
}

func isEmptyBody(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

// Encode serializes an outbound frame.
func Encode(env *Envelope) ([]byte, error) {
	return sonic.Marshal(env)
}

// relayEnvelope builds the frame delivered to recipients of sig.
func (s *Signal) relayEnvelope(from string) *Envelope {
	env := &Envelope{Type: s.Kind.String(), Room: s.Room, From: from}
	switch s.Kind {
	case KindOffer:
		env.Offer = s.Body
		env.To = s.Target
	case KindAnswer:
		env.Answer = s.Body
		env.To = s.Target
	case KindCandidate:
		env.Candidate = s.Body
		env.To = s.Target
	case KindChat:
		env.Message = s.Chat.Text
		env.Username = s.Chat.DisplayName
	}
	return env
}

func welcomeEnvelope(id string) *Envelope {
	return &Envelope{Type: constants.MessageWelcome, ID: id}
}

func allUsersEnvelope(room string, users []string) *Envelope {
	return &Envelope{Type: constants.MessageAllUsers, Room: room, Users: users}
}

func presenceEnvelope(msgType, room, id string) *Envelope {
	return &Envelope{Type: msgType, Room: room, ID: id}
}
