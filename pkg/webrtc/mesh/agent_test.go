package mesh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/LingByte/TutorConnect/pkg/signaling"
	rtcconfig "github.com/LingByte/TutorConnect/pkg/webrtc/config"
	"github.com/bytedance/sonic"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSignaler struct {
	mu   sync.Mutex
	sent []*signaling.Envelope
}

func (f *fakeSignaler) Send(env *signaling.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeSignaler) ofType(t string) []*signaling.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*signaling.Envelope
	for _, env := range f.sent {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func newTestAgent(t *testing.T, self string) (*Agent, *fakeSignaler) {
	t.Helper()
	sig := &fakeSignaler{}
	// no ICE servers: host candidates only, nothing leaves the machine
	opt := &rtcconfig.WebRTCOption{}
	a := NewAgent(opt, sig, "Tester", nil)
	t.Cleanup(a.Close)
	require.NoError(t, a.HandleEnvelope(&signaling.Envelope{Type: constants.MessageWelcome, ID: self}))
	return a, sig
}

func TestAgent_InitiatesOnlyOnAllUsers(t *testing.T) {
	a, sig := newTestAgent(t, "me")
	require.NoError(t, a.Join("piano"))

	require.NoError(t, a.HandleEnvelope(&signaling.Envelope{Type: constants.MessageUserJoined, Room: "piano", ID: "late"}))
	assert.Empty(t, sig.ofType(constants.MessageOffer))

	require.NoError(t, a.HandleEnvelope(&signaling.Envelope{
		Type:  constants.MessageAllUsers,
		Room:  "piano",
		Users: []string{"p1", "me", "p2"},
	}))

	offers := sig.ofType(constants.MessageOffer)
	require.Len(t, offers, 2)
	targets := []string{offers[0].To, offers[1].To}
	assert.ElementsMatch(t, []string{"p1", "p2"}, targets)
	for _, env := range offers {
		assert.Equal(t, "piano", env.Room)
		var desc webrtc.SessionDescription
		require.NoError(t, sonic.Unmarshal(env.Offer, &desc))
		assert.Equal(t, webrtc.SDPTypeOffer, desc.Type)
		assert.Contains(t, desc.SDP, "m=application")
	}
	assert.ElementsMatch(t, []string{"p1", "p2"}, a.Peers())

	// a repeated roster does not renegotiate
	require.NoError(t, a.HandleEnvelope(&signaling.Envelope{Type: constants.MessageAllUsers, Room: "piano", Users: []string{"p1"}}))
	assert.Len(t, sig.ofType(constants.MessageOffer), 2)
}

func TestAgent_AnswersUnannouncedOffer(t *testing.T) {
	caller, callerSig := newTestAgent(t, "caller")
	callee, calleeSig := newTestAgent(t, "callee")

	require.NoError(t, caller.HandleEnvelope(&signaling.Envelope{Type: constants.MessageAllUsers, Room: "r", Users: []string{"callee"}}))
	offers := callerSig.ofType(constants.MessageOffer)
	require.Len(t, offers, 1)

	// a candidate that overtakes the offer is held, not rejected
	early, err := sonic.Marshal(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 192.0.2.1 50000 typ host"})
	require.NoError(t, err)
	require.NoError(t, callee.HandleEnvelope(&signaling.Envelope{
		Type: constants.MessageCandidate, Room: "r", From: "caller", To: "callee", Candidate: early,
	}))
	assert.Empty(t, callee.Peers())

	relayed := *offers[0]
	relayed.From = "caller"
	require.NoError(t, callee.HandleEnvelope(&relayed))

	assert.Equal(t, []string{"caller"}, callee.Peers())
	answers := calleeSig.ofType(constants.MessageAnswer)
	require.Len(t, answers, 1)
	assert.Equal(t, "caller", answers[0].To)
	var desc webrtc.SessionDescription
	require.NoError(t, sonic.Unmarshal(answers[0].Answer, &desc))
	assert.Equal(t, webrtc.SDPTypeAnswer, desc.Type)

	back := *answers[0]
	back.From = "callee"
	require.NoError(t, caller.HandleEnvelope(&back))
}

func TestAgent_IgnoresSignalsForOthers(t *testing.T) {
	a, sig := newTestAgent(t, "me")
	require.NoError(t, a.HandleEnvelope(&signaling.Envelope{
		Type: constants.MessageOffer, Room: "r", From: "x", To: "someone-else", Offer: []byte(`{"type":"offer","sdp":""}`),
	}))
	assert.Empty(t, a.Peers())
	assert.Empty(t, sig.ofType(constants.MessageAnswer))
}

func TestAgent_TearsDownOnDeparture(t *testing.T) {
	a, _ := newTestAgent(t, "me")
	require.NoError(t, a.HandleEnvelope(&signaling.Envelope{Type: constants.MessageAllUsers, Room: "r", Users: []string{"p1", "p2"}}))
	require.Len(t, a.Peers(), 2)

	require.NoError(t, a.HandleEnvelope(&signaling.Envelope{Type: constants.MessageUserLeft, Room: "r", ID: "p1"}))
	assert.Equal(t, []string{"p2"}, a.Peers())

	require.NoError(t, a.HandleEnvelope(&signaling.Envelope{Type: constants.MessageUserDisconnected, Room: "r", ID: "p2"}))
	assert.Empty(t, a.Peers())
}

func TestAgent_Chat(t *testing.T) {
	a, sig := newTestAgent(t, "me")
	assert.Error(t, a.SendChat("too early"))

	var got []ChatMessage
	a.OnChat = func(m ChatMessage) { got = append(got, m) }

	require.NoError(t, a.Join("r"))
	require.NoError(t, a.SendChat("hi all"))
	chats := sig.ofType(constants.MessageChat)
	require.Len(t, chats, 1)
	assert.Equal(t, "hi all", chats[0].Message)
	assert.Equal(t, "Tester", chats[0].Username)

	require.NoError(t, a.HandleEnvelope(&signaling.Envelope{Type: constants.MessageChat, Room: "r", From: "p1", Message: "hey", Username: "Ana"}))
	assert.Equal(t, []ChatMessage{{From: "p1", Username: "Ana", Text: "hey"}}, got)

	require.NoError(t, a.Leave())
	assert.Len(t, sig.ofType(constants.MessageLeaveRoom), 1)
	assert.Empty(t, a.Room())
}

func TestFetchICEServers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ice-servers" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"iceServers":[{"urls":["stun:stun.example.org:3478"]},{"urls":["turn:t.example.org"],"username":"u","credential":"c"}]}`))
	}))
	defer srv.Close()

	servers, err := FetchICEServers(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, servers[0].URLs)
	assert.Equal(t, "u", servers[1].Username)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()
	_, err = FetchICEServers(context.Background(), broken.URL)
	assert.Error(t, err)
}
