package broker

import (
	"context"
	"testing"
	"time"

	"github.com/LingByte/TutorConnect/pkg/config"
	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/LingByte/TutorConnect/pkg/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEvent(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	data, err := EncodeEvent(lifecycle.Event{
		Type:         lifecycle.ParticipantJoined,
		Room:         "calculus",
		Connection:   "abc",
		Participants: 2,
		Instance:     "node-1",
		At:           at,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "participant.joined",
		"room": "calculus",
		"connection": "abc",
		"participants": 2,
		"instance": "node-1",
		"at": "2026-02-03T04:05:06Z"
	}`, string(data))
}

func TestRedisPublisher_Defaults(t *testing.T) {
	p := NewRedisPublisher(config.RedisConfig{Addr: "127.0.0.1:6379"})
	defer p.Close()
	assert.Equal(t, constants.DefaultRedisChannel, p.Channel())
	assert.Equal(t, "redis", p.Name())
}

func TestRedisPublisher_UnreachableServer(t *testing.T) {
	// nothing listens on port 1
	p := NewRedisPublisher(config.RedisConfig{Addr: "127.0.0.1:1", Channel: "test"})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, p.Ping(ctx))
	assert.Error(t, p.Handle(ctx, lifecycle.Event{Type: lifecycle.RoomOpened, Room: "r"}))
}
