package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWebRTCOption(t *testing.T) {
	opt := DefaultWebRTCOption()
	require.Len(t, opt.ICEServers, 1)
	assert.Equal(t, []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
		"stun:stun2.l.google.com:19302",
	}, opt.ICEServers[0].URLs)
	assert.Equal(t, constants.DefaultICETimeout, opt.GetICETimeout())
	assert.Equal(t, "chat", opt.GetDataChannel())
	assert.Equal(t, opt.ICEServers, opt.Configuration().ICEServers)

	var empty WebRTCOption
	assert.Equal(t, constants.DefaultICETimeout, empty.GetICETimeout())
	assert.Equal(t, constants.DefaultDataChannelName, empty.GetDataChannel())
}

func TestParseICEServers(t *testing.T) {
	doc := `
iceServers:
  - urls: stun:stun.example.org:3478
  - urls:
      - turn:turn.example.org:3478?transport=udp
      - turns:turn.example.org:5349
    username: tutor
    credential: s3cret
`
	servers, err := ParseICEServers([]byte(doc))
	require.NoError(t, err)
	require.Len(t, servers, 2)

	assert.Equal(t, []string{"stun:stun.example.org:3478"}, servers[0].URLs)
	assert.Empty(t, servers[0].Username)
	assert.Nil(t, servers[0].Credential)

	assert.Len(t, servers[1].URLs, 2)
	assert.Equal(t, "tutor", servers[1].Username)
	assert.Equal(t, "s3cret", servers[1].Credential)
	assert.Equal(t, webrtc.ICECredentialTypePassword, servers[1].CredentialType)
}

func TestParseICEServers_Invalid(t *testing.T) {
	tests := map[string]string{
		"not yaml":      "iceServers: [",
		"empty":         "iceServers: []",
		"no urls":       "iceServers:\n  - username: x\n",
		"bad scheme":    "iceServers:\n  - urls: http://example.org\n",
		"urls is a map": "iceServers:\n  - urls: {a: b}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseICEServers([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadICEServers(t *testing.T) {
	servers, err := LoadICEServers("")
	require.NoError(t, err)
	assert.Equal(t, DefaultICEServers(), servers)

	path := filepath.Join(t.TempDir(), "ice.yaml")
	require.NoError(t, os.WriteFile(path, []byte("iceServers:\n  - urls: [stun:a.example:3478]\n"), 0o600))
	servers, err = LoadICEServers(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"stun:a.example:3478"}, servers[0].URLs)

	_, err = LoadICEServers(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
