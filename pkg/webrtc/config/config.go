package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/pion/webrtc/v3"
	"gopkg.in/yaml.v3"
)

// WebRTCOption WebRTC config options shared by the server's ice-servers
// endpoint and the mesh peer agent
type WebRTCOption struct {
	ICEServers  []webrtc.ICEServer `json:"iceServers"`
	ICETimeout  time.Duration      `json:"iceTimeout"`
	DataChannel string             `json:"dataChannel"`
}

// DefaultICEServers are the public STUN servers the web client ships with.
func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs: []string{
				"stun:stun.l.google.com:19302",
				"stun:stun1.l.google.com:19302",
				"stun:stun2.l.google.com:19302",
			},
		},
	}
}

func DefaultWebRTCOption() *WebRTCOption {
	return &WebRTCOption{
		ICEServers:  DefaultICEServers(),
		ICETimeout:  constants.DefaultICETimeout,
		DataChannel: constants.DefaultDataChannelName,
	}
}

// GetICETimeout get ICE timeout
func (o *WebRTCOption) GetICETimeout() time.Duration {
	if o.ICETimeout == 0 {
		return constants.DefaultICETimeout
	}
	return o.ICETimeout
}

// GetDataChannel get the chat data channel label
func (o *WebRTCOption) GetDataChannel() string {
	if o.DataChannel == "" {
		return constants.DefaultDataChannelName
	}
	return o.DataChannel
}

// Configuration builds the pion peer connection configuration.
func (o *WebRTCOption) Configuration() webrtc.Configuration {
	return webrtc.Configuration{ICEServers: o.ICEServers}
}

func (o WebRTCOption) String() string {
	return fmt.Sprintf("WebRTCOption{ICEServers: %d, ICETimeout: %v, DataChannel: %s}",
		len(o.ICEServers), o.ICETimeout, o.DataChannel)
}

type iceFile struct {
	ICEServers []iceServerEntry `yaml:"iceServers"`
}

type iceServerEntry struct {
	URLs       stringList `yaml:"urls"`
	Username   string     `yaml:"username"`
	Credential string     `yaml:"credential"`
}

// stringList accepts either a scalar or a sequence, like RTCIceServer.urls.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := node.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: urls must be a string or a list", node.Line)
	}
}

// ParseICEServers decodes an ICE servers YAML document.
func ParseICEServers(data []byte) ([]webrtc.ICEServer, error) {
	var f iceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse ice servers: %w", err)
	}
	if len(f.ICEServers) == 0 {
		return nil, fmt.Errorf("parse ice servers: no iceServers entries")
	}

	servers := make([]webrtc.ICEServer, 0, len(f.ICEServers))
	for i, e := range f.ICEServers {
		if len(e.URLs) == 0 {
			return nil, fmt.Errorf("parse ice servers: entry %d has no urls", i)
		}
		for _, u := range e.URLs {
			if !hasICEScheme(u) {
				return nil, fmt.Errorf("parse ice servers: entry %d: unsupported url %q", i, u)
			}
		}
		server := webrtc.ICEServer{URLs: e.URLs, Username: e.Username}
		if e.Credential != "" {
			server.Credential = e.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		servers = append(servers, server)
	}
	return servers, nil
}

// LoadICEServers reads path, or returns the defaults when path is empty.
func LoadICEServers(path string) ([]webrtc.ICEServer, error) {
	if path == "" {
		return DefaultICEServers(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseICEServers(data)
}

func hasICEScheme(u string) bool {
	for _, scheme := range []string{"stun:", "stuns:", "turn:", "turns:"} {
		if strings.HasPrefix(u, scheme) {
			return true
		}
	}
	return false
}
