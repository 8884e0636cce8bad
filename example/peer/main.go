// Command peer joins a room as a headless mesh participant. Lines typed on
// stdin are sent as chat; chat and data channel traffic is printed.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/LingByte/TutorConnect/pkg/logger"
	"github.com/LingByte/TutorConnect/pkg/signaling"
	rtcconfig "github.com/LingByte/TutorConnect/pkg/webrtc/config"
	"github.com/LingByte/TutorConnect/pkg/webrtc/mesh"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

func main() {
	server := flag.String("server", "http://localhost:5000", "signaling server base URL")
	room := flag.String("room", "lobby", "room to join")
	name := flag.String("name", "", "chat username")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.Named("peer")
	defer logger.Sync()

	opt := rtcconfig.DefaultWebRTCOption()
	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	servers, err := mesh.FetchICEServers(fetchCtx, *server)
	cancel()
	if err != nil {
		log.Warn("using default ice servers", zap.Error(err))
	} else if len(servers) > 0 {
		opt.ICEServers = servers
	}

	wsURL := "ws" + strings.TrimPrefix(strings.TrimSuffix(*server, "/"), "http") + "/ws"
	conn, err := mesh.Dial(ctx, wsURL, nil)
	if err != nil {
		log.Fatal("dial signaling server", zap.Error(err))
	}
	defer conn.Close()

	agent := mesh.NewAgent(opt, conn, *name, log)
	defer agent.Close()
	agent.OnChat = func(m mesh.ChatMessage) {
		fmt.Printf("[%s] %s\n", m.Username, m.Text)
	}
	agent.OnPeerData = func(peer string, data []byte) {
		fmt.Printf("<%s> %s\n", peer, data)
	}
	agent.OnPeerState = func(peer string, state webrtc.PeerConnectionState) {
		log.Info("peer state", zap.String("peer", peer), zap.String("state", state.String()))
	}

	if err := agent.Join(*room); err != nil {
		log.Fatal("join room", zap.String("room", *room), zap.Error(err))
	}

	go readInput(ctx, agent, log)

	err = conn.Run(ctx, func(env *signaling.Envelope) error {
		return agent.HandleEnvelope(env)
	}, func(err error) {
		log.Warn("signal", zap.Error(err))
	})
	if err != nil && ctx.Err() == nil {
		log.Error("signaling connection lost", zap.Error(err))
	}
}

func readInput(ctx context.Context, agent *mesh.Agent, log *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/peers":
			fmt.Println(strings.Join(agent.Peers(), " "))
		case strings.HasPrefix(line, "/dc "):
			n := agent.Broadcast([]byte(strings.TrimPrefix(line, "/dc ")))
			fmt.Printf("sent to %d peers\n", n)
		default:
			if err := agent.SendChat(line); err != nil {
				log.Warn("send chat", zap.Error(err))
			}
		}
	}
}
