package cmd

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/fritzhome-integration/internal/pkg/contxt"
	"github.com/anicoll/fritzhome-integration/pkg/sockets"
)

const (
	socketPingIntervalSecs = 30
	socketCommandTimeout   = 30 * time.Second
)

var socketPingMsg = []byte(`{"type":"ping"}`)

type socketCommand struct {
	UniqueID string `json:"unique_id"`
	Command  string `json:"command"`
	Payload  string `json:"payload"`
}

// newHub returns the websocket hub. New clients receive the current states,
// messages they send are dispatched as entity commands. entry is resolved
// lazily since the hub is registered as a publisher before the entry exists.
func newHub(entry func() Entry) *sockets.Hub {
	logger := zap.L()
	return sockets.New(
		sockets.WithPingIntervalSec(socketPingIntervalSecs),
		sockets.WithPingMsg(socketPingMsg),
		sockets.OnError(func(err error) {
			logger.Debug("websocket error", zap.Error(err))
		}),
		sockets.OnConnected(func(c sockets.Connection) {
			e := entry()
			if e == nil {
				return
			}
			body, err := json.Marshal(e.States())
			if err != nil {
				logger.Error("failed to encode states", zap.Error(err))
				return
			}
			if err := c.Send(sockets.Msg{Body: body}); err != nil {
				logger.Debug("failed to send states", zap.Error(err))
			}
		}),
		sockets.OnMessage(func(msg []byte, _ sockets.Connection) {
			e := entry()
			if e == nil {
				return
			}
			cmd := socketCommand{}
			if err := json.Unmarshal(msg, &cmd); err != nil || cmd.UniqueID == "" {
				logger.Debug("ignoring websocket message", zap.ByteString("message", msg))
				return
			}
			ctx := contxt.NewContext(socketCommandTimeout)
			if err := e.HandleCommand(ctx, cmd.UniqueID, cmd.Command, cmd.Payload); err != nil {
				logger.Warn("websocket command failed",
					zap.String("unique_id", cmd.UniqueID),
					zap.String("command", cmd.Command),
					zap.Error(err))
			}
		}),
	)
}
