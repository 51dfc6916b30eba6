package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const commandTimeout = 15 * time.Second

// CommandHandler executes command for the entity with uniqueID.
type CommandHandler func(ctx context.Context, uniqueID, command, payload string) error

// Subscribe routes "fritzbox/<entity>/<command>/set" messages to handler
// until ctx is done.
func (s *service) Subscribe(ctx context.Context, handler CommandHandler) error {
	topic := fmt.Sprintf("%s/+/+/set", baseTopic)
	token := s.client.Subscribe(topic, 1, func(_ paho_mqtt.Client, msg paho_mqtt.Message) {
		s.onMessage(ctx, handler, msg)
	})
	if !token.WaitTimeout(publishTimeout) {
		return errTimeout
	}
	if err := token.Error(); err != nil {
		return err
	}
	s.logger.Info("subscribed to commands", zap.String("topic", topic))

	<-ctx.Done()
	s.client.Unsubscribe(topic)
	return ctx.Err()
}

func (s *service) onMessage(ctx context.Context, handler CommandHandler, msg paho_mqtt.Message) {
	parts := strings.Split(msg.Topic(), "/")
	if len(parts) != 4 || parts[0] != baseTopic || parts[3] != "set" {
		s.logger.Warn("ignoring message", zap.String("topic", msg.Topic()))
		return
	}
	uniqueID, ok := s.topics.Load(parts[1])
	if !ok {
		s.logger.Warn("command for unknown entity", zap.String("topic", msg.Topic()))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := handler(ctx, uniqueID.(string), parts[2], string(msg.Payload())); err != nil {
		s.logger.Error("command failed", zap.String("unique_id", uniqueID.(string)), zap.String("command", parts[2]), zap.Error(err))
	}
}
