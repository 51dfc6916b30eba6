package mqtt

import (
	"errors"
	"sync"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	defaultDiscoveryPrefix = "homeassistant"
	baseTopic              = "fritzbox"
	publishTimeout         = 10 * time.Second
)

var errTimeout = errors.New("mqtt: timed out waiting for broker")

type service struct {
	client          paho_mqtt.Client
	discoveryPrefix string
	logger          *zap.Logger

	// topic id -> unique id
	topics sync.Map
	// unique id -> discovery config topic
	configured sync.Map
}

func New(client paho_mqtt.Client, discoveryPrefix string) *service {
	if discoveryPrefix == "" {
		discoveryPrefix = defaultDiscoveryPrefix
	}
	return &service{
		client:          client,
		discoveryPrefix: discoveryPrefix,
		logger:          zap.L(),
	}
}

// NewClientOptions returns broker options for host with automatic reconnects.
// The session is persistent so command subscriptions survive a reconnect.
func NewClientOptions(host, username, password string) *paho_mqtt.ClientOptions {
	return paho_mqtt.NewClientOptions().
		AddBroker(host).
		SetClientID("fritzhome-integration").
		SetUsername(username).
		SetPassword(password).
		SetCleanSession(false).
		SetResumeSubs(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false)
}

func (s *service) Connect() error {
	token := s.client.Connect()
	res := token.WaitTimeout(time.Second * 5)
	if res {
		return token.Error()
	}
	if err := token.Error(); err != nil {
		return err
	}
	return errors.New("unable to connect in time")
}

func (s *service) Close() error {
	s.client.Disconnect(250)
	return nil
}

func (s *service) publish(topic string, qos byte, retained bool, payload any) error {
	token := s.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errTimeout
	}
	return token.Error()
}
