package comms

import (
	"context"
	"time"

	"github.com/CodedInternet/gorover/onboard"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const MQTT_TIMEOUT = 5 * time.Second

// Telemetry publishes rover states to an MQTT broker as JSON.
type Telemetry struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration

	// Pose is added to every payload when set.
	Pose func() *onboard.Pose
}

func NewTelemetry(config onboard.MQTTConfig) *Telemetry {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(MQTT_TIMEOUT)
	opts.OnConnect = func(client mqtt.Client) {
		log.WithField("broker", config.Broker).Info("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	}

	return NewTelemetryClient(mqtt.NewClient(opts), config.Topic, config.QOS)
}

func NewTelemetryClient(client mqtt.Client, topic string, qos byte) *Telemetry {
	return &Telemetry{
		client:  client,
		topic:   topic,
		qos:     qos,
		timeout: MQTT_TIMEOUT,
	}
}

func (t *Telemetry) Connect() error {
	token := t.client.Connect()
	if !token.WaitTimeout(t.timeout) {
		return errors.Errorf("timed out connecting to MQTT broker after %v", t.timeout)
	}
	return errors.Wrap(token.Error(), "connect to MQTT broker")
}

func (t *Telemetry) Publish(state onboard.State) error {
	var pose *onboard.Pose
	if t.Pose != nil {
		pose = t.Pose()
	}

	msg, err := NewStatePayload(state, pose).Marshal()
	if err != nil {
		return err
	}

	token := t.client.Publish(t.topic, t.qos, false, msg)
	if !token.WaitTimeout(t.timeout) {
		return errors.Errorf("timed out publishing to %s", t.topic)
	}
	return errors.Wrapf(token.Error(), "publish to %s", t.topic)
}

// Run publishes every state received until ctx is done or states is closed.
func (t *Telemetry) Run(ctx context.Context, states <-chan onboard.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			if err := t.Publish(state); err != nil {
				log.WithError(err).Warn("unable to publish telemetry")
			}
		}
	}
}

func (t *Telemetry) Close() {
	t.client.Disconnect(250)
}
