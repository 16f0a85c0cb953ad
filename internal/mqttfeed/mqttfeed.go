// Package mqttfeed publishes joint snapshots and adapter status to an MQTT
// broker and accepts control commands from it.
package mqttfeed

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/jointfeed/openvr-adapter/internal/config"
	"github.com/jointfeed/openvr-adapter/internal/dispatcher"
	"github.com/jointfeed/openvr-adapter/pkg/host"
)

const publishTimeout = 2 * time.Second

// Client is the part of mqtt.Client the feed uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// Joint is the wire form of one joint.
type Joint struct {
	Name        string     `json:"name"`
	State       string     `json:"state"`
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"` // w, x, y, z
	Velocity    [3]float64 `json:"velocity"`
}

// Snapshot is the payload published on the joints topic.
type Snapshot struct {
	Time   time.Time `json:"time"`
	Joints []Joint   `json:"joints"`
}

// Reply is published on <commandTopic>/reply for every command received.
type Reply struct {
	Command string `json:"command"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Feed publishes on the configured topics.
type Feed struct {
	client Client
	cfg    config.MQTTConfig
	log    zerolog.Logger
}

// Dial connects to the configured broker.
func Dial(cfg config.MQTTConfig, log zerolog.Logger) (*Feed, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	log.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")

	return New(client, cfg, log), nil
}

// New wraps an already connected client.
func New(client Client, cfg config.MQTTConfig, log zerolog.Logger) *Feed {
	return &Feed{client: client, cfg: cfg, log: log}
}

// NewSnapshot converts joints to their wire form.
func NewSnapshot(joints []host.TrackedJoint, at time.Time) Snapshot {
	out := Snapshot{Time: at.UTC(), Joints: make([]Joint, len(joints))}
	for i, j := range joints {
		out.Joints[i] = Joint{
			Name:        j.Name,
			State:       j.State.String(),
			Position:    j.Position,
			Orientation: [4]float64{j.Orientation.W, j.Orientation.X(), j.Orientation.Y(), j.Orientation.Z()},
			Velocity:    j.Velocity,
		}
	}
	return out
}

// PublishJoints publishes a snapshot of joints.
func (f *Feed) PublishJoints(joints []host.TrackedJoint, at time.Time) error {
	return f.publishJSON(f.cfg.JointsTopic, false, NewSnapshot(joints, at))
}

// PublishStatus publishes v as the retained status message.
func (f *Feed) PublishStatus(v any) error {
	return f.publishJSON(f.cfg.StatusTopic, true, v)
}

func (f *Feed) publishJSON(topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding payload for %s: %w", topic, err)
	}
	token := f.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// ServeCommands subscribes to the command topic and routes each message
// through d. Payloads use the dispatcher's text form, e.g. ":SIGNAL: 2".
func (f *Feed) ServeCommands(d *dispatcher.Dispatcher) error {
	token := f.client.Subscribe(f.cfg.CommandTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		f.handleCommand(d, msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribing to %s: %w", f.cfg.CommandTopic, err)
	}
	f.log.Info().Str("topic", f.cfg.CommandTopic).Msg("Listening for commands")
	return nil
}

func (f *Feed) handleCommand(d *dispatcher.Dispatcher, payload []byte) {
	reply := Reply{}

	cmd, err := dispatcher.ParseLine(string(payload))
	if err != nil {
		reply.Error = err.Error()
	} else {
		reply.Command = cmd.Name
		reply.Result, err = d.Dispatch(cmd)
		if err != nil {
			reply.Error = err.Error()
		}
	}

	if reply.Error != "" {
		f.log.Warn().Str("command", reply.Command).Str("error", reply.Error).Msg("Command failed")
	}
	if err := f.publishJSON(f.cfg.CommandTopic+"/reply", false, reply); err != nil {
		f.log.Error().Err(err).Msg("Failed to publish command reply")
	}
}

// Close disconnects from the broker.
func (f *Feed) Close() {
	f.client.Disconnect(250)
}
