package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-tech/shake_monitor/internal/monitor"
)

const (
	TopicFrame = "frame"
	TopicShake = "shake"

	publishQueueSize = 64
	shakeQueueSize   = 16
	publishTimeout   = 2 * time.Second
)

// tokenPublisher is the part of mqtt.Client the publisher uses.
type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// ConnectMQTT connects to broker with clientID plus a random suffix, so
// several processes can share one configured id.
func ConnectMQTT(broker, clientID string, log *zap.Logger) (mqtt.Client, error) {
	id := clientID + "-" + uuid.NewString()[:8]
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(id).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("MQTT connection lost", zap.Error(err))
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.Info("connected to MQTT broker", zap.String("broker", broker), zap.String("client_id", id))
	return client, nil
}

// MQTTPublisher is a monitor.Sink that publishes frames and shakes as JSON.
// Frames and shakes are queued separately and sent from Run. A full frame
// queue drops frames; a later frame carries the same state. Shakes have
// their own queue so frame backlog never evicts them; if that queue fills
// anyway the loss is counted and logged per shake.
type MQTTPublisher struct {
	client        tokenPublisher
	frameTopic    string
	shakeTopic    string
	queue         chan monitor.Frame
	shakes        chan monitor.ShakeEvent
	dropped       atomic.Uint64
	droppedShakes atomic.Uint64
	log           *zap.Logger
}

// NewMQTTPublisher publishes under <prefix>/frame and <prefix>/shake.
func NewMQTTPublisher(client tokenPublisher, prefix string, log *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client:     client,
		frameTopic: prefix + "/" + TopicFrame,
		shakeTopic: prefix + "/" + TopicShake,
		queue:      make(chan monitor.Frame, publishQueueSize),
		shakes:     make(chan monitor.ShakeEvent, shakeQueueSize),
		log:        log,
	}
}

func (p *MQTTPublisher) Publish(f monitor.Frame) {
	if shake, ok := f.Shake(); ok {
		select {
		case p.shakes <- shake:
		default:
			n := p.droppedShakes.Add(1)
			p.log.Error("MQTT shake queue full, shake lost",
				zap.Int64("at_ms", shake.AtMs),
				zap.Uint64("dropped_shakes", n),
			)
		}
	}

	select {
	case p.queue <- f:
	default:
		if n := p.dropped.Add(1); n%100 == 1 {
			p.log.Warn("MQTT queue full, dropping frames", zap.Uint64("dropped", n))
		}
	}
}

// Dropped returns how many frames were dropped so far.
func (p *MQTTPublisher) Dropped() uint64 { return p.dropped.Load() }

// DroppedShakes returns how many shake events were lost so far.
func (p *MQTTPublisher) DroppedShakes() uint64 { return p.droppedShakes.Load() }

// Run sends queued shakes and frames until ctx is done. Pending shakes go
// out before the next frame.
func (p *MQTTPublisher) Run(ctx context.Context) error {
	p.log.Info("MQTT publisher started",
		zap.String("frame_topic", p.frameTopic),
		zap.String("shake_topic", p.shakeTopic),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case shake := <-p.shakes:
			p.send(p.shakeTopic, shake)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case shake := <-p.shakes:
			p.send(p.shakeTopic, shake)
		case f := <-p.queue:
			p.send(p.frameTopic, f)
		}
	}
}

func (p *MQTTPublisher) send(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.Error("MQTT payload marshal error", zap.String("topic", topic), zap.Error(err))
		return
	}
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.log.Warn("MQTT publish timed out", zap.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		p.log.Warn("MQTT publish error", zap.String("topic", topic), zap.Error(err))
	}
}
