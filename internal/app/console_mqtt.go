package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/shake_monitor/internal/config"
	"github.com/relabs-tech/shake_monitor/internal/monitor"
)

// RunConsoleMQTT subscribes to the monitor topics and prints one line per
// message to w until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, w io.Writer, log *zap.Logger) error {
	client, err := ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID+"-console", log)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	var mu sync.Mutex
	printLine := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, line)
	}

	// Subscribe to frames
	frameTopic := cfg.Topic(TopicFrame)
	frameToken := client.Subscribe(frameTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f monitor.Frame
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Warn("console: frame unmarshal error", zap.Error(err))
			return
		}
		printLine(formatFrameLine(f))
	})
	frameToken.Wait()
	if frameToken.Error() != nil {
		return frameToken.Error()
	}
	log.Info("console: subscribed", zap.String("topic", frameTopic))

	// Subscribe to shakes
	shakeTopic := cfg.Topic(TopicShake)
	shakeToken := client.Subscribe(shakeTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s monitor.ShakeEvent
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Warn("console: shake unmarshal error", zap.Error(err))
			return
		}
		printLine(formatShakeLine(s))
	})
	shakeToken.Wait()
	if shakeToken.Error() != nil {
		return shakeToken.Error()
	}
	log.Info("console: subscribed", zap.String("topic", shakeTopic))

	<-ctx.Done()
	log.Info("console: shutting down")
	return nil
}

func formatFrameLine(f monitor.Frame) string {
	prox := f.ProximityState
	if f.Proximity.Available {
		prox = fmt.Sprintf("%s %.1fcm", f.ProximityState, f.Proximity.DistanceCm)
	}
	return fmt.Sprintf(
		"[%-9s] #%-6d ax=%6.2f ay=%6.2f az=%6.2f  g=%4.2f/%.1f  rot=%6.1f°  prox=%s",
		f.Cause, f.Seq,
		f.Motion.Ax, f.Motion.Ay, f.Motion.Az,
		f.Motion.GForce, f.ThresholdG,
		f.Scene.PhoneRotationDeg, prox,
	)
}

func formatShakeLine(s monitor.ShakeEvent) string {
	return fmt.Sprintf("[SHAKE    ] t=%dms %s", s.AtMs, s.Message)
}
