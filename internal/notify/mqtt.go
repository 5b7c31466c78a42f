package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nugget/warden-agent/internal/config"
)

// MQTTPublisher publishes notices to an MQTT broker. It maintains an
// availability topic with a will message so observers can tell when the
// agent goes away uncleanly.
type MQTTPublisher struct {
	cfg    config.MQTTConfig
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
}

// NewMQTT creates a publisher but does not connect. Call Start to begin
// the connection.
func NewMQTT(cfg config.MQTTConfig, logger *slog.Logger) *MQTTPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTPublisher{
		cfg:    cfg,
		logger: logger.With("component", "mqtt"),
	}
}

// Start connects to the broker and returns once the connection manager
// is running; autopaho reconnects in the background for the life of
// ctx. On every (re-)connect the availability topic is set to online.
func (p *MQTTPublisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	availTopic := p.availabilityTopic()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("connected to broker", "broker", p.cfg.Broker)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "warden-" + p.cfg.DeviceName,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		// autopaho keeps retrying in the background.
		p.logger.Warn("initial connection timed out, will retry in background", "error", err)
	}

	return nil
}

// Stop publishes an offline availability message and disconnects.
func (p *MQTTPublisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	p.publishAvailability(ctx, p.cm, "offline")
	return p.cm.Disconnect(ctx)
}

// Notice implements Notifier. Notices are published retained so a late
// subscriber sees the most recent one.
func (p *MQTTPublisher) Notice(title, body string) {
	if p.cm == nil {
		return
	}

	payload, err := json.Marshal(noticePayload{
		Title: title,
		Body:  body,
		Time:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		p.logger.Error("marshal notice", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := p.cm.Publish(ctx, &paho.Publish{
		Topic:   p.noticeTopic(),
		Payload: payload,
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("notice publish failed", "title", title, "error", err)
	}
}

type noticePayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Time  string `json:"time"`
}

func (p *MQTTPublisher) baseTopic() string {
	return "warden/" + p.cfg.DeviceName
}

func (p *MQTTPublisher) availabilityTopic() string {
	return p.baseTopic() + "/availability"
}

func (p *MQTTPublisher) noticeTopic() string {
	return p.baseTopic() + "/notice"
}

func (p *MQTTPublisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("availability publish failed", "status", status, "error", err)
	} else {
		p.logger.Info("availability published", "status", status)
	}
}
