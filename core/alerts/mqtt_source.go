package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"checkops/config"
	"checkops/core/utils"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSource subscribes to alert topics on an MQTT broker. Topics follow
// surveillance/<tenant>/alerts; the tenant segment fills a missing tenant_id.
// Messages are acknowledged by hand: a transient failure is retried in place and,
// if it persists, left unacknowledged so the broker delivers it again on the
// next session.
type MQTTSource struct {
	proc        Processor
	cfg         config.AlertsConfig
	logger      *utils.Logger
	client      mqtt.Client
	retryDelays []time.Duration
}

func NewMQTTSource(proc Processor, cfg config.AlertsConfig, logger *utils.Logger) *MQTTSource {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &MQTTSource{
		proc:        proc,
		cfg:         cfg,
		logger:      logger,
		retryDelays: []time.Duration{time.Second, 5 * time.Second, 15 * time.Second},
	}
}

// Run connects, subscribes and blocks until ctx is cancelled.
func (s *MQTTSource) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.MQTTBroker)
	opts.SetClientID(s.cfg.MQTTClientID)
	if s.cfg.MQTTUsername != "" {
		opts.SetUsername(s.cfg.MQTTUsername)
	}
	if s.cfg.MQTTPassword != "" {
		opts.SetPassword(s.cfg.MQTTPassword)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(false)
	opts.SetAutoAckDisabled(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		sourceErrors.WithLabelValues("mqtt", "connection").Inc()
		s.logger.Warnw("mqtt connection lost", "error", err.Error())
	})

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to mqtt broker: %w", token.Error())
	}
	defer s.client.Disconnect(250)

	token := s.client.Subscribe(s.cfg.MQTTTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		out := s.Deliver(ctx, msg.Topic(), msg.Payload())
		if out.Retry {
			sourceErrors.WithLabelValues("mqtt", "retry").Inc()
			s.logger.Errorw("mqtt alert left unacknowledged after retries", "topic", msg.Topic(), "reason", out.Reason)
			return
		}
		msg.Ack()
	})
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("subscribe to %s: timed out", s.cfg.MQTTTopic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.MQTTTopic, err)
	}
	s.logger.Infow("mqtt alert source started", "broker", s.cfg.MQTTBroker, "topic", s.cfg.MQTTTopic)
	<-ctx.Done()
	return nil
}

// Deliver runs Handle and repeats it after each of retryDelays while the outcome
// asks for a retry.
func (s *MQTTSource) Deliver(ctx context.Context, topic string, payload []byte) Outcome {
	out := s.Handle(ctx, topic, payload)
	for _, d := range s.retryDelays {
		if !out.Retry {
			return out
		}
		select {
		case <-ctx.Done():
			return out
		case <-time.After(d):
		}
		out = s.Handle(ctx, topic, payload)
	}
	return out
}

// Handle processes one MQTT message. Malformed payloads are logged and dropped.
func (s *MQTTSource) Handle(ctx context.Context, topic string, payload []byte) Outcome {
	alert, err := DecodeAlert(payload)
	if err != nil {
		sourceErrors.WithLabelValues("mqtt", "decode").Inc()
		s.logger.Warnw("mqtt payload is not valid alert json", "topic", topic, "error", err.Error())
		return Outcome{Status: OutcomeFailed, Reason: "decode", Err: err}
	}
	if alert.TenantID == "" {
		alert.TenantID = tenantFromTopic(topic)
	}
	return s.proc.Process(ctx, alert)
}

func tenantFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) == 3 && parts[2] == "alerts" {
		return parts[1]
	}
	return ""
}
