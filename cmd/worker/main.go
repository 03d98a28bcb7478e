// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/unclebandit/outreach-engine/internal/config"
	"github.com/unclebandit/outreach-engine/internal/logging"
	"github.com/unclebandit/outreach-engine/internal/queue"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("ENV_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.AMQPURL == "" {
		logger.Fatal("AMQP_URL is required for the worker")
	}
	q, err := queue.DialAMQP(cfg.AMQPURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer q.Close()

	audit := newEventAudit(logger)
	if err := audit.SubscribeAll(q); err != nil {
		logger.Fatal("failed to subscribe", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info("worker running, waiting for events")
	<-ctx.Done()
	logger.Info("worker stopping", zap.Any("events_seen", audit.Counts()))
}

// eventAudit records every outreach event in the structured log and keeps
// per-topic counts. Fallback events are logged as warnings so data problems
// surface in alerting.
type eventAudit struct {
	logger *zap.Logger
	mu     sync.Mutex
	counts map[string]int
}

func newEventAudit(logger *zap.Logger) *eventAudit {
	return &eventAudit{logger: logger, counts: make(map[string]int)}
}

func (a *eventAudit) SubscribeAll(q queue.Queue) error {
	for _, topic := range queue.AllTopics {
		if err := q.Subscribe(topic, a.handler(topic)); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

// decode accepts both the raw JSON delivered by RabbitMQ and the typed
// payloads of the in-memory queue.
func decode(payload any, v any) error {
	raw, ok := payload.(json.RawMessage)
	if !ok {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, v)
}

func (a *eventAudit) handler(topic string) func(payload any) error {
	return func(payload any) error {
		if topic == queue.TopicSent {
			var ev queue.SentEvent
			if err := decode(payload, &ev); err != nil {
				return fmt.Errorf("invalid %s event: %w", topic, err)
			}
			a.logger.Info("outreach sent",
				zap.String("prospect_id", ev.ProspectID),
				zap.Int("step_index", ev.StepIndex),
				zap.String("channel", ev.Channel),
				zap.Bool("simulated", ev.Simulated),
				zap.Bool("test", ev.IsTest),
				zap.String("correlation_id", ev.CorrelationID))
			a.count(topic)
			return nil
		}

		if topic == queue.TopicOpened {
			var ev queue.OpenedEvent
			if err := decode(payload, &ev); err != nil {
				return fmt.Errorf("invalid %s event: %w", topic, err)
			}
			a.logger.Info("email opened",
				zap.String("prospect_id", ev.ProspectID),
				zap.String("tracking_id", ev.TrackingID))
			a.count(topic)
			return nil
		}

		var ev queue.SequenceEvent
		if err := decode(payload, &ev); err != nil {
			return fmt.Errorf("invalid %s event: %w", topic, err)
		}
		if ev.ProspectID == "" {
			return fmt.Errorf("invalid %s event: missing prospect id", topic)
		}
		fields := []zap.Field{
			zap.String("topic", topic),
			zap.String("prospect_id", ev.ProspectID),
			zap.String("campaign_id", ev.CampaignID),
			zap.Int("step_index", ev.StepIndex),
			zap.String("actor_id", ev.ActorID),
		}
		if topic == queue.TopicFallback && ev.Fallback != nil {
			a.logger.Warn("sequence fallback",
				append(fields,
					zap.String("reason", string(ev.Fallback.Reason)),
					zap.String("requested_campaign", ev.Fallback.RequestedCampaign),
					zap.Int("requested_step", ev.Fallback.RequestedStep))...)
		} else {
			a.logger.Info("sequence event", append(fields, zap.String("status", ev.Status))...)
		}
		a.count(topic)
		return nil
	}
}

func (a *eventAudit) count(topic string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts[topic]++
}

func (a *eventAudit) Counts() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}
