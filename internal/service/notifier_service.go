package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attend-api/internal/models"
	"github.com/noah-isme/qr-attend-api/pkg/jobs"
)

// EventType names the state changes the notifier reports.
type EventType string

const (
	EventRecordCreated EventType = "record.created"
	EventLateArrival   EventType = "arrival.late"
	EventSessionEnded  EventType = "session.ended"
)

// Event is the fire-and-forget payload handed to sinks.
type Event struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"session_id"`
	Record    *models.Record  `json:"record,omitempty"`
	Session   *models.Session `json:"session,omitempty"`
	At        time.Time       `json:"at"`
}

// EventSink delivers an event to an external consumer.
type EventSink interface {
	Deliver(ctx context.Context, evt Event) error
}

// LogSink writes events to the structured log. Always safe to keep
// enabled; useful as the only sink in development.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Deliver logs the event.
func (s *LogSink) Deliver(ctx context.Context, evt Event) error {
	s.logger.Info("attendance_event",
		zap.String("type", string(evt.Type)),
		zap.String("session_id", evt.SessionID),
		zap.Time("at", evt.At),
	)
	return nil
}

// RedisSink publishes events as JSON on a pub/sub channel for external
// notification services to consume.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink builds a RedisSink on the given channel.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = "attendance.events"
	}
	return &RedisSink{client: client, channel: channel}
}

// Deliver publishes the event.
func (s *RedisSink) Deliver(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, payload).Err()
}

// NotifierConfig tunes the dispatch queue.
type NotifierConfig struct {
	Workers    int
	BufferSize int
}

// NotifierService dispatches attendance events to its sinks through a
// background queue so state-changing calls never wait on delivery.
type NotifierService struct {
	queue  *jobs.Queue
	sinks  []EventSink
	clock  func() time.Time
	logger *zap.Logger
}

// NewNotifierService constructs the notifier with the given sinks.
func NewNotifierService(sinks []EventSink, logger *zap.Logger, cfg NotifierConfig) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &NotifierService{
		sinks:  sinks,
		clock:  func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	n.queue = jobs.NewQueue("notifier", n.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return n
}

// Start launches the dispatch workers.
func (n *NotifierService) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (n *NotifierService) Stop() {
	n.queue.Stop()
}

// RecordCreated signals a newly accepted attendance record.
func (n *NotifierService) RecordCreated(rec models.Record) {
	n.emit(Event{Type: EventRecordCreated, SessionID: rec.SessionID, Record: &rec})
}

// LateArrival signals a record classified as late.
func (n *NotifierService) LateArrival(rec models.Record) {
	n.emit(Event{Type: EventLateArrival, SessionID: rec.SessionID, Record: &rec})
}

// SessionEnded signals an explicit session end.
func (n *NotifierService) SessionEnded(s models.Session) {
	n.emit(Event{Type: EventSessionEnded, SessionID: s.ID, Session: &s})
}

func (n *NotifierService) emit(evt Event) {
	evt.At = n.clock()
	if err := n.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: string(evt.Type), Payload: evt}); err != nil {
		// Fire-and-forget: a dropped event never fails the scan.
		n.logger.Warn("dropped attendance event", zap.String("type", string(evt.Type)), zap.Error(err))
	}
}

func (n *NotifierService) handle(ctx context.Context, job jobs.Job) error {
	evt, ok := job.Payload.(Event)
	if !ok {
		n.logger.Warn("unexpected notifier payload", zap.String("job_id", job.ID))
		return nil
	}
	for _, sink := range n.sinks {
		if err := sink.Deliver(ctx, evt); err != nil {
			n.logger.Warn("sink delivery failed", zap.String("type", string(evt.Type)), zap.Error(err))
		}
	}
	return nil
}
