package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one audit record. Detail is small structured context, kept
// flat so sinks can serialize it cheaply.
type Event struct {
	Time         time.Time      `json:"time"`
	Conversation string         `json:"conversation"`
	Kind         string         `json:"kind"`
	Detail       map[string]any `json:"detail,omitempty"`
}

// Sink receives audit events. Append is fire-and-forget: implementations
// swallow their own failures, and a failing sink must never interrupt the
// pipeline that feeds it.
type Sink interface {
	Append(ctx context.Context, ev Event)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Append(context.Context, Event) {}

// LogSink writes events to a standard logger.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.New(log.Writer(), "[AUDIT] ", log.LstdFlags)
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(_ context.Context, ev Event) {
	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		detail = []byte("{}")
	}
	s.logger.Printf("%s conversation=%s %s", ev.Kind, ev.Conversation, detail)
}

// RedisSink appends events to a Redis stream, trimmed to a bounded length.
type RedisSink struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *log.Logger
}

func NewRedisSink(client *redis.Client, stream string, maxLen int64, logger *log.Logger) *RedisSink {
	if stream == "" {
		stream = "converse:audit"
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[AUDIT] ", log.LstdFlags)
	}
	return &RedisSink{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

func (s *RedisSink) Append(ctx context.Context, ev Event) {
	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		detail = []byte("{}")
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"time":         ev.Time.Format(time.RFC3339),
			"conversation": ev.Conversation,
			"kind":         ev.Kind,
			"detail":       string(detail),
		},
	}).Err()
	if err != nil {
		s.logger.Printf("append failed (dropping event): %v", err)
	}
}
