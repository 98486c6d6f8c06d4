// Package trigger implements event-driven chain runs over NATS: a subject
// maps to a chain name, and any message published to that subject fires a
// run of the corresponding chain template.
//
// Grounded on the teacher's libs/go/core/natsctx (trace-context propagation
// over NATS headers) and scheduler.go's event-trigger half (EventHandler,
// TriggerEvent, event filters) — reshaped from the teacher's generic
// "event_type" string key to concrete NATS subjects, since that is what
// SPEC_FULL.md's domain-stack wiring calls for.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cloudchain/taskengine/internal/logging"
	"github.com/cloudchain/taskengine/internal/otelinit"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var propagator = propagation.TraceContext{}

// Runner starts a named chain's template running to completion; shared
// with internal/schedule so both trigger surfaces plug into the same
// cmd/taskrunner adapter.
type Runner interface {
	RunChain(ctx context.Context, chainName string) error
}

// Binding maps one NATS subject to the chain it triggers, with an optional
// filter over the decoded message payload (mirroring the teacher's
// EventFilter: every key must be present in the payload with an equal
// string-formatted value).
type Binding struct {
	Subject   string
	ChainName string
	Filter    map[string]any
}

// Subscriber subscribes to NATS subjects and fires chain runs for matching
// messages. One Subscriber owns zero or more live subscriptions.
type Subscriber struct {
	conn   *nats.Conn
	runner Runner

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// New wraps an already-connected NATS connection.
func New(conn *nats.Conn, runner Runner) *Subscriber {
	return &Subscriber{conn: conn, runner: runner, subs: map[string]*nats.Subscription{}}
}

// Bind subscribes to binding.Subject, firing binding.ChainName for every
// message whose payload (if JSON) satisfies binding.Filter.
func (s *Subscriber) Bind(binding Binding) error {
	sub, err := s.conn.Subscribe(binding.Subject, func(msg *nats.Msg) {
		s.handle(binding, msg)
	})
	if err != nil {
		return fmt.Errorf("trigger: subscribe %q: %w", binding.Subject, err)
	}

	s.mu.Lock()
	s.subs[binding.Subject] = sub
	s.mu.Unlock()

	logging.Get().Info("trigger: bound", "subject", binding.Subject, "chain", binding.ChainName)
	return nil
}

// Unbind cancels the subscription registered for subject, if any.
func (s *Subscriber) Unbind(subject string) error {
	s.mu.Lock()
	sub, ok := s.subs[subject]
	if ok {
		delete(s.subs, subject)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("trigger: unsubscribe %q: %w", subject, err)
	}
	return nil
}

// Close unsubscribes from every bound subject.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	subs := make([]*nats.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = map[string]*nats.Subscription{}
	s.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	return nil
}

func (s *Subscriber) handle(binding Binding, msg *nats.Msg) {
	carrier := propagation.HeaderCarrier(msg.Header)
	ctx := propagator.Extract(context.Background(), carrier)
	ctx, span := otelinit.Tracer().Start(ctx, "trigger.consume", trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("subject", binding.Subject),
			attribute.String("chain.name", binding.ChainName),
		))
	defer span.End()

	if len(binding.Filter) > 0 && !matchesFilter(msg.Data, binding.Filter) {
		return
	}

	if err := s.runner.RunChain(ctx, binding.ChainName); err != nil {
		logging.Get().Error("trigger: chain run failed", "chain", binding.ChainName, "subject", binding.Subject, "error", err)
	}
}

// matchesFilter decodes data as a JSON object and checks that every key in
// filter is present with an equal string-formatted value, mirroring the
// teacher's matchesFilter. A non-JSON payload never matches a non-empty
// filter.
func matchesFilter(data []byte, filter map[string]any) bool {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return false
	}

	for key, expected := range filter {
		actual, ok := payload[key]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", actual) != fmt.Sprintf("%v", expected) {
			return false
		}
	}
	return true
}

// Publish injects the current trace context into NATS headers and
// publishes data to subject, mirroring natsctx.Publish. Used by callers
// (e.g. a chain task kind) that want to fan a chain's own completion out
// as a fresh trigger event.
func Publish(ctx context.Context, conn *nats.Conn, subject string, data []byte) error {
	hdr := nats.Header{}
	propagator.Inject(ctx, propagation.HeaderCarrier(hdr))
	return conn.PublishMsg(&nats.Msg{Subject: subject, Data: data, Header: hdr})
}
