// Package payment models the payment gateway boundary. The only gateway is a
// simulator that resolves after a fixed delay.
package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultDelay is the simulated processing time.
const DefaultDelay = 2 * time.Second

// ReasonCancelled is reported when the caller gave up before resolution.
const ReasonCancelled = "cancelled"

// Request is a single charge.
type Request struct {
	SessionID string
	Amount    decimal.Decimal
}

// Outcome is the resolution of a Request. Cancelled is set only when the
// caller's context ended first; a gateway decline never sets it.
type Outcome struct {
	Success       bool
	Cancelled     bool
	TransactionID string
	Reason        string
	ProcessedAt   time.Time
}

func cancelled() Outcome {
	return Outcome{Cancelled: true, Reason: ReasonCancelled}
}

// Processor submits a charge and waits for the outcome. Implementations never
// fail: gateway problems are reported as an unsuccessful Outcome.
type Processor interface {
	Submit(ctx context.Context, req Request) Outcome
}

// Policy decides the outcome of a request.
type Policy func(req Request) Outcome

// Approve accepts every request.
func Approve(Request) Outcome {
	return Outcome{Success: true, TransactionID: uuid.NewString()}
}

// Decline returns a policy that rejects every request with reason.
func Decline(reason string) Policy {
	return func(Request) Outcome {
		return Outcome{Reason: reason}
	}
}

// Simulator resolves every request after a fixed delay.
type Simulator struct {
	delay  time.Duration
	policy Policy
	after  func(time.Duration) <-chan time.Time
	now    func() time.Time
	tracer trace.Tracer
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithPolicy overrides the approve-all policy.
func WithPolicy(p Policy) SimulatorOption {
	return func(s *Simulator) { s.policy = p }
}

// WithTimer overrides time.After, letting tests resolve the delay on demand.
func WithTimer(after func(time.Duration) <-chan time.Time) SimulatorOption {
	return func(s *Simulator) { s.after = after }
}

// WithClock overrides the clock stamping outcomes.
func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) { s.now = now }
}

// WithTracerProvider traces each submission.
func WithTracerProvider(tp trace.TracerProvider) SimulatorOption {
	return func(s *Simulator) { s.tracer = tp.Tracer("storefront/payment") }
}

// NewSimulator returns a Simulator waiting delay before resolving.
func NewSimulator(delay time.Duration, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		delay:  delay,
		policy: Approve,
		after:  time.After,
		now:    time.Now,
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit waits out the delay and applies the policy. A cancelled ctx resolves
// immediately with a Cancelled outcome.
func (s *Simulator) Submit(ctx context.Context, req Request) Outcome {
	ctx, span := s.tracer.Start(ctx, "payment.Submit",
		trace.WithAttributes(
			attribute.String("session.id", req.SessionID),
			attribute.String("payment.amount", req.Amount.StringFixed(2)),
		),
	)
	defer span.End()

	var out Outcome
	select {
	case <-ctx.Done():
		out = cancelled()
	case <-s.after(s.delay):
		out = s.policy(req)
	}
	out.ProcessedAt = s.now().UTC()

	span.SetAttributes(attribute.Bool("payment.success", out.Success))
	if !out.Success {
		span.SetStatus(codes.Error, out.Reason)
	}
	return out
}

// Immediate resolves without delay. Used in tests and local tooling.
type Immediate struct {
	Policy Policy
}

// Submit applies the policy, Approve when unset.
func (i Immediate) Submit(ctx context.Context, req Request) Outcome {
	if ctx.Err() != nil {
		out := cancelled()
		out.ProcessedAt = time.Now().UTC()
		return out
	}
	p := i.Policy
	if p == nil {
		p = Approve
	}
	out := p(req)
	out.ProcessedAt = time.Now().UTC()
	return out
}
