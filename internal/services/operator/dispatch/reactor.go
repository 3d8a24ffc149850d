package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dablchess/operator/internal/services/operator/domain"
	"github.com/dablchess/operator/internal/services/operator/ledger"
	"github.com/dablchess/operator/internal/services/operator/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dablchess/operator/internal/services/operator/dispatch"

// Item is one unit of reactor work: either the ready marker or a creation.
type Item struct {
	Ready   bool
	Created *ledger.Contract
}

// Attempt describes one finished reaction or bootstrap.
type Attempt struct {
	EventID    string
	TemplateID string
	Reaction   string
	Outcome    string
	Error      string
	Elapsed    time.Duration
	CreatedAt  time.Time
}

// Recorder persists attempts, typically into the audit log.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
}

// Observer receives reactor activity for metrics.
type Observer interface {
	ObserveReaction(template, outcome string, elapsed time.Duration)
	SetReady(ready bool)
}

// Config wires a Reactor.
type Config struct {
	Env      domain.Env
	Registry *Registry
	// Ready runs once, in order, when the ready marker arrives.
	Ready    []domain.Bootstrap
	Recorder Recorder
	Observer Observer
	// OnReady is called once every bootstrap has succeeded or found its
	// contract present. It is not called when one fails.
	OnReady func()
	Tracer  trace.Tracer
	Now     func() time.Time
}

// Reactor runs reactions one at a time in event order.
type Reactor struct {
	env      domain.Env
	registry *Registry
	ready    []domain.Bootstrap
	recorder Recorder
	observer Observer
	onReady  func()
	tracer   trace.Tracer
	now      func() time.Time
	isReady  bool
}

// New validates cfg and builds a Reactor.
func New(cfg Config) (*Reactor, error) {
	if err := cfg.Env.Validate(); err != nil {
		return nil, err
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Reactor{
		env:      cfg.Env,
		registry: cfg.Registry,
		ready:    cfg.Ready,
		recorder: cfg.Recorder,
		observer: cfg.Observer,
		onReady:  cfg.OnReady,
		tracer:   tracer,
		now:      now,
	}, nil
}

// Run consumes items until the channel closes or ctx is cancelled. Reaction
// failures are logged and recorded; they never stop the loop.
func (r *Reactor) Run(ctx context.Context, items <-chan Item) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-items:
			if !ok {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			r.Handle(ctx, item)
		}
	}
}

// Handle processes one item synchronously.
func (r *Reactor) Handle(ctx context.Context, item Item) {
	switch {
	case item.Ready:
		r.handleReady(ctx)
	case item.Created != nil:
		r.handleCreated(ctx, *item.Created)
	}
}

func (r *Reactor) handleReady(ctx context.Context) {
	if r.isReady {
		return
	}
	r.isReady = true
	log.Printf("ledger ready as %s", r.env.Party)
	var failed []string
	for _, bootstrap := range r.ready {
		if !r.runBootstrap(ctx, bootstrap) {
			failed = append(failed, bootstrap.Name)
		}
	}
	// Reactions still run, but the process does not report itself ready
	// while a role it depends on may be missing.
	if len(failed) > 0 {
		log.Printf("ready: bootstraps failed: %s; staying not ready", strings.Join(failed, ", "))
		return
	}
	if r.observer != nil {
		r.observer.SetReady(true)
	}
	if r.onReady != nil {
		r.onReady()
	}
}

// runBootstrap reports whether the bootstrap succeeded or had nothing to do.
func (r *Reactor) runBootstrap(ctx context.Context, bootstrap domain.Bootstrap) bool {
	ctx, span := r.tracer.Start(ctx, "operator.ready",
		trace.WithAttributes(attribute.String("operator.bootstrap", bootstrap.Name)))
	defer span.End()

	started := r.now()
	outcome, err := bootstrap.Run(ctx, r.env)
	attempt := r.finish(span, Attempt{
		EventID:    bootstrap.Name,
		TemplateID: bootstrap.Name,
		Reaction:   "ready",
	}, started, outcome, err)

	switch attempt.Outcome {
	case storage.OutcomeSucceeded:
		log.Printf("ready: created %s", bootstrap.Name)
	case storage.OutcomeSkipped:
		log.Printf("ready: %s already exists", bootstrap.Name)
	default:
		log.Printf("ready: ensure %s: %v", bootstrap.Name, err)
	}
	r.record(ctx, attempt)
	return err == nil
}

func (r *Reactor) handleCreated(ctx context.Context, event ledger.Contract) {
	name := ledger.TemplateName(event.TemplateID)
	reaction, ok := r.registry.Lookup(name)
	if !ok {
		log.Printf("no reaction for %s %s", name, event.ContractID)
		return
	}

	ctx, span := r.tracer.Start(ctx, "operator.react", trace.WithAttributes(
		attribute.String("operator.template", name),
		attribute.String("operator.contract_id", event.ContractID),
		attribute.String("operator.reaction", reaction.Name()),
	))
	defer span.End()

	log.Printf("%s created %s: %v", name, event.ContractID, event.Payload)
	started := r.now()
	outcome, err := reaction.React(ctx, r.env, event)
	attempt := r.finish(span, Attempt{
		EventID:    event.ContractID,
		TemplateID: name,
		Reaction:   reaction.Name(),
	}, started, outcome, err)

	if err != nil {
		log.Printf("%s %s on %s: %s (permanent=%t)", attempt.Outcome, reaction.Name(), event.ContractID, attempt.Error, domain.IsPermanent(err))
	}
	r.record(ctx, attempt)
}

func (r *Reactor) finish(span trace.Span, attempt Attempt, started time.Time, outcome domain.Outcome, err error) Attempt {
	attempt.CreatedAt = r.now().UTC()
	attempt.Elapsed = attempt.CreatedAt.Sub(started)
	attempt.Outcome = classify(outcome, err)
	if err != nil {
		attempt.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, attempt.Outcome)
	}
	span.SetAttributes(attribute.String("operator.outcome", attempt.Outcome))
	if r.observer != nil {
		r.observer.ObserveReaction(attempt.TemplateID, attempt.Outcome, attempt.Elapsed)
	}
	return attempt
}

func (r *Reactor) record(ctx context.Context, attempt Attempt) {
	if r.recorder == nil {
		return
	}
	// An attempt that already reached the ledger is recorded even when the
	// run is stopping.
	if err := r.recorder.RecordAttempt(context.WithoutCancel(ctx), attempt); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("record attempt for %s: %v", attempt.EventID, err)
	}
}

// classify maps a reaction result onto the audit log outcomes. Ledger
// rejections are reported apart from other failures; neither is retried.
func classify(outcome domain.Outcome, err error) string {
	switch {
	case err == nil && outcome == domain.OutcomeSkipped:
		return storage.OutcomeSkipped
	case err == nil:
		return storage.OutcomeSucceeded
	case ledger.IsRejection(err):
		return storage.OutcomeRejected
	default:
		return storage.OutcomeFailed
	}
}
