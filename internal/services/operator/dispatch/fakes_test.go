package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dablchess/operator/internal/services/operator/ledger"
)

type fakeGateway struct {
	contracts   []ledger.Contract
	exerciseErr map[string]error
	createErr   error
	creates     []string
	exercises   []string
}

func (g *fakeGateway) Query(_ context.Context, templateID string, filter map[string]any) ([]ledger.Contract, error) {
	var matches []ledger.Contract
	for _, contract := range g.contracts {
		if ledger.TemplateName(contract.TemplateID) != ledger.TemplateName(templateID) {
			continue
		}
		ok := true
		for key, want := range filter {
			if fmt.Sprint(contract.Payload[key]) != fmt.Sprint(want) {
				ok = false
			}
		}
		if ok {
			matches = append(matches, contract)
		}
	}
	return matches, nil
}

func (g *fakeGateway) Create(_ context.Context, templateID string, payload map[string]any) (ledger.Contract, error) {
	if g.createErr != nil {
		return ledger.Contract{}, g.createErr
	}
	g.creates = append(g.creates, templateID)
	contract := ledger.Contract{ContractID: fmt.Sprintf("#c%d", len(g.creates)), TemplateID: templateID, Payload: payload}
	g.contracts = append(g.contracts, contract)
	return contract, nil
}

func (g *fakeGateway) Exercise(_ context.Context, _, contractID, choice string, _ map[string]any) (ledger.ExerciseResult, error) {
	if err := g.exerciseErr[choice]; err != nil {
		return ledger.ExerciseResult{}, err
	}
	g.exercises = append(g.exercises, choice+"@"+contractID)
	return ledger.ExerciseResult{}, nil
}

type fakeRecorder struct {
	attempts []Attempt
}

func (r *fakeRecorder) RecordAttempt(_ context.Context, attempt Attempt) error {
	r.attempts = append(r.attempts, attempt)
	return nil
}

type observation struct {
	template string
	outcome  string
}

type fakeObserver struct {
	observations []observation
	ready        bool
}

func (o *fakeObserver) ObserveReaction(template, outcome string, _ time.Duration) {
	o.observations = append(o.observations, observation{template: template, outcome: outcome})
}

func (o *fakeObserver) SetReady(ready bool) {
	o.ready = ready
}

var errStreamDropped = errors.New("stream dropped")

// fakeStream replays scripted batches and then fails with err.
type fakeStream struct {
	batches []ledger.Batch
	err     error
	closed  bool
}

func (s *fakeStream) Next() (ledger.Batch, error) {
	if len(s.batches) == 0 {
		return ledger.Batch{}, s.err
	}
	batch := s.batches[0]
	s.batches = s.batches[1:]
	return batch, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

// fakeStreamer hands out scripted streams; after the script it blocks until
// ctx ends.
type fakeStreamer struct {
	mu      sync.Mutex
	streams []*fakeStream
	dialErr []error
	offsets []string
}

func (s *fakeStreamer) Stream(ctx context.Context, _ []string, offset string) (ledger.EventStream, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if len(s.dialErr) > 0 {
		err := s.dialErr[0]
		s.dialErr = s.dialErr[1:]
		s.mu.Unlock()
		return nil, err
	}
	if len(s.streams) == 0 {
		s.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	stream := s.streams[0]
	s.streams = s.streams[1:]
	s.mu.Unlock()
	return stream, nil
}

func (s *fakeStreamer) dialOffsets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.offsets...)
}

func created(id, template string, payload map[string]any) ledger.Event {
	return ledger.Event{Created: &ledger.Contract{ContractID: id, TemplateID: template, Payload: payload}}
}

func archived(id, template string) ledger.Event {
	return ledger.Event{Archived: &ledger.ArchivedContract{ContractID: id, TemplateID: template}}
}
