package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dablchess/operator/internal/platform/timeouts"
	"github.com/dablchess/operator/internal/services/operator/ledger"
)

// Streamer opens ledger event streams.
type Streamer interface {
	Stream(ctx context.Context, templateIDs []string, offset string) (ledger.EventStream, error)
}

// FollowConfig controls Follow.
type FollowConfig struct {
	Templates []string
	// MinDelay and MaxDelay bound the exponential reconnect backoff.
	MinDelay time.Duration
	MaxDelay time.Duration
	// OnReconnect is called before each reopen of the stream.
	OnReconnect func()
}

func (c FollowConfig) normalized() FollowConfig {
	if c.MinDelay <= 0 {
		c.MinDelay = timeouts.ReconnectMin
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = timeouts.ReconnectMax
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	return c
}

// follower is the stream cursor carried across reconnects.
type follower struct {
	out    chan<- Item
	offset string
	ready  bool
	// snapshot holds initial creations, minus archivals, until the stream
	// goes live; order keeps their arrival order.
	snapshot map[string]ledger.Contract
	order    []string
	// replayed remembers creations already sent while no offset is known,
	// so a reconnect that replays the active set does not resend them.
	replayed map[string]struct{}
}

// Follow streams creations of cfg.Templates into out until ctx ends or the
// ledger rejects the stream.
//
// Out receives one Ready item once the initial active contracts have loaded,
// then those contracts, then live creations in ledger order. A dropped
// stream is reopened from the last offset with exponential backoff; Ready is
// sent only once. Follow does not close out.
func Follow(ctx context.Context, streamer Streamer, cfg FollowConfig, out chan<- Item) error {
	if streamer == nil {
		return fmt.Errorf("streamer is required")
	}
	if len(cfg.Templates) == 0 {
		return fmt.Errorf("at least one template is required")
	}
	cfg = cfg.normalized()

	f := &follower{out: out, replayed: make(map[string]struct{})}
	delay := cfg.MinDelay
	for {
		progressed, err := f.session(ctx, streamer, cfg.Templates)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if ledger.IsRejection(err) {
			return fmt.Errorf("event stream rejected: %w", err)
		}
		if progressed {
			delay = cfg.MinDelay
		}
		log.Printf("event stream: %v; reconnecting in %s", err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		if cfg.OnReconnect != nil {
			cfg.OnReconnect()
		}
	}
}

// session reads one stream connection until it fails. progressed reports
// whether any batch arrived.
func (f *follower) session(ctx context.Context, streamer Streamer, templates []string) (progressed bool, err error) {
	stream, err := streamer.Stream(ctx, templates, f.offset)
	if err != nil {
		return false, err
	}
	defer stream.Close()

	f.snapshot = make(map[string]ledger.Contract)
	f.order = nil
	for {
		batch, err := stream.Next()
		if err != nil {
			return progressed, err
		}
		progressed = true
		if err := f.apply(ctx, batch); err != nil {
			return progressed, err
		}
	}
}

func (f *follower) apply(ctx context.Context, batch ledger.Batch) error {
	// A stream opened without an offset replays the active set first.
	inSnapshot := f.snapshot != nil && f.offset == ""
	if inSnapshot {
		for _, event := range batch.Events {
			f.buffer(event)
		}
		if !batch.Live {
			return nil
		}
		if !f.ready {
			f.ready = true
			if err := f.send(ctx, Item{Ready: true}); err != nil {
				return err
			}
		}
		pending := f.order
		f.order = nil
		for _, id := range pending {
			contract, ok := f.snapshot[id]
			if !ok {
				continue
			}
			if err := f.sendCreated(ctx, contract); err != nil {
				return err
			}
		}
		f.snapshot = nil
		f.setOffset(batch.Offset)
		return nil
	}

	for _, event := range batch.Events {
		if event.Created == nil {
			continue
		}
		if err := f.sendCreated(ctx, *event.Created); err != nil {
			return err
		}
	}
	f.setOffset(batch.Offset)
	return nil
}

func (f *follower) buffer(event ledger.Event) {
	switch {
	case event.Created != nil:
		id := event.Created.ContractID
		if _, seen := f.snapshot[id]; !seen {
			f.order = append(f.order, id)
		}
		f.snapshot[id] = *event.Created
	case event.Archived != nil:
		delete(f.snapshot, event.Archived.ContractID)
	}
}

func (f *follower) setOffset(offset string) {
	if offset == "" {
		return
	}
	f.offset = offset
	f.replayed = nil
}

func (f *follower) sendCreated(ctx context.Context, contract ledger.Contract) error {
	if f.offset == "" {
		if _, sent := f.replayed[contract.ContractID]; sent {
			return nil
		}
		if f.replayed == nil {
			f.replayed = make(map[string]struct{})
		}
		f.replayed[contract.ContractID] = struct{}{}
	}
	created := contract
	return f.send(ctx, Item{Created: &created})
}

func (f *follower) send(ctx context.Context, item Item) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case f.out <- item:
		return nil
	}
}
