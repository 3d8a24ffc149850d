package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dablchess/operator/internal/services/operator/ledger"
)

func runFollow(t *testing.T, streamer *fakeStreamer, onReconnect func()) (<-chan Item, <-chan error, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Item, 32)
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, streamer, FollowConfig{
			Templates:   []string{"Chess:Game"},
			MinDelay:    time.Millisecond,
			MaxDelay:    4 * time.Millisecond,
			OnReconnect: onReconnect,
		}, out)
	}()
	t.Cleanup(cancel)
	return out, done, cancel
}

func collect(t *testing.T, out <-chan Item, n int) []string {
	t.Helper()
	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case item := <-out:
			if item.Ready {
				got = append(got, "ready")
			} else {
				got = append(got, item.Created.ContractID)
			}
		case <-timeout:
			t.Fatalf("timed out after %v", got)
		}
	}
	return got
}

func waitDials(t *testing.T, streamer *fakeStreamer, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		offsets := streamer.dialOffsets()
		if len(offsets) >= n {
			return offsets
		}
		if time.Now().After(deadline) {
			t.Fatalf("dial offsets = %v, want at least %d dials", offsets, n)
		}
		time.Sleep(time.Millisecond)
	}
}

func assertSequence(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("items = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("items = %v, want %v", got, want)
		}
	}
}

func TestFollowBuffersSnapshotUntilLive(t *testing.T) {
	streamer := &fakeStreamer{streams: []*fakeStream{
		{
			batches: []ledger.Batch{
				{Events: []ledger.Event{created("#a", "Chess:Game", nil), created("#b", "Chess:Game", nil)}},
				{Events: []ledger.Event{archived("#b", "Chess:Game")}},
				{Live: true, Offset: "5"},
				{Events: []ledger.Event{created("#c", "Chess:Game", nil), archived("#a", "Chess:Game")}, Live: true, Offset: "6"},
			},
			err: errStreamDropped,
		},
		{
			batches: []ledger.Batch{
				{Events: []ledger.Event{created("#d", "Chess:Game", nil)}, Live: true, Offset: "7"},
			},
			err: errStreamDropped,
		},
	}}
	out, _, cancel := runFollow(t, streamer, nil)

	assertSequence(t, collect(t, out, 4), []string{"ready", "#a", "#c", "#d"})

	// The third dial happens after the second stream drops.
	offsets := waitDials(t, streamer, 3)
	cancel()
	if len(offsets) < 3 || offsets[0] != "" || offsets[1] != "6" || offsets[2] != "7" {
		t.Fatalf("dial offsets = %v, want [\"\" 6 7 ...]", offsets)
	}
}

func TestFollowNullOffsetReplayIsNotResent(t *testing.T) {
	streamer := &fakeStreamer{streams: []*fakeStream{
		{
			batches: []ledger.Batch{
				{Events: []ledger.Event{created("#a", "Chess:Game", nil)}},
				{Live: true},
			},
			err: errStreamDropped,
		},
		{
			batches: []ledger.Batch{
				{Events: []ledger.Event{created("#a", "Chess:Game", nil), created("#b", "Chess:Game", nil)}},
				{Live: true, Offset: "2"},
			},
			err: errStreamDropped,
		},
	}}
	out, _, cancel := runFollow(t, streamer, nil)

	assertSequence(t, collect(t, out, 3), []string{"ready", "#a", "#b"})
	select {
	case item := <-out:
		t.Fatalf("unexpected extra item %+v", item)
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
}

func TestFollowEmptyLedgerStillReady(t *testing.T) {
	streamer := &fakeStreamer{streams: []*fakeStream{{
		batches: []ledger.Batch{{Live: true}},
		err:     errStreamDropped,
	}}}
	out, _, cancel := runFollow(t, streamer, nil)
	assertSequence(t, collect(t, out, 1), []string{"ready"})
	cancel()
}

func TestFollowRetriesDialFailures(t *testing.T) {
	streamer := &fakeStreamer{
		dialErr: []error{errors.New("connection refused"), errors.New("connection refused")},
		streams: []*fakeStream{{batches: []ledger.Batch{{Live: true, Offset: "1"}}, err: errStreamDropped}},
	}
	reconnects := make(chan struct{}, 8)
	out, _, cancel := runFollow(t, streamer, func() { reconnects <- struct{}{} })

	assertSequence(t, collect(t, out, 1), []string{"ready"})
	cancel()
	if len(reconnects) < 2 {
		t.Fatalf("reconnects = %d, want at least 2", len(reconnects))
	}
}

func TestFollowStopsOnRejection(t *testing.T) {
	streamer := &fakeStreamer{dialErr: []error{&ledger.APIError{Status: 401, Errors: []string{"bad token"}}}}
	_, done, _ := runFollow(t, streamer, nil)

	select {
	case err := <-done:
		if !ledger.IsRejection(err) {
			t.Fatalf("err = %v, want rejection", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("follow did not stop")
	}
}

func TestFollowStopsOnCancel(t *testing.T) {
	streamer := &fakeStreamer{}
	_, done, cancel := runFollow(t, streamer, nil)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("follow did not stop")
	}
}

func TestFollowValidates(t *testing.T) {
	out := make(chan Item)
	if err := Follow(context.Background(), nil, FollowConfig{Templates: []string{"Chess:Game"}}, out); err == nil {
		t.Fatal("expected streamer error")
	}
	if err := Follow(context.Background(), &fakeStreamer{}, FollowConfig{}, out); err == nil {
		t.Fatal("expected templates error")
	}
}

func TestFollowConfigNormalized(t *testing.T) {
	cfg := FollowConfig{MinDelay: time.Second, MaxDelay: time.Millisecond}.normalized()
	if cfg.MaxDelay != time.Second {
		t.Fatalf("max delay = %v, want clamped to min", cfg.MaxDelay)
	}
	cfg = FollowConfig{}.normalized()
	if cfg.MinDelay <= 0 || cfg.MaxDelay < cfg.MinDelay {
		t.Fatalf("defaults = %+v", cfg)
	}
}
