package app

import (
	"context"

	"github.com/dablchess/operator/internal/services/operator/dispatch"
	"github.com/dablchess/operator/internal/services/operator/storage"
)

type attemptStoreRecorder struct {
	store storage.AttemptStore
}

func newAttemptStoreRecorder(store storage.AttemptStore) *attemptStoreRecorder {
	return &attemptStoreRecorder{store: store}
}

func (r *attemptStoreRecorder) RecordAttempt(ctx context.Context, attempt dispatch.Attempt) error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.RecordAttempt(ctx, storage.AttemptRecord{
		EventID:    attempt.EventID,
		TemplateID: attempt.TemplateID,
		Reaction:   attempt.Reaction,
		Outcome:    attempt.Outcome,
		LastError:  attempt.Error,
		CreatedAt:  attempt.CreatedAt,
	})
}
