package storage

import (
	"context"

	"tierStaking/internal/model"
)

// Journal is a sink for committed operations.
type Journal interface {
	PutOperationBatch(ctx context.Context, ops []model.OperationRecord) error
}

// StateStore persists the full ledger snapshot between runs.
type StateStore interface {
	Load(ctx context.Context) (model.Snapshot, bool, error)
	Save(ctx context.Context, snapshot model.Snapshot) error
}

// MultiJournal writes every batch to each journal in order and returns the
// first error.
type MultiJournal []Journal

func (m MultiJournal) PutOperationBatch(ctx context.Context, ops []model.OperationRecord) error {
	for _, j := range m {
		if err := j.PutOperationBatch(ctx, ops); err != nil {
			return err
		}
	}
	return nil
}
