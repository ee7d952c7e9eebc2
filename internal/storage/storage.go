package storage

import (
	"context"

	"vaultflow/internal/model"
)

// Journal is a sink for workflow attempt records.
type Journal interface {
	Append(ctx context.Context, rec model.WorkflowRecord) error
}

// SessionStore persists the session between runs.
type SessionStore interface {
	Load(ctx context.Context) (model.Session, bool, error)
	Save(ctx context.Context, s model.Session) error
}
