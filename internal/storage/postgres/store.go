package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultflow/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS workflow_records (
	id           TEXT PRIMARY KEY,
	workflow     TEXT NOT NULL,
	signer       TEXT NOT NULL,
	digest       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	commands     INTEGER NOT NULL DEFAULT 0,
	created      JSONB NOT NULL DEFAULT '[]',
	started_at   TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	inserted_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS sessions (
	name       TEXT PRIMARY KEY,
	session    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for the journal and sessions.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Append inserts a workflow record. Re-appending an id updates it.
func (s *Store) Append(ctx context.Context, rec model.WorkflowRecord) error {
	created, err := json.Marshal(rec.Created)
	if err != nil {
		return fmt.Errorf("marshal created objects: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO workflow_records (
			id, workflow, signer, digest, status, error, commands, created, started_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			digest = EXCLUDED.digest,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			commands = EXCLUDED.commands,
			created = EXCLUDED.created,
			completed_at = EXCLUDED.completed_at
	`,
		rec.ID,
		rec.Workflow,
		rec.Signer,
		rec.Digest,
		rec.Status,
		rec.Error,
		rec.Commands,
		created,
		rec.StartedAt,
		rec.CompletedAt,
	)
	return err
}

// Records returns the most recent workflow records, newest first.
func (s *Store) Records(ctx context.Context, limit int) ([]model.WorkflowRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, workflow, signer, digest, status, error, commands, created, started_at, completed_at
		FROM workflow_records
		ORDER BY inserted_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkflowRecord
	for rows.Next() {
		var (
			rec     model.WorkflowRecord
			created []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Workflow, &rec.Signer, &rec.Digest, &rec.Status, &rec.Error,
			&rec.Commands, &created, &rec.StartedAt, &rec.CompletedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(created, &rec.Created); err != nil {
			return nil, fmt.Errorf("decode created objects of %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoadSession returns the session saved under name.
func (s *Store) LoadSession(ctx context.Context, name string) (model.Session, bool, error) {
	if name == "" {
		return model.Session{}, false, fmt.Errorf("session name required")
	}
	var raw []byte
	row := s.pool.QueryRow(ctx, `SELECT session FROM sessions WHERE name=$1`, name)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Session{}, false, nil
		}
		return model.Session{}, false, err
	}
	var out model.Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.Session{}, false, fmt.Errorf("decode session %s: %w", name, err)
	}
	return out, true, nil
}

// SaveSession upserts the session under name.
func (s *Store) SaveSession(ctx context.Context, name string, session model.Session) error {
	if name == "" {
		return fmt.Errorf("session name required")
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (name, session, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET session = EXCLUDED.session, updated_at = now()
	`, name, raw)
	return err
}

// SessionStore binds a Store to one session name.
type SessionStore struct {
	Store *Store
	Name  string
}

func (s *SessionStore) Load(ctx context.Context) (model.Session, bool, error) {
	if s == nil || s.Store == nil {
		return model.Session{}, false, nil
	}
	return s.Store.LoadSession(ctx, s.Name)
}

func (s *SessionStore) Save(ctx context.Context, session model.Session) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveSession(ctx, s.Name, session)
}
