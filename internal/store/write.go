package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/eventbind/internal/ir"
)

// Run is one journal session.
type Run struct {
	ID      string
	Name    string
	Ordinal int64
}

// CreateRun registers a new run named name and returns it. Ordinals grow
// by one per run in the database.
func (s *Store) CreateRun(ctx context.Context, name string) (Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	run := Run{ID: id.String(), Name: name}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO runs (id, name, ordinal)
		VALUES (?, ?, (SELECT COALESCE(MAX(ordinal), 0) + 1 FROM runs))
		RETURNING ordinal
	`, run.ID, run.Name).Scan(&run.Ordinal)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// WriteObservations appends observations to a run in one transaction and
// folds synthesize and cache_hit observations into the templates table.
//
// Uses ON CONFLICT(run_id, seq) DO NOTHING for idempotency - writing the
// same batch twice is a no-op, and template counters are only bumped for
// newly inserted observations.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteObservations(ctx context.Context, runID string, obs []ir.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write observations: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, o := range obs {
		inserted, err := insertObservation(ctx, tx, runID, o)
		if err != nil {
			return err
		}
		if !inserted {
			continue
		}
		if err := foldTemplate(ctx, tx, runID, o); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write observations: commit: %w", err)
	}
	return nil
}

func insertObservation(ctx context.Context, tx *sql.Tx, runID string, o ir.Observation) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO observations
		(run_id, seq, kind, binding_id, event, path, signature_key, signature, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		o.Seq,
		string(o.Kind),
		o.BindingID,
		o.Event,
		o.Path,
		o.SignatureKey,
		o.Signature,
		o.Detail,
	)
	if err != nil {
		return false, fmt.Errorf("write observation seq=%d: %w", o.Seq, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write observation seq=%d: rows affected: %w", o.Seq, err)
	}
	return n > 0, nil
}

// foldTemplate bumps the template counters for synthesize and cache_hit
// observations. Other kinds are ignored.
func foldTemplate(ctx context.Context, tx *sql.Tx, runID string, o ir.Observation) error {
	var syntheses, hits int
	switch o.Kind {
	case ir.ObsSynthesize:
		syntheses = 1
	case ir.ObsCacheHit:
		hits = 1
	default:
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO templates (run_id, key, signature, path, syntheses, hits, first_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, key) DO UPDATE SET
			syntheses = syntheses + excluded.syntheses,
			hits = hits + excluded.hits
	`, runID, o.SignatureKey, o.Signature, o.Path, syntheses, hits, o.Seq)
	if err != nil {
		return fmt.Errorf("write template %s: %w", o.SignatureKey, err)
	}
	return nil
}
