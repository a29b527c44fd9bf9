package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/eventbind/internal/ir"
	"github.com/roach88/eventbind/internal/query"
)

// TemplateRecord is the per-run summary of one signature key.
type TemplateRecord struct {
	Key       string
	Signature string
	Path      string
	Syntheses int
	Hits      int
	FirstSeq  int64
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, ordinal FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Name, &run.Ordinal)
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// LatestRun returns the run with the highest ordinal.
// Returns sql.ErrNoRows if the journal is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, ordinal FROM runs ORDER BY ordinal DESC LIMIT 1
	`).Scan(&run.ID, &run.Name, &run.Ordinal)
	if err != nil {
		return Run{}, fmt.Errorf("read latest run: %w", err)
	}
	return run, nil
}

// ReadRuns returns every run ordered by ordinal.
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, ordinal FROM runs ORDER BY ordinal ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Name, &run.Ordinal); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadObservations returns all observations of a run ordered by seq.
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadObservations(ctx context.Context, runID string) ([]ir.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, binding_id, event, path, signature_key, signature, detail
		FROM observations
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	return scanObservations(rows)
}

// ReadBindingObservations returns the observations of one binding in a
// run, ordered by seq. Cache-wide observations carry the binding ID of the
// request that caused them and are included.
func (s *Store) ReadBindingObservations(ctx context.Context, runID, bindingID string) ([]ir.Observation, error) {
	return s.QueryObservations(ctx, query.Select{
		RunID:  runID,
		Filter: query.Equals{Field: query.FieldBindingID, Value: bindingID},
	})
}

// QueryObservations returns the observations selected by sel, ordered by
// seq. Returns an empty slice (not nil) if nothing matches.
func (s *Store) QueryObservations(ctx context.Context, sel query.Select) ([]ir.Observation, error) {
	sqlText, params, err := query.Compile(sel)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	return scanObservations(rows)
}

func scanObservations(rows *sql.Rows) ([]ir.Observation, error) {
	defer rows.Close()

	obs := []ir.Observation{}
	for rows.Next() {
		var (
			o    ir.Observation
			kind string
		)
		if err := rows.Scan(&o.Seq, &kind, &o.BindingID, &o.Event, &o.Path,
			&o.SignatureKey, &o.Signature, &o.Detail); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Kind = ir.ObservationKind(kind)
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return obs, nil
}

// ReadTemplates returns the template summaries of a run ordered by the seq
// of their first synthesis or hit.
func (s *Store) ReadTemplates(ctx context.Context, runID string) ([]TemplateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, signature, path, syntheses, hits, first_seq
		FROM templates
		WHERE run_id = ?
		ORDER BY first_seq ASC, key COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	records := []TemplateRecord{}
	for rows.Next() {
		var r TemplateRecord
		if err := rows.Scan(&r.Key, &r.Signature, &r.Path, &r.Syntheses, &r.Hits, &r.FirstSeq); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return records, nil
}

// CountByKind returns how many observations of each kind a run holds.
// Kinds with no observations are absent from the map.
func (s *Store) CountByKind(ctx context.Context, runID string) (map[ir.ObservationKind]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM observations
		WHERE run_id = ?
		GROUP BY kind
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("count observations: %w", err)
	}
	defer rows.Close()

	counts := make(map[ir.ObservationKind]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[ir.ObservationKind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// LastSeq returns the highest seq recorded for a run, or 0.
// Used to resume a logical clock when appending to an existing run.
func (s *Store) LastSeq(ctx context.Context, runID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM observations WHERE run_id = ?
	`, runID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}
