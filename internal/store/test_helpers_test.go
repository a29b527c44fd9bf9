package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/eventbind/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestRun(t *testing.T, s *Store, name string) Run {
	t.Helper()
	run, err := s.CreateRun(context.Background(), name)
	require.NoError(t, err)
	return run
}

// obs builds an observation for binding b.
func obs(seq int64, kind ir.ObservationKind, b string) ir.Observation {
	return ir.Observation{
		Seq:       seq,
		Kind:      kind,
		BindingID: b,
		Event:     "Click",
		Path:      "Doc.Save",
	}
}

// synth builds a synthesize or cache_hit observation for key.
func synth(seq int64, kind ir.ObservationKind, b, key string) ir.Observation {
	o := obs(seq, kind, b)
	o.SignatureKey = key
	o.Signature = "sig-" + key
	return o
}
