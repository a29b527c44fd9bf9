package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/eventbind/internal/ir"
)

// BindingState is the state of one binding reconstructed from its
// observations.
type BindingState struct {
	BindingID   string
	Event       string
	Path        string
	State       ir.LifecycleState
	Syntheses   int    // synthesize observations caused by this binding
	CacheHits   int    // cache_hit observations caused by this binding
	Invocations int    // invoke observations
	Debounced   int    // debounce_fire observations
	RootChanges int    // root_change observations
	LastError   string // detail of the last error observation, if any
	LastSeq     int64
}

// ReplayBindings folds a run's observations into per-binding state.
//
// The state machine mirrors the engine: subscribe moves a binding to
// Bound, unsubscribe to Unbound. A later successful subscribe does not
// clear LastError; the error stays visible in the journal.
//
// Results are ordered by binding ID.
func (s *Store) ReplayBindings(ctx context.Context, runID string) ([]BindingState, error) {
	obs, err := s.ReadObservations(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replay bindings: %w", err)
	}
	return FoldBindings(obs), nil
}

// FoldBindings folds observations (in seq order) into per-binding state.
// Observations without a binding ID are skipped.
func FoldBindings(obs []ir.Observation) []BindingState {
	states := make(map[string]*BindingState)
	for _, o := range obs {
		if o.BindingID == "" {
			continue
		}
		st, ok := states[o.BindingID]
		if !ok {
			st = &BindingState{BindingID: o.BindingID, Event: o.Event, Path: o.Path}
			states[o.BindingID] = st
		}
		st.LastSeq = o.Seq

		switch o.Kind {
		case ir.ObsSubscribe:
			st.State = ir.StateBound
		case ir.ObsUnsubscribe:
			st.State = ir.StateUnbound
		case ir.ObsSynthesize:
			st.Syntheses++
		case ir.ObsCacheHit:
			st.CacheHits++
		case ir.ObsInvoke:
			st.Invocations++
		case ir.ObsDebounce:
			st.Debounced++
		case ir.ObsRootChange:
			st.RootChanges++
		case ir.ObsBindingError:
			st.LastError = o.Detail
		}
	}

	out := make([]BindingState, 0, len(states))
	for _, st := range states {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BindingID < out[j].BindingID })
	return out
}
