// Package query describes filters over journaled observations and compiles
// them to parameterized SQL for the store.
//
// A Select names a run and an optional Predicate:
//
//	query.Select{
//	  RunID: run.ID,
//	  Filter: query.And{Predicates: []query.Predicate{
//	    query.Equals{Field: query.FieldBindingID, Value: "b-2"},
//	    query.Kinds(ir.ObsInvoke, ir.ObsDebounce),
//	  }},
//	}
//
// compiles to
//
//	SELECT seq, kind, ... FROM observations
//	WHERE run_id = ? AND binding_id = ? AND kind IN (?, ?)
//	ORDER BY seq ASC
//
// Predicate is a sealed interface: Equals, In, And and SeqRange are the
// only implementations, so the compiler switch is exhaustive.
//
// Every compiled query orders by seq and every value travels as a bound
// parameter. Field names come from a fixed set and are the only text
// spliced into the SQL.
package query
