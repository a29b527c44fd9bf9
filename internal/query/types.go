package query

import "github.com/roach88/eventbind/internal/ir"

// Field names a filterable column of the observations table.
type Field string

const (
	FieldSeq          Field = "seq"
	FieldKind         Field = "kind"
	FieldBindingID    Field = "binding_id"
	FieldEvent        Field = "event"
	FieldPath         Field = "path"
	FieldSignatureKey Field = "signature_key"
)

// knownFields is the closed set of columns a predicate may reference.
var knownFields = map[Field]bool{
	FieldSeq:          true,
	FieldKind:         true,
	FieldBindingID:    true,
	FieldEvent:        true,
	FieldPath:         true,
	FieldSignatureKey: true,
}

// Predicate is a filter condition over observations.
//
// Sealed: only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Select reads the observations of one run.
//
// Semantics:
//
//	SELECT <observation columns> FROM observations
//	WHERE run_id = <RunID> [AND <Filter>]
//	ORDER BY seq ASC [LIMIT <Limit>]
type Select struct {
	RunID  string
	Filter Predicate // nil = every observation of the run
	Limit  int       // 0 = no limit
}

// Equals matches observations whose Field equals Value.
// Value is a string, an ir.ObservationKind or an integer.
type Equals struct {
	Field Field
	Value any
}

func (Equals) predicateNode() {}

// In matches observations whose Field equals any of Values.
// An empty Values list is rejected by Validate.
type In struct {
	Field  Field
	Values []any
}

func (In) predicateNode() {}

// And is a conjunction. An empty list matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// SeqRange matches observations with From <= seq <= To. A zero bound is
// open.
type SeqRange struct {
	From int64
	To   int64
}

func (SeqRange) predicateNode() {}

// Kinds returns a predicate matching any of the given observation kinds.
func Kinds(kinds ...ir.ObservationKind) In {
	values := make([]any, len(kinds))
	for i, k := range kinds {
		values[i] = k
	}
	return In{Field: FieldKind, Values: values}
}

// All returns the conjunction of the non-nil predicates, or nil when none
// remain.
func All(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
