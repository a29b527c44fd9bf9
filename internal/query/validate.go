package query

import (
	"fmt"

	"github.com/roach88/eventbind/internal/ir"
)

// ValidationResult lists the problems found in a predicate tree.
type ValidationResult struct {
	Valid    bool
	Problems []string
}

// Validate checks that a predicate only references known fields, carries
// parameter-safe values and has well-formed ranges. A nil predicate is
// valid.
//
// Validate is a pure function with no side effects.
func Validate(p Predicate) ValidationResult {
	v := &validator{}
	v.validatePredicate(p)
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateField(pred.Field)
		v.validateValue(pred.Field, pred.Value)
	case *Equals:
		v.validatePredicate(*pred)
	case In:
		v.validateField(pred.Field)
		if len(pred.Values) == 0 {
			v.addProblem("field %q: IN needs at least one value", pred.Field)
		}
		for _, val := range pred.Values {
			v.validateValue(pred.Field, val)
		}
	case *In:
		v.validatePredicate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			if sub == nil {
				v.addProblem("nil predicate inside AND")
				continue
			}
			v.validatePredicate(sub)
		}
	case *And:
		v.validatePredicate(*pred)
	case SeqRange:
		if pred.From < 0 || pred.To < 0 {
			v.addProblem("seq range bounds must not be negative")
		}
		if pred.To != 0 && pred.From > pred.To {
			v.addProblem("seq range %d..%d is empty", pred.From, pred.To)
		}
	case *SeqRange:
		v.validatePredicate(*pred)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateField(f Field) {
	if !knownFields[f] {
		v.addProblem("unknown field %q", f)
	}
}

func (v *validator) validateValue(f Field, val any) {
	if _, err := toParam(val); err != nil {
		v.addProblem("field %q: %v", f, err)
	}
}

// toParam converts a predicate value to a SQL parameter.
// Floats are rejected: seq and every text column compare exactly.
func toParam(val any) (any, error) {
	switch x := val.(type) {
	case string:
		return x, nil
	case ir.ObservationKind:
		return string(x), nil
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case nil:
		return nil, fmt.Errorf("NULL never matches; observation columns are NOT NULL")
	default:
		return nil, fmt.Errorf("unsupported value type %T", val)
	}
}
