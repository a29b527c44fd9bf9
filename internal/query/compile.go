package query

import (
	"fmt"
	"strings"
)

// observationColumns is the column list of every compiled query, in the
// order the store scans them.
const observationColumns = "seq, kind, binding_id, event, path, signature_key, signature, detail"

// Compile converts a Select to parameterized SQL for SQLite.
// Returns (sql, params, error).
//
// Every query orders by seq. Values are never interpolated.
func Compile(sel Select) (string, []any, error) {
	if sel.RunID == "" {
		return "", nil, fmt.Errorf("compile query: run ID is required")
	}
	if res := Validate(sel.Filter); !res.Valid {
		return "", nil, fmt.Errorf("compile query: %s", strings.Join(res.Problems, "; "))
	}
	if sel.Limit < 0 {
		return "", nil, fmt.Errorf("compile query: negative limit %d", sel.Limit)
	}

	where := "run_id = ?"
	params := []any{sel.RunID}

	if sel.Filter != nil {
		filterSQL, filterParams, err := compilePredicate(sel.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		if filterSQL != "1 = 1" {
			where += " AND " + filterSQL
			params = append(params, filterParams...)
		}
	}

	sql := fmt.Sprintf("SELECT %s FROM observations WHERE %s ORDER BY seq ASC", observationColumns, where)
	if sel.Limit > 0 {
		sql += " LIMIT ?"
		params = append(params, int64(sel.Limit))
	}
	return sql, params, nil
}

// compilePredicate compiles a predicate to a WHERE fragment.
func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case In:
		return compileIn(pred)
	case *In:
		return compileIn(*pred)
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	case SeqRange:
		return compileSeqRange(pred)
	case *SeqRange:
		return compileSeqRange(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	param, err := toParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return fmt.Sprintf("%s = ?", eq.Field), []any{param}, nil
}

func compileIn(in In) (string, []any, error) {
	if len(in.Values) == 1 {
		return compileEquals(Equals{Field: in.Field, Value: in.Values[0]})
	}
	params := make([]any, 0, len(in.Values))
	for _, v := range in.Values {
		param, err := toParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		params = append(params, param)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	return fmt.Sprintf("%s IN (%s)", in.Field, placeholders), params, nil
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var parts []string
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if sql == "1 = 1" {
			continue
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	if len(parts) == 0 {
		return "1 = 1", nil, nil
	}
	return strings.Join(parts, " AND "), params, nil
}

func compileSeqRange(r SeqRange) (string, []any, error) {
	switch {
	case r.From > 0 && r.To > 0:
		return "seq BETWEEN ? AND ?", []any{r.From, r.To}, nil
	case r.From > 0:
		return "seq >= ?", []any{r.From}, nil
	case r.To > 0:
		return "seq <= ?", []any{r.To}, nil
	default:
		return "1 = 1", nil, nil
	}
}
