package literal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/eventbind/internal/ir"
)

const backtick = "`"

// Parse converts one raw token into an ArgumentSpec.
func Parse(token string) (ir.ArgumentSpec, error) {
	if ref, ok := parsePositional(token); ok {
		return ref, nil
	}

	if d, ok := parseDecimal(token); ok {
		return ir.NewLiteral(d, token), nil
	}

	if len(token) >= 2 && strings.HasPrefix(token, backtick) && strings.HasSuffix(token, backtick) {
		return ir.NewLiteral(token[1:len(token)-1], token), nil
	}

	if strings.Contains(token, ".") {
		if f, err := strconv.ParseFloat(token, 64); err == nil {
			return ir.NewLiteral(f, token), nil
		}
	}

	if n, err := strconv.Atoi(token); err == nil {
		return ir.NewLiteral(n, token), nil
	}

	return nil, ir.NewParseError(token)
}

// parsePositional matches "$<digits>". The index must fit in 16 bits;
// larger indexes are never valid event parameters.
func parsePositional(token string) (ir.PositionalRef, bool) {
	digits, ok := strings.CutPrefix(token, "$")
	if !ok || digits == "" {
		return ir.PositionalRef{}, false
	}
	n, err := strconv.ParseUint(digits, 10, 16)
	if err != nil {
		return ir.PositionalRef{}, false
	}
	return ir.PositionalRef{Index: int(n), Raw: token}, true
}

// parseDecimal matches "<decimal>m". Only finite values are accepted, so
// "NaNm" and "Infinitym" fall through to the later rules.
func parseDecimal(token string) (*apd.Decimal, bool) {
	prefix, ok := strings.CutSuffix(token, "m")
	if !ok || prefix == "" {
		return nil, false
	}
	d, _, err := apd.NewFromString(prefix)
	if err != nil || d.Form != apd.Finite {
		return nil, false
	}
	return d, true
}

// ParseArgument converts a declared argument into an ArgumentSpec.
//
// Strings are parsed as tokens. ArgumentSpec values (including
// ir.BoundValue) are returned as-is. Any other value is already typed and
// becomes a Literal of its runtime type.
func ParseArgument(v any) (ir.ArgumentSpec, error) {
	switch val := v.(type) {
	case string:
		return Parse(val)
	case ir.ArgumentSpec:
		return val, nil
	default:
		return ir.NewLiteral(v, ""), nil
	}
}

// ParseAll parses every argument in order. The first failure is returned
// wrapped with its index; the ir.BindError stays reachable via errors.As.
func ParseAll(args ...any) ([]ir.ArgumentSpec, error) {
	specs := make([]ir.ArgumentSpec, len(args))
	for i, a := range args {
		spec, err := ParseArgument(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		specs[i] = spec
	}
	return specs, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level declarations.
func MustParse(token string) ir.ArgumentSpec {
	spec, err := Parse(token)
	if err != nil {
		panic(err)
	}
	return spec
}
