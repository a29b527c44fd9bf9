package resolve

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// maxEditDistance bounds the Levenshtein fallback for typos that are not
// subsequences of the intended name ("Svae" for "Save").
const maxEditDistance = 2

// Suggest returns a "did you mean" hint for name among candidates, or "".
func Suggest(name string, candidates []string) string {
	if match := findClosestMatch(name, candidates); match != "" {
		return fmt.Sprintf("did you mean %q?", match)
	}
	return ""
}

// findClosestMatch finds the closest string match using fuzzy matching
func findClosestMatch(target string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}

	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", maxEditDistance+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(target, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// methodNames lists the exported methods callable on v, including pointer
// receiver methods when v is addressable.
func methodNames(v reflect.Value) []string {
	t := v.Type()
	if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface && v.CanAddr() {
		t = reflect.PointerTo(t)
	}
	names := make([]string, 0, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		names = append(names, t.Method(i).Name)
	}
	return names
}

// memberNames lists what a path segment could have read on v: methods,
// exported fields and string map keys.
func memberNames(v reflect.Value) []string {
	v, ok := unwrapInterface(v)
	if !ok {
		return nil
	}
	names := methodNames(v)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return names
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		for _, f := range reflect.VisibleFields(v.Type()) {
			if f.IsExported() && !f.Anonymous {
				names = append(names, f.Name)
			}
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String {
			for _, k := range v.MapKeys() {
				names = append(names, k.String())
			}
		}
	}
	return names
}
