package resolve

import (
	"reflect"
	"strings"

	"github.com/roach88/eventbind/internal/ir"
)

// Read walks every segment of path as a member read and returns the final
// value. It is the value-side counterpart of Resolve, used by value sources
// that interpret descriptors as member paths.
//
// An empty path returns root itself. A member that exists but holds nil is
// returned as nil without error when it is the last segment.
func Read(root any, path string) (any, error) {
	if path == "" {
		return root, nil
	}
	cur := reflect.ValueOf(root)
	segments := strings.Split(path, ".")
	for i, name := range segments {
		if isNil(cur) {
			return nil, ir.NewMissingMemberError(path, name, nil, nil)
		}
		next, _, ok := readMember(cur, name)
		if !ok {
			err := ir.NewMissingMemberError(path, name, cur.Type(), nil)
			err.Suggestion = Suggest(name, memberNames(cur))
			return nil, err
		}
		if isNil(next) && i < len(segments)-1 {
			return nil, ir.NewMissingMemberError(path, segments[i+1], nil, nil)
		}
		cur = next
	}
	if !cur.IsValid() || !cur.CanInterface() {
		return nil, nil
	}
	return cur.Interface(), nil
}
