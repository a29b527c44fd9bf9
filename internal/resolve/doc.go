// Package resolve walks dotted member paths against a root object.
//
// Resolve finds the terminal method for a path such as "Orders.Current.Save"
// and records the read-through steps that reached its receiver. The steps
// are replayed against the live root on every call because intermediate
// values may change between invocations; only the shape of the traversal
// is fixed at resolution time.
//
// Member reads try, in order:
//   - the MemberGetter capability
//   - an exported method with no parameters and one result (a getter)
//   - an exported struct field, or a key of a string-keyed map
//
// The terminal method must match the argument types exactly. There is no
// conversion, no assignability check and no overload scoring.
package resolve
