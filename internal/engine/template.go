package engine

import (
	"log/slog"
	"reflect"

	"github.com/roach88/eventbind/internal/ir"
	"github.com/roach88/eventbind/internal/resolve"
)

var errorType = reflect.TypeFor[error]()

// Template is a cached adapter template: the outcome of resolving one
// ResolvedSignature. Instantiating it binds a root and an argument snapshot
// without repeating path or method resolution.
//
// Thread-safety: Template is immutable and safe for concurrent use.
type Template struct {
	sig    ir.ResolvedSignature
	key    string
	target *resolve.Target
}

// Signature returns the signature the template was synthesized for.
func (t *Template) Signature() ir.ResolvedSignature { return t.sig }

// Key returns the content-addressed signature key.
func (t *Template) Key() string { return t.key }

// Target returns the resolved member path.
func (t *Template) Target() *resolve.Target { return t.target }

// bind returns the call body of one adapter instance.
//
// The member path is walked against root on every call. A walk that fails
// at call time (an intermediate member became nil) is logged and the
// invocation is absorbed. Results of the target are discarded; a non-nil
// trailing error is logged at debug level. Panics raised by the target
// propagate to the caller.
func (t *Template) bind(root any, args boundArgs, logger *slog.Logger) func(in []reflect.Value) {
	return func(in []reflect.Value) {
		out, err := t.target.Call(root, args.args(in))
		if err != nil {
			logger.Warn("binding target unavailable",
				"path", t.sig.Path,
				"error", err)
			return
		}
		if n := len(out); n > 0 && out[n-1].Type() == errorType && !out[n-1].IsNil() {
			logger.Debug("binding target returned error",
				"path", t.sig.Path,
				"error", out[n-1].Interface())
		}
	}
}
