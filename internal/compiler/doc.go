// Package compiler turns CUE binding declarations into ir.BindingDeclaration
// values and validates them.
//
// Declarations live under a top-level bindings struct, keyed by name:
//
//	bindings: {
//		save: {
//			event: "Click"
//			path:  "Doc.Save"
//			args: ["$1", "`draft`", 3]
//		}
//		search: {
//			events:   ["TextChanged", "Submit"]
//			path:     "Search.Run"
//			args:     [{bind: "Query.Text", type: "string"}]
//			debounce: "200ms"
//		}
//	}
//
// String arguments use the literal token grammar of package literal.
// Numbers and booleans are typed literals. A struct argument is either a
// bound value ({bind, type?}) or an explicitly typed literal ({value, type}).
package compiler
