// Package harness runs binding scenarios described in YAML.
//
// A scenario compiles CUE binding declarations, builds an in-memory host
// element over a set of Model roots, drives it through steps and checks
// the outcome.
//
// # Scenario Format
//
//	name: debounced_search
//	description: "Text changes collapse into one call"
//	bindings:
//	  - ../bindings/editor.cue
//	element:
//	  name: search_box
//	  root: main
//	  events:
//	    TextChanged: [any, string]
//	roots:
//	  - name: main
//	    count: 7
//	    child: results
//	  - name: results
//	steps:
//	  - bind: search
//	  - fire: TextChanged
//	    args: [null, "ab"]
//	  - advance: 200ms
//	  - run_pending: true
//	assertions:
//	  - type: calls
//	    calls:
//	      - {root: results, method: Select, args: ["ab", "7"]}
//
// Steps: bind, fire (with args), advance, run_pending, set_root,
// clear_root, attach, detach, refresh, close and purge. A bind or refresh
// step may carry expect_error with the error code it must fail with.
//
// # Assertion Types
//
//   - calls: the recorded calls equal the listed ones, in order
//   - call_count: a method was called exactly N times
//   - syntheses: the generator synthesized exactly N templates
//   - templates: the cache holds exactly N templates
//   - observations: exactly N observations of a kind were emitted
//   - state: a declaration's binding for an event is bound or unbound
//   - subscribers: an event has exactly N subscribed handlers
//
// # Deterministic Testing
//
// Every scenario runs with fake timers, a manual dispatcher, sequential
// binding IDs ("b-1", "b-2", ...) and a fresh Binder, so two runs produce
// byte-identical traces for golden comparison. WithStore additionally
// journals the observations into a store run named after the scenario.
package harness
