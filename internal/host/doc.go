// Package host is an in-memory reference host for bindings.
//
// It implements the engine's collaborator interfaces with plain Go values:
// an Element with a root, attach state and named events, and value sources
// for bound arguments. The harness and the CLI drive bindings through it,
// and so do tests that need a host without a UI framework.
package host
