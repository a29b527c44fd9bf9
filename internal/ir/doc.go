// Package ir provides the shared data model for eventbind.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the binding model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - ArgumentSpec values and BindingDeclaration are immutable once built
//   - ResolvedSignature keys are content-addressed (canonical JSON + SHA-256)
//   - Type identity in keys uses package-qualified names, never short names
package ir
