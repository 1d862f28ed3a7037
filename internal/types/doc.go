// doc.go — Package documentation for foundational cross-cutting types.

// Package types provides the foundational, zero-dependency types for hoptrace.
//
// This package contains all cross-cutting type definitions needed by multiple packages:
//   - Wire types (the JSON shapes POSTed by the browser extension)
//   - Boundary event variants (RequestBegin, RedirectFired, RequestCompleted,
//     RequestErrored, NavigationCommitted, TabRemoved)
//   - Hop and redirect record types (the chain data model)
//
// Design Principle: Zero Dependencies
// This package imports only the Go standard library. It is safe to import from
// any other package without creating circular dependencies. All other packages
// should import from types for canonical type definitions.
//
// Wire shapes are converted to tagged event variants at the ingestion boundary
// (DecodeWireEvent); internal logic never inspects raw wire shapes.
package types
