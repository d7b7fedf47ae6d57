// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (poll.go, results.go, store.go, identity.go, errors.go) hold the
// shared types and the contracts implemented by the adapters. No implementation code beyond
// small value helpers. Interfaces live here so adapters and the app layer never import each other.
package domain
