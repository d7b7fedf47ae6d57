// Package app provides the poll lifecycle engine and the services around it.
//
// The Engine owns every poll mutation and runs each one as a single store transaction.
// After a successful mutation it notifies a domain.PollEvents, which the ResultsPublisher
// implements by recomputing results and handing them to the broadcast hub.
// Depends on domain interfaces, not concrete implementations.
package app
