// Package dispatch routes ledger creation events to reactions.
//
// Follow turns the ledger event stream into a sequence of Items: one Ready
// marker once the initial active contracts have loaded, then one Item per
// created contract. Reactor consumes that sequence on a single goroutine,
// running the ready bootstraps first and then each event's reaction in
// arrival order.
package dispatch
