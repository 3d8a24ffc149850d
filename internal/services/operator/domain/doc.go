// Package domain holds the operator's reactions: what to submit to the ledger
// when a contract of interest is created, and which singleton role contracts
// must exist once the initial ledger state has loaded.
//
// Three patterns cover every workflow the operator drives:
//
//   - self exercise: exercise a choice on the contract that was just created;
//   - owner exercise: find the one active role contract for this party (and
//     the event's correlation key), then exercise a choice on it, passing the
//     triggering contract id;
//   - ensure singleton: create a role contract only when none is active.
//
// Reactions never cache ledger state between events; every lookup re-queries.
package domain
