// Package ledger is a client for the ledger HTTP JSON API.
//
// It covers the calls the operator makes as a single party: active-set
// queries, create and exercise submissions, and the websocket event stream
// used to follow contract creations and archivals. Transport, offsets and
// authentication live here; deciding what to submit does not.
package ledger
