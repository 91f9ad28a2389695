// Package domain defines the core domain types and interfaces.
//
// Types here cross component boundaries: the aggregated record that moves
// from the aggregator through the cache and bus to the hub, and the
// contracts each component implements. No implementation code - just
// contracts. Prevents circular imports by keeping interfaces on the
// consumer side.
package domain
