// Package network wires ingestion, analysis, trigger generation, and
// dispatch into the cycle-driven behavioral pipeline and owns its lifecycle.
package network
