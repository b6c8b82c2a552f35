// Package trigger turns behavioral insights into concrete, priority-ranked
// action requests and dispatches them against external delivery collaborators.
package trigger
