// Package proposer turns free-text budget requests into policy proposals.
//
// It heuristically extracts an amount, a period and an action from text
// such as "max $5 per day" or "block anything over $100 a month", builds a
// fully-formed budget policy, and installs it through the budget manager -
// which alone validates invariants and applies the RBAC gate. None of the
// text heuristics leak into the admission engine.
package proposer
