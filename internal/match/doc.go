// Package match implements the firing criteria of pipeline units:
// package descriptors, resolved-state descriptors, and runtime
// environment constraints.
//
// Criteria are compiled once at load time (where malformed version
// specifiers are rejected) and are immutable afterwards. All Matches
// methods are total functions over well-formed inputs and safe for
// concurrent use.
package match
