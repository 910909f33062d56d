package cluster

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTree indicates the parent-pointer array is not a valid
	// binary merge tree.
	ErrMalformedTree = errors.New("cluster: malformed merge tree")
	// ErrClusterCount indicates n lies outside [1, leaves].
	ErrClusterCount = errors.New("cluster: cluster count out of range")
)

// MalformedTreeError reports the node at which validation failed.
type MalformedTreeError struct {
	Node   int
	Reason string
}

func (e MalformedTreeError) Error() string {
	if e.Node < 0 {
		return fmt.Sprintf("%s: %s", ErrMalformedTree, e.Reason)
	}
	return fmt.Sprintf("%s: node %d: %s", ErrMalformedTree, e.Node, e.Reason)
}

// Unwrap allows errors.Is(err, ErrMalformedTree).
func (e MalformedTreeError) Unwrap() error { return ErrMalformedTree }
