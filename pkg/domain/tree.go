package domain

import "sort"

// ClusterID identifies a cluster by the merge-tree node that roots it.
type ClusterID int

// MergeTree is a parent-pointer encoding of a binary hierarchical clustering.
// Indices below m are leaves; index i's parent is t[i]; the root points
// to itself or holds an out-of-range sentinel such as -1. A tree over m leaves has exactly 2m-1 nodes.
type MergeTree []int

// Leaves returns the number of leaves encoded by the tree.
func (t MergeTree) Leaves() int {
	return (len(t) + 1) / 2
}

// ClusterCut is the result of cutting a merge tree into n clusters.
type ClusterCut struct {
	// ByPoint maps leaf index to cluster id.
	ByPoint []ClusterID
	// ByGroup maps cluster id to its member leaf indices in ascending order.
	ByGroup map[ClusterID][]int
}

// IDs returns the cluster ids of the cut in ascending order.
func (c ClusterCut) IDs() []ClusterID {
	ids := make([]ClusterID, 0, len(c.ByGroup))
	for id := range c.ByGroup {
		ids = append(ids, id)
	}
	SortClusterIDs(ids)
	return ids
}

// SortClusterIDs sorts ids in ascending order in place.
func SortClusterIDs(ids []ClusterID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
