// Package cluster cuts a precomputed hierarchical merge tree into a fixed
// number of flat clusters.
package cluster

import (
	"fmt"

	"vaine/pkg/domain"
)

// Validate checks that tree is a binary merge tree in merge order: odd length,
// a single root at the last index whose parent is itself or an out-of-range
// sentinel such as -1, every other node pointing
// at a strictly later internal node, and exactly two children per internal node.
func Validate(tree domain.MergeTree) error {
	size := len(tree)
	if size == 0 || size%2 == 0 {
		return MalformedTreeError{Node: -1, Reason: fmt.Sprintf("length %d is not odd", size)}
	}
	leaves := tree.Leaves()
	root := size - 1
	if p := tree[root]; p != root && p >= 0 && p < size {
		return MalformedTreeError{Node: root, Reason: fmt.Sprintf("root points at node %d", p)}
	}
	children := make([]int, size)
	for i := 0; i < root; i++ {
		p := tree[i]
		if p <= i || p >= size {
			return MalformedTreeError{Node: i, Reason: fmt.Sprintf("parent %d is not a later node", p)}
		}
		if p < leaves {
			return MalformedTreeError{Node: i, Reason: fmt.Sprintf("parent %d is a leaf", p)}
		}
		children[p]++
	}
	for i := leaves; i < size; i++ {
		if children[i] != 2 {
			return MalformedTreeError{Node: i, Reason: fmt.Sprintf("internal node has %d children", children[i])}
		}
	}
	return nil
}

// Cut splits tree into exactly n clusters. A node starts its own cluster when
// its parent is one of the n-1 most recent merges (parent index greater than
// len(tree)-n); otherwise it inherits the cluster of its parent. Nodes are
// visited from the root downwards so a parent is always resolved first.
func Cut(tree domain.MergeTree, n int) (domain.ClusterCut, error) {
	if err := Validate(tree); err != nil {
		return domain.ClusterCut{}, err
	}
	leaves := tree.Leaves()
	if n < 1 || n > leaves {
		return domain.ClusterCut{}, fmt.Errorf("%w: n=%d, leaves=%d", ErrClusterCount, n, leaves)
	}

	maxRoot := len(tree) - n
	root := len(tree) - 1
	assigned := make([]int, len(tree))
	assigned[root] = root
	for i := root - 1; i >= 0; i-- {
		parent := tree[i]
		if parent > maxRoot {
			assigned[i] = i
		} else {
			assigned[i] = assigned[parent]
		}
	}

	cut := domain.ClusterCut{
		ByPoint: make([]domain.ClusterID, leaves),
		ByGroup: make(map[domain.ClusterID][]int, n),
	}
	for leaf := 0; leaf < leaves; leaf++ {
		id := domain.ClusterID(assigned[leaf])
		cut.ByPoint[leaf] = id
		cut.ByGroup[id] = append(cut.ByGroup[id], leaf)
	}
	return cut, nil
}

// FromChildren converts an agglomerative merge list, where merge k joins
// children[k][0] and children[k][1] into node leaves+k, into a parent-pointer
// tree whose root points to itself.
func FromChildren(children [][2]int) (domain.MergeTree, error) {
	leaves := len(children) + 1
	size := 2*leaves - 1
	tree := make(domain.MergeTree, size)
	for i := range tree {
		tree[i] = i
	}
	for k, pair := range children {
		node := leaves + k
		for _, child := range pair {
			if child < 0 || child >= node {
				return nil, MalformedTreeError{Node: node, Reason: fmt.Sprintf("child %d does not precede merge", child)}
			}
			tree[child] = node
		}
	}
	if err := Validate(tree); err != nil {
		return nil, err
	}
	return tree, nil
}
