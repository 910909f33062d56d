// Package stats computes per-cluster regressions of outcome on treatment, the
// two-sample significance heuristic attached to each cluster, and the
// size-weighted average treatment effect across a set of clusters.
//
// Degenerate clusters (fewer than two included points or a constant
// treatment/outcome column) produce NaN in every numeric field. Callers treat
// NaN as "invalid by default" and must drop such clusters before aggregation.
package stats
