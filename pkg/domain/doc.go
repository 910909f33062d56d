// Package domain defines the value types shared by the analysis engine:
// observations, merge trees and their cuts, per-cluster regressions,
// treatment/outcome pair keys, cluster appearance entries and the exported
// analysis document.
package domain
