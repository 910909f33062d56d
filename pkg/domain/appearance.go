package domain

// AppearanceStatus records whether a cluster attribute was set automatically
// or by an explicit user edit.
type AppearanceStatus string

const (
	// StatusDefault entries are refreshed by automatic assignment.
	StatusDefault AppearanceStatus = "default"
	// StatusCustom entries are never overwritten automatically.
	StatusCustom AppearanceStatus = "custom"
)

// AppearanceEntry is one cluster's color or display name.
type AppearanceEntry struct {
	Value  string           `json:"value"`
	Status AppearanceStatus `json:"status"`
}
