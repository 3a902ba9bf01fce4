package valueobjects

// UsageKind names the per-account counter an operation increments.
type UsageKind string

const (
	UsageImage   UsageKind = "image"
	UsageExport  UsageKind = "export"
	UsageProject UsageKind = "project"
)

// Metered reports whether the kind draws from the free quota.
func (k UsageKind) Metered() bool {
	return k == UsageImage || k == UsageExport
}

// Valid reports whether k is a known kind.
func (k UsageKind) Valid() bool {
	switch k {
	case UsageImage, UsageExport, UsageProject:
		return true
	}
	return false
}

// FreeUseLimit is the number of metered operations a free account gets.
const FreeUseLimit = 10
