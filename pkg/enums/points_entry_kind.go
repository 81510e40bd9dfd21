package enums

import "fmt"

// PointsEntryKind maps to the points_entry_kind_enum enum in Postgres.
type PointsEntryKind string

const (
	PointsEntryKindEarned   PointsEntryKind = "earned"
	PointsEntryKindRedeemed PointsEntryKind = "redeemed"
)

var validPointsEntryKinds = []PointsEntryKind{
	PointsEntryKindEarned,
	PointsEntryKindRedeemed,
}

// IsValid reports whether the value matches the canonical entry kind enum.
func (k PointsEntryKind) IsValid() bool {
	for _, candidate := range validPointsEntryKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParsePointsEntryKind converts raw input into PointsEntryKind.
func ParsePointsEntryKind(value string) (PointsEntryKind, error) {
	for _, candidate := range validPointsEntryKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid points entry kind %q", value)
}
