package models

// Classification tags an article by comparing its fresh fingerprint against the previous run.
type Classification string

const (
	// Added means the slug was not known to the previous run.
	Added Classification = "added"
	// Updated means the slug was known but its fingerprint changed.
	Updated Classification = "updated"
	// Unchanged means the slug was known with an identical fingerprint.
	Unchanged Classification = "unchanged"
)

// Changed reports whether the article must be written and uploaded.
func (c Classification) Changed() bool {
	return c == Added || c == Updated
}
