package catalog

import "strings"

// Quality selects which encoded stream to request from the content service.
type Quality string

const (
	QualityHigh   Quality = "High"
	QualityNormal Quality = "Normal"
)

// ParseQuality maps a configured quality label onto a service tier. Unknown
// labels fall back to the high tier; the second return reports whether the
// label was recognized so callers can log the fallback.
func ParseQuality(label string) (Quality, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "extreme", "high":
		return QualityHigh, true
	case "normal", "standard":
		return QualityNormal, true
	default:
		return QualityHigh, false
	}
}

func (q Quality) String() string {
	return string(q)
}
