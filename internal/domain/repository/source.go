package repository

// SourceKind names a price source backend.
type SourceKind string

const (
	SourceCSV        SourceKind = "csv"
	SourceClickHouse SourceKind = "clickhouse"
	SourceHTTP       SourceKind = "http"
)

// IsValidSource returns true if k is a supported price source.
func IsValidSource(k SourceKind) bool {
	switch k {
	case SourceCSV, SourceClickHouse, SourceHTTP:
		return true
	default:
		return false
	}
}

// DefaultSource returns the default price source.
func DefaultSource() SourceKind { return SourceCSV }

// NormalizeSource converts raw string to a valid source (or default).
func NormalizeSource(s string) SourceKind {
	if s == "" {
		return DefaultSource()
	}
	k := SourceKind(s)
	if IsValidSource(k) {
		return k
	}
	return DefaultSource()
}
