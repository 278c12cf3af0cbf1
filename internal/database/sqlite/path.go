package sqlite

import (
	"path/filepath"
	"strings"
)

const memoryPath = ":memory:"

// location is a parsed sqlite connection string.
type location struct {
	path   string // filesystem path, or ":memory:"
	params string // raw query string passed through to the driver
}

func (l location) inMemory() bool { return l.path == memoryPath }

// dsn renders the driver data source name.
func (l location) dsn() string {
	if l.params == "" {
		return l.path
	}
	return l.path + "?" + l.params
}

// parseLocation extracts the file path from a sqlite URL.
//
//	sqlite:///northwind.db      → northwind.db
//	sqlite:////var/data/x.db    → /var/data/x.db
//	sqlite:///:memory:          → :memory:
//
// Relative paths are joined onto dataDir when it is set.
func parseLocation(connString, dataDir string) location {
	s := strings.TrimSpace(connString)

	var params string
	if q := strings.IndexByte(s, '?'); q >= 0 {
		s, params = s[:q], s[q+1:]
	}

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	} else if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimPrefix(s, "/")

	loc := location{path: s, params: params}
	if s == "" || loc.inMemory() {
		return loc
	}
	if dataDir != "" && !filepath.IsAbs(s) {
		loc.path = filepath.Join(dataDir, s)
	}
	return loc
}
