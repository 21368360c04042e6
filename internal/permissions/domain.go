package permissions

import (
	"strings"
	"time"
	"unicode"
)

const (
	// DefaultGuard is the namespace stamped on permissions created without one.
	DefaultGuard = "staff"
	// ModuleAdmins is the reserved module hidden from callers without ManageName.
	ModuleAdmins = "admins"
	// ManageName is the elevated capability that unlocks the reserved module.
	ManageName = "permissions.manage"
)

// Permission represents an atomic capability identified by a dot-slug name.
type Permission struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	Module      string
	GroupID     *int64
	Guard       string
	IsCore      bool
	Order       int
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Group bundles permissions for presentation. It has no effect on
// authorization decisions.
type Group struct {
	ID        int64
	Slug      string
	Name      string
	Icon      string
	Color     string
	IsActive  bool
	Order     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Normalize lowers a permission name and joins its words with dots.
// Runs of non-alphanumeric characters collapse into a single separator,
// so the transform is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(name string) string {
	return slugify(name, '.')
}

// SlugifyGroup derives the unique slug for a permission group name.
func SlugifyGroup(name string) string {
	return slugify(name, '-')
}

func slugify(name string, sep rune) string {
	var b strings.Builder
	b.Grow(len(name))
	pending := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pending && b.Len() > 0 {
				b.WriteRune(sep)
			}
			pending = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pending = true
		}
	}
	return b.String()
}
