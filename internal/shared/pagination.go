package shared

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string

	// Entity specific filters
	Module        string
	ExcludeModule string
	GroupID       *int64
	IsCore        *bool
}

// Offset computes the row offset for the current page.
func (f ListFilters) Offset() int {
	if f.Page <= 1 || f.Limit <= 0 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}
