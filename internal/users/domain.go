package users

import "time"

// Staff represents a staff account that can hold roles and direct
// permission grants.
type Staff struct {
	ID        int64
	Email     string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
