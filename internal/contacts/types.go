package contacts

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidBirthday = errors.New("invalid birthday")
	ErrInvalidInput    = errors.New("invalid input")
)

// User is a chat-platform account that owns contacts.
type User struct {
	ID         int64
	Username   string
	FirstName  string
	CreatedAt  time.Time
	LastActive time.Time
}

// Contact is a person the user keeps notes about.
type Contact struct {
	ID        int64
	UserID    int64
	Name      string
	Context   string
	Birthday  string // YYYY-MM-DD, empty when unknown
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasBirthday reports whether a birthday is recorded.
func (c Contact) HasBirthday() bool {
	return c.Birthday != ""
}

// Upcoming pairs a contact with the number of days until its next birthday.
type Upcoming struct {
	Contact   Contact
	DaysUntil int
}

// Stats summarises a user's contact book.
type Stats struct {
	Total         int
	WithBirthdays int
}
