package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the targeted row does not exist in the record store.
	ErrNotFound = errors.New("catalog: not found")
	// ErrInvalidID indicates an identifier that cannot address any row.
	ErrInvalidID = errors.New("catalog: invalid id")
)

// Director is the record-store row for a director. Deletion is hard: the row
// is removed, soft-delete markers live only in the replica.
type Director struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;size:190;not null"`
	Surname   string    `gorm:"column:surname;size:190;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Director) TableName() string {
	return "directors"
}

// StringID returns the store-assigned identifier as exposed on the wire.
func (d Director) StringID() string {
	return strconv.FormatUint(uint64(d.ID), 10)
}

// DVD is the record-store row for a dvd. The director reference must resolve
// to an existing directors row at creation time; the schema enforces it.
type DVD struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Title       string    `gorm:"column:title;size:190;not null"`
	Genre       string    `gorm:"column:genre;size:190;not null"`
	DirectorID  uint      `gorm:"column:director_id;not null;index"`
	Director    Director  `gorm:"foreignKey:DirectorID;references:ID"`
	ReleaseDate time.Time `gorm:"column:release_date;not null"`
	Copies      int       `gorm:"column:copies;not null"`
	Available   bool      `gorm:"column:available;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (DVD) TableName() string {
	return "dvds"
}

// StringID returns the store-assigned identifier as exposed on the wire.
func (d DVD) StringID() string {
	return strconv.FormatUint(uint64(d.ID), 10)
}

// DVDView is the read view for a dvd with the director's name joined in.
type DVDView struct {
	ID              string
	Title           string
	Genre           string
	DirectorID      string
	DirectorName    string
	DirectorSurname string
	ReleaseDate     time.Time
	Copies          int
	Available       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DirectorDisplay renders the joined director name the way list views show it.
func (v DVDView) DirectorDisplay() string {
	return fmt.Sprintf("%s %s", v.DirectorName, v.DirectorSurname)
}

// DirectorInput carries the caller-supplied fields for a director mutation.
type DirectorInput struct {
	Name    string
	Surname string
}

// DVDInput carries the caller-supplied fields for a dvd mutation.
type DVDInput struct {
	Title       string
	Genre       string
	DirectorID  string
	ReleaseDate time.Time
	Copies      int
}

// parseID converts a wire identifier into a row id. Anything that cannot be a
// store-assigned id addresses no row.
func parseID(raw string) (uint, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidID)
	}
	value, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return uint(value), nil
}
