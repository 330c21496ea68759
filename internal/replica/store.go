// Package replica holds the eventually consistent document copy of the
// record store. It is written only by the replication consumers and is never
// the source of truth.
package replica

import (
	"context"
	"time"
)

// DirectorRef is the denormalized director copy embedded in a dvd document.
type DirectorRef struct {
	ID      string `bson:"id" json:"id"`
	Name    string `bson:"name" json:"name"`
	Surname string `bson:"surname" json:"surname"`
}

// DVDDocument is the replica document for a dvd. DeletedAt marks soft
// deletion; the document is retained.
type DVDDocument struct {
	ID          string      `bson:"_id" json:"id"`
	Title       string      `bson:"title" json:"title"`
	Genre       string      `bson:"genre" json:"genre"`
	Director    DirectorRef `bson:"director" json:"director"`
	ReleaseDate time.Time   `bson:"releaseDate" json:"releaseDate"`
	Copies      int         `bson:"copies" json:"copies"`
	Available   bool        `bson:"available" json:"available"`
	CreatedAt   time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time   `bson:"updatedAt" json:"updatedAt"`
	DeletedAt   *time.Time  `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
}

// DirectorDocument is the replica document for a director.
type DirectorDocument struct {
	ID        string     `bson:"_id" json:"id"`
	Name      string     `bson:"name" json:"name"`
	Surname   string     `bson:"surname" json:"surname"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt" json:"updatedAt"`
	DeletedAt *time.Time `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
}

// DVDFields is the typed partial update applied by replication update
// messages. Nil fields are left untouched.
type DVDFields struct {
	Title       *string
	Genre       *string
	Director    *DirectorRef
	ReleaseDate *time.Time
	Copies      *int
	Available   *bool
	UpdatedAt   *time.Time
}

// DirectorFields is the typed partial update for a director document.
type DirectorFields struct {
	Name      *string
	Surname   *string
	UpdatedAt *time.Time
}

// Store is the replica write surface used by the replication consumers plus
// the read hooks the tests verify convergence through.
//
// Upsert is idempotent: re-applying an insert replaces the document with the
// same snapshot. Merge reports whether a document matched; an absent target
// is not an error. MarkDeleted sets the deletion timestamp once and is a
// no-op on re-application.
type Store interface {
	UpsertDVD(ctx context.Context, doc DVDDocument) error
	MergeDVD(ctx context.Context, id string, fields DVDFields) (bool, error)
	MarkDVDDeleted(ctx context.Context, id string, at time.Time) error
	GetDVD(ctx context.Context, id string) (DVDDocument, bool, error)

	UpsertDirector(ctx context.Context, doc DirectorDocument) error
	MergeDirector(ctx context.Context, id string, fields DirectorFields) (bool, error)
	MarkDirectorDeleted(ctx context.Context, id string, at time.Time) error
	GetDirector(ctx context.Context, id string) (DirectorDocument, bool, error)
}
