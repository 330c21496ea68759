package replication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumenmedia/dvdstore/internal/replica"
)

var errMissingStore = errors.New("replica store is required")

// DVDApplier applies dvd replication messages to the replica. Dispatch is
// idempotent per action: duplicate inserts become upserts, updates for
// absent documents are dropped, repeated deletes are no-ops.
type DVDApplier struct {
	store  replica.Store
	clock  func() time.Time
	logger *zap.Logger
}

// NewDVDApplier validates the dependencies and returns an applier.
func NewDVDApplier(store replica.Store, clock func() time.Time, logger *zap.Logger) (*DVDApplier, error) {
	if store == nil {
		return nil, errMissingStore
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DVDApplier{store: store, clock: clock, logger: logger}, nil
}

// Apply dispatches one validated message against the replica. A nil return
// lets the consumer acknowledge; any error triggers requeue.
func (a *DVDApplier) Apply(ctx context.Context, msg Message) error {
	switch msg.Action {
	case ActionInsert:
		if msg.DVD == nil {
			return fmt.Errorf("%w: dvd snapshot missing", ErrInvalidMessage)
		}
		return a.store.UpsertDVD(ctx, dvdDocument(*msg.DVD))
	case ActionUpdate:
		if msg.DVD == nil {
			return fmt.Errorf("%w: dvd snapshot missing", ErrInvalidMessage)
		}
		matched, err := a.store.MergeDVD(ctx, msg.DVD.ID, dvdFields(*msg.DVD))
		if err != nil {
			return err
		}
		if !matched {
			// The insert for this id has not arrived; the update is
			// dropped rather than materializing a partial document.
			a.logger.Warn("dvd update for absent replica document dropped",
				zap.String("dvd_id", msg.DVD.ID),
				zap.String("event_id", msg.EventID))
		}
		return nil
	case ActionDelete:
		return a.store.MarkDVDDeleted(ctx, msg.ID, a.clock().UTC())
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidMessage, msg.Action)
	}
}

// DirectorApplier applies director replication messages to the replica.
type DirectorApplier struct {
	store  replica.Store
	clock  func() time.Time
	logger *zap.Logger
}

// NewDirectorApplier validates the dependencies and returns an applier.
func NewDirectorApplier(store replica.Store, clock func() time.Time, logger *zap.Logger) (*DirectorApplier, error) {
	if store == nil {
		return nil, errMissingStore
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectorApplier{store: store, clock: clock, logger: logger}, nil
}

// Apply dispatches one validated message against the replica.
func (a *DirectorApplier) Apply(ctx context.Context, msg Message) error {
	switch msg.Action {
	case ActionInsert:
		if msg.Director == nil {
			return fmt.Errorf("%w: director snapshot missing", ErrInvalidMessage)
		}
		return a.store.UpsertDirector(ctx, directorDocument(*msg.Director))
	case ActionUpdate:
		if msg.Director == nil {
			return fmt.Errorf("%w: director snapshot missing", ErrInvalidMessage)
		}
		matched, err := a.store.MergeDirector(ctx, msg.Director.ID, directorFields(*msg.Director))
		if err != nil {
			return err
		}
		if !matched {
			a.logger.Warn("director update for absent replica document dropped",
				zap.String("director_id", msg.Director.ID),
				zap.String("event_id", msg.EventID))
		}
		return nil
	case ActionDelete:
		return a.store.MarkDirectorDeleted(ctx, msg.ID, a.clock().UTC())
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidMessage, msg.Action)
	}
}

func dvdDocument(snap DVDSnapshot) replica.DVDDocument {
	return replica.DVDDocument{
		ID:    snap.ID,
		Title: snap.Title,
		Genre: snap.Genre,
		Director: replica.DirectorRef{
			ID:      snap.Director.ID,
			Name:    snap.Director.Name,
			Surname: snap.Director.Surname,
		},
		ReleaseDate: snap.ReleaseDate,
		Copies:      snap.Copies,
		Available:   snap.Available,
		CreatedAt:   snap.CreatedAt,
		UpdatedAt:   snap.UpdatedAt,
	}
}

// dvdFields maps an update snapshot onto the typed partial update. CreatedAt
// is immutable after insert and never merged.
func dvdFields(snap DVDSnapshot) replica.DVDFields {
	director := replica.DirectorRef{
		ID:      snap.Director.ID,
		Name:    snap.Director.Name,
		Surname: snap.Director.Surname,
	}
	return replica.DVDFields{
		Title:       &snap.Title,
		Genre:       &snap.Genre,
		Director:    &director,
		ReleaseDate: &snap.ReleaseDate,
		Copies:      &snap.Copies,
		Available:   &snap.Available,
		UpdatedAt:   &snap.UpdatedAt,
	}
}

func directorDocument(snap DirectorSnapshot) replica.DirectorDocument {
	return replica.DirectorDocument{
		ID:        snap.ID,
		Name:      snap.Name,
		Surname:   snap.Surname,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
	}
}

func directorFields(snap DirectorSnapshot) replica.DirectorFields {
	return replica.DirectorFields{
		Name:      &snap.Name,
		Surname:   &snap.Surname,
		UpdatedAt: &snap.UpdatedAt,
	}
}
