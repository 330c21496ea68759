// Package replication carries every record-store mutation to the document
// replica: the wire message describing one mutation, the publisher that
// enqueues it after commit, and the consumer loops that apply it.
package replication

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lumenmedia/dvdstore/internal/catalog"
)

// Queue names for the two entity kinds. All mutations of one entity go to
// its kind's queue; per-entity ordering depends on it.
const (
	QueueDVDs      = "dvds-queue"
	QueueDirectors = "directors-queue"
)

// Action discriminates what a replication message does to the replica.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var (
	// ErrInvalidMessage indicates a message that cannot be applied.
	ErrInvalidMessage = errors.New("replication: invalid message")
)

// DirectorRef is the denormalized director reference embedded in a dvd
// snapshot. The replica's copy refreshes only when the dvd itself mutates.
type DirectorRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

// DVDSnapshot is the full dvd state carried by insert and update messages.
type DVDSnapshot struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Genre       string      `json:"genre"`
	Director    DirectorRef `json:"director"`
	ReleaseDate time.Time   `json:"releaseDate"`
	Copies      int         `json:"copies"`
	Available   bool        `json:"available"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// DirectorSnapshot is the full director state carried by insert and update
// messages.
type DirectorSnapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is the durable queue payload describing one mutation. Insert and
// update carry a full snapshot; delete carries the identifier only. EventID
// is a per-publish trace identifier, never used for dispatch.
type Message struct {
	Action   Action            `json:"action"`
	EventID  string            `json:"event_id,omitempty"`
	DVD      *DVDSnapshot      `json:"dvd,omitempty"`
	Director *DirectorSnapshot `json:"director,omitempty"`
	ID       string            `json:"id,omitempty"`
}

// Validate checks the action/payload pairing.
func (m Message) Validate() error {
	switch m.Action {
	case ActionInsert, ActionUpdate:
		if (m.DVD == nil) == (m.Director == nil) {
			return fmt.Errorf("%w: %s requires exactly one snapshot", ErrInvalidMessage, m.Action)
		}
		if m.EntityID() == "" {
			return fmt.Errorf("%w: snapshot without id", ErrInvalidMessage)
		}
	case ActionDelete:
		if m.ID == "" {
			return fmt.Errorf("%w: delete requires an id", ErrInvalidMessage)
		}
		if m.DVD != nil || m.Director != nil {
			return fmt.Errorf("%w: delete carries an id only", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidMessage, m.Action)
	}
	return nil
}

// EntityID returns the identifier of the entity the message addresses.
func (m Message) EntityID() string {
	switch {
	case m.DVD != nil:
		return m.DVD.ID
	case m.Director != nil:
		return m.Director.ID
	default:
		return m.ID
	}
}

// Encode serializes a validated message for the wire.
func (m Message) Encode() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// DecodeMessage parses and validates a wire payload.
func DecodeMessage(body []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// SnapshotDVD builds the wire snapshot from a committed read view.
func SnapshotDVD(view catalog.DVDView) DVDSnapshot {
	return DVDSnapshot{
		ID:    view.ID,
		Title: view.Title,
		Genre: view.Genre,
		Director: DirectorRef{
			ID:      view.DirectorID,
			Name:    view.DirectorName,
			Surname: view.DirectorSurname,
		},
		ReleaseDate: view.ReleaseDate,
		Copies:      view.Copies,
		Available:   view.Available,
		CreatedAt:   view.CreatedAt,
		UpdatedAt:   view.UpdatedAt,
	}
}

// SnapshotDirector builds the wire snapshot from a committed row.
func SnapshotDirector(row catalog.Director) DirectorSnapshot {
	return DirectorSnapshot{
		ID:        row.StringID(),
		Name:      row.Name,
		Surname:   row.Surname,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
