package server

import (
	"context"
	"net/http"
	"testing"
	"time"
)

// The full propagation path: HTTP mutation, record-store commit, queued
// replication message, consumer apply, replica document. The replica is
// polled because application is asynchronous.
func TestMutationsPropagateToReplica(t *testing.T) {
	env := newTestEnv(t)
	env.startConsumers(t)
	ctx := context.Background()

	env.request(t, http.MethodPost, "/directors", ridleyScottBody)
	waitFor(t, 2*time.Second, func() bool {
		doc, ok, err := env.store.GetDirector(ctx, "1")
		return err == nil && ok && doc.Name == "Ridley" && doc.Surname == "Scott"
	})

	env.request(t, http.MethodPost, "/dvds", alienBody)
	waitFor(t, 2*time.Second, func() bool {
		doc, ok, err := env.store.GetDVD(ctx, "1")
		return err == nil && ok &&
			doc.Title == "Alien" &&
			doc.Director.Name == "Ridley" &&
			doc.Director.Surname == "Scott" &&
			doc.Available
	})

	env.request(t, http.MethodPut, "/dvds/1", aliensBody)
	waitFor(t, 2*time.Second, func() bool {
		doc, ok, err := env.store.GetDVD(ctx, "1")
		return err == nil && ok && doc.Title == "Aliens" && doc.Copies == 5
	})

	env.request(t, http.MethodDelete, "/dvds/1", "")
	waitFor(t, 2*time.Second, func() bool {
		doc, ok, err := env.store.GetDVD(ctx, "1")
		return err == nil && ok && doc.DeletedAt != nil
	})

	// A soft-deleted document keeps its last replicated state.
	doc, ok, err := env.store.GetDVD(ctx, "1")
	if err != nil || !ok {
		t.Fatalf("expected soft-deleted document to remain, ok=%v err=%v", ok, err)
	}
	if doc.Title != "Aliens" {
		t.Fatalf("expected deletion to preserve fields, got title %q", doc.Title)
	}
	if !doc.DeletedAt.Equal(serverClock().UTC()) {
		t.Fatalf("unexpected deletion timestamp %v", doc.DeletedAt)
	}

	if depth := env.queueDepths(); depth != 0 {
		t.Fatalf("expected both queues drained, depth %d", depth)
	}

	response := env.request(t, http.MethodGet, "/dvds/1", "")
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 from the record store after delete, got %d", response.Code)
	}
}

func TestDirectorDeletePropagatesSoftDelete(t *testing.T) {
	env := newTestEnv(t)
	env.startConsumers(t)
	ctx := context.Background()

	env.request(t, http.MethodPost, "/directors", ridleyScottBody)
	env.request(t, http.MethodDelete, "/directors/1", "")

	waitFor(t, 2*time.Second, func() bool {
		doc, ok, err := env.store.GetDirector(ctx, "1")
		return err == nil && ok && doc.DeletedAt != nil && doc.Name == "Ridley"
	})
}
