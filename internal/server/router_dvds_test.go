package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/lumenmedia/dvdstore/internal/cache"
	"github.com/lumenmedia/dvdstore/internal/queue"
	"github.com/lumenmedia/dvdstore/internal/replication"
)

const (
	ridleyScottBody = `{"name":"Ridley","surname":"Scott"}`
	alienBody       = `{"title":"Alien","genre":"Horror","directorId":"1","releaseDate":"1979-05-25","copies":3}`
	aliensBody      = `{"title":"Aliens","genre":"Horror","directorId":"1","releaseDate":"1986-07-18","copies":5}`
)

func decodeDVD(t *testing.T, body []byte) dvdViewPayload {
	t.Helper()
	var payload dvdViewPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("failed to decode dvd payload: %v", err)
	}
	return payload
}

func TestCreateDVDRejectsInvalidPayloads(t *testing.T) {
	env := newTestEnv(t)

	invalidBodies := map[string]string{
		"malformed json": `{"title":`,
		"missing title":  `{"genre":"Horror","directorId":"1","releaseDate":"1979-05-25","copies":3}`,
		"blank genre":    `{"title":"Alien","genre":"  ","directorId":"1","releaseDate":"1979-05-25","copies":3}`,
		"null copies":    `{"title":"Alien","genre":"Horror","directorId":"1","releaseDate":"1979-05-25","copies":null}`,
		"bad date":       `{"title":"Alien","genre":"Horror","directorId":"1","releaseDate":"someday","copies":3}`,
	}
	for name, body := range invalidBodies {
		response := env.request(t, http.MethodPost, "/dvds", body)
		if response.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", name, response.Code)
		}
	}

	if depth := env.queueDepths(); depth != 0 {
		t.Fatalf("rejected requests must not publish, queue depth %d", depth)
	}
}

func TestCreateDVDWithUnknownDirectorFails(t *testing.T) {
	env := newTestEnv(t)

	response := env.request(t, http.MethodPost, "/dvds", alienBody)
	if response.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 for unknown director, got %d", response.Code)
	}
	if depth := env.queueDepths(); depth != 0 {
		t.Fatalf("failed create must not publish, queue depth %d", depth)
	}
}

func TestDVDLifecycle(t *testing.T) {
	env := newTestEnv(t)

	created := env.request(t, http.MethodPost, "/directors", ridleyScottBody)
	if created.Code != http.StatusCreated {
		t.Fatalf("expected director status 201, got %d: %s", created.Code, created.Body.String())
	}

	response := env.request(t, http.MethodPost, "/dvds", alienBody)
	if response.Code != http.StatusCreated {
		t.Fatalf("expected dvd status 201, got %d: %s", response.Code, response.Body.String())
	}
	dvd := decodeDVD(t, response.Body.Bytes())
	if dvd.ID != "1" {
		t.Fatalf("expected store-assigned id 1, got %q", dvd.ID)
	}
	if !dvd.Available {
		t.Fatalf("expected new dvd to be available")
	}
	if dvd.Director != "Ridley Scott" {
		t.Fatalf("expected joined director name, got %q", dvd.Director)
	}

	response = env.request(t, http.MethodGet, "/dvds/1", "")
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", response.Code)
	}
	fetched := decodeDVD(t, response.Body.Bytes())
	if fetched.Title != "Alien" || fetched.Director != "Ridley Scott" {
		t.Fatalf("unexpected read-back payload: %+v", fetched)
	}

	response = env.request(t, http.MethodPut, "/dvds/1", aliensBody)
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", response.Code, response.Body.String())
	}
	updated := decodeDVD(t, response.Body.Bytes())
	if updated.Title != "Aliens" || updated.Copies != 5 {
		t.Fatalf("unexpected update payload: %+v", updated)
	}

	response = env.request(t, http.MethodDelete, "/dvds/1", "")
	if response.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", response.Code)
	}

	response = env.request(t, http.MethodGet, "/dvds/1", "")
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", response.Code)
	}
}

func TestUpdateMissingDVDHasNoSideEffects(t *testing.T) {
	env := newTestEnv(t)
	env.request(t, http.MethodPost, "/directors", ridleyScottBody)
	depthBefore := env.queueDepths()

	response := env.request(t, http.MethodPut, "/dvds/99", alienBody)
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", response.Code)
	}
	if depth := env.queueDepths(); depth != depthBefore {
		t.Fatalf("missing-id update must not publish, queue depth went %d to %d", depthBefore, depth)
	}
	if writes := env.cache.writes(cache.DVDKey("99")) + env.cache.writes(cache.KeyDVDs); writes != 0 {
		t.Fatalf("missing-id update must not touch cache keys, saw %d writes", writes)
	}
}

func TestDeleteMissingDVDHasNoSideEffects(t *testing.T) {
	env := newTestEnv(t)

	response := env.request(t, http.MethodDelete, "/dvds/99", "")
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", response.Code)
	}
	if depth := env.queueDepths(); depth != 0 {
		t.Fatalf("missing-id delete must not publish, queue depth %d", depth)
	}
	if writes := env.cache.writes(cache.DVDKey("99")) + env.cache.writes(cache.KeyDVDs); writes != 0 {
		t.Fatalf("missing-id delete must not touch cache keys, saw %d writes", writes)
	}
}

// Updating a dvd repopulates its singleton cache entry and drops the
// collection entry. The record store is tampered with directly afterwards so
// a cache hit and a store read are distinguishable.
func TestUpdateDVDRefreshesCaches(t *testing.T) {
	env := newTestEnv(t)
	env.request(t, http.MethodPost, "/directors", ridleyScottBody)
	env.request(t, http.MethodPost, "/dvds", alienBody)

	env.request(t, http.MethodGet, "/dvds", "")
	env.request(t, http.MethodGet, "/dvds/1", "")

	response := env.request(t, http.MethodPut, "/dvds/1", aliensBody)
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", response.Code)
	}

	if err := env.db.Exec("UPDATE dvds SET title = ? WHERE id = ?", "Tampered", 1).Error; err != nil {
		t.Fatalf("failed to tamper with record store: %v", err)
	}

	response = env.request(t, http.MethodGet, "/dvds/1", "")
	singleton := decodeDVD(t, response.Body.Bytes())
	if singleton.Title != "Aliens" {
		t.Fatalf("expected repopulated cache entry to serve the read, got title %q", singleton.Title)
	}

	response = env.request(t, http.MethodGet, "/dvds", "")
	var listed []dvdViewPayload
	if err := json.Unmarshal(response.Body.Bytes(), &listed); err != nil {
		t.Fatalf("failed to decode list payload: %v", err)
	}
	if len(listed) != 1 || listed[0].Title != "Tampered" {
		t.Fatalf("expected invalidated collection to be rebuilt from the store, got %+v", listed)
	}
}

// Identifiers with leading zeros address the same row but cache under their
// own spelling. An update through such a spelling must overwrite the entry a
// prior read stored, so the next read sees the new fields.
func TestUpdateDVDRefreshesCacheUnderAliasID(t *testing.T) {
	env := newTestEnv(t)
	env.request(t, http.MethodPost, "/directors", ridleyScottBody)
	env.request(t, http.MethodPost, "/dvds", alienBody)

	response := env.request(t, http.MethodGet, "/dvds/01", "")
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", response.Code)
	}

	response = env.request(t, http.MethodPut, "/dvds/01", aliensBody)
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", response.Code)
	}

	response = env.request(t, http.MethodGet, "/dvds/01", "")
	updated := decodeDVD(t, response.Body.Bytes())
	if updated.Title != "Aliens" {
		t.Fatalf("read after update must return the updated fields, got title %q", updated.Title)
	}
}

// A publish failure after a committed mutation must not fail the request.
func TestMutationsSucceedWhenBrokerIsDown(t *testing.T) {
	env := newTestEnvWithBroker(t, queue.NewMemoryBroker())

	response := env.request(t, http.MethodPost, "/directors", ridleyScottBody)
	if response.Code != http.StatusCreated {
		t.Fatalf("expected status 201 despite publish failure, got %d", response.Code)
	}

	response = env.request(t, http.MethodPost, "/dvds", alienBody)
	if response.Code != http.StatusCreated {
		t.Fatalf("expected status 201 despite publish failure, got %d", response.Code)
	}

	response = env.request(t, http.MethodPut, "/dvds/1", aliensBody)
	if response.Code != http.StatusOK {
		t.Fatalf("expected status 200 despite publish failure, got %d", response.Code)
	}

	response = env.request(t, http.MethodDelete, "/dvds/1", "")
	if response.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 despite publish failure, got %d", response.Code)
	}

	response = env.request(t, http.MethodGet, "/dvds/1", "")
	if response.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", response.Code)
	}
}

func TestListDVDsServedFromCollectionCache(t *testing.T) {
	env := newTestEnv(t)
	env.request(t, http.MethodPost, "/directors", ridleyScottBody)
	env.request(t, http.MethodPost, "/dvds", alienBody)

	first := env.request(t, http.MethodGet, "/dvds", "")
	if first.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", first.Code)
	}

	if err := env.db.Exec("UPDATE dvds SET title = ? WHERE id = ?", "Tampered", 1).Error; err != nil {
		t.Fatalf("failed to tamper with record store: %v", err)
	}

	second := env.request(t, http.MethodGet, "/dvds", "")
	if second.Body.String() != first.Body.String() {
		t.Fatalf("expected cached collection body to be served verbatim")
	}
}

func TestCreateDVDPublishesInsertMessage(t *testing.T) {
	env := newTestEnv(t)
	env.request(t, http.MethodPost, "/directors", ridleyScottBody)
	env.request(t, http.MethodPost, "/dvds", alienBody)

	if depth := env.broker.Depth(replication.QueueDVDs); depth != 1 {
		t.Fatalf("expected one queued dvd message, got %d", depth)
	}
	if depth := env.broker.Depth(replication.QueueDirectors); depth != 1 {
		t.Fatalf("expected one queued director message, got %d", depth)
	}
}
