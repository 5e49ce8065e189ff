package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/petmind/internal/config"
	"github.com/talgya/petmind/internal/llm"
	"github.com/talgya/petmind/internal/pet"
	"github.com/talgya/petmind/internal/pipeline"
	"github.com/talgya/petmind/internal/traits"
)

type fakeRepo struct {
	mu        sync.Mutex
	pets      map[string]*pet.State
	traits    []pet.Trait
	behaviors []pet.BehaviorRecord
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{pets: make(map[string]*pet.State)}
}

func (r *fakeRepo) GetPet(id string) (*pet.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.pets[id]; ok {
		cp := *st
		return &cp, nil
	}
	return pet.NewState(id), nil
}

func (r *fakeRepo) SavePet(st *pet.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *st
	r.pets[st.ID] = &cp
	return nil
}

func (r *fakeRepo) AppendTrait(t pet.Trait) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traits = append(r.traits, t)
	return nil
}

func (r *fakeRepo) AppendBehavior(b pet.BehaviorRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.behaviors = append(r.behaviors, b)
	return nil
}

func (r *fakeRepo) PetHistory(petID string, limit int) ([]pet.BehaviorRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []pet.BehaviorRecord
	for i := len(r.behaviors) - 1; i >= 0 && len(out) < limit; i-- {
		if r.behaviors[i].PetID == petID {
			out = append(out, r.behaviors[i])
		}
	}
	return out, nil
}

// newTestServer wires the full stack with no generation backend, so every
// stage runs on fallback payloads.
func newTestServer(t *testing.T, adminKey string) (*httptest.Server, *fakeRepo) {
	t.Helper()
	cfg := config.Default()
	repo := newFakeRepo()
	gw := llm.NewGateway(nil, cfg.Generator)
	pipe := pipeline.New(gw, cfg)

	srv := &Server{
		Orch:     pipeline.NewOrchestrator(repo, pipe, cfg),
		Engine:   traits.NewEngine(gw, cfg),
		Repo:     repo,
		AdminKey: adminKey,
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, repo
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetPetDefaultConstructed(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/api/v1/pets/fluff")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var st pet.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "fluff", st.ID)
	assert.Equal(t, 50, st.Stats.Happiness)
}

func TestReact(t *testing.T) {
	ts, repo := newTestServer(t, "")

	body := `{"situation": "a stranger approaches", "player_choice": "watch quietly"}`
	resp, err := http.Post(ts.URL+"/api/v1/pets/fluff/react", "application/json",
		bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var reaction pipeline.Reaction
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reaction))
	assert.True(t, reaction.Success)
	assert.NotEmpty(t, reaction.Reaction)

	st, err := repo.GetPet("fluff")
	require.NoError(t, err)
	assert.Len(t, st.Memories, 1)
	require.Len(t, repo.behaviors, 1)
	assert.Equal(t, "watch quietly", repo.behaviors[0].ActionType)
	assert.Equal(t, "a stranger approaches", repo.behaviors[0].ActionTarget)
}

func TestReactRequiresSituation(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, err := http.Post(ts.URL+"/api/v1/pets/fluff/react", "application/json",
		bytes.NewBufferString(`{"player_choice": "pet it"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReactRejectsGet(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/api/v1/pets/fluff/react")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHistory(t *testing.T) {
	ts, repo := newTestServer(t, "")
	repo.behaviors = []pet.BehaviorRecord{
		{ID: "b1", PetID: "fluff", ActionType: "explore", Timestamp: time.Now()},
	}

	resp, err := http.Get(ts.URL + "/api/v1/pets/fluff/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		PetID   string               `json:"pet_id"`
		Records []pet.BehaviorRecord `json:"records"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "fluff", body.PetID)
	require.Len(t, body.Records, 1)
	assert.Equal(t, "b1", body.Records[0].ID)
}

func TestEvolve(t *testing.T) {
	ts, repo := newTestServer(t, "")

	body := `{"template": {"theme": "storm", "attribute_deltas": {"attack": 5, "hp": -3}}}`
	resp, err := http.Post(ts.URL+"/api/v1/pets/fluff/evolve", "application/json",
		bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		PetID  string      `json:"pet_id"`
		Traits []pet.Trait `json:"traits"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Traits, 2)
	assert.Equal(t, "storm attack", out.Traits[0].Name)
	assert.Len(t, repo.traits, 2, "solidified traits are persisted")
}

func TestResetRequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t, "sekrit")

	// No token.
	resp, err := http.Post(ts.URL+"/api/v1/pets/fluff/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Wrong token.
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/pets/fluff/reset", nil)
	req.Header.Set("Authorization", "Bearer nope")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Correct token.
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/v1/pets/fluff/reset", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestResetDisabledWithoutKey(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, err := http.Post(ts.URL+"/api/v1/pets/fluff/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestResetRestoresDefaults(t *testing.T) {
	ts, repo := newTestServer(t, "sekrit")

	st := pet.NewState("fluff")
	st.Stats.Happiness = 99
	require.NoError(t, repo.SavePet(st))

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/pets/fluff/reset", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := repo.GetPet("fluff")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Stats.Happiness)
}

func TestReactRateLimited(t *testing.T) {
	cfg := config.Default()
	repo := newFakeRepo()
	gw := llm.NewGateway(nil, cfg.Generator)
	srv := &Server{
		Orch:    pipeline.NewOrchestrator(repo, pipeline.New(gw, cfg), cfg),
		Engine:  traits.NewEngine(gw, cfg),
		Repo:    repo,
		Limiter: NewRateLimiter(2, time.Minute),
	}
	limited := httptest.NewServer(srv.Handler())
	defer limited.Close()

	body := `{"situation": "a leaf falls"}`
	for i := 0; i < 2; i++ {
		resp, err := http.Post(limited.URL+"/api/v1/pets/fluff/react", "application/json",
			bytes.NewBufferString(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Post(limited.URL+"/api/v1/pets/fluff/react", "application/json",
		bytes.NewBufferString(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Another pet has its own window.
	resp, err = http.Post(limited.URL+"/api/v1/pets/ember/react", "application/json",
		bytes.NewBufferString(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)

	assert.True(t, rl.Allow("fluff"))
	assert.False(t, rl.Allow("fluff"))
	time.Sleep(15 * time.Millisecond)
	assert.True(t, rl.Allow("fluff"))
}

func TestMissingPetID(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/api/v1/pets/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownAction(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/api/v1/pets/fluff/feed")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
