package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impactpool/milestone-cli/internal/ladder"
	"github.com/impactpool/milestone-cli/internal/milestone"
	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/internal/monitoring"
	"github.com/impactpool/milestone-cli/internal/pool"
	"github.com/impactpool/milestone-cli/internal/registry"
	"github.com/impactpool/milestone-cli/internal/store"
)

// stubIssuer mints successfully without touching any ledger.
type stubIssuer struct{}

func (stubIssuer) Issue(_ context.Context, a model.ClaimableAchievement) (model.IssuedCertificate, error) {
	return model.IssuedCertificate{
		AssetCode:         "TESTCODE",
		Issuer:            "GISSUER",
		Recipient:         a.Recipient,
		FundingTxRef:      "tx-fund",
		LockTxRef:         "tx-lock",
		IsNonTransferable: true,
		IssuedAt:          time.Now().UTC(),
	}, nil
}

func newTestEnv(t *testing.T) *env {
	t.Helper()

	st := store.NewMemory()
	reg := registry.New(st, stubIssuer{})
	orch := milestone.NewOrchestrator(ladder.Default(), reg)

	return &env{
		Store:        st,
		Registry:     reg,
		Orchestrator: orch,
		Pools:        pool.NewService(st, orch),
		Collector:    monitoring.NewCollector(st),
	}
}

func TestRunServer_DrainsOnCancel(t *testing.T) {
	srv := &http.Server{
		Addr:    "127.0.0.1:0",
		Handler: newRouter(newTestEnv(t)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- runServer(ctx, srv) }()

	// Let the listener come up, then stop it.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after cancel")
	}
}

func TestRouter_Health(t *testing.T) {
	router := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	err := json.Unmarshal(rr.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Totals_CreatesAchievements(t *testing.T) {
	router := newRouter(newTestEnv(t))

	payload := milestone.TotalReport{
		Subject:   "alice",
		Category:  model.CategoryIndividual,
		NewTotal:  5,
		Recipient: "GALICE",
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/v1/totals", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count) // 0.05, 1, 5
}

func TestRouter_Totals_InvalidBody(t *testing.T) {
	router := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodPost, "/v1/totals", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestRouter_Totals_UnknownCategory(t *testing.T) {
	router := newRouter(newTestEnv(t))

	body, _ := json.Marshal(map[string]any{
		"subject":   "alice",
		"category":  "galactic",
		"new_total": 5,
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/totals", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_ClaimFlow(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)

	created, err := env.Orchestrator.OnNewTotal(context.Background(), milestone.TotalReport{
		Subject:   "alice",
		Category:  model.CategoryIndividual,
		NewTotal:  1,
		Recipient: "GALICE",
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	id := created[0].ID

	req := httptest.NewRequest(http.MethodPost, "/v1/achievements/"+id+"/claim", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var rec model.ClaimableAchievement
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, model.StateMinted, rec.State)
	require.NotNil(t, rec.Certificate)
	assert.Equal(t, "TESTCODE", rec.Certificate.AssetCode)

	// Claiming again conflicts.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/achievements/"+id+"/claim", nil))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRouter_Claim_NotFound(t *testing.T) {
	router := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodPost, "/v1/achievements/individual:nobody:1/claim", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_ListAchievements_Filtered(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)

	_, err := env.Orchestrator.OnNewTotal(context.Background(), milestone.TotalReport{
		Subject:   "alice",
		Category:  model.CategoryIndividual,
		NewTotal:  1,
		Recipient: "GALICE",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/achievements?recipient=GALICE&state=claimable", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Count        int                         `json:"count"`
		Achievements []model.ClaimableAchievement `json:"achievements"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	for _, a := range resp.Achievements {
		assert.Equal(t, "GALICE", a.Recipient)
	}
}

func TestRouter_Metrics(t *testing.T) {
	env := newTestEnv(t)
	router := newRouter(env)

	_, err := env.Orchestrator.OnNewTotal(context.Background(), milestone.TotalReport{
		Subject:   "alice",
		Category:  model.CategoryIndividual,
		NewTotal:  0.05,
		Recipient: "GALICE",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var snap monitoring.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.AchievementsTotal)
	assert.Equal(t, 1, snap.Claimable)
}
