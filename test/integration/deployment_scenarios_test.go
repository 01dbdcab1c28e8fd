//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strategylib/control-plane/internal/core"
)

func postJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// TestScenarioA_DeploymentRollback exercises spec §8 Scenario A: a
// second deployment supersedes the first, then rolling it back
// restores the prior deployment as active and replays its snapshot
// onto the entity.
func TestScenarioA_DeploymentRollback(t *testing.T) {
	ts := newTestServer(t)

	var entity core.Entity
	resp := postJSON(t, ts.URL+"/api/v1/entities", map[string]any{
		"name":    "alpha",
		"type":    "strategy",
		"version": "1.0.0",
	}, &entity)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, core.EntityStatusRegistered, entity.Status)

	var d1 core.Deployment
	resp = postJSON(t, ts.URL+"/api/v1/deployments", map[string]any{
		"entity_id":   entity.ID,
		"environment": "staging",
		"deployed_by": "u1",
	}, &d1)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, core.DeploymentStatusActive, d1.Status)

	var d2 core.Deployment
	resp = postJSON(t, ts.URL+"/api/v1/deployments", map[string]any{
		"entity_id":   entity.ID,
		"environment": "staging",
		"deployed_by": "u1",
		"config_override": map[string]any{
			"risk": "low",
		},
	}, &d2)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, core.DeploymentStatusActive, d2.Status)

	var gotD1 core.Deployment
	getJSON(t, ts.URL+"/api/v1/deployments/"+d1.ID, &gotD1)
	require.Equal(t, core.DeploymentStatusInactive, gotD1.Status)

	var rolledBack core.Deployment
	resp = postJSON(t, ts.URL+"/api/v1/deployments/"+d2.ID+"/rollback", map[string]any{
		"reason":         "bug",
		"rolled_back_by": "u1",
	}, &rolledBack)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, core.DeploymentStatusRolledBack, rolledBack.Status)

	var reactivatedD1 core.Deployment
	getJSON(t, ts.URL+"/api/v1/deployments/"+d1.ID, &reactivatedD1)
	require.Equal(t, core.DeploymentStatusActive, reactivatedD1.Status)

	var finalEntity core.Entity
	getJSON(t, ts.URL+"/api/v1/entities/"+entity.ID, &finalEntity)
	require.Equal(t, d1.ConfigSnapshot, finalEntity.DeploymentConfig)
}

// TestScenarioF_BusDown exercises spec §8 Scenario F: with the event
// bus unreachable, entity creation still succeeds and the row is
// persisted, while the detailed health check reports the bus as
// disconnected.
func TestScenarioF_BusDown(t *testing.T) {
	ts := newTestServer(t)
	ts.Redis.Close()

	var entity core.Entity
	resp := postJSON(t, ts.URL+"/api/v1/entities", map[string]any{
		"name":    "x",
		"type":    "strategy",
		"version": "1.0.0",
	}, &entity)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, entity.ID)

	var stored core.Entity
	getJSON(t, ts.URL+"/api/v1/entities/"+entity.ID, &stored)
	require.Equal(t, "x", stored.Name)

	// Publish is fire-and-forget: the registration's publish attempt runs
	// on a background goroutine, so the bus-down state may not be
	// reflected in Healthy() the instant the POST above returns.
	require.Eventually(t, func() bool {
		var health map[string]any
		resp := getJSON(t, ts.URL+"/health/detailed", &health)
		return resp.StatusCode == http.StatusServiceUnavailable
	}, 2*time.Second, 10*time.Millisecond, "detailed health should report the bus as disconnected once delivery fails")
}
