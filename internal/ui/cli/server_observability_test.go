package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"querysync/internal/core/app"
	"querysync/internal/core/ports"
	"querysync/internal/engine/project"
	"querysync/internal/engine/runner"
	"querysync/internal/engine/workspace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservabilityServer(t *testing.T) {
	def, err := workspace.NewProjectDefinition([]string{"java/com/test"}, nil, []workspace.LanguageClass{workspace.LanguageJava})
	require.NoError(t, err)
	svc, err := app.NewService(app.Dependencies{
		Definition: def,
		Runner:     runner.NewReplayRunner(fixture(t), nil),
		Reader:     project.MapPackageReader(nil),
	})
	require.NoError(t, err)

	server := NewObservabilityServer("127.0.0.1:0", app.NewHealthService(svc))
	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() { _ = server.Stop(context.Background()) })

	health := func() (int, app.HealthStatus) {
		resp, err := http.Get("http://" + server.Addr() + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		var status app.HealthStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		return resp.StatusCode, status
	}

	code, status := health()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not synced", status.Components["project"])

	_, err = svc.Sync(context.Background(), ports.SyncRequest{Reason: "test"})
	require.NoError(t, err)

	code, status = health()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "up", status.Status)
	assert.Equal(t, "disabled", status.Components["history"])

	resp, err := http.Get("http://" + server.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "querysync_runs_total")
}
