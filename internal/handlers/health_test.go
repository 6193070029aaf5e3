package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/internhub/internal/handlers/testutil"
)

func TestHealth(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.NewClient().Get("/health")
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.True(t, resp.Success)

	var data map[string]string
	testutil.DecodeInto(t, resp.Data, &data)
	require.Equal(t, "up", data["status"])

	ready := env.NewClient().Get("/health/ready")
	require.Equal(t, http.StatusOK, ready.Code)
	var report struct {
		Checks []struct {
			Component string `json:"component"`
			Status    string `json:"status"`
		} `json:"checks"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, ready).Data, &report)
	require.Len(t, report.Checks, 1)
	require.Equal(t, "database", report.Checks[0].Component)
	require.Equal(t, "up", report.Checks[0].Status)

	require.Equal(t, http.StatusOK, env.NewClient().Get("/health/live").Code)
}

func TestHealth_DatabaseDown(t *testing.T) {
	env := testutil.NewEnv(t)
	sqlDB, err := env.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := env.NewClient().Get("/health")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.False(t, testutil.DecodeResponse(t, w).Success)
}

func TestUnknownRoute(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.NewClient().Get("/does-not-exist")
	require.Equal(t, http.StatusNotFound, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "NOT_FOUND", resp.Error.Code)
}
