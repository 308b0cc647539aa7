// SPDX-License-Identifier: GPL-2.0 OR BSD-3-Clause

// Package e2e exercises the complete policy path in process: HTTP API to
// policy manager to map installation to SQLite persistence. The eBPF map
// is replaced with an in-memory stand-in so the tests run without root or
// kernel support; packet-level verification requires a live interface and
// is out of scope here.
package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/qos-policy-agent/agent/pkg/api"
	"github.com/qos-policy-agent/agent/pkg/dataplane"
	"github.com/qos-policy-agent/agent/pkg/qos"
	"github.com/qos-policy-agent/agent/pkg/testutil"
	"github.com/stretchr/testify/require"
)

// TestEnv represents a complete in-process test environment.
type TestEnv struct {
	T             *testing.T
	PolicyMap     *testutil.PolicyMap
	PolicyManager *qos.PolicyManager
	Storage       *qos.SQLiteStorage
	StoragePath   string
	Router        *gin.Engine
	Stats         *stubDataPlane
}

// stubDataPlane serves statistics endpoints without a loaded program.
type stubDataPlane struct {
	stats dataplane.Statistics
}

func (s *stubDataPlane) GetStatistics() dataplane.Statistics {
	return s.stats
}

// NewTestEnv wires the full agent stack against an in-memory map and a
// temporary database.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	storagePath := filepath.Join(t.TempDir(), "policies.db")
	storage, err := qos.NewSQLiteStorage(storagePath)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	policyMap := testutil.NewPolicyMap()
	pm := qos.NewManagerWithStorage(policyMap, storage)

	stats := &stubDataPlane{}

	cfg := api.DefaultConfig()
	cfg.Interface = "eth0"
	cfg.StoragePath = storagePath

	server, err := api.NewAPIServer(cfg, stats, pm)
	require.NoError(t, err)

	return &TestEnv{
		T:             t,
		PolicyMap:     policyMap,
		PolicyManager: pm,
		Storage:       storage,
		StoragePath:   storagePath,
		Router:        server.GetRouter(),
		Stats:         stats,
	}
}

// Do performs an HTTP request against the in-process router.
func (env *TestEnv) Do(method, path string, body interface{}) *httptest.ResponseRecorder {
	env.T.Helper()

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		require.NoError(env.T, err)
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	require.NoError(env.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	return w
}

// DecodeJSON unmarshals a recorded response body into out.
func (env *TestEnv) DecodeJSON(w *httptest.ResponseRecorder, out interface{}) {
	env.T.Helper()
	require.NoError(env.T, json.Unmarshal(w.Body.Bytes(), out))
}
