package sync

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chainwatch/utxo-syncer/src/utils/config"
	monitor_syncer "github.com/chainwatch/utxo-syncer/src/utils/monitoring/syncer"

	"github.com/stretchr/testify/require"
)

func TestServerRoutes(t *testing.T) {
	conf := config.Default()
	monitor := monitor_syncer.NewMonitor(conf)
	monitor.Report.Syncer.State.BlocksCommitted.Store(5)

	server := NewServer(conf).WithMonitor(monitor)

	for _, path := range []string{"/v1/health", "/v1/state", "/metrics"} {
		w := httptest.NewRecorder()
		server.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	server.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.True(t, strings.Contains(w.Body.String(), "blocks_committed"))

	w = httptest.NewRecorder()
	server.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/state", nil))
	require.True(t, strings.Contains(w.Body.String(), `"blocks_committed":5`))
}
