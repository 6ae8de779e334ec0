package expectations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jihwankim/nomos-harness/pkg/runtime/nodeclient"
	"github.com/jihwankim/nomos-harness/pkg/runtime/runcontext"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
	"github.com/stretchr/testify/require"
)

func heightServer(t *testing.T, height uint64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/consensus_info" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"height": height,
			"tip":    scenario.HeaderID{},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func clusterWithHeights(t *testing.T, heights ...uint64) *nodeclient.Cluster {
	t.Helper()
	validators := make([]*nodeclient.Client, 0, len(heights))
	for i, h := range heights {
		srv := heightServer(t, h)
		node := scenario.NodeDescriptor{Role: scenario.RoleValidator, Index: i}
		validators = append(validators, nodeclient.New(node, srv.URL, srv.URL))
	}
	return &nodeclient.Cluster{Validators: validators}
}

func TestConsensusLivenessPassesWhenNodesAgreeAndClearFloor(t *testing.T) {
	clients := clusterWithHeights(t, 10, 10, 9)
	rc := runcontext.New(scenario.Topology{}, clients, nil, nil, time.Minute, time.Second)

	e := NewConsensusLiveness(2)
	require.NoError(t, e.Evaluate(context.Background(), rc))
}

func TestConsensusLivenessFailsBelowProgressFloor(t *testing.T) {
	clients := clusterWithHeights(t, 2, 2)
	rc := runcontext.New(scenario.Topology{}, clients, nil, nil, time.Minute, time.Second)

	e := NewConsensusLiveness(2)
	err := e.Evaluate(context.Background(), rc)
	require.Error(t, err)
}

func TestConsensusLivenessFailsWhenALaggingNodeExceedsAllowance(t *testing.T) {
	clients := clusterWithHeights(t, 100, 100, 1)
	rc := runcontext.New(scenario.Topology{}, clients, nil, nil, time.Minute, time.Second)

	e := NewConsensusLiveness(2)
	err := e.Evaluate(context.Background(), rc)
	require.Error(t, err)
}

func TestConsensusLivenessToleratesConfiguredLagAllowance(t *testing.T) {
	clients := clusterWithHeights(t, 20, 20, 17)
	rc := runcontext.New(scenario.Topology{}, clients, nil, nil, time.Minute, time.Second)

	e := NewConsensusLiveness(3)
	require.NoError(t, e.Evaluate(context.Background(), rc))
}

func TestClampInt(t *testing.T) {
	require.Equal(t, 5, clampInt(1, 5, 10))
	require.Equal(t, 10, clampInt(99, 5, 10))
	require.Equal(t, 7, clampInt(7, 5, 10))
}
