package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xtding233/marble-bag/internal/config"
	"github.com/xtding233/marble-bag/internal/marble"
	"github.com/xtding233/marble-bag/internal/registry"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	seed := uint64(2017)
	bags := registry.New(nil)
	require.NoError(t, bags.Apply([]config.BagSpec{
		{Name: "loot", Size: 3, Seed: &seed, Strategy: marble.StrategyIndexWalk, RNG: marble.SourcePCG},
		{Name: "shoe", Size: 3, Seed: &seed, Strategy: marble.StrategyBitScan, AutoReset: true, RNG: marble.SourcePCG},
	}))
	ts := httptest.NewServer(NewServer(bags, "", nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, body := do(t, http.MethodGet, ts.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "OK", string(body))
}

func TestListAndStatus(t *testing.T) {
	require := require.New(t)
	ts := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/v1/bags", nil)
	require.Equal(http.StatusOK, resp.StatusCode)
	var list listResp
	require.NoError(json.Unmarshal(body, &list))
	require.Len(list.Bags, 2)
	require.Equal("loot", list.Bags[0].Name)

	resp, body = do(t, http.MethodGet, ts.URL+"/api/v1/bags/shoe", nil)
	require.Equal(http.StatusOK, resp.StatusCode)
	var st registry.Status
	require.NoError(json.Unmarshal(body, &st))
	require.True(st.AutoReset)
	require.Equal(3, st.Remaining)

	resp, body = do(t, http.MethodGet, ts.URL+"/api/v1/bags/nope", nil)
	require.Equal(http.StatusNotFound, resp.StatusCode)
	var e ErrorResponse
	require.NoError(json.Unmarshal(body, &e))
	require.Equal(ErrCodeNotFound, e.Error.Code)
}

func TestDrawUntilEmpty(t *testing.T) {
	require := require.New(t)
	ts := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.URL+"/api/v1/bags/loot/draw?n=3", nil)
	require.Equal(http.StatusOK, resp.StatusCode)
	var dr drawResp
	require.NoError(json.Unmarshal(body, &dr))
	require.ElementsMatch([]int{0, 1, 2}, dr.Values)
	require.False(dr.Empty)
	require.Zero(dr.Bag.Remaining)

	_, body = do(t, http.MethodPost, ts.URL+"/api/v1/bags/loot/draw", nil)
	dr = drawResp{}
	require.NoError(json.Unmarshal(body, &dr))
	require.Empty(dr.Values)
	require.True(dr.Empty)

	resp, body = do(t, http.MethodPost, ts.URL+"/api/v1/bags/loot/reset", nil)
	require.Equal(http.StatusOK, resp.StatusCode)
	var st registry.Status
	require.NoError(json.Unmarshal(body, &st))
	require.Equal(3, st.Remaining)

	// auto reset bag keeps going
	_, body = do(t, http.MethodPost, ts.URL+"/api/v1/bags/shoe/draw?n=4", nil)
	dr = drawResp{}
	require.NoError(json.Unmarshal(body, &dr))
	require.Len(dr.Values, 4)
	require.Equal(2, dr.Bag.Remaining)

	for _, q := range []string{"?n=0", "?n=abc", "?n=10001"} {
		resp, _ = do(t, http.MethodPost, ts.URL+"/api/v1/bags/loot/draw"+q, nil)
		require.Equal(http.StatusBadRequest, resp.StatusCode, q)
	}
	resp, _ = do(t, http.MethodPost, ts.URL+"/api/v1/bags/nope/draw", nil)
	require.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestUsageExportImport(t *testing.T) {
	require := require.New(t)
	ts := newTestServer(t)

	do(t, http.MethodPost, ts.URL+"/api/v1/bags/loot/draw?n=2", nil)

	resp, snap := do(t, http.MethodGet, ts.URL+"/api/v1/bags/loot/usage", nil)
	require.Equal(http.StatusOK, resp.StatusCode)
	require.Equal("application/x-protobuf", resp.Header.Get("Content-Type"))

	do(t, http.MethodPost, ts.URL+"/api/v1/bags/loot/reset", nil)

	resp, body := do(t, http.MethodPut, ts.URL+"/api/v1/bags/loot/usage", snap)
	require.Equal(http.StatusOK, resp.StatusCode)
	var st registry.Status
	require.NoError(json.Unmarshal(body, &st))
	require.Equal(1, st.Remaining)

	resp, _ = do(t, http.MethodPut, ts.URL+"/api/v1/bags/loot/usage", []byte{0x08})
	require.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestSimulate(t *testing.T) {
	require := require.New(t)
	ts := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/api/v1/simulate?size=10&target=3&trials=500&seed=1", nil)
	require.Equal(http.StatusOK, resp.StatusCode)
	var sr simResp
	require.NoError(json.Unmarshal(body, &sr))
	require.Equal("first_hit", string(sr.Goal))
	require.GreaterOrEqual(sr.Stats.Mean, 1.0)
	require.LessOrEqual(sr.Stats.Mean, 10.0)

	resp, body = do(t, http.MethodGet, ts.URL+"/api/v1/simulate?size=10&goal=max_drought&draws=100&trials=100&independent=true&seed=1", nil)
	require.Equal(http.StatusOK, resp.StatusCode)
	sr = simResp{}
	require.NoError(json.Unmarshal(body, &sr))
	require.Equal("max_drought", string(sr.Goal))

	for _, q := range []string{
		"",
		"?size=x",
		"?size=10&target=10",
		"?size=10&goal=nope",
		"?size=10&trials=1000000",
		"?size=10&independent=maybe",
		"?size=10&strategy=nope",
	} {
		resp, _ = do(t, http.MethodGet, ts.URL+"/api/v1/simulate"+q, nil)
		require.Equal(http.StatusBadRequest, resp.StatusCode, q)
	}
}
