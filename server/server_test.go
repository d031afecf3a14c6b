package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdsale-xyz/go-crowdsale/engine"
	"github.com/crowdsale-xyz/go-crowdsale/eventsource"
	"github.com/crowdsale-xyz/go-crowdsale/server"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine, eventsource.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store := eventsource.NewMemoryStore()
	e, err := engine.New(engine.Config{
		Owner:       "owner",
		Beneficiary: "beneficiary",
		MaxCap:      uint256.NewInt(1_000_000),
		Price:       uint256.NewInt(10),
		SaleCap:     uint256.NewInt(1_000),
		Store:       store,
		Logger:      logger,
	})
	require.NoError(t, err)

	srv := server.NewServer(e, server.WithStore(store), server.WithLogger(logger))
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts, e, store
}

func postCommand(t *testing.T, ts *httptest.Server, op, args string) *http.Response {
	t.Helper()
	body := fmt.Sprintf(`{"op":%q,"args":%s}`, op, args)
	resp, err := http.Post(ts.URL+"/commands", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCommandEndpoint(t *testing.T) {
	ts, e, _ := newTestServer(t)

	resp := postCommand(t, ts, "whitelist.add", `{"caller":"owner","principals":["buyer"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postCommand(t, ts, "sale.purchase", `{"buyer":"buyer","paid":"105"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res engine.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.NotNil(t, res.Receipt)
	assert.True(t, res.Receipt.Units.Eq(uint256.NewInt(10)))
	assert.True(t, res.Receipt.Refund.Eq(uint256.NewInt(5)))
	assert.True(t, e.Ledger().BalanceOf("buyer").Eq(uint256.NewInt(10)))
}

func TestCommandErrorMapping(t *testing.T) {
	ts, _, _ := newTestServer(t)

	// Not whitelisted: forbidden.
	resp := postCommand(t, ts, "sale.purchase", `{"buyer":"stranger","paid":"100"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Non-owner mint: forbidden.
	resp = postCommand(t, ts, "token.mint", `{"caller":"stranger","amount":"5"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Unknown op: bad request.
	resp = postCommand(t, ts, "token.teleport", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Insufficient balance: conflict.
	resp = postCommand(t, ts, "token.transfer", `{"from":"a","to":"b","amount":"5"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Malformed body: bad request.
	r, err := http.Post(ts.URL+"/commands", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	defer r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)
}

func TestStateEndpoint(t *testing.T) {
	ts, e, _ := newTestServer(t)
	ctx := context.Background()

	_, err := e.Mint(ctx, "owner", uint256.NewInt(500))
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap engine.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.True(t, snap.Ledger.TotalSupply.Eq(uint256.NewInt(500)))
	assert.Equal(t, "active", snap.Escrow.State)
}

func TestEventsEndpoint(t *testing.T) {
	ts, e, _ := newTestServer(t)
	ctx := context.Background()

	_, err := e.Mint(ctx, "owner", uint256.NewInt(500))
	require.NoError(t, err)
	_, err = e.WhitelistAdd(ctx, "owner", "buyer")
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []*eventsource.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	assert.Len(t, records, 2)

	resp, err = http.Get(ts.URL + "/events?type=token.mint")
	require.NoError(t, err)
	defer resp.Body.Close()
	records = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "token.mint", records[0].Type)
}

func TestSolvencyWithoutProver(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/solvency")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
