package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"pledgepool/internal/adapter"
	"pledgepool/internal/engine"
	"pledgepool/internal/fixmath"
	"pledgepool/internal/observability"
	"pledgepool/internal/query"
	"pledgepool/internal/server"
)

const (
	admin    = "0xad111111111111111111111111111111111111111"
	lender   = "0x1e11111111111111111111111111111111111111"
	borrower = "0xb0111111111111111111111111111111111111111"
	custody  = "0xc0de111111111111111111111111111111111111"

	lendAsset   = "0xbusd000000000000000000000000000000000001"
	borrowAsset = "0xbtcb000000000000000000000000000000000002"
)

type fixture struct {
	srv    *httptest.Server
	api    *server.Server
	eng    *engine.Engine
	oracle *adapter.MemoryOracle
	funds  *adapter.MemoryFunds
	now    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{now: 1_700_000_000}

	funds := adapter.NewMemoryFunds(custody)
	oracle := adapter.NewMemoryOracle()
	swap := adapter.NewMemorySwap(oracle, funds)
	shares := adapter.NewMemoryShareToken()
	auth := adapter.NewMemoryAuthGate()
	auth.Approve(admin)
	f.oracle = oracle
	f.funds = funds

	f.eng = engine.New(engine.DefaultConfig(), engine.Deps{
		Funds:  funds,
		Oracle: oracle,
		Swap:   swap,
		Shares: shares,
		Auth:   auth,
		Self:   "pledge-engine",
		Logger: observability.NewLoggerWithLevel("engine-test", zerolog.Disabled),
		Clock:  func() time.Time { return time.Unix(f.now, 0) },
	})

	oracle.SetPrice(lendAsset, sdkmath.NewIntWithDecimal(1, 8))
	oracle.SetPrice(borrowAsset, sdkmath.NewIntWithDecimal(1, 8))
	funds.Fund(lendAsset, lender, sdkmath.NewInt(1_000_000))
	funds.Fund(borrowAsset, borrower, sdkmath.NewInt(1_000_000))

	queries := query.NewService(f.eng, nil)
	f.api = server.New(f.eng, queries, observability.NewHealthChecker(), observability.NewLoggerWithLevel("server-test", zerolog.Disabled))

	f.srv = httptest.NewServer(f.api.Router())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) post(t *testing.T, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(f.srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func (f *fixture) createPoolBody() map[string]interface{} {
	return map[string]interface{}{
		"caller":                   admin,
		"settle_time":              f.now + 1000,
		"end_time":                 f.now + 1000 + fixmath.SecondsPerYear/2,
		"interest_rate":            "10000000",
		"max_lend_supply":          "10000",
		"mortgage_rate":            "200000000",
		"lend_asset":               lendAsset,
		"borrow_asset":             borrowAsset,
		"sp_token":                 "sp-0",
		"jp_token":                 "jp-0",
		"auto_liquidate_threshold": "20000000",
	}
}

func (f *fixture) mustCreatePool(t *testing.T) uint64 {
	t.Helper()
	resp, body := f.post(t, "/v1/pools", f.createPoolBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create pool status = %d, body = %v", resp.StatusCode, body)
	}
	return uint64(body["pool_id"].(float64))
}

// ============================================================
// Pool lifecycle over HTTP
// ============================================================

func TestCreatePoolHTTP(t *testing.T) {
	f := newFixture(t)

	id := f.mustCreatePool(t)
	if id != 1 {
		t.Fatalf("pool id = %d, want 1", id)
	}

	resp, body := f.get(t, "/v1/pools/1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get pool status = %d", resp.StatusCode)
	}
	if body["state"] != "Match" {
		t.Fatalf("pool state = %v, want Match", body["state"])
	}
}

func TestCreatePoolUnauthorized(t *testing.T) {
	f := newFixture(t)

	reqBody := f.createPoolBody()
	reqBody["caller"] = lender
	resp, _ := f.post(t, "/v1/pools", reqBody)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestCreatePoolRejectsUnknownFields(t *testing.T) {
	f := newFixture(t)

	reqBody := f.createPoolBody()
	reqBody["bogus_field"] = true
	resp, _ := f.post(t, "/v1/pools", reqBody)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestDepositAndSettleHTTP(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreatePool(t)

	resp, body := f.post(t, fmt.Sprintf("/v1/pools/%d/deposit/lend", id), map[string]interface{}{
		"caller": lender,
		"amount": "600",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deposit lend status = %d, body = %v", resp.StatusCode, body)
	}
	if body["amount"] != "600" {
		t.Fatalf("deposited amount = %v, want 600", body["amount"])
	}

	resp, body = f.post(t, fmt.Sprintf("/v1/pools/%d/deposit/borrow", id), map[string]interface{}{
		"caller": borrower,
		"amount": "1200",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deposit borrow status = %d, body = %v", resp.StatusCode, body)
	}

	// Settling inside the matching window is a state conflict.
	resp, _ = f.post(t, fmt.Sprintf("/v1/pools/%d/settle", id), map[string]interface{}{"caller": admin})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("early settle status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	f.now += 1000
	resp, body = f.post(t, fmt.Sprintf("/v1/pools/%d/settle", id), map[string]interface{}{"caller": admin})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settle status = %d, body = %v", resp.StatusCode, body)
	}

	resp, body = f.get(t, fmt.Sprintf("/v1/pools/%d", id))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get pool status = %d", resp.StatusCode)
	}
	if body["state"] != "Execution" {
		t.Fatalf("pool state = %v, want Execution", body["state"])
	}
	if body["settle_amount_lend"] != "600" {
		t.Fatalf("settle_amount_lend = %v, want 600", body["settle_amount_lend"])
	}
}

func TestStakeAndPricesHTTP(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreatePool(t)

	f.post(t, fmt.Sprintf("/v1/pools/%d/deposit/lend", id), map[string]interface{}{
		"caller": lender,
		"amount": "600",
	})

	resp, body := f.get(t, fmt.Sprintf("/v1/pools/%d/stake/lend/%s", id, lender))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stake status = %d", resp.StatusCode)
	}
	if body["stake_amount"] != "600" {
		t.Fatalf("stake_amount = %v, want 600", body["stake_amount"])
	}

	resp, body = f.get(t, fmt.Sprintf("/v1/pools/%d/prices", id))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prices status = %d, body = %v", resp.StatusCode, body)
	}
}

// ============================================================
// Error mapping
// ============================================================

func TestUnknownPoolIs404(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.get(t, "/v1/pools/99")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestInvalidSideIs400(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreatePool(t)

	resp, _ := f.post(t, fmt.Sprintf("/v1/pools/%d/deposit/sideways", id), map[string]interface{}{
		"caller": lender,
		"amount": "600",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestPausedIs503(t *testing.T) {
	f := newFixture(t)
	id := f.mustCreatePool(t)

	resp, _ := f.post(t, "/v1/admin/pause", map[string]interface{}{
		"caller": admin,
		"paused": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pause status = %d", resp.StatusCode)
	}

	resp, _ = f.post(t, fmt.Sprintf("/v1/pools/%d/deposit/lend", id), map[string]interface{}{
		"caller": lender,
		"amount": "600",
	})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestSetSwapVenueHTTP(t *testing.T) {
	f := newFixture(t)
	f.api.SetSwapVenueBuilder(func(_ context.Context, router string) (adapter.SwapVenue, error) {
		if router == "" {
			return nil, fmt.Errorf("empty router address")
		}
		return adapter.NewMemorySwap(f.oracle, f.funds), nil
	})

	resp, _ := f.post(t, "/v1/admin/swap-venue", map[string]interface{}{
		"caller": admin,
		"router": "0x7007000000000000000000000000000000000001",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp, _ = f.post(t, "/v1/admin/swap-venue", map[string]interface{}{
		"caller": admin,
		"router": "",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad router status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	resp, _ = f.post(t, "/v1/admin/swap-venue", map[string]interface{}{
		"caller": lender,
		"router": "0x7007000000000000000000000000000000000001",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unauthorized status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestSetSwapVenueWithoutBuilderIs501(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.post(t, "/v1/admin/swap-venue", map[string]interface{}{
		"caller": admin,
		"router": "0x7007000000000000000000000000000000000001",
	})
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotImplemented)
	}
}
