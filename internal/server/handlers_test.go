package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"BidVault/internal/auction"
	"BidVault/internal/bid"
	"BidVault/internal/broadcast"
	"BidVault/internal/engine"
	"BidVault/internal/notify"
	"BidVault/internal/observability"
	"BidVault/internal/server"
	"BidVault/internal/wallet"
)

type testAPI struct {
	srv     *server.Server
	wallets *wallet.Ledger
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	auctions := auction.NewRegistry()
	wallets := wallet.NewLedger(wallet.DefaultTiers(), nil, zerolog.Nop())
	bids := bid.NewStore(nil)
	bidEngine := engine.NewBidEngine(auctions, wallets, bids, broadcast.NopSink{}, notify.NopNotifier{}, nil, zerolog.Nop())
	settlement := engine.NewSettlementEngine(auctions, wallets, bids, broadcast.NopSink{}, nil, zerolog.Nop())

	health := observability.NewHealthChecker()
	health.SetReady(true)

	srv := server.New(":0", &server.Deps{
		BidEngine:  bidEngine,
		Settlement: settlement,
		Auctions:   auctions,
		Wallets:    wallets,
		BidStore:   bids,
		Health:     health,
		Logger:     zerolog.Nop(),
	})
	return &testAPI{srv: srv, wallets: wallets}
}

func (api *testAPI) do(t *testing.T, method, path string, body string, userID uuid.UUID, role string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != uuid.Nil {
		req.Header.Set("X-User-ID", userID.String())
		req.Header.Set("X-User-Role", role)
	}
	w := httptest.NewRecorder()
	api.srv.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (api *testAPI) createAuction(t *testing.T, sellerID uuid.UUID) string {
	t.Helper()
	end := time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339)
	body := fmt.Sprintf(`{"title":"Road bike","starting_price":500,"security_percentage":5,"end_date":%q}`, end)
	w := api.do(t, http.MethodPost, "/api/v1/auctions", body, sellerID, "Seller")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["auction_id"].(string)
}

// ============================================================================
// Identity
// ============================================================================

func TestMutatingRoutesRequireIdentity(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/bids", `{"auction_id":"x","amount":1}`, uuid.Nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/wallet", "", uuid.Nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRejectsUnknownRole(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	req.Header.Set("X-User-ID", uuid.New().String())
	req.Header.Set("X-User-Role", "Superuser")
	w := httptest.NewRecorder()
	api.srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

// ============================================================================
// Auction lifecycle over HTTP
// ============================================================================

func TestCreateAndFetchAuction(t *testing.T) {
	api := newTestAPI(t)
	seller := uuid.New()

	id := api.createAuction(t, seller)

	w := api.do(t, http.MethodGet, "/api/v1/auctions/"+id, "", uuid.Nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "Road bike", body["title"])
	require.Equal(t, float64(500), body["current_price"])
	require.Equal(t, "Active", body["status"])

	w = api.do(t, http.MethodGet, "/api/v1/auctions", "", uuid.Nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["auctions"], 1)
}

func TestBuyerCannotCreateAuction(t *testing.T) {
	api := newTestAPI(t)
	end := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	body := fmt.Sprintf(`{"title":"Nope","starting_price":100,"security_percentage":5,"end_date":%q}`, end)

	w := api.do(t, http.MethodPost, "/api/v1/auctions", body, uuid.New(), "Buyer")
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestPlaceBidOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	seller, buyer := uuid.New(), uuid.New()
	id := api.createAuction(t, seller)

	_, err := api.wallets.Credit(buyer, 10000, "seed")
	require.NoError(t, err)

	w := api.do(t, http.MethodPost, "/api/v1/bids",
		fmt.Sprintf(`{"auction_id":%q,"amount":2000}`, id), buyer, "Buyer")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	require.Equal(t, float64(100), body["required_deposit"])
	walletBody := body["wallet"].(map[string]interface{})
	require.Equal(t, float64(100), walletBody["locked"])
	require.Equal(t, float64(9900), walletBody["available"])

	w = api.do(t, http.MethodGet, "/api/v1/auctions/"+id+"/bids", "", uuid.Nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["bids"], 1)
}

func TestUserBidsCarryPosition(t *testing.T) {
	api := newTestAPI(t)
	seller, alice, bob := uuid.New(), uuid.New(), uuid.New()
	id := api.createAuction(t, seller)

	_, err := api.wallets.Credit(alice, 10000, "seed")
	require.NoError(t, err)
	_, err = api.wallets.Credit(bob, 10000, "seed")
	require.NoError(t, err)

	w := api.do(t, http.MethodPost, "/api/v1/bids",
		fmt.Sprintf(`{"auction_id":%q,"amount":1000}`, id), alice, "Buyer")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = api.do(t, http.MethodPost, "/api/v1/bids",
		fmt.Sprintf(`{"auction_id":%q,"amount":2000}`, id), bob, "Buyer")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(t, http.MethodGet, "/api/v1/users/"+alice.String()+"/bids", "", uuid.Nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	bids := decode(t, w)["bids"].([]interface{})
	require.Len(t, bids, 1)
	require.Equal(t, float64(2), bids[0].(map[string]interface{})["position"])

	w = api.do(t, http.MethodGet, "/api/v1/users/"+bob.String()+"/bids", "", uuid.Nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	bids = decode(t, w)["bids"].([]interface{})
	require.Len(t, bids, 1)
	require.Equal(t, float64(1), bids[0].(map[string]interface{})["position"])
}

func TestBidRejectionsOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	seller, buyer, poor := uuid.New(), uuid.New(), uuid.New()
	id := api.createAuction(t, seller)

	_, err := api.wallets.Credit(buyer, 10000, "seed")
	require.NoError(t, err)
	_, err = api.wallets.Credit(poor, 1, "seed")
	require.NoError(t, err)

	// Seller bidding on own item.
	w := api.do(t, http.MethodPost, "/api/v1/bids",
		fmt.Sprintf(`{"auction_id":%q,"amount":1000}`, id), seller, "Buyer")
	require.Equal(t, http.StatusForbidden, w.Code)

	// Bid not above current price.
	w = api.do(t, http.MethodPost, "/api/v1/bids",
		fmt.Sprintf(`{"auction_id":%q,"amount":500}`, id), buyer, "Buyer")
	require.Equal(t, http.StatusConflict, w.Code)

	// Unknown auction.
	w = api.do(t, http.MethodPost, "/api/v1/bids",
		fmt.Sprintf(`{"auction_id":%q,"amount":1000}`, uuid.New()), buyer, "Buyer")
	require.Equal(t, http.StatusNotFound, w.Code)

	// Insufficient funds carries the shortfall.
	w = api.do(t, http.MethodPost, "/api/v1/bids",
		fmt.Sprintf(`{"auction_id":%q,"amount":1000}`, id), poor, "Buyer")
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	body := decode(t, w)
	require.Equal(t, float64(50), body["required"])
	require.Equal(t, float64(49), body["shortfall"])
}

func TestCompleteAuctionOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	seller, buyer := uuid.New(), uuid.New()
	id := api.createAuction(t, seller)

	_, err := api.wallets.Credit(buyer, 10000, "seed")
	require.NoError(t, err)

	w := api.do(t, http.MethodPost, "/api/v1/bids",
		fmt.Sprintf(`{"auction_id":%q,"amount":2000}`, id), buyer, "Buyer")
	require.Equal(t, http.StatusCreated, w.Code)

	// A bystander cannot close early.
	w = api.do(t, http.MethodPost, "/api/v1/auctions/"+id+"/complete", "", uuid.New(), "Buyer")
	require.Equal(t, http.StatusForbidden, w.Code)

	// The seller can.
	w = api.do(t, http.MethodPost, "/api/v1/auctions/"+id+"/complete", "", seller, "Seller")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	require.Equal(t, buyer.String(), body["winner_id"])
	require.Equal(t, float64(2000), body["final_price"])
	require.Equal(t, float64(100), body["deposit_consumed"])
	require.Equal(t, float64(1900), body["payment_covered"])

	// Settling again conflicts.
	w = api.do(t, http.MethodPost, "/api/v1/auctions/"+id+"/complete", "", seller, "Seller")
	require.Equal(t, http.StatusConflict, w.Code)
}

// ============================================================================
// Wallet over HTTP
// ============================================================================

func TestWalletDepositAndTransactions(t *testing.T) {
	api := newTestAPI(t)
	user := uuid.New()

	w := api.do(t, http.MethodPost, "/api/v1/wallet/deposit", `{"amount":60000}`, user, "Buyer")
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	require.Equal(t, float64(60000), body["balance"])
	require.Equal(t, "Silver", body["tier"])

	w = api.do(t, http.MethodGet, "/api/v1/wallet", "", user, "Buyer")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(60000), decode(t, w)["available"])

	w = api.do(t, http.MethodGet, "/api/v1/wallet/transactions?type=credit", "", user, "Buyer")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["transactions"], 1)

	w = api.do(t, http.MethodGet, "/api/v1/wallet/transactions?type=bogus", "", user, "Buyer")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/healthz", "", uuid.Nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/readyz", "", uuid.Nil, "")
	require.Equal(t, http.StatusOK, w.Code)
}
