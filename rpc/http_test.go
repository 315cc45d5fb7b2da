package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"openstay/core/state"
	"openstay/crypto"
	"openstay/native/lodging"
	"openstay/storage"
)

const testToken = "test-token"

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *state.Manager) {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srv := httptest.NewServer(NewServer(mgr, opts).Router())
	t.Cleanup(srv.Close)
	return srv, mgr
}

func call(t *testing.T, srv *httptest.Server, token, method string, params interface{}) (int, rpcEnvelope) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope rpcEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

func proofFor(t *testing.T, key *crypto.PrivateKey) proofJSON {
	t.Helper()
	digest := lodging.Derive("rpc_test", []byte("payload"))
	sig, err := key.Sign(digest)
	require.NoError(t, err)
	return proofJSON{
		Digest:    hex.EncodeToString(digest[:]),
		Signature: hex.EncodeToString(sig),
	}
}

func mustKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func bech32Of(t *testing.T, addr [20]byte) string {
	t.Helper()
	return crypto.MustNewAddress(crypto.StayPrefix, addr[:]).String()
}

func TestBookingLifecycleOverRPC(t *testing.T) {
	srv, mgr := newTestServer(t, Options{AuthToken: testToken})
	ownerKey := mustKey(t)
	guestKey := mustKey(t)
	ownerAddr := ownerKey.PubKey().Address().Array()
	guestAddr := guestKey.PubKey().Address().Array()

	require.NoError(t, mgr.Transition(func(tx *state.Manager) error {
		return tx.Credit(guestAddr, lodging.CurrencyNative, big.NewInt(1_000))
	}))

	status, envelope := call(t, srv, testToken, "lodging_initializeRegistry", initializeRegistryParams{Capacity: 10})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, envelope.Error)

	status, envelope = call(t, srv, testToken, "lodging_createListing", createListingParams{
		Proof:          proofFor(t, ownerKey),
		ListingID:      1,
		Title:          "Harbour loft",
		PricePerNight:  "500",
		Currency:       "NATIVE",
		AvailableDates: []uint64{100, 200},
		MaxGuests:      2,
		Location:       "Bergen",
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, envelope.Error)
	var listing listingJSON
	require.NoError(t, json.Unmarshal(envelope.Result, &listing))
	require.Equal(t, bech32Of(t, ownerAddr), listing.Owner)
	require.True(t, listing.Active)

	status, envelope = call(t, srv, testToken, "lodging_getAllListings", nil)
	require.Equal(t, http.StatusOK, status)
	var all []string
	require.NoError(t, json.Unmarshal(envelope.Result, &all))
	require.Equal(t, []string{listing.Address}, all)

	status, envelope = call(t, srv, testToken, "lodging_bookStay", bookStayParams{
		Proof:         proofFor(t, guestKey),
		Listing:       listing.Address,
		Owner:         bech32Of(t, ownerAddr),
		ListingID:     1,
		BookingID:     1,
		CheckInDate:   100,
		CheckOutDate:  200,
		Currency:      "NATIVE",
		Amount:        "500",
		FundingSource: bech32Of(t, guestAddr),
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, envelope.Error)
	var booked struct {
		Booking bookingJSON `json:"booking"`
		Vault   vaultJSON   `json:"vault"`
	}
	require.NoError(t, json.Unmarshal(envelope.Result, &booked))
	require.Equal(t, "booked", booked.Booking.Status)
	require.Equal(t, "500", booked.Vault.TotalAmount)
	require.False(t, booked.Vault.Released)

	status, envelope = call(t, srv, testToken, "lodging_confirmCheckout", bookingRefParams{
		Proof:     proofFor(t, ownerKey),
		Guest:     bech32Of(t, guestAddr),
		Listing:   listing.Address,
		Owner:     bech32Of(t, ownerAddr),
		ListingID: 1,
		BookingID: 1,
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, envelope.Error)

	status, envelope = call(t, srv, testToken, "lodging_getBooking", entityAddressParams{Address: booked.Booking.Address})
	require.Equal(t, http.StatusOK, status)
	var confirmed bookingJSON
	require.NoError(t, json.Unmarshal(envelope.Result, &confirmed))
	require.Equal(t, "confirmed", confirmed.Status)
	require.True(t, confirmed.CheckoutConfirmed)

	status, envelope = call(t, srv, testToken, "lodging_getVault", entityAddressParams{Address: booked.Vault.Address})
	require.Equal(t, http.StatusOK, status)
	var vault vaultJSON
	require.NoError(t, json.Unmarshal(envelope.Result, &vault))
	require.True(t, vault.Released)

	status, envelope = call(t, srv, testToken, "lodging_getAccount", accountAddressParams{Address: bech32Of(t, ownerAddr)})
	require.Equal(t, http.StatusOK, status)
	var account accountJSON
	require.NoError(t, json.Unmarshal(envelope.Result, &account))
	require.Equal(t, "500", account.BalanceNative)
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t, Options{AuthToken: testToken})
	ownerKey := mustKey(t)

	// No registry yet.
	status, envelope := call(t, srv, testToken, "lodging_createListing", createListingParams{
		Proof:          proofFor(t, ownerKey),
		ListingID:      1,
		PricePerNight:  "500",
		Currency:       "NATIVE",
		AvailableDates: []uint64{100},
	})
	require.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, envelope.Error)
	require.Equal(t, codeNotFound, envelope.Error.Code)

	status, envelope = call(t, srv, testToken, "lodging_initializeRegistry", initializeRegistryParams{Capacity: 10})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, envelope.Error)

	// Second initialization conflicts.
	status, envelope = call(t, srv, testToken, "lodging_initializeRegistry", initializeRegistryParams{Capacity: 10})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeConflict, envelope.Error.Code)

	// Unknown currency is rejected before the transition runs.
	status, envelope = call(t, srv, testToken, "lodging_createListing", createListingParams{
		Proof:          proofFor(t, ownerKey),
		ListingID:      1,
		PricePerNight:  "500",
		Currency:       "DOGE",
		AvailableDates: []uint64{100},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, envelope.Error.Code)

	// Unknown entity lookups map to not found.
	status, envelope = call(t, srv, testToken, "lodging_getListing", entityAddressParams{
		Address: "0x" + hex.EncodeToString(make([]byte, 32)),
	})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeNotFound, envelope.Error.Code)

	// Unknown method.
	status, envelope = call(t, srv, testToken, "lodging_unknown", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, envelope.Error.Code)
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	srv, _ := newTestServer(t, Options{AuthToken: testToken})

	status, envelope := call(t, srv, "", "lodging_initializeRegistry", initializeRegistryParams{Capacity: 10})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, envelope.Error.Code)

	status, envelope = call(t, srv, "wrong-token", "lodging_initializeRegistry", initializeRegistryParams{Capacity: 10})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, envelope.Error.Code)

	// Reads stay open.
	status, envelope = call(t, srv, "", "lodging_getAllListings", nil)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, envelope.Error)
}

func TestAuthNotConfiguredRejectsMutations(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	status, envelope := call(t, srv, testToken, "lodging_initializeRegistry", initializeRegistryParams{Capacity: 10})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, envelope.Error.Code)
}

func TestJWTAuth(t *testing.T) {
	secret := "jwt-secret"
	srv, _ := newTestServer(t, Options{JWTSecret: secret})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	status, envelope := call(t, srv, token, "lodging_initializeRegistry", initializeRegistryParams{Capacity: 10})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, envelope.Error)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	status, envelope = call(t, srv, forged, "lodging_initializeRegistry", initializeRegistryParams{Capacity: 10})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, envelope.Error.Code)
}

func TestRateLimiting(t *testing.T) {
	srv, _ := newTestServer(t, Options{AuthToken: testToken, RatePerMinute: 1})

	status, _ := call(t, srv, testToken, "lodging_initializeRegistry", initializeRegistryParams{Capacity: 10})
	require.Equal(t, http.StatusOK, status)

	status, envelope := call(t, srv, testToken, "lodging_initializeRegistry", initializeRegistryParams{Capacity: 10})
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, envelope.Error.Code)
}

func TestMalformedRequests(t *testing.T) {
	srv, _ := newTestServer(t, Options{AuthToken: testToken})

	resp, err := srv.Client().Post(srv.URL+"/", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var envelope rpcEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, codeParseError, envelope.Error.Code)

	resp, err = srv.Client().Post(srv.URL+"/", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Wrong jsonrpc version.
	body, err := json.Marshal(map[string]interface{}{"jsonrpc": "1.0", "id": 1, "method": "lodging_getAllListings"})
	require.NoError(t, err)
	resp, err = srv.Client().Post(srv.URL+"/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
