package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"openstay/crypto"
	"openstay/native/lodging"
)

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError carries a JSON-RPC error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type proofJSON struct {
	Digest    string `json:"digest"`
	Signature string `json:"signature"`
}

type initializeRegistryParams struct {
	Capacity uint32 `json:"capacity"`
}

type createListingParams struct {
	Proof          proofJSON `json:"proof"`
	ListingID      uint64    `json:"listingId"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	PricePerNight  string    `json:"pricePerNight"`
	Currency       string    `json:"currency"`
	AvailableDates []uint64  `json:"availableDates"`
	MaxGuests      uint8     `json:"maxGuests"`
	Location       string    `json:"location"`
}

type bookStayParams struct {
	Proof         proofJSON `json:"proof"`
	Listing       string    `json:"listing"`
	Owner         string    `json:"owner"`
	ListingID     uint64    `json:"listingId"`
	BookingID     uint64    `json:"bookingId"`
	CheckInDate   uint64    `json:"checkInDate"`
	CheckOutDate  uint64    `json:"checkOutDate"`
	Currency      string    `json:"currency"`
	Amount        string    `json:"amount"`
	FundingSource string    `json:"fundingSource"`
}

type bookingRefParams struct {
	Proof     proofJSON `json:"proof"`
	Guest     string    `json:"guest"`
	Listing   string    `json:"listing"`
	Owner     string    `json:"owner"`
	ListingID uint64    `json:"listingId"`
	BookingID uint64    `json:"bookingId"`
}

type entityAddressParams struct {
	Address string `json:"address"`
}

type accountAddressParams struct {
	Address string `json:"address"`
}

type registryJSON struct {
	Capacity uint32   `json:"capacity"`
	Listings []string `json:"listings"`
}

type listingJSON struct {
	Address        string   `json:"address"`
	Owner          string   `json:"owner"`
	ListingID      uint64   `json:"listingId"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	PricePerNight  string   `json:"pricePerNight"`
	Currency       string   `json:"currency"`
	AvailableDates []uint64 `json:"availableDates"`
	MaxGuests      uint8    `json:"maxGuests"`
	Location       string   `json:"location"`
	Active         bool     `json:"active"`
}

type bookingJSON struct {
	Address           string `json:"address"`
	Listing           string `json:"listing"`
	Guest             string `json:"guest"`
	BookingID         uint64 `json:"bookingId"`
	CheckInDate       uint64 `json:"checkInDate"`
	CheckOutDate      uint64 `json:"checkOutDate"`
	TotalPrice        string `json:"totalPrice"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	DepositPaid       bool   `json:"depositPaid"`
	CheckoutConfirmed bool   `json:"checkoutConfirmed"`
}

type vaultJSON struct {
	Address     string `json:"address"`
	Booking     string `json:"booking"`
	TotalAmount string `json:"totalAmount"`
	Currency    string `json:"currency"`
	Released    bool   `json:"released"`
}

type accountJSON struct {
	Address       string `json:"address"`
	Nonce         uint64 `json:"nonce"`
	BalanceNative string `json:"balanceNative"`
	BalanceStable string `json:"balanceStable"`
}

func listingToJSON(l *lodging.Listing) listingJSON {
	return listingJSON{
		Address:        encodeEntityAddress(l.Address),
		Owner:          encodeAccountAddress(l.Owner),
		ListingID:      l.ListingID,
		Title:          l.Title,
		Description:    l.Description,
		PricePerNight:  l.PricePerNight.String(),
		Currency:       l.Currency.String(),
		AvailableDates: append([]uint64(nil), l.AvailableDates...),
		MaxGuests:      l.MaxGuests,
		Location:       l.Location,
		Active:         l.Active,
	}
}

func bookingToJSON(b *lodging.Booking) bookingJSON {
	return bookingJSON{
		Address:           encodeEntityAddress(b.Address),
		Listing:           encodeEntityAddress(b.Listing),
		Guest:             encodeAccountAddress(b.Guest),
		BookingID:         b.BookingID,
		CheckInDate:       b.CheckInDate,
		CheckOutDate:      b.CheckOutDate,
		TotalPrice:        b.TotalPrice.String(),
		Currency:          b.Currency.String(),
		Status:            b.Status.String(),
		DepositPaid:       b.DepositPaid,
		CheckoutConfirmed: b.CheckoutConfirmed,
	}
}

func vaultToJSON(v *lodging.EscrowVault) vaultJSON {
	return vaultJSON{
		Address:     encodeEntityAddress(v.Address),
		Booking:     encodeEntityAddress(v.Booking),
		TotalAmount: v.TotalAmount.String(),
		Currency:    v.Currency.String(),
		Released:    v.Released,
	}
}

// encodeEntityAddress renders a derived 32-byte entity address as 0x hex.
func encodeEntityAddress(addr [32]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// encodeAccountAddress renders a 20-byte identity as bech32.
func encodeAccountAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.StayPrefix, addr[:]).String()
}

func parseEntityAddress(raw string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid entity address: %w", err)
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("entity address must be 32 bytes, got %d", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

func parseAccountAddress(raw string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Array(), nil
}

func parseProof(p proofJSON) (lodging.Proof, error) {
	digestBytes, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(p.Digest), "0x"))
	if err != nil {
		return lodging.Proof{}, fmt.Errorf("invalid proof digest: %w", err)
	}
	if len(digestBytes) != 32 {
		return lodging.Proof{}, fmt.Errorf("proof digest must be 32 bytes, got %d", len(digestBytes))
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(p.Signature), "0x"))
	if err != nil {
		return lodging.Proof{}, fmt.Errorf("invalid proof signature: %w", err)
	}
	proof := lodging.Proof{Signature: sig}
	copy(proof.Digest[:], digestBytes)
	return proof, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", raw)
	}
	return amount, nil
}
