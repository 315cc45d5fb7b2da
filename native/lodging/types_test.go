package lodging

import (
	"errors"
	"math/big"
	"testing"
)

func TestCurrency(t *testing.T) {
	if !CurrencyNative.Valid() || !CurrencyStable.Valid() {
		t.Fatalf("supported currencies must be valid")
	}
	if Currency(9).Valid() {
		t.Fatalf("unknown currency code must be invalid")
	}
	if CurrencyNative.Decimals() != 9 {
		t.Fatalf("native decimals: got %d", CurrencyNative.Decimals())
	}
	if CurrencyStable.Decimals() != 6 {
		t.Fatalf("stable decimals: got %d", CurrencyStable.Decimals())
	}

	if c, err := ParseCurrency(" native "); err != nil || c != CurrencyNative {
		t.Fatalf("parse native: %v %v", c, err)
	}
	if c, err := ParseCurrency("STABLE"); err != nil || c != CurrencyStable {
		t.Fatalf("parse stable: %v %v", c, err)
	}
	if _, err := ParseCurrency("DOGE"); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
}

func TestSanitizeListing(t *testing.T) {
	valid := &Listing{
		Currency:       CurrencyNative,
		PricePerNight:  big.NewInt(100),
		AvailableDates: []uint64{1, 2, 3},
	}
	sanitized, err := SanitizeListing(valid)
	if err != nil {
		t.Fatalf("sanitize valid listing: %v", err)
	}
	// Sanitizing must not alias the caller's slices.
	sanitized.AvailableDates[0] = 99
	if valid.AvailableDates[0] != 1 {
		t.Fatalf("sanitize must deep-copy available dates")
	}

	if _, err := SanitizeListing(nil); err == nil {
		t.Fatalf("nil listing must fail")
	}
	if _, err := SanitizeListing(&Listing{Currency: Currency(5), AvailableDates: []uint64{1}}); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
	if _, err := SanitizeListing(&Listing{Currency: CurrencyNative}); !errors.Is(err, ErrInvalidDates) {
		t.Fatalf("expected ErrInvalidDates, got %v", err)
	}
	tooMany := make([]uint64, MaxAvailableDates+1)
	if _, err := SanitizeListing(&Listing{Currency: CurrencyNative, AvailableDates: tooMany}); err == nil {
		t.Fatalf("oversized date set must fail")
	}
	if _, err := SanitizeListing(&Listing{
		Currency:       CurrencyNative,
		AvailableDates: []uint64{1},
		PricePerNight:  big.NewInt(-1),
	}); err == nil {
		t.Fatalf("negative price must fail")
	}

	nilPrice, err := SanitizeListing(&Listing{Currency: CurrencyNative, AvailableDates: []uint64{1}})
	if err != nil {
		t.Fatalf("sanitize listing without price: %v", err)
	}
	if nilPrice.PricePerNight == nil || nilPrice.PricePerNight.Sign() != 0 {
		t.Fatalf("nil price must normalize to zero")
	}
}

func TestListingHasDate(t *testing.T) {
	listing := &Listing{AvailableDates: []uint64{100, 200, 300}}
	if !listing.HasDate(200) {
		t.Fatalf("expected membership for 200")
	}
	if listing.HasDate(150) {
		t.Fatalf("availability is membership, not a range")
	}
	var nilListing *Listing
	if nilListing.HasDate(100) {
		t.Fatalf("nil listing has no dates")
	}
}

func TestSanitizeBooking(t *testing.T) {
	valid := &Booking{
		Currency:     CurrencyStable,
		CheckInDate:  10,
		CheckOutDate: 20,
		TotalPrice:   big.NewInt(50),
		Status:       BookingStatusBooked,
	}
	if _, err := SanitizeBooking(valid); err != nil {
		t.Fatalf("sanitize valid booking: %v", err)
	}
	if _, err := SanitizeBooking(&Booking{Currency: CurrencyStable, CheckInDate: 20, CheckOutDate: 10}); !errors.Is(err, ErrInvalidDates) {
		t.Fatalf("expected ErrInvalidDates, got %v", err)
	}
	if _, err := SanitizeBooking(&Booking{Currency: CurrencyStable, CheckInDate: 10, CheckOutDate: 10}); !errors.Is(err, ErrInvalidDates) {
		t.Fatalf("equal dates must fail")
	}
	if _, err := SanitizeBooking(&Booking{Currency: CurrencyStable, CheckInDate: 10, CheckOutDate: 20, Status: BookingStatus(8)}); err == nil {
		t.Fatalf("unknown status must fail")
	}
}

func TestSanitizeVault(t *testing.T) {
	if _, err := SanitizeVault(&EscrowVault{Currency: CurrencyNative, TotalAmount: big.NewInt(1)}); err != nil {
		t.Fatalf("sanitize valid vault: %v", err)
	}
	if _, err := SanitizeVault(&EscrowVault{Currency: Currency(3)}); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
	if _, err := SanitizeVault(&EscrowVault{Currency: CurrencyNative, TotalAmount: big.NewInt(-5)}); err == nil {
		t.Fatalf("negative amount must fail")
	}
}

func TestRegistryAppend(t *testing.T) {
	reg := &ListingRegistry{Capacity: 2}
	if err := reg.Append([32]byte{1}); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := reg.Append([32]byte{2}); err != nil {
		t.Fatalf("append second: %v", err)
	}
	if err := reg.Append([32]byte{3}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if len(reg.Listings) != 2 || reg.Listings[0] != [32]byte{1} || reg.Listings[1] != [32]byte{2} {
		t.Fatalf("registry must preserve insertion order, got %v", reg.Listings)
	}
}

func TestRegistryClone(t *testing.T) {
	reg := &ListingRegistry{Capacity: 4, Listings: [][32]byte{{1}, {2}}}
	clone := reg.Clone()
	clone.Listings[0] = [32]byte{9}
	if reg.Listings[0] != [32]byte{1} {
		t.Fatalf("clone must not alias the original slice")
	}
}
