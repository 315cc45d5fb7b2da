package lodging

import (
	"fmt"
	"math/big"
	"strings"
)

// Currency identifies the unit an amount is denominated in. The fractional
// digit policy is fixed per currency and is not configurable per call.
type Currency uint8

const (
	CurrencyNative Currency = iota
	CurrencyStable
)

// Valid reports whether the currency code is within the supported range.
func (c Currency) Valid() bool {
	return c == CurrencyNative || c == CurrencyStable
}

// Decimals returns the number of fractional digits amounts in this currency
// carry. Native amounts use nine digits, stable amounts six.
func (c Currency) Decimals() uint8 {
	if c == CurrencyStable {
		return 6
	}
	return 9
}

func (c Currency) String() string {
	switch c {
	case CurrencyNative:
		return "NATIVE"
	case CurrencyStable:
		return "STABLE"
	default:
		return fmt.Sprintf("CURRENCY(%d)", uint8(c))
	}
}

// ParseCurrency resolves a currency symbol to its canonical code.
func ParseCurrency(symbol string) (Currency, error) {
	switch strings.ToUpper(strings.TrimSpace(symbol)) {
	case "NATIVE":
		return CurrencyNative, nil
	case "STABLE":
		return CurrencyStable, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidCurrency, symbol)
	}
}

// BookingStatus tracks the lifecycle of a booking. Cancelled and Confirmed
// are mutually exclusive terminal states. Completed is declared for forward
// compatibility; no current transition produces it.
type BookingStatus uint8

const (
	BookingStatusBooked BookingStatus = iota
	BookingStatusConfirmed
	BookingStatusCancelled
	BookingStatusCompleted
)

// Valid reports whether the status value is within the supported range.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusBooked, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return true
	default:
		return false
	}
}

func (s BookingStatus) String() string {
	switch s {
	case BookingStatusBooked:
		return "booked"
	case BookingStatusConfirmed:
		return "confirmed"
	case BookingStatusCancelled:
		return "cancelled"
	case BookingStatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Bounds on variable-length listing fields. They keep a persisted listing
// record within its storage budget.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxLocationLength    = 200
	MaxAvailableDates    = 365
)

// Listing is one published property offering, addressed by
// ListingAddress(owner, listingID).
type Listing struct {
	Address        [32]byte
	Owner          [20]byte
	ListingID      uint64
	Title          string
	Description    string
	PricePerNight  *big.Int
	Currency       Currency
	AvailableDates []uint64
	MaxGuests      uint8
	Location       string
	// Active is set on creation and never flipped by any current
	// transition; a future delist operation would clear it.
	Active bool
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.PricePerNight != nil {
		clone.PricePerNight = new(big.Int).Set(l.PricePerNight)
	} else {
		clone.PricePerNight = big.NewInt(0)
	}
	clone.AvailableDates = append([]uint64(nil), l.AvailableDates...)
	return &clone
}

// SanitizeListing validates the supplied listing and returns a cloned
// instance with a non-nil price field. The original value is not mutated.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("lodging: nil listing")
	}
	clone := l.Clone()
	if !clone.Currency.Valid() {
		return nil, ErrInvalidCurrency
	}
	if len(clone.AvailableDates) == 0 {
		return nil, ErrInvalidDates
	}
	if len(clone.AvailableDates) > MaxAvailableDates {
		return nil, fmt.Errorf("lodging: available dates exceed %d entries", MaxAvailableDates)
	}
	if clone.PricePerNight.Sign() < 0 {
		return nil, fmt.Errorf("lodging: price per night must not be negative")
	}
	if len(clone.Title) > MaxTitleLength {
		return nil, fmt.Errorf("lodging: title exceeds %d bytes", MaxTitleLength)
	}
	if len(clone.Description) > MaxDescriptionLength {
		return nil, fmt.Errorf("lodging: description exceeds %d bytes", MaxDescriptionLength)
	}
	if len(clone.Location) > MaxLocationLength {
		return nil, fmt.Errorf("lodging: location exceeds %d bytes", MaxLocationLength)
	}
	return clone, nil
}

// HasDate reports whether the timestamp marker is present in the listing's
// availability set. Availability is flat membership, not a calendar range;
// overlapping stays on different markers are not prevented.
func (l *Listing) HasDate(date uint64) bool {
	if l == nil {
		return false
	}
	for _, d := range l.AvailableDates {
		if d == date {
			return true
		}
	}
	return false
}

// Booking is one reservation against a listing, addressed by
// BookingAddress(listing, guest, bookingID).
type Booking struct {
	Address           [32]byte
	Listing           [32]byte
	Guest             [20]byte
	BookingID         uint64
	CheckInDate       uint64
	CheckOutDate      uint64
	TotalPrice        *big.Int
	Currency          Currency
	Status            BookingStatus
	DepositPaid       bool
	CheckoutConfirmed bool
}

// Clone returns a deep copy of the booking.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	clone := *b
	if b.TotalPrice != nil {
		clone.TotalPrice = new(big.Int).Set(b.TotalPrice)
	} else {
		clone.TotalPrice = big.NewInt(0)
	}
	return &clone
}

// SanitizeBooking validates the supplied booking and returns a cloned
// instance with a non-nil price field.
func SanitizeBooking(b *Booking) (*Booking, error) {
	if b == nil {
		return nil, fmt.Errorf("lodging: nil booking")
	}
	clone := b.Clone()
	if !clone.Currency.Valid() {
		return nil, ErrInvalidCurrency
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("lodging: invalid booking status: %d", clone.Status)
	}
	if clone.CheckInDate >= clone.CheckOutDate {
		return nil, ErrInvalidDates
	}
	if clone.TotalPrice.Sign() < 0 {
		return nil, fmt.Errorf("lodging: booking price must not be negative")
	}
	return clone, nil
}

// EscrowVault is the custody record paired 1:1 with a booking, addressed by
// VaultAddress(booking). It is retained as an audit record after settlement.
type EscrowVault struct {
	Address     [32]byte
	Booking     [32]byte
	TotalAmount *big.Int
	Currency    Currency
	// Released moves false to true at most once, together with exactly one
	// outbound transfer (release to the owner or refund to the guest).
	Released bool
}

// Clone returns a deep copy of the vault.
func (v *EscrowVault) Clone() *EscrowVault {
	if v == nil {
		return nil
	}
	clone := *v
	if v.TotalAmount != nil {
		clone.TotalAmount = new(big.Int).Set(v.TotalAmount)
	} else {
		clone.TotalAmount = big.NewInt(0)
	}
	return &clone
}

// SanitizeVault validates the supplied vault and returns a cloned instance
// with a non-nil amount field.
func SanitizeVault(v *EscrowVault) (*EscrowVault, error) {
	if v == nil {
		return nil, fmt.Errorf("lodging: nil escrow vault")
	}
	clone := v.Clone()
	if !clone.Currency.Valid() {
		return nil, ErrInvalidCurrency
	}
	if clone.TotalAmount.Sign() < 0 {
		return nil, fmt.Errorf("lodging: vault amount must not be negative")
	}
	return clone, nil
}

// ListingRegistry is the singleton directory of listing addresses. Insertion
// order is publication order. Capacity is fixed when the registry is
// initialized; appending past it fails explicitly rather than truncating.
type ListingRegistry struct {
	Capacity uint32
	Listings [][32]byte
}

// Clone returns a deep copy of the registry.
func (r *ListingRegistry) Clone() *ListingRegistry {
	if r == nil {
		return nil
	}
	clone := &ListingRegistry{Capacity: r.Capacity}
	if len(r.Listings) > 0 {
		clone.Listings = make([][32]byte, len(r.Listings))
		copy(clone.Listings, r.Listings)
	}
	return clone
}

// Append records a new listing address, failing with ErrCapacityExceeded when
// the registry is full.
func (r *ListingRegistry) Append(addr [32]byte) error {
	if r == nil {
		return fmt.Errorf("lodging: nil listing registry")
	}
	if uint32(len(r.Listings)) >= r.Capacity {
		return ErrCapacityExceeded
	}
	r.Listings = append(r.Listings, addr)
	return nil
}
