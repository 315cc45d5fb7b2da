package lodging

import (
	"encoding/hex"
	"strconv"

	"openstay/core/types"
	"openstay/crypto"
)

const (
	EventTypeRegistryInitialized = "lodging.registry.initialized"
	EventTypeListingCreated      = "lodging.listing.created"
	EventTypeBookingCreated      = "lodging.booking.created"
	EventTypeBookingConfirmed    = "lodging.booking.confirmed"
	EventTypeBookingCancelled    = "lodging.booking.cancelled"
	EventTypeEscrowReleased      = "lodging.escrow.released"
	EventTypeEscrowRefunded      = "lodging.escrow.refunded"
)

func addressString(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.StayPrefix, addr[:]).String()
}

// NewRegistryInitializedEvent returns the canonical event payload emitted
// when the listing registry singleton is created.
func NewRegistryInitializedEvent(reg *ListingRegistry) *types.Event {
	attrs := make(map[string]string)
	if reg != nil {
		attrs["capacity"] = strconv.FormatUint(uint64(reg.Capacity), 10)
	}
	return &types.Event{Type: EventTypeRegistryInitialized, Attributes: attrs}
}

// NewListingCreatedEvent returns the canonical event payload for a newly
// published listing.
func NewListingCreatedEvent(l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l != nil {
		sanitized, err := SanitizeListing(l)
		if err == nil {
			attrs["address"] = hex.EncodeToString(sanitized.Address[:])
			attrs["owner"] = addressString(sanitized.Owner)
			attrs["listingId"] = strconv.FormatUint(sanitized.ListingID, 10)
			attrs["currency"] = sanitized.Currency.String()
			attrs["pricePerNight"] = sanitized.PricePerNight.String()
			attrs["maxGuests"] = strconv.FormatUint(uint64(sanitized.MaxGuests), 10)
		}
	}
	return &types.Event{Type: EventTypeListingCreated, Attributes: attrs}
}

// NewBookingCreatedEvent returns the canonical event payload for a funded
// booking and its escrow vault.
func NewBookingCreatedEvent(b *Booking, v *EscrowVault) *types.Event {
	attrs := make(map[string]string)
	if b != nil {
		sanitized, err := SanitizeBooking(b)
		if err == nil {
			attrs["address"] = hex.EncodeToString(sanitized.Address[:])
			attrs["listing"] = hex.EncodeToString(sanitized.Listing[:])
			attrs["guest"] = addressString(sanitized.Guest)
			attrs["bookingId"] = strconv.FormatUint(sanitized.BookingID, 10)
			attrs["checkIn"] = strconv.FormatUint(sanitized.CheckInDate, 10)
			attrs["checkOut"] = strconv.FormatUint(sanitized.CheckOutDate, 10)
			attrs["currency"] = sanitized.Currency.String()
			attrs["totalPrice"] = sanitized.TotalPrice.String()
		}
	}
	if v != nil {
		attrs["vault"] = hex.EncodeToString(v.Address[:])
	}
	return &types.Event{Type: EventTypeBookingCreated, Attributes: attrs}
}

func newBookingStatusEvent(eventType string, b *Booking) *types.Event {
	attrs := make(map[string]string)
	if b != nil {
		attrs["address"] = hex.EncodeToString(b.Address[:])
		attrs["listing"] = hex.EncodeToString(b.Listing[:])
		attrs["guest"] = addressString(b.Guest)
		attrs["bookingId"] = strconv.FormatUint(b.BookingID, 10)
		attrs["status"] = b.Status.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewBookingConfirmedEvent returns the canonical event payload emitted when a
// checkout is confirmed by the listing owner.
func NewBookingConfirmedEvent(b *Booking) *types.Event {
	return newBookingStatusEvent(EventTypeBookingConfirmed, b)
}

// NewBookingCancelledEvent returns the canonical event payload emitted when a
// booking is cancelled.
func NewBookingCancelledEvent(b *Booking) *types.Event {
	return newBookingStatusEvent(EventTypeBookingCancelled, b)
}

func newVaultEvent(eventType string, v *EscrowVault) *types.Event {
	attrs := make(map[string]string)
	if v != nil {
		sanitized, err := SanitizeVault(v)
		if err == nil {
			attrs["address"] = hex.EncodeToString(sanitized.Address[:])
			attrs["booking"] = hex.EncodeToString(sanitized.Booking[:])
			attrs["currency"] = sanitized.Currency.String()
			attrs["amount"] = sanitized.TotalAmount.String()
		}
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewEscrowReleasedEvent returns the canonical event payload for a settlement
// in favour of the listing owner.
func NewEscrowReleasedEvent(v *EscrowVault) *types.Event {
	return newVaultEvent(EventTypeEscrowReleased, v)
}

// NewEscrowRefundedEvent returns the canonical event payload for a settlement
// refunding the guest.
func NewEscrowRefundedEvent(v *EscrowVault) *types.Event {
	return newVaultEvent(EventTypeEscrowRefunded, v)
}
