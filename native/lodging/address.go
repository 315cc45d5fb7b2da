package lodging

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Storage namespaces. Entity addresses are derived from a namespace tag plus
// ordered key components instead of caller-supplied identifiers, so a caller
// cannot spoof another party's records.
const (
	namespaceRegistry = "listing_registry"
	namespaceListing  = "listing"
	namespaceBooking  = "booking"
	namespaceVault    = "escrow_vault"
	namespaceCustody  = "custody"
)

// Derive computes the deterministic storage address for a namespace tag and
// its ordered key components.
func Derive(namespace string, components ...[]byte) [32]byte {
	data := make([][]byte, 0, len(components)+1)
	data = append(data, []byte(namespace))
	data = append(data, components...)
	return ethcrypto.Keccak256Hash(data...)
}

// RegistryAddress returns the address of the singleton listing registry.
func RegistryAddress() [32]byte {
	return Derive(namespaceRegistry)
}

// ListingAddress derives the address of a listing from its owner and the
// owner-scoped listing identifier.
func ListingAddress(owner [20]byte, listingID uint64) [32]byte {
	return Derive(namespaceListing, owner[:], uint64LE(listingID))
}

// BookingAddress derives the address of a booking from the listing it
// reserves, the guest, and the guest-scoped booking identifier.
func BookingAddress(listing [32]byte, guest [20]byte, bookingID uint64) [32]byte {
	return Derive(namespaceBooking, listing[:], guest[:], uint64LE(bookingID))
}

// VaultAddress derives the address of the escrow vault paired with a booking.
func VaultAddress(booking [32]byte) [32]byte {
	return Derive(namespaceVault, booking[:])
}

// CustodyAddress returns the program-controlled account that holds deposits
// for the given currency while their bookings are unsettled.
func CustodyAddress(currency Currency) [20]byte {
	full := Derive(namespaceCustody, []byte{byte(currency)})
	var addr [20]byte
	copy(addr[:], full[:20])
	return addr
}

// uint64LE renders an identifier the way the address scheme expects key
// components: fixed eight bytes, little endian.
func uint64LE(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}
