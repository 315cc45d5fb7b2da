package state

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"openstay/core/types"
	"openstay/native/lodging"
	"openstay/storage"
)

var (
	registryPrefix = []byte("lodging/registry/")
	listingPrefix  = []byte("lodging/listing/")
	bookingPrefix  = []byte("lodging/booking/")
	vaultPrefix    = []byte("lodging/vault/")
	accountPrefix  = []byte("lodging/account/")
)

func prefixedKey(prefix, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix):], suffix)
	return buf
}

// Manager reads and writes ledger entities at their derived addresses. All
// records are RLP encoded; entity payloads are validated through the lodging
// sanitizers before they reach the database.
type Manager struct {
	db storage.Database

	txMu sync.Mutex
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Transition runs fn against a buffered view of the state. Writes issued
// inside fn are only flushed to the underlying database when fn returns nil;
// any error discards every buffered write. Transitions on the same manager
// are serialized: each one reads the state left by the previous commit, so
// two racing settlements cannot both observe an unreleased vault. This is
// the single atomic unit all ledger transitions execute in.
func (m *Manager) Transition(fn func(*Manager) error) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager not configured")
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()
	ov := newOverlay(m.db)
	if err := fn(NewManager(ov)); err != nil {
		return err
	}
	return ov.flush()
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, encoded)
}

// --- Listing registry ---

// RegistryPut stores the singleton listing registry.
func (m *Manager) RegistryPut(reg *lodging.ListingRegistry) error {
	if reg == nil {
		return fmt.Errorf("state: nil listing registry")
	}
	addr := lodging.RegistryAddress()
	return m.put(prefixedKey(registryPrefix, addr[:]), reg)
}

// RegistryGet loads the singleton listing registry.
func (m *Manager) RegistryGet() (*lodging.ListingRegistry, bool) {
	addr := lodging.RegistryAddress()
	reg := new(lodging.ListingRegistry)
	ok, err := m.get(prefixedKey(registryPrefix, addr[:]), reg)
	if err != nil || !ok {
		return nil, false
	}
	return reg, true
}

// --- Listings ---

// ListingPut validates and stores a listing at its derived address.
func (m *Manager) ListingPut(l *lodging.Listing) error {
	sanitized, err := lodging.SanitizeListing(l)
	if err != nil {
		return err
	}
	return m.put(prefixedKey(listingPrefix, sanitized.Address[:]), sanitized)
}

// ListingGet loads a listing by derived address.
func (m *Manager) ListingGet(addr [32]byte) (*lodging.Listing, bool) {
	listing := new(lodging.Listing)
	ok, err := m.get(prefixedKey(listingPrefix, addr[:]), listing)
	if err != nil || !ok {
		return nil, false
	}
	return listing, true
}

// --- Bookings ---

// BookingPut validates and stores a booking at its derived address.
func (m *Manager) BookingPut(b *lodging.Booking) error {
	sanitized, err := lodging.SanitizeBooking(b)
	if err != nil {
		return err
	}
	return m.put(prefixedKey(bookingPrefix, sanitized.Address[:]), sanitized)
}

// BookingGet loads a booking by derived address.
func (m *Manager) BookingGet(addr [32]byte) (*lodging.Booking, bool) {
	booking := new(lodging.Booking)
	ok, err := m.get(prefixedKey(bookingPrefix, addr[:]), booking)
	if err != nil || !ok {
		return nil, false
	}
	return booking, true
}

// --- Escrow vaults ---

// VaultPut validates and stores an escrow vault at its derived address.
func (m *Manager) VaultPut(v *lodging.EscrowVault) error {
	sanitized, err := lodging.SanitizeVault(v)
	if err != nil {
		return err
	}
	return m.put(prefixedKey(vaultPrefix, sanitized.Address[:]), sanitized)
}

// VaultGet loads an escrow vault by derived address.
func (m *Manager) VaultGet(addr [32]byte) (*lodging.EscrowVault, bool) {
	vault := new(lodging.EscrowVault)
	ok, err := m.get(prefixedKey(vaultPrefix, addr[:]), vault)
	if err != nil || !ok {
		return nil, false
	}
	return vault, true
}

// --- Accounts ---

type storedAccount struct {
	Nonce         uint64
	BalanceNative *big.Int
	BalanceStable *big.Int
}

// GetAccount loads the account for an address. Missing accounts resolve to a
// zero-balance account rather than an error.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	stored := new(storedAccount)
	ok, err := m.get(prefixedKey(accountPrefix, addr[:]), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return (&types.Account{}).Normalize(), nil
	}
	acc := &types.Account{
		Nonce:         stored.Nonce,
		BalanceNative: stored.BalanceNative,
		BalanceStable: stored.BalanceStable,
	}
	return acc.Normalize(), nil
}

// PutAccount stores the account for an address.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	account = account.Clone()
	stored := &storedAccount{
		Nonce:         account.Nonce,
		BalanceNative: account.BalanceNative,
		BalanceStable: account.BalanceStable,
	}
	return m.put(prefixedKey(accountPrefix, addr[:]), stored)
}

// Credit adds amount to the account's balance in the given currency. It is
// used to seed genesis allocations.
func (m *Manager) Credit(addr [20]byte, currency lodging.Currency, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: credit amount must be non-negative")
	}
	acc, err := m.GetAccount(addr)
	if err != nil {
		return err
	}
	switch currency {
	case lodging.CurrencyNative:
		acc.BalanceNative = new(big.Int).Add(acc.BalanceNative, amount)
	case lodging.CurrencyStable:
		acc.BalanceStable = new(big.Int).Add(acc.BalanceStable, amount)
	default:
		return lodging.ErrInvalidCurrency
	}
	return m.PutAccount(addr, acc)
}
