package lodging

import (
	"errors"
	"fmt"
	"math/big"

	"openstay/core/events"
	"openstay/core/types"
)

var errNilState = errors.New("lodging engine: state not configured")

// engineState is the storage surface the engine mutates. Implementations must
// execute each engine call inside one atomic unit: either every put the call
// issues commits, or none does. core/state.Manager.Transition provides that
// discipline for the daemon; tests use map-backed harnesses.
type engineState interface {
	RegistryPut(*ListingRegistry) error
	RegistryGet() (*ListingRegistry, bool)
	ListingPut(*Listing) error
	ListingGet(addr [32]byte) (*Listing, bool)
	BookingPut(*Booking) error
	BookingGet(addr [32]byte) (*Booking, bool)
	VaultPut(*EscrowVault) error
	VaultGet(addr [32]byte) (*EscrowVault, bool)
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

type lodgingEvent struct {
	evt *types.Event
}

func (e lodgingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e lodgingEvent) Event() *types.Event { return e.evt }

// Engine wires the booking ledger transitions with external state, the fund
// transfer gateway, and an event emitter.
type Engine struct {
	state   engineState
	gateway TransferGateway
	emitter events.Emitter
}

// NewEngine creates an engine with a no-op emitter. Callers can override the
// emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetGateway configures the fund transfer gateway. When unset the engine
// settles against ledger accounts through a LedgerGateway over its state.
func (e *Engine) SetGateway(gateway TransferGateway) { e.gateway = gateway }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(lodgingEvent{evt: event})
}

func (e *Engine) transferGateway() TransferGateway {
	if e.gateway != nil {
		return e.gateway
	}
	return NewLedgerGateway(e.state)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// InitializeRegistry creates the singleton listing registry with the given
// fixed capacity. The capacity cannot be changed afterwards; growing it means
// migrating to a new registry address.
func (e *Engine) InitializeRegistry(capacity uint32) (*ListingRegistry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if capacity == 0 {
		return nil, fmt.Errorf("lodging: registry capacity must be positive")
	}
	if _, ok := e.state.RegistryGet(); ok {
		return nil, ErrAlreadyInitialized
	}
	reg := &ListingRegistry{Capacity: capacity}
	if err := e.state.RegistryPut(reg); err != nil {
		return nil, err
	}
	e.emit(NewRegistryInitializedEvent(reg))
	return reg.Clone(), nil
}

// CreateListingParams carries the caller-supplied fields of a new listing.
// The owner identity comes from the authorization proof.
type CreateListingParams struct {
	ListingID      uint64
	Title          string
	Description    string
	PricePerNight  *big.Int
	Currency       Currency
	AvailableDates []uint64
	MaxGuests      uint8
	Location       string
}

// CreateListing publishes a new listing owned by the proof's signer and
// registers its address, all in one atomic transition.
func (e *Engine) CreateListing(owner Proof, params CreateListingParams) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ownerAddr, err := owner.Verify()
	if err != nil {
		return nil, err
	}
	listing := &Listing{
		Owner:          ownerAddr,
		ListingID:      params.ListingID,
		Title:          params.Title,
		Description:    params.Description,
		PricePerNight:  cloneBigInt(params.PricePerNight),
		Currency:       params.Currency,
		AvailableDates: params.AvailableDates,
		MaxGuests:      params.MaxGuests,
		Location:       params.Location,
		Active:         true,
	}
	listing.Address = ListingAddress(ownerAddr, params.ListingID)
	sanitized, err := SanitizeListing(listing)
	if err != nil {
		return nil, err
	}
	if _, ok := e.state.ListingGet(sanitized.Address); ok {
		return nil, ErrDuplicateListing
	}
	reg, ok := e.state.RegistryGet()
	if !ok {
		return nil, ErrRegistryNotInitialized
	}
	if err := reg.Append(sanitized.Address); err != nil {
		return nil, err
	}
	if err := e.state.ListingPut(sanitized); err != nil {
		return nil, err
	}
	if err := e.state.RegistryPut(reg); err != nil {
		return nil, err
	}
	e.emit(NewListingCreatedEvent(sanitized))
	return sanitized.Clone(), nil
}

// BookStayParams identifies the listing being reserved and the terms of the
// deposit. The guest identity comes from the authorization proof.
type BookStayParams struct {
	ListingAddress [32]byte
	Owner          [20]byte
	ListingID      uint64
	BookingID      uint64
	CheckInDate    uint64
	CheckOutDate   uint64
	Currency       Currency
	Amount         *big.Int
	// FundingSource is the account the deposit is debited from. It must be
	// owned by the guest; unchecked external handles are not accepted into
	// the fund-moving path.
	FundingSource [20]byte
}

// BookStay creates a booking and its escrow vault and moves the deposit from
// the guest's funding source into program custody. The two entity creations
// and the transfer commit together or not at all.
func (e *Engine) BookStay(guest Proof, params BookStayParams) (*Booking, *EscrowVault, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	guestAddr, err := guest.Verify()
	if err != nil {
		return nil, nil, err
	}
	if !params.Currency.Valid() {
		return nil, nil, ErrInvalidCurrency
	}
	if params.CheckInDate >= params.CheckOutDate {
		return nil, nil, ErrInvalidDates
	}
	derived := ListingAddress(params.Owner, params.ListingID)
	if derived != params.ListingAddress {
		return nil, nil, ErrInvalidBooking
	}
	listing, ok := e.state.ListingGet(derived)
	if !ok {
		return nil, nil, ErrListingNotFound
	}
	if !listing.Active {
		return nil, nil, ErrListingNotActive
	}
	if listing.Owner != params.Owner {
		return nil, nil, ErrInvalidListingOwner
	}
	if !listing.HasDate(params.CheckInDate) && !listing.HasDate(params.CheckOutDate) {
		return nil, nil, ErrDatesNotAvailable
	}
	if guestAddr == listing.Owner {
		return nil, nil, ErrInvalidGuest
	}
	if params.FundingSource != guestAddr {
		return nil, nil, ErrInvalidFundingSource
	}
	bookingAddr := BookingAddress(params.ListingAddress, guestAddr, params.BookingID)
	if _, ok := e.state.BookingGet(bookingAddr); ok {
		return nil, nil, ErrDuplicateBooking
	}
	booking := &Booking{
		Address:           bookingAddr,
		Listing:           params.ListingAddress,
		Guest:             guestAddr,
		BookingID:         params.BookingID,
		CheckInDate:       params.CheckInDate,
		CheckOutDate:      params.CheckOutDate,
		TotalPrice:        cloneBigInt(params.Amount),
		Currency:          params.Currency,
		Status:            BookingStatusBooked,
		DepositPaid:       true,
		CheckoutConfirmed: false,
	}
	vault := &EscrowVault{
		Address:     VaultAddress(bookingAddr),
		Booking:     bookingAddr,
		TotalAmount: cloneBigInt(params.Amount),
		Currency:    params.Currency,
		Released:    false,
	}
	sanitizedBooking, err := SanitizeBooking(booking)
	if err != nil {
		return nil, nil, err
	}
	sanitizedVault, err := SanitizeVault(vault)
	if err != nil {
		return nil, nil, err
	}
	// The deposit moves before either entity is written so a gateway failure
	// aborts with no partial booking.
	custody := CustodyAddress(params.Currency)
	amount := cloneBigInt(params.Amount)
	if err := e.transferGateway().TransferChecked(params.FundingSource, custody, guestAddr, params.Currency, amount, params.Currency.Decimals()); err != nil {
		return nil, nil, fmt.Errorf("lodging: deposit transfer: %w", err)
	}
	if err := e.state.BookingPut(sanitizedBooking); err != nil {
		return nil, nil, err
	}
	if err := e.state.VaultPut(sanitizedVault); err != nil {
		return nil, nil, err
	}
	e.emit(NewBookingCreatedEvent(sanitizedBooking, sanitizedVault))
	return sanitizedBooking.Clone(), sanitizedVault.Clone(), nil
}

// BookingRef locates an existing booking and its vault: the guest, the
// listing identity used to re-derive the listing address, and the
// guest-scoped booking identifier.
type BookingRef struct {
	Guest          [20]byte
	ListingAddress [32]byte
	Owner          [20]byte
	ListingID      uint64
	BookingID      uint64
}

func (e *Engine) resolveBooking(ref BookingRef) (*Listing, *Booking, *EscrowVault, error) {
	derived := ListingAddress(ref.Owner, ref.ListingID)
	if derived != ref.ListingAddress {
		return nil, nil, nil, ErrInvalidBooking
	}
	listing, ok := e.state.ListingGet(derived)
	if !ok {
		return nil, nil, nil, ErrListingNotFound
	}
	bookingAddr := BookingAddress(ref.ListingAddress, ref.Guest, ref.BookingID)
	booking, ok := e.state.BookingGet(bookingAddr)
	if !ok {
		return nil, nil, nil, ErrBookingNotFound
	}
	vault, ok := e.state.VaultGet(VaultAddress(bookingAddr))
	if !ok {
		return nil, nil, nil, ErrVaultNotFound
	}
	return listing, booking, vault, nil
}

// ConfirmCheckout releases the escrowed deposit to the listing owner and
// marks the booking confirmed. Only the listing owner may confirm. The
// settlement flag and the fund transfer are one atomic unit: a transfer
// failure leaves the vault unreleased and the booking unconfirmed.
func (e *Engine) ConfirmCheckout(owner Proof, ref BookingRef) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	listing, booking, vault, err := e.resolveBooking(ref)
	if err != nil {
		return err
	}
	if _, err := RequireSigner(owner, listing.Owner, ErrInvalidListingOwner); err != nil {
		return err
	}
	if booking.Guest != ref.Guest {
		return ErrInvalidGuest
	}
	if booking.Listing != ref.ListingAddress {
		return ErrInvalidBooking
	}
	if booking.CheckoutConfirmed {
		return ErrBookingAlreadyConfirmed
	}
	if booking.Status == BookingStatusCancelled {
		return ErrBookingAlreadyCancelled
	}
	if booking.Status == BookingStatusCompleted {
		return ErrBookingAlreadyCompleted
	}
	if vault.Released {
		// Unreachable when the release invariant holds; reject rather than
		// settle twice.
		return fmt.Errorf("lodging: escrow vault already released")
	}
	custody := CustodyAddress(vault.Currency)
	amount := cloneBigInt(vault.TotalAmount)
	if err := e.transferGateway().TransferChecked(custody, listing.Owner, custody, vault.Currency, amount, vault.Currency.Decimals()); err != nil {
		return fmt.Errorf("lodging: release transfer: %w", err)
	}
	booking.CheckoutConfirmed = true
	booking.Status = BookingStatusConfirmed
	vault.Released = true
	if err := e.state.BookingPut(booking); err != nil {
		return err
	}
	if err := e.state.VaultPut(vault); err != nil {
		return err
	}
	e.emit(NewBookingConfirmedEvent(booking))
	e.emit(NewEscrowReleasedEvent(vault))
	return nil
}

// CancelBooking cancels a booking and refunds the escrowed deposit to the
// guest when the vault is still unreleased. Either the booking's guest or the
// listing owner may cancel.
func (e *Engine) CancelBooking(caller Proof, ref BookingRef) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	listing, booking, vault, err := e.resolveBooking(ref)
	if err != nil {
		return err
	}
	if _, err := RequireAnySigner(caller, ErrUnauthorizedCancellation, ref.Guest, listing.Owner); err != nil {
		return err
	}
	if booking.Guest != ref.Guest {
		return ErrInvalidGuest
	}
	if booking.Listing != ref.ListingAddress {
		return ErrInvalidBooking
	}
	if booking.Status == BookingStatusCancelled {
		return ErrBookingAlreadyCancelled
	}
	if booking.Status == BookingStatusCompleted {
		return ErrBookingAlreadyCompleted
	}
	if booking.CheckoutConfirmed {
		return ErrBookingAlreadyConfirmed
	}
	refunded := false
	if !vault.Released {
		custody := CustodyAddress(vault.Currency)
		amount := cloneBigInt(vault.TotalAmount)
		if err := e.transferGateway().TransferChecked(custody, booking.Guest, custody, vault.Currency, amount, vault.Currency.Decimals()); err != nil {
			return fmt.Errorf("lodging: refund transfer: %w", err)
		}
		vault.Released = true
		refunded = true
	}
	booking.Status = BookingStatusCancelled
	if err := e.state.BookingPut(booking); err != nil {
		return err
	}
	if refunded {
		if err := e.state.VaultPut(vault); err != nil {
			return err
		}
	}
	e.emit(NewBookingCancelledEvent(booking))
	if refunded {
		e.emit(NewEscrowRefundedEvent(vault))
	}
	return nil
}

// GetAllListings returns every registered listing address in publication
// order. An uninitialized registry yields an empty slice, never an error.
func (e *Engine) GetAllListings() ([][32]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	reg, ok := e.state.RegistryGet()
	if !ok {
		return [][32]byte{}, nil
	}
	out := make([][32]byte, len(reg.Listings))
	copy(out, reg.Listings)
	return out, nil
}

// GetListing loads a listing by derived address.
func (e *Engine) GetListing(addr [32]byte) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listing, ok := e.state.ListingGet(addr)
	if !ok {
		return nil, ErrListingNotFound
	}
	return listing.Clone(), nil
}

// GetBooking loads a booking by derived address.
func (e *Engine) GetBooking(addr [32]byte) (*Booking, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	booking, ok := e.state.BookingGet(addr)
	if !ok {
		return nil, ErrBookingNotFound
	}
	return booking.Clone(), nil
}

// GetVault loads an escrow vault by derived address.
func (e *Engine) GetVault(addr [32]byte) (*EscrowVault, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	vault, ok := e.state.VaultGet(addr)
	if !ok {
		return nil, ErrVaultNotFound
	}
	return vault.Clone(), nil
}
