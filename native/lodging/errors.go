package lodging

import "errors"

// Transition error taxonomy. Every precondition failure maps to exactly one
// of these kinds so callers can distinguish retryable input mistakes from
// terminal booking states.
var (
	ErrInvalidCurrency          = errors.New("lodging: invalid currency type")
	ErrListingNotActive         = errors.New("lodging: listing is not active")
	ErrInvalidDates             = errors.New("lodging: invalid check-in or check-out dates")
	ErrDatesNotAvailable        = errors.New("lodging: selected dates are not available")
	ErrInvalidGuest             = errors.New("lodging: invalid guest account")
	ErrUnauthorizedCancellation = errors.New("lodging: unauthorized to cancel this booking")
	ErrBookingAlreadyConfirmed  = errors.New("lodging: booking is already confirmed")
	ErrBookingAlreadyCancelled  = errors.New("lodging: booking is already cancelled")
	ErrBookingAlreadyCompleted  = errors.New("lodging: booking is already completed")
	ErrInvalidListingOwner      = errors.New("lodging: invalid listing owner")
	ErrInvalidBooking           = errors.New("lodging: invalid booking account")
	ErrDuplicateListing         = errors.New("lodging: listing already exists")
	ErrDuplicateBooking         = errors.New("lodging: booking already exists")
	ErrInvalidFundingSource     = errors.New("lodging: funding source must be the guest account")
	ErrAlreadyInitialized       = errors.New("lodging: listing registry already initialized")
	ErrCapacityExceeded         = errors.New("lodging: listing registry capacity exceeded")
	ErrRegistryNotInitialized   = errors.New("lodging: listing registry not initialized")
	ErrListingNotFound          = errors.New("lodging: listing not found")
	ErrBookingNotFound          = errors.New("lodging: booking not found")
	ErrVaultNotFound            = errors.New("lodging: escrow vault not found")
)

// Reserved error kinds. No current transition returns these; they are kept so
// future checks reuse the established taxonomy instead of inventing new
// kinds.
var (
	ErrInsufficientFunds    = errors.New("lodging: insufficient funds for booking")
	ErrBookingNotConfirmed  = errors.New("lodging: booking is not confirmed")
	ErrInvalidBookingStatus = errors.New("lodging: invalid booking status for this operation")
	ErrInvalidEscrowVault   = errors.New("lodging: invalid escrow vault account")
)
