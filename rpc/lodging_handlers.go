package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"openstay/core/events"
	"openstay/core/state"
	"openstay/native/lodging"
)

// withEngine runs fn inside one atomic state transition. Events emitted by
// the engine are buffered and forwarded to the server's sink only after the
// transition commits.
func (s *Server) withEngine(fn func(*lodging.Engine) error) error {
	buf := events.NewBuffer()
	err := s.state.Transition(func(tx *state.Manager) error {
		eng := lodging.NewEngine()
		eng.SetState(tx)
		eng.SetEmitter(buf)
		return fn(eng)
	})
	if err != nil {
		return err
	}
	buf.Flush(s.emitter)
	return nil
}

// viewEngine builds a read-only engine directly over committed state.
func (s *Server) viewEngine() *lodging.Engine {
	eng := lodging.NewEngine()
	eng.SetState(s.state)
	return eng
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("expected exactly one params object")
	}
	return json.Unmarshal(req.Params[0], out)
}

// mapTransitionError resolves an engine error to its JSON-RPC representation
// and the taxonomy kind recorded in metrics.
func mapTransitionError(err error) (status, code int, kind string) {
	switch {
	case errors.Is(err, lodging.ErrInvalidCurrency):
		return http.StatusBadRequest, codeInvalidParams, "invalid_currency"
	case errors.Is(err, lodging.ErrInvalidDates):
		return http.StatusBadRequest, codeInvalidParams, "invalid_dates"
	case errors.Is(err, lodging.ErrDatesNotAvailable):
		return http.StatusBadRequest, codeInvalidParams, "dates_not_available"
	case errors.Is(err, lodging.ErrInvalidGuest):
		return http.StatusBadRequest, codeInvalidParams, "invalid_guest"
	case errors.Is(err, lodging.ErrInvalidBooking):
		return http.StatusBadRequest, codeInvalidParams, "invalid_booking"
	case errors.Is(err, lodging.ErrInvalidFundingSource):
		return http.StatusBadRequest, codeInvalidParams, "invalid_funding_source"
	case errors.Is(err, lodging.ErrInvalidListingOwner):
		return http.StatusForbidden, codeForbidden, "invalid_listing_owner"
	case errors.Is(err, lodging.ErrUnauthorizedCancellation):
		return http.StatusForbidden, codeForbidden, "unauthorized_cancellation"
	case errors.Is(err, lodging.ErrListingNotActive):
		return http.StatusConflict, codeConflict, "listing_not_active"
	case errors.Is(err, lodging.ErrBookingAlreadyConfirmed):
		return http.StatusConflict, codeConflict, "booking_already_confirmed"
	case errors.Is(err, lodging.ErrBookingAlreadyCancelled):
		return http.StatusConflict, codeConflict, "booking_already_cancelled"
	case errors.Is(err, lodging.ErrBookingAlreadyCompleted):
		return http.StatusConflict, codeConflict, "booking_already_completed"
	case errors.Is(err, lodging.ErrDuplicateListing):
		return http.StatusConflict, codeConflict, "duplicate_listing"
	case errors.Is(err, lodging.ErrDuplicateBooking):
		return http.StatusConflict, codeConflict, "duplicate_booking"
	case errors.Is(err, lodging.ErrAlreadyInitialized):
		return http.StatusConflict, codeConflict, "registry_already_initialized"
	case errors.Is(err, lodging.ErrCapacityExceeded):
		return http.StatusConflict, codeConflict, "capacity_exceeded"
	case errors.Is(err, lodging.ErrRegistryNotInitialized):
		return http.StatusNotFound, codeNotFound, "registry_not_initialized"
	case errors.Is(err, lodging.ErrListingNotFound):
		return http.StatusNotFound, codeNotFound, "listing_not_found"
	case errors.Is(err, lodging.ErrBookingNotFound):
		return http.StatusNotFound, codeNotFound, "booking_not_found"
	case errors.Is(err, lodging.ErrVaultNotFound):
		return http.StatusNotFound, codeNotFound, "vault_not_found"
	default:
		return http.StatusInternalServerError, codeServerError, "internal"
	}
}

func writeTransitionError(w http.ResponseWriter, id interface{}, err error) string {
	status, code, kind := mapTransitionError(err)
	writeError(w, status, id, code, err.Error(), nil)
	return kind
}

func writeParamsError(w http.ResponseWriter, id interface{}, err error) string {
	writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid params", err.Error())
	return "invalid_params"
}

func (s *Server) handleInitializeRegistry(w http.ResponseWriter, req *RPCRequest) string {
	var params initializeRegistryParams
	if err := decodeParams(req, &params); err != nil {
		return writeParamsError(w, req.ID, err)
	}
	var reg *lodging.ListingRegistry
	err := s.withEngine(func(eng *lodging.Engine) error {
		var err error
		reg, err = eng.InitializeRegistry(params.Capacity)
		return err
	})
	if err != nil {
		return writeTransitionError(w, req.ID, err)
	}
	writeResult(w, req.ID, registryJSON{Capacity: reg.Capacity, Listings: []string{}})
	return ""
}

func (s *Server) handleCreateListing(w http.ResponseWriter, req *RPCRequest) string {
	var params createListingParams
	if err := decodeParams(req, &params); err != nil {
		return writeParamsError(w, req.ID, err)
	}
	proof, err := parseProof(params.Proof)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	currency, err := lodging.ParseCurrency(params.Currency)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	price, err := parseAmount(params.PricePerNight)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	var listing *lodging.Listing
	err = s.withEngine(func(eng *lodging.Engine) error {
		var err error
		listing, err = eng.CreateListing(proof, lodging.CreateListingParams{
			ListingID:      params.ListingID,
			Title:          params.Title,
			Description:    params.Description,
			PricePerNight:  price,
			Currency:       currency,
			AvailableDates: params.AvailableDates,
			MaxGuests:      params.MaxGuests,
			Location:       params.Location,
		})
		return err
	})
	if err != nil {
		return writeTransitionError(w, req.ID, err)
	}
	writeResult(w, req.ID, listingToJSON(listing))
	return ""
}

func (s *Server) handleBookStay(w http.ResponseWriter, req *RPCRequest) string {
	var params bookStayParams
	if err := decodeParams(req, &params); err != nil {
		return writeParamsError(w, req.ID, err)
	}
	proof, err := parseProof(params.Proof)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	listingAddr, err := parseEntityAddress(params.Listing)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	owner, err := parseAccountAddress(params.Owner)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	fundingSource, err := parseAccountAddress(params.FundingSource)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	currency, err := lodging.ParseCurrency(params.Currency)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	var (
		booking *lodging.Booking
		vault   *lodging.EscrowVault
	)
	err = s.withEngine(func(eng *lodging.Engine) error {
		var err error
		booking, vault, err = eng.BookStay(proof, lodging.BookStayParams{
			ListingAddress: listingAddr,
			Owner:          owner,
			ListingID:      params.ListingID,
			BookingID:      params.BookingID,
			CheckInDate:    params.CheckInDate,
			CheckOutDate:   params.CheckOutDate,
			Currency:       currency,
			Amount:         amount,
			FundingSource:  fundingSource,
		})
		return err
	})
	if err != nil {
		return writeTransitionError(w, req.ID, err)
	}
	writeResult(w, req.ID, struct {
		Booking bookingJSON `json:"booking"`
		Vault   vaultJSON   `json:"vault"`
	}{bookingToJSON(booking), vaultToJSON(vault)})
	return ""
}

func (s *Server) decodeBookingRef(req *RPCRequest) (lodging.Proof, lodging.BookingRef, error) {
	var params bookingRefParams
	if err := decodeParams(req, &params); err != nil {
		return lodging.Proof{}, lodging.BookingRef{}, err
	}
	proof, err := parseProof(params.Proof)
	if err != nil {
		return lodging.Proof{}, lodging.BookingRef{}, err
	}
	guest, err := parseAccountAddress(params.Guest)
	if err != nil {
		return lodging.Proof{}, lodging.BookingRef{}, err
	}
	listing, err := parseEntityAddress(params.Listing)
	if err != nil {
		return lodging.Proof{}, lodging.BookingRef{}, err
	}
	owner, err := parseAccountAddress(params.Owner)
	if err != nil {
		return lodging.Proof{}, lodging.BookingRef{}, err
	}
	return proof, lodging.BookingRef{
		Guest:          guest,
		ListingAddress: listing,
		Owner:          owner,
		ListingID:      params.ListingID,
		BookingID:      params.BookingID,
	}, nil
}

func (s *Server) handleConfirmCheckout(w http.ResponseWriter, req *RPCRequest) string {
	proof, ref, err := s.decodeBookingRef(req)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	err = s.withEngine(func(eng *lodging.Engine) error {
		return eng.ConfirmCheckout(proof, ref)
	})
	if err != nil {
		return writeTransitionError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"confirmed": true})
	return ""
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, req *RPCRequest) string {
	proof, ref, err := s.decodeBookingRef(req)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	err = s.withEngine(func(eng *lodging.Engine) error {
		return eng.CancelBooking(proof, ref)
	})
	if err != nil {
		return writeTransitionError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"cancelled": true})
	return ""
}

func (s *Server) handleGetAllListings(w http.ResponseWriter, req *RPCRequest) string {
	listings, err := s.viewEngine().GetAllListings()
	if err != nil {
		return writeTransitionError(w, req.ID, err)
	}
	out := make([]string, len(listings))
	for i, addr := range listings {
		out[i] = encodeEntityAddress(addr)
	}
	writeResult(w, req.ID, out)
	return ""
}

func (s *Server) handleGetListing(w http.ResponseWriter, req *RPCRequest) string {
	var params entityAddressParams
	if err := decodeParams(req, &params); err != nil {
		return writeParamsError(w, req.ID, err)
	}
	addr, err := parseEntityAddress(params.Address)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	listing, err := s.viewEngine().GetListing(addr)
	if err != nil {
		return writeTransitionError(w, req.ID, err)
	}
	writeResult(w, req.ID, listingToJSON(listing))
	return ""
}

func (s *Server) handleGetBooking(w http.ResponseWriter, req *RPCRequest) string {
	var params entityAddressParams
	if err := decodeParams(req, &params); err != nil {
		return writeParamsError(w, req.ID, err)
	}
	addr, err := parseEntityAddress(params.Address)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	booking, err := s.viewEngine().GetBooking(addr)
	if err != nil {
		return writeTransitionError(w, req.ID, err)
	}
	writeResult(w, req.ID, bookingToJSON(booking))
	return ""
}

func (s *Server) handleGetVault(w http.ResponseWriter, req *RPCRequest) string {
	var params entityAddressParams
	if err := decodeParams(req, &params); err != nil {
		return writeParamsError(w, req.ID, err)
	}
	addr, err := parseEntityAddress(params.Address)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	vault, err := s.viewEngine().GetVault(addr)
	if err != nil {
		return writeTransitionError(w, req.ID, err)
	}
	writeResult(w, req.ID, vaultToJSON(vault))
	return ""
}

func (s *Server) handleGetAccount(w http.ResponseWriter, req *RPCRequest) string {
	var params accountAddressParams
	if err := decodeParams(req, &params); err != nil {
		return writeParamsError(w, req.ID, err)
	}
	addr, err := parseAccountAddress(params.Address)
	if err != nil {
		return writeParamsError(w, req.ID, err)
	}
	account, err := s.state.GetAccount(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return "internal"
	}
	writeResult(w, req.ID, accountJSON{
		Address:       encodeAccountAddress(addr),
		Nonce:         account.Nonce,
		BalanceNative: account.BalanceNative.String(),
		BalanceStable: account.BalanceStable.String(),
	})
	return ""
}
