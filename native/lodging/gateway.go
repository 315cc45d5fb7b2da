package lodging

import (
	"fmt"
	"math/big"

	"openstay/core/types"
)

// TransferGateway is the external capability that moves value between two
// custody locations. A transfer either fully succeeds or fails with no
// partial effect; the engine relies on this to keep settlement exactly-once.
type TransferGateway interface {
	TransferChecked(source, destination, authority [20]byte, currency Currency, amount *big.Int, decimals uint8) error
}

type accountState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// LedgerGateway implements TransferGateway against ledger accounts. Every
// reference is resolved and checked before funds move: the authority must own
// the source, the decimals must match the currency policy, and the source
// balance must cover the amount.
type LedgerGateway struct {
	state accountState
}

func NewLedgerGateway(state accountState) *LedgerGateway {
	return &LedgerGateway{state: state}
}

// TransferChecked moves amount units of currency from source to destination.
func (g *LedgerGateway) TransferChecked(source, destination, authority [20]byte, currency Currency, amount *big.Int, decimals uint8) error {
	if g == nil || g.state == nil {
		return fmt.Errorf("lodging: transfer gateway state not configured")
	}
	if !currency.Valid() {
		return ErrInvalidCurrency
	}
	if decimals != currency.Decimals() {
		return fmt.Errorf("lodging: decimals %d do not match %s policy", decimals, currency)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("lodging: transfer amount must be positive")
	}
	if authority != source {
		return fmt.Errorf("lodging: authority does not own transfer source")
	}
	if source == destination {
		return fmt.Errorf("lodging: transfer source and destination are the same account")
	}
	fromAcc, err := g.state.GetAccount(source)
	if err != nil {
		return err
	}
	toAcc, err := g.state.GetAccount(destination)
	if err != nil {
		return err
	}
	fromAcc = fromAcc.Normalize()
	toAcc = toAcc.Normalize()
	switch currency {
	case CurrencyNative:
		if fromAcc.BalanceNative.Cmp(amount) < 0 {
			return fmt.Errorf("lodging: insufficient balance")
		}
		fromAcc.BalanceNative = new(big.Int).Sub(fromAcc.BalanceNative, amount)
		toAcc.BalanceNative = new(big.Int).Add(toAcc.BalanceNative, amount)
	case CurrencyStable:
		if fromAcc.BalanceStable.Cmp(amount) < 0 {
			return fmt.Errorf("lodging: insufficient balance")
		}
		fromAcc.BalanceStable = new(big.Int).Sub(fromAcc.BalanceStable, amount)
		toAcc.BalanceStable = new(big.Int).Add(toAcc.BalanceStable, amount)
	}
	if err := g.state.PutAccount(source, fromAcc); err != nil {
		return err
	}
	return g.state.PutAccount(destination, toAcc)
}
