package asset

import "errors"

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// TransferLeg describes one directional asset movement within a settlement.
type TransferLeg struct {
	From   Account
	To     Account
	Asset  Asset
	Amount uint64
}

// Ledger is the registry's view of the external asset-custody system. The
// registry is the implicit spender for all allowance queries and transfers.
//
// Transfer debits From and credits To exactly Amount, consuming From's
// allowance, and fails atomically (no partial movement) if From's balance or
// allowance is insufficient at execution time.
type Ledger interface {
	BalanceOf(account Account, a Asset) (uint64, error)
	Allowance(owner Account, a Asset) (uint64, error)
	Transfer(from, to Account, a Asset, amount uint64) error
}

// Swapper is implemented by ledgers that can settle two legs as one
// indivisible unit. Both legs apply, or neither does.
type Swapper interface {
	Swap(a, b TransferLeg) error
}
