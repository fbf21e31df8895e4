package asset

import (
	"sync"
)

// MemLedger is an in-memory asset ledger. It stands in for the external
// custody system when running the bundled server and in tests. All methods
// are safe for concurrent use.
type MemLedger struct {
	mu         sync.Mutex
	balances   map[Account]map[Asset]uint64
	allowances map[Account]map[Asset]uint64
}

func NewMemLedger() *MemLedger {
	return &MemLedger{
		balances:   make(map[Account]map[Asset]uint64),
		allowances: make(map[Account]map[Asset]uint64),
	}
}

// Mint credits account with amount of a out of thin air.
func (l *MemLedger) Mint(account Account, a Asset, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	credit(l.balances, account, a, amount)
}

// Authorize grants the registry a standing allowance to move up to amount
// of a on owner's behalf. Overwrites any previous grant.
func (l *MemLedger) Authorize(owner Account, a Asset, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[Asset]uint64)
	}
	l.allowances[owner][a] = amount
}

func (l *MemLedger) BalanceOf(account Account, a Asset) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account][a], nil
}

func (l *MemLedger) Allowance(owner Account, a Asset) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[owner][a], nil
}

func (l *MemLedger) Transfer(from, to Account, a Asset, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	leg := TransferLeg{From: from, To: to, Asset: a, Amount: amount}
	if err := l.check(leg); err != nil {
		return err
	}
	l.apply(leg)
	return nil
}

// Swap settles both legs as one unit: a failure leaves every balance and
// allowance untouched. The second leg is validated against post-first-leg
// state, so legs debiting the same (account, asset) cannot overdraw funds
// the first leg already consumed.
func (l *MemLedger) Swap(a, b TransferLeg) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(a); err != nil {
		return err
	}
	l.apply(a)
	if err := l.check(b); err != nil {
		l.unapply(a)
		return err
	}
	l.apply(b)
	return nil
}

func (l *MemLedger) check(leg TransferLeg) error {
	if l.balances[leg.From][leg.Asset] < leg.Amount {
		return ErrInsufficientBalance
	}
	if l.allowances[leg.From][leg.Asset] < leg.Amount {
		return ErrInsufficientAllowance
	}
	return nil
}

// apply moves the leg and consumes the spender allowance. Callers must hold
// the lock and have validated the leg.
func (l *MemLedger) apply(leg TransferLeg) {
	l.balances[leg.From][leg.Asset] -= leg.Amount
	l.allowances[leg.From][leg.Asset] -= leg.Amount
	credit(l.balances, leg.To, leg.Asset, leg.Amount)
}

// unapply exactly reverses a previously applied leg, allowance included.
func (l *MemLedger) unapply(leg TransferLeg) {
	l.balances[leg.To][leg.Asset] -= leg.Amount
	credit(l.balances, leg.From, leg.Asset, leg.Amount)
	l.allowances[leg.From][leg.Asset] += leg.Amount
}

func credit(m map[Account]map[Asset]uint64, account Account, a Asset, amount uint64) {
	if m[account] == nil {
		m[account] = make(map[Asset]uint64)
	}
	m[account][a] += amount
}
