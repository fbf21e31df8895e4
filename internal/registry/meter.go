package registry

import "heimdall/internal/asset"

// meteredLedger charges one budget unit per ledger interaction and refuses
// to issue a call that would exceed the ceiling. A zero budget disables
// metering entirely.
type meteredLedger struct {
	ledger    asset.Ledger
	remaining uint64
	metered   bool
}

func newMeteredLedger(ledger asset.Ledger, budget uint64) *meteredLedger {
	return &meteredLedger{
		ledger:    ledger,
		remaining: budget,
		metered:   budget > 0,
	}
}

func (m *meteredLedger) charge(units uint64) error {
	if !m.metered {
		return nil
	}
	if m.remaining < units {
		return ErrSettlementBudgetExceeded
	}
	m.remaining -= units
	return nil
}

func (m *meteredLedger) BalanceOf(account asset.Account, a asset.Asset) (uint64, error) {
	if err := m.charge(1); err != nil {
		return 0, err
	}
	return m.ledger.BalanceOf(account, a)
}

func (m *meteredLedger) Allowance(owner asset.Account, a asset.Asset) (uint64, error) {
	if err := m.charge(1); err != nil {
		return 0, err
	}
	return m.ledger.Allowance(owner, a)
}

func (m *meteredLedger) Transfer(from, to asset.Account, a asset.Asset, amount uint64) error {
	if err := m.charge(1); err != nil {
		return err
	}
	return m.ledger.Transfer(from, to, a, amount)
}
