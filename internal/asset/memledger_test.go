package asset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"heimdall/internal/asset"
)

const (
	guz = asset.Asset("GUZ")
	w3b = asset.Asset("W3B")

	alice = asset.Account("alice")
	bob   = asset.Account("bob")
)

func balance(t *testing.T, l *asset.MemLedger, account asset.Account, a asset.Asset) uint64 {
	t.Helper()
	amount, err := l.BalanceOf(account, a)
	assert.NoError(t, err)
	return amount
}

func TestTransfer(t *testing.T) {
	l := asset.NewMemLedger()
	l.Mint(alice, guz, 1000)
	l.Authorize(alice, guz, 300)

	assert.NoError(t, l.Transfer(alice, bob, guz, 100))
	assert.Equal(t, uint64(900), balance(t, l, alice, guz))
	assert.Equal(t, uint64(100), balance(t, l, bob, guz))

	// Transfers consume the standing allowance.
	allowance, err := l.Allowance(alice, guz)
	assert.NoError(t, err)
	assert.Equal(t, uint64(200), allowance)
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	l := asset.NewMemLedger()
	l.Mint(alice, guz, 50)
	l.Authorize(alice, guz, 100)

	assert.ErrorIs(t, l.Transfer(alice, bob, guz, 100), asset.ErrInsufficientBalance)
	assert.Equal(t, uint64(50), balance(t, l, alice, guz))
	assert.Equal(t, uint64(0), balance(t, l, bob, guz))
}

func TestTransfer_InsufficientAllowance(t *testing.T) {
	l := asset.NewMemLedger()
	l.Mint(alice, guz, 1000)
	l.Authorize(alice, guz, 99)

	assert.ErrorIs(t, l.Transfer(alice, bob, guz, 100), asset.ErrInsufficientAllowance)
	assert.Equal(t, uint64(1000), balance(t, l, alice, guz))
}

func TestSwap(t *testing.T) {
	l := asset.NewMemLedger()
	l.Mint(alice, guz, 1000)
	l.Mint(bob, w3b, 1000)
	l.Authorize(alice, guz, 100)
	l.Authorize(bob, w3b, 20)

	err := l.Swap(
		asset.TransferLeg{From: alice, To: bob, Asset: guz, Amount: 100},
		asset.TransferLeg{From: bob, To: alice, Asset: w3b, Amount: 20},
	)
	assert.NoError(t, err)
	assert.Equal(t, uint64(900), balance(t, l, alice, guz))
	assert.Equal(t, uint64(100), balance(t, l, bob, guz))
	assert.Equal(t, uint64(980), balance(t, l, bob, w3b))
	assert.Equal(t, uint64(20), balance(t, l, alice, w3b))
}

func TestSwap_SameAssetLegs_NoAllowanceOverdraw(t *testing.T) {
	// Both legs debit the same (account, asset). The second leg must see the
	// allowance already consumed by the first, not the pre-swap state;
	// otherwise the allowance counter wraps below zero.
	l := asset.NewMemLedger()
	l.Mint(alice, guz, 1000)
	l.Authorize(alice, guz, 100)

	err := l.Swap(
		asset.TransferLeg{From: alice, To: alice, Asset: guz, Amount: 100},
		asset.TransferLeg{From: alice, To: alice, Asset: guz, Amount: 50},
	)
	assert.ErrorIs(t, err, asset.ErrInsufficientAllowance)
	assert.Equal(t, uint64(1000), balance(t, l, alice, guz))

	allowance, err := l.Allowance(alice, guz)
	assert.NoError(t, err)
	assert.Equal(t, uint64(100), allowance)
}

func TestSwap_SameAssetLegs_WithinAllowance(t *testing.T) {
	l := asset.NewMemLedger()
	l.Mint(alice, guz, 1000)
	l.Authorize(alice, guz, 150)

	err := l.Swap(
		asset.TransferLeg{From: alice, To: bob, Asset: guz, Amount: 100},
		asset.TransferLeg{From: alice, To: bob, Asset: guz, Amount: 50},
	)
	assert.NoError(t, err)
	assert.Equal(t, uint64(850), balance(t, l, alice, guz))
	assert.Equal(t, uint64(150), balance(t, l, bob, guz))

	allowance, err := l.Allowance(alice, guz)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), allowance)
}

func TestSwap_SecondLegFails_NeitherApplies(t *testing.T) {
	l := asset.NewMemLedger()
	l.Mint(alice, guz, 1000)
	l.Mint(bob, w3b, 1000)
	l.Authorize(alice, guz, 100)
	// Bob never authorized the W3B leg.

	err := l.Swap(
		asset.TransferLeg{From: alice, To: bob, Asset: guz, Amount: 100},
		asset.TransferLeg{From: bob, To: alice, Asset: w3b, Amount: 20},
	)
	assert.ErrorIs(t, err, asset.ErrInsufficientAllowance)
	assert.Equal(t, uint64(1000), balance(t, l, alice, guz))
	assert.Equal(t, uint64(0), balance(t, l, bob, guz))
	assert.Equal(t, uint64(1000), balance(t, l, bob, w3b))
}
