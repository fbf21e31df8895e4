package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/btree"

	"heimdall/internal/asset"
)

// Registry owns the authoritative collection of orders and their lifecycle.
// Every operation runs under one registry-wide lock, so state transitions
// observe a single global sequential ordering even on a concurrent host.
// Each operation either completes fully or leaves the registry untouched.
type Registry struct {
	mu       sync.Mutex
	ledger   asset.Ledger
	approver Approver

	// All orders ever created, keyed by id. Append/mutate only, never deleted.
	orders btree.Map[uint64, *Order]
	nextID uint64
}

func New(ledger asset.Ledger, approver Approver) *Registry {
	return &Registry{
		ledger:   ledger,
		approver: approver,
		nextID:   1,
	}
}

// Create validates the maker's commitment against the ledger and stores a new
// Pending order. No asset moves at creation time; the checks only establish
// that the order is fundable right now, and are repeated at fulfillment since
// balance and allowance can drift in between. A failed creation consumes no id.
func (r *Registry) Create(maker asset.Account, offerAsset asset.Asset, offerAmount uint64, wantAsset asset.Asset, wantAmount uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if offerAmount == 0 {
		return 0, ErrInvalidOfferAmount
	}
	if wantAmount == 0 {
		return 0, ErrInvalidWantAmount
	}
	if err := r.checkFunding(r.ledger, maker, offerAsset, offerAmount); err != nil {
		return 0, err
	}

	id := r.nextID
	r.nextID++
	r.orders.Set(id, &Order{
		ID:          id,
		Maker:       maker,
		OfferAsset:  offerAsset,
		OfferAmount: offerAmount,
		WantAsset:   wantAsset,
		WantAmount:  wantAmount,
		CreatedAt:   time.Now(),
	})
	return id, nil
}

// Approve moves an order past the approval gate. Only the designated
// approver may call it. Approving an already-approved order is a no-op;
// canceled and fulfilled orders are terminal and cannot be approved.
func (r *Registry) Approve(caller asset.Account, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.approver.IsAuthorizedApprover(caller) {
		return ErrUnauthorized
	}
	order, ok := r.orders.Get(id)
	if !ok {
		return ErrOrderNotFound
	}
	if order.Fulfilled {
		return ErrOrderAlreadyFulfilled
	}
	if order.Canceled {
		return ErrOrderCanceled
	}
	order.Approved = true
	return nil
}

// Cancel marks an order canceled. Only the order's maker may call it, and a
// fulfilled order can no longer be canceled. Canceling an already-canceled
// order is a no-op. The ledger is never touched: the registry holds no
// custody, so cancellation is a pure state transition.
func (r *Registry) Cancel(caller asset.Account, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders.Get(id)
	if !ok {
		return ErrOrderNotFound
	}
	if caller != order.Maker {
		return ErrUnauthorized
	}
	if order.Fulfilled {
		return ErrOrderAlreadyFulfilled
	}
	order.Canceled = true
	return nil
}

// Fulfill settles an approved order: the taker receives the maker's offer leg
// and the maker receives the taker's want leg. Both legs and the flip to
// Fulfilled apply as one unit, or nothing applies at all.
//
// budget bounds the cost of the ledger interactions, one unit per query and
// per transfer leg; zero means unmetered. Exceeding it fails the whole
// operation rather than leaving a half-settled order.
func (r *Registry) Fulfill(taker asset.Account, id uint64, budget uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders.Get(id)
	if !ok {
		return ErrOrderNotFound
	}
	if order.Fulfilled {
		return ErrOrderAlreadyFulfilled
	}
	if order.Canceled {
		return ErrOrderCanceled
	}
	if !order.Approved {
		return ErrOrderNotApproved
	}

	ledger := newMeteredLedger(r.ledger, budget)

	// Re-validate both sides at the moment of settlement. Creation-time
	// checks establish nothing here; either party's funding can have drifted.
	if err := r.checkFunding(ledger, order.Maker, order.OfferAsset, order.OfferAmount); err != nil {
		return err
	}
	if err := r.checkFunding(ledger, taker, order.WantAsset, order.WantAmount); err != nil {
		return err
	}

	offerLeg := asset.TransferLeg{
		From:   order.Maker,
		To:     taker,
		Asset:  order.OfferAsset,
		Amount: order.OfferAmount,
	}
	wantLeg := asset.TransferLeg{
		From:   taker,
		To:     order.Maker,
		Asset:  order.WantAsset,
		Amount: order.WantAmount,
	}
	if err := r.settle(ledger, offerLeg, wantLeg); err != nil {
		return err
	}

	order.Fulfilled = true
	return nil
}

// settle applies both legs atomically. Ledgers offering a combined primitive
// settle in one call; otherwise this is a saga: leg one, leg two, and a
// synchronous reversal of leg one if leg two cannot apply, so the registry's
// view never diverges from settled reality. Reversals go straight to the
// underlying ledger: they restore prior state rather than extend settlement,
// so they are never metered.
func (r *Registry) settle(ledger *meteredLedger, first, second asset.TransferLeg) error {
	if swapper, ok := r.ledger.(asset.Swapper); ok {
		if err := ledger.charge(2); err != nil {
			return err
		}
		return swapper.Swap(first, second)
	}

	if err := ledger.Transfer(first.From, first.To, first.Asset, first.Amount); err != nil {
		return err
	}
	if err := ledger.Transfer(second.From, second.To, second.Asset, second.Amount); err != nil {
		if revErr := r.ledger.Transfer(first.To, first.From, first.Asset, first.Amount); revErr != nil {
			return fmt.Errorf("reversing first leg after %v: %w", err, revErr)
		}
		return err
	}
	return nil
}

// checkFunding verifies owner has authorized the registry for at least amount
// of a and holds at least amount of it. Authorization precedes balance.
func (r *Registry) checkFunding(ledger asset.Ledger, owner asset.Account, a asset.Asset, amount uint64) error {
	allowance, err := ledger.Allowance(owner, a)
	if err != nil {
		return err
	}
	if allowance < amount {
		return ErrInsufficientAuthorization
	}
	balance, err := ledger.BalanceOf(owner, a)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientBalance
	}
	return nil
}

// Get returns a snapshot of the order with the given id.
func (r *Registry) Get(id uint64) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders.Get(id)
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return *order, nil
}

// Orders returns a snapshot of every order ever created, in id order.
func (r *Registry) Orders() []Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]Order, 0, r.orders.Len())
	r.orders.Scan(func(_ uint64, order *Order) bool {
		snapshot = append(snapshot, *order)
		return true
	})
	return snapshot
}
