package registry

import (
	"fmt"
	"time"

	"heimdall/internal/asset"
)

// Order is an escrow offer: the maker commits OfferAmount of OfferAsset in
// exchange for WantAmount of WantAsset. Amounts and parties are immutable
// after creation; only the three lifecycle flags ever change, each one-way.
type Order struct {
	ID          uint64        // Sequential registry id, assigned at creation
	Maker       asset.Account // Who created the order
	OfferAsset  asset.Asset   // Asset the maker gives up
	OfferAmount uint64        // Committed quantity of OfferAsset
	WantAsset   asset.Asset   // Asset the maker wants
	WantAmount  uint64        // Requested quantity of WantAsset
	Approved    bool          // Set once by the gatekeeper
	Canceled    bool          // Set once by the maker; terminal
	Fulfilled   bool          // Set once at settlement; terminal
	CreatedAt   time.Time     // Time of arrival into the registry
}

func (o Order) String() string {
	return fmt.Sprintf(
		`ID:          %d
Maker:       %s
Offer:       %d %s
Want:        %d %s
Approved:    %v
Canceled:    %v
Fulfilled:   %v
CreatedAt:   %v`,
		o.ID,
		o.Maker,
		o.OfferAmount,
		o.OfferAsset,
		o.WantAmount,
		o.WantAsset,
		o.Approved,
		o.Canceled,
		o.Fulfilled,
		o.CreatedAt.Format(time.RFC3339),
	)
}
