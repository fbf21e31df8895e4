package registry

import "heimdall/internal/asset"

// Approver decides who may move an order past the approval gate.
type Approver interface {
	IsAuthorizedApprover(principal asset.Account) bool
}

// Gatekeeper is the single-principal Approver: exactly one designated
// account may approve orders.
type Gatekeeper struct {
	principal asset.Account
}

func NewGatekeeper(principal asset.Account) Gatekeeper {
	return Gatekeeper{principal: principal}
}

func (g Gatekeeper) IsAuthorizedApprover(principal asset.Account) bool {
	return principal == g.principal
}
