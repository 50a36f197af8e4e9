package shared

import "strings"

// Role is a closed set of staff roles.
type Role int

const (
	RoleCustomer Role = iota
	RoleDriver
	RoleAccountant
	RoleManager
	RoleAdmin
)

// Capability names an action gated by role.
type Capability string

const (
	CapPlaceOrder        Capability = "order:place"
	CapUpdateOrderStatus Capability = "order:status"
	CapCancelOrder       Capability = "order:cancel"
	CapPriceList         Capability = "order:prices"
	CapSupplierLedger    Capability = "supplier:ledger"
	CapSupplierReconcile Capability = "supplier:reconcile"
	CapWalletDeposit     Capability = "wallet:deposit"
	CapWalletAudit       Capability = "wallet:audit"
	CapCreditPayment     Capability = "credit:payment"
	CapCreditAdmin       Capability = "credit:admin"
)

var capabilities = map[Role]map[Capability]bool{
	RoleCustomer: {
		CapPlaceOrder: true,
	},
	RoleDriver: {
		CapUpdateOrderStatus: true,
		CapCreditPayment:     true,
	},
	RoleAccountant: {
		CapSupplierLedger:    true,
		CapSupplierReconcile: true,
		CapWalletDeposit:     true,
		CapWalletAudit:       true,
		CapCreditPayment:     true,
	},
	RoleManager: {
		CapUpdateOrderStatus: true,
		CapCancelOrder:       true,
		CapPriceList:         true,
		CapSupplierLedger:    true,
		CapSupplierReconcile: true,
		CapWalletDeposit:     true,
		CapWalletAudit:       true,
		CapCreditPayment:     true,
		CapCreditAdmin:       true,
	},
}

// Can reports whether the role holds the capability. Admin holds all.
func (r Role) Can(c Capability) bool {
	if r == RoleAdmin {
		return true
	}
	return capabilities[r][c]
}

func (r Role) String() string {
	switch r {
	case RoleDriver:
		return "driver"
	case RoleAccountant:
		return "accountant"
	case RoleManager:
		return "manager"
	case RoleAdmin:
		return "admin"
	default:
		return "customer"
	}
}

// ParseRole resolves the stored role string once; unknown values map to RoleCustomer.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "driver":
		return RoleDriver
	case "accountant":
		return RoleAccountant
	case "manager":
		return RoleManager
	case "admin":
		return RoleAdmin
	default:
		return RoleCustomer
	}
}
