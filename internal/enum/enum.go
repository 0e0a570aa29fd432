package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	KOTStatusPending   = "pending"
	KOTStatusPreparing = "preparing"
	KOTStatusReady     = "ready"
	KOTStatusCompleted = "completed"
	KOTStatusCancelled = "cancelled"
)

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
	TableStatusReserved  = "reserved"
	TableStatusBilling   = "billing"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleWaiter  = "WAITER"
	UserRoleChef    = "CHEF"
	UserRoleCashier = "CASHIER"
)

const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

const (
	PaymentMethodCash   = "cash"
	PaymentMethodCard   = "card"
	PaymentMethodUPI    = "upi"
	PaymentMethodWallet = "wallet"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	CategoryStarters   = "Starters"
	CategoryMainCourse = "Main Course"
	CategoryBreads     = "Breads"
	CategorySides      = "Sides"
	CategoryDesserts   = "Desserts"
)

// Realtime rooms a WebSocket client can join.
const (
	RoomKitchen = "kitchen"
	RoomFloor   = "floor"
	RoomBilling = "billing"
)

// KOTStatuses lists every KOT status in lifecycle order.
var KOTStatuses = []string{
	KOTStatusPending,
	KOTStatusPreparing,
	KOTStatusReady,
	KOTStatusCompleted,
	KOTStatusCancelled,
}

// TableStatuses lists every table status.
var TableStatuses = []string{
	TableStatusAvailable,
	TableStatusOccupied,
	TableStatusReserved,
	TableStatusBilling,
}

// IsRole reports whether s is a staff role.
func IsRole(s string) bool {
	switch s {
	case UserRoleAdmin, UserRoleWaiter, UserRoleChef, UserRoleCashier:
		return true
	}
	return false
}

// IsPaymentMethod reports whether s is an accepted payment method.
func IsPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodUPI, PaymentMethodWallet:
		return true
	}
	return false
}

// IsPriority reports whether s is an accepted KOT priority.
func IsPriority(s string) bool {
	switch s {
	case PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// IsRoom reports whether s is a known realtime room.
func IsRoom(s string) bool {
	switch s {
	case RoomKitchen, RoomFloor, RoomBilling:
		return true
	}
	return false
}

// HomeRoom is the station a role lands on after login. Admins start on
// the floor view.
func HomeRoom(role string) string {
	switch role {
	case UserRoleChef:
		return RoomKitchen
	case UserRoleCashier:
		return RoomBilling
	default:
		return RoomFloor
	}
}
