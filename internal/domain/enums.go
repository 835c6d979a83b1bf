package domain

// Role is the role carried by an authenticated principal
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// IsValid checks if the role is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	default:
		return false
	}
}

// EventType identifies an order lifecycle event in the outbox
type EventType string

const (
	EventOrderPlaced    EventType = "order_placed"
	EventOrderPaid      EventType = "order_paid"
	EventOrderDelivered EventType = "order_delivered"
)

// IsValid checks if the event type is known
func (e EventType) IsValid() bool {
	switch e {
	case EventOrderPlaced, EventOrderPaid, EventOrderDelivered:
		return true
	default:
		return false
	}
}
