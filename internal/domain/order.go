package domain

import (
	"github.com/google/uuid"
)

// Validate checks that every address field is present
func (a ShippingAddress) Validate() (field string, ok bool) {
	switch {
	case a.Address == "":
		return "shippingAddress.address", false
	case a.City == "":
		return "shippingAddress.city", false
	case a.PostalCode == "":
		return "shippingAddress.postalCode", false
	case a.Country == "":
		return "shippingAddress.country", false
	}
	return "", true
}

// ContainsAnyProduct reports whether at least one line references a
// product in the set.
func (o *Order) ContainsAnyProduct(productIDs map[uuid.UUID]struct{}) bool {
	for _, item := range o.Items {
		if _, ok := productIDs[item.ProductID]; ok {
			return true
		}
	}
	return false
}

// ForSeller returns a copy of the order whose items are restricted to
// products in the set. All other fields are passed through.
func (o *Order) ForSeller(productIDs map[uuid.UUID]struct{}) *Order {
	cp := *o
	cp.Items = make([]OrderLineItem, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := productIDs[item.ProductID]; ok {
			cp.Items = append(cp.Items, item)
		}
	}
	return &cp
}
