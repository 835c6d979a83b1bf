package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places stored for every money column.
const MoneyScale = 2

// FitsMoneyScale reports whether d can be stored without rounding.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}

// DefaultCustomizationSurcharge is the flat per-unit fee added to a line
// that carries customization data.
var DefaultCustomizationSurcharge = decimal.NewFromInt(150)

// NewEmptyCart returns the zero-value cart reported for customers that have
// never added anything. It is not persisted.
func NewEmptyCart(customerID uuid.UUID) *Cart {
	return &Cart{
		CustomerID:  customerID,
		Items:       []CartItem{},
		TotalAmount: decimal.Zero,
	}
}

// NewCartItem snapshots a product into a new cart line. The surcharge is
// applied only when the customization details carry data.
func NewCartItem(product *Product, quantity int, customizationDetails string, surcharge decimal.Decimal) CartItem {
	item := CartItem{
		ID:                     uuid.New(),
		ProductID:              product.ID,
		Name:                   product.Name,
		Price:                  product.Price,
		Image:                  product.PrimaryImageURL(),
		Quantity:               quantity,
		CustomizationDetails:   customizationDetails,
		CustomizationSurcharge: decimal.Zero,
	}
	if ParseCustomization(customizationDetails).HasData() {
		item.CustomizationSurcharge = surcharge
	}
	return item
}

// Subtotal returns quantity × (price + surcharge) for the line.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Add(i.CustomizationSurcharge).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// IsPersisted reports whether the cart has been stored before
func (c *Cart) IsPersisted() bool {
	return c.ID != uuid.Nil
}

// Recalculate recomputes TotalAmount from scratch over all lines.
func (c *Cart) Recalculate() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	c.TotalAmount = total
	return total
}

// ItemIndexByProduct returns the index of the line for productID, or -1.
func (c *Cart) ItemIndexByProduct(productID uuid.UUID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// RemoveItem removes the line with the given cart item id and reports
// whether it existed.
func (c *Cart) RemoveItem(itemID uuid.UUID) bool {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the cart
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]CartItem, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

// SnapshotLines copies every cart line into an order line for orderID.
func (c *Cart) SnapshotLines(orderID uuid.UUID, now time.Time) []OrderLineItem {
	lines := make([]OrderLineItem, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, OrderLineItem{
			ID:                     uuid.New(),
			OrderID:                orderID,
			ProductID:              item.ProductID,
			Name:                   item.Name,
			Quantity:               item.Quantity,
			Image:                  item.Image,
			Price:                  item.Price,
			CustomizationDetails:   item.CustomizationDetails,
			CustomizationSurcharge: item.CustomizationSurcharge,
			CreatedAt:              now,
		})
	}
	return lines
}
