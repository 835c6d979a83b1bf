package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/config"
	"github.com/veilvogue/marketapi/internal/repository/postgres"
	"github.com/veilvogue/marketapi/internal/service"
)

// find-orders prints the seller view of every order that contains one of
// the seller's products.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/find-orders/main.go <seller-id>")
		fmt.Println("Example: go run cmd/find-orders/main.go 7b0c6a47-0d4e-4f0e-9a52-3c1f2b8e9d10")
		os.Exit(1)
	}

	sellerID, err := uuid.Parse(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid seller ID: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// Connect to database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	orders := service.NewOrderService(repos, cfg.Checkout, logger)

	fmt.Printf("Searching orders for seller %s\n\n", sellerID)

	list, err := orders.ListSellerOrders(context.Background(), sellerID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list orders: %v\n", err)
		os.Exit(1)
	}
	if len(list) == 0 {
		fmt.Println("No orders contain this seller's products.")
		return
	}

	type line struct {
		ProductID string `json:"productId"`
		Name      string `json:"name"`
		Quantity  int    `json:"quantity"`
		Subtotal  string `json:"subtotal"`
	}
	type row struct {
		OrderID     string `json:"orderId"`
		CustomerID  string `json:"customerId"`
		CreatedAt   string `json:"createdAt"`
		IsPaid      bool   `json:"isPaid"`
		IsDelivered bool   `json:"isDelivered"`
		Lines       []line `json:"lines"`
		SellerTotal string `json:"sellerTotal"`
	}

	out := make([]row, 0, len(list))
	for _, o := range list {
		r := row{
			OrderID:     o.ID.String(),
			CustomerID:  o.CustomerID.String(),
			CreatedAt:   o.CreatedAt.Format("2006-01-02 15:04:05"),
			IsPaid:      o.IsPaid,
			IsDelivered: o.IsDelivered,
		}
		total := decimal.Zero
		for _, item := range o.Items {
			r.Lines = append(r.Lines, line{
				ProductID: item.ProductID.String(),
				Name:      item.Name,
				Quantity:  item.Quantity,
				Subtotal:  item.Subtotal().StringFixed(2),
			})
			total = total.Add(item.Subtotal())
		}
		r.SellerTotal = total.StringFixed(2)
		out = append(out, r)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode orders: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nFound %d order(s)\n", len(out))
}
