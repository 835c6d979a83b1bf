package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veilvogue/marketapi/internal/config"
	"github.com/veilvogue/marketapi/internal/domain"
	"github.com/veilvogue/marketapi/internal/repository/postgres"
)

func main() {
	if len(os.Args) < 5 {
		fmt.Println("Usage: go run cmd/create-product/main.go <seller-id> <name> <price> <stock> [image-url]")
		fmt.Println("Example: go run cmd/create-product/main.go 7b0c6a47-0d4e-4f0e-9a52-3c1f2b8e9d10 \"Silk Abaya\" 100 10")
		os.Exit(1)
	}

	sellerID, err := uuid.Parse(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid seller ID: %v\n", err)
		os.Exit(1)
	}
	name := os.Args[2]
	price, err := decimal.NewFromString(os.Args[3])
	if err != nil || price.IsNegative() || !domain.FitsMoneyScale(price) {
		fmt.Fprintf(os.Stderr, "Invalid price %q\n", os.Args[3])
		os.Exit(1)
	}
	stock, err := strconv.Atoi(os.Args[4])
	if err != nil || stock < 0 {
		fmt.Fprintf(os.Stderr, "Invalid stock %q\n", os.Args[4])
		os.Exit(1)
	}
	var imageURL string
	if len(os.Args) > 5 {
		imageURL = os.Args[5]
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

	if cfg.Database.RunMigrations {
		if err := postgres.RunMigrations(db); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
			os.Exit(1)
		}
	}

	repos := postgres.NewRepositories(db, logger)

	product := &domain.Product{
		SellerID: sellerID,
		Name:     name,
		Price:    price,
		Stock:    stock,
		Verified: true,
		Image:    domain.ImageRef{URL: imageURL},
	}

	if err := repos.Product.Create(context.Background(), product); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create product: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Product created successfully!\n\n")
	fmt.Printf("Product ID: %s\n", product.ID.String())
	fmt.Printf("Seller ID:  %s\n", product.SellerID.String())
	fmt.Printf("Name:       %s\n", product.Name)
	fmt.Printf("Price:      %s\n", product.Price.StringFixed(2))
	fmt.Printf("Stock:      %d\n", product.Stock)
}
