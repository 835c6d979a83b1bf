package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/veilvogue/marketapi/internal/auth"
	"github.com/veilvogue/marketapi/internal/config"
	"github.com/veilvogue/marketapi/internal/domain"
)

// issue-token mints an access token for local testing. Accounts live in
// the external identity service, so any user ID is accepted.
func main() {
	userID := flag.String("user", "", "user ID (random when empty)")
	email := flag.String("email", "dev@example.com", "email claim")
	role := flag.String("role", string(domain.RoleCustomer), "customer, seller or admin")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	id := uuid.New()
	if *userID != "" {
		id, err = uuid.Parse(*userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid user ID: %v\n", err)
			os.Exit(1)
		}
	}
	if !domain.Role(*role).IsValid() {
		fmt.Fprintf(os.Stderr, "Invalid role %q\n", *role)
		os.Exit(1)
	}

	jwt := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, *ttl)
	token, expiresAt, err := jwt.GenerateAccessToken(id, *email, domain.Role(*role))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User ID:    %s\n", id.String())
	fmt.Printf("Role:       %s\n", *role)
	fmt.Printf("Expires at: %s\n\n", expiresAt.Format(time.RFC3339))
	fmt.Printf("Authorization: Bearer %s\n", token)
}
