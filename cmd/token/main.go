package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/spec-kit/guild-desk/internal/auth"
	"github.com/spec-kit/guild-desk/internal/config"
)

// Mints a service token for a calling component (gateway, dashboard)
// using the same secret and TTL the API validates against.
func main() {
	component := flag.String("component", "gateway", "component name embedded in the token subject")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes)
	token, expiresAt, err := tokens.GenerateToken(*component)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}

	fmt.Println(token)
	fmt.Printf("expires: %s\n", expiresAt.Format(time.RFC3339))
}
