package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/linemk/shop-orders/internal/config"
	security "github.com/linemk/shop-orders/internal/jwt-new"
)

// admintoken выпускает JWT для админских маршрутов подтверждения и отмены платежей
func main() {
	var (
		subject string
		ttl     time.Duration
	)
	flag.StringVar(&subject, "subject", "", "admin identifier written to the sub claim")
	flag.DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to jwt.token_ttl minutes")

	// MustLoad сам вызывает flag.Parse
	cfg := config.MustLoad()

	if subject == "" {
		log.Fatal("-subject is required")
	}
	if ttl == 0 {
		ttl = time.Duration(cfg.JWT.TokenTTL) * time.Minute
	}

	token, err := security.NewAdminToken(subject, cfg.JWT.Secret, ttl)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(token)
}
