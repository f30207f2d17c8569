package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/promptash/promptash/config"
	"github.com/promptash/promptash/pkg/helpers"
)

type tier struct {
	name         string
	displayName  string
	monthlyCents int64
	annualCents  int64
	itemLimit    int
}

var tiers = []tier{
	{"basic", "Basic", 500, 5000, 100},
	{"pro", "Pro", 1500, 15000, 1000},
	{"unlimited", "Unlimited", 3000, 30000, 0},
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	for _, t := range tiers {
		var id string
		err := db.QueryRow(`
			INSERT INTO membership_tiers (name, display_name, monthly_cents, annual_cents, item_limit)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (name) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				monthly_cents = EXCLUDED.monthly_cents,
				annual_cents = EXCLUDED.annual_cents,
				item_limit = EXCLUDED.item_limit,
				updated_at = now()
			RETURNING id
		`, t.name, t.displayName, t.monthlyCents, t.annualCents, t.itemLimit).Scan(&id)
		if err != nil {
			log.Fatalf("failed to upsert tier %s: %v", t.name, err)
		}
		fmt.Printf("tier ensured: %s id=%s\n", t.name, id)
	}

	// Admin account for the security event view. Password is for local
	// development only.
	email := "admin@promptash.local"
	username := "admin"
	password := "admin12345"
	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	var id string
	err = db.QueryRow(`
		INSERT INTO users (username, email, password_hash, first_name, role, plan)
		VALUES ($1, $2, $3, 'Admin', 'admin', 'unlimited')
		ON CONFLICT (username) DO UPDATE SET role = 'admin', updated_at = now()
		RETURNING id
	`, username, email, hash).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}
	fmt.Printf("seeded admin: id=%s username=%s password=%s\n", id, username, password)
}
