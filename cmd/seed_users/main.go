// seed_users creates two rated accounts for local development and prints
// tokens for them. Reruns reuse the existing rows.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"poker_arena/internal/db"
	"poker_arena/internal/domain"
	"poker_arena/internal/repository"
	"poker_arena/internal/service"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	service.InitJWT(secret)

	pool := db.Connect(dsn)
	defer pool.Close()

	users := repository.NewUserRepository(pool)
	ctx := context.Background()

	for _, seed := range []struct {
		username string
		rating   int
	}{
		{"heroA", 1000},
		{"heroB", 1010},
	} {
		u, err := users.GetByUsername(ctx, seed.username)
		if err != nil {
			u = &domain.User{Username: seed.username, Rating: seed.rating}
			if err := users.Create(ctx, u); err != nil {
				log.Fatalf("create %s: %v", seed.username, err)
			}
		}

		token, err := service.GenerateJWT(u.ID)
		if err != nil {
			log.Fatalf("token for %s: %v", seed.username, err)
		}
		fmt.Printf("%s id=%d rating=%d token=%s\n", u.Username, u.ID, u.Rating, token)
	}
}
