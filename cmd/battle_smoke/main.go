// battle_smoke drives two websocket clients through one full round against a
// running server: match, answer, observe the round resolve.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"poker_arena/internal/db"
	"poker_arena/internal/domain"
	"poker_arena/internal/repository"
	"poker_arena/internal/service"

	"github.com/gorilla/websocket"
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

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	users := repository.NewUserRepository(pool)
	ctx := context.Background()

	userA := ensureUser(ctx, users, "smokeA", 1000)
	userB := ensureUser(ctx, users, "smokeB", 1010)

	connA := dial(port, userA.ID)
	defer connA.Close()
	connB := dial(port, userB.ID)
	defer connB.Close()

	start := []byte(`{"type":"start_matching","payload":{"mode":"ranked"}}`)
	must(connA.WriteMessage(websocket.TextMessage, start), "start A")
	must(connB.WriteMessage(websocket.TextMessage, start), "start B")

	waitFor(connA, "matched", "A")
	waitFor(connB, "matched", "B")

	answerA := []byte(`{"type":"submit_answer","payload":{"action":"raise","time_ms":1200,"score":80}}`)
	answerB := []byte(`{"type":"submit_answer","payload":{"action":"fold","time_ms":900,"score":60}}`)
	must(connA.WriteMessage(websocket.TextMessage, answerA), "answer A")
	must(connB.WriteMessage(websocket.TextMessage, answerB), "answer B")

	waitFor(connA, "battle.updated", "A")
	waitFor(connB, "battle.updated", "B")

	log.Println("smoke run finished")
}

func ensureUser(ctx context.Context, users *repository.UserRepository, username string, rating int) *domain.User {
	u, err := users.GetByUsername(ctx, username)
	if err != nil {
		u = &domain.User{Username: username, Rating: rating}
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create %s: %v", username, err)
		}
	}
	return u
}

func dial(port string, userID int64) *websocket.Conn {
	token, err := service.GenerateJWT(userID)
	if err != nil {
		log.Fatalf("token: %v", err)
	}

	// 127.0.0.1 to prefer IPv4
	url := fmt.Sprintf("ws://127.0.0.1:%s/ws?token=%s", port, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("dial user=%d: %v", userID, err)
	}
	return conn
}

// waitFor drains messages until one of the wanted type shows up.
func waitFor(conn *websocket.Conn, wantType, name string) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("%s: waiting for %s: %v", name, wantType, err)
		}
		var msg struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(raw, &msg)
		log.Printf("%s got: %s", name, string(raw))
		if msg.Type == wantType {
			return
		}
	}
}

func must(err error, what string) {
	if err != nil {
		log.Fatalf("%s: %v", what, err)
	}
}
