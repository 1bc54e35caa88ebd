package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/chess-study-bot/internal/relay"
)

func main() {
	baseURL := os.Getenv("RELAY_BASE_URL")
	wsURL := os.Getenv("RELAY_WS_URL")
	authToken := os.Getenv("RELAY_AUTH_TOKEN")

	if baseURL == "" {
		log.Fatal("RELAY_BASE_URL is required")
	}

	headers := func() map[string]string {
		m := map[string]string{}
		if authToken != "" {
			m["Authorization"] = "Bearer " + authToken
		}
		return m
	}

	client := relay.NewClient(baseURL,
		relay.WithHeaderProvider(headers),
		relay.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := client.GetStatus(ctx)
	if err != nil {
		log.Printf("/status error: %v", err)
	} else {
		log.Printf("/status ok: status=%s version=%s", status.Status, status.Version)
	}

	if wsURL == "" {
		log.Println("RELAY_WS_URL not set; skipping WS check")
		return
	}

	ws := relay.NewWebSocket(wsURL, 5, time.Second)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state relay.WebSocketState) {
		log.Printf("WS state: %s", state)
	})
	ws.OnMessage(func(msg *relay.Message) {
		from := "?"
		if msg.Sender != nil {
			from = *msg.Sender
		}
		fmt.Printf("WS msg room=%s from=%s text=%q\n", msg.Room, from, msg.Msg)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}

	// Observe for a short window
	t := time.NewTimer(10 * time.Second)
	<-t.C

	_ = ws.Close(context.Background())
}
