// quizbot drives a live quiz room for demos and load checks: it
// connects one admin plus N simulated players over websocket, walks
// the quiz through every question, and has each player answer with a
// randomized think time.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
}

func getPlayerName(idx int) string {
	prefixIdx := idx % len(playerPrefixes)
	suffix := idx/len(playerPrefixes) + 1
	return fmt.Sprintf("%s%d", playerPrefixes[prefixIdx], suffix)
}

type frame struct {
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	TotalQuestions int             `json:"totalQuestions,omitempty"`
}

type question struct {
	ID      int    `json:"id"`
	Text    string `json:"text"`
	Options []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"options"`
}

func send(conn *websocket.Conn, msgType string, payload any) error {
	data, err := json.Marshal(map[string]any{"type": msgType, "payload": payload})
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func dial(url string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", url, err)
	}
	return conn
}

// runPlayer validates into the room, joins, and answers every question
// it receives until the quiz ends or the transport closes.
func runPlayer(url, room, name string, maxThink time.Duration, answered *int64, wg *sync.WaitGroup) {
	defer wg.Done()

	conn := dial(url)
	defer conn.Close()

	if err := send(conn, "validate-room", map[string]any{"code": room, "name": name}); err != nil {
		log.Printf("[%s] validate failed: %v", name, err)
		return
	}
	if err := send(conn, "join", map[string]any{"roomCode": room, "playerName": name}); err != nil {
		log.Printf("[%s] join failed: %v", name, err)
		return
	}

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}

		switch f.Type {
		case "new-question":
			var q question
			if err := json.Unmarshal(f.Payload, &q); err != nil || len(q.Options) == 0 {
				continue
			}

			think := time.Duration(rand.Int63n(int64(maxThink)))
			time.Sleep(think)

			answer := q.Options[rand.Intn(len(q.Options))].ID
			if err := send(conn, "submit-answer", map[string]any{"qid": q.ID, "answer": answer}); err != nil {
				return
			}

		case "submit-answer-response":
			var result struct {
				IsCorrect bool `json:"isCorrect"`
			}
			if err := json.Unmarshal(f.Payload, &result); err != nil {
				continue
			}
			timeTaken := rand.Float64() * maxThink.Seconds()
			err := send(conn, "set-scores", map[string]any{
				"roomCode":   room,
				"playerName": name,
				"timeTaken":  timeTaken,
				"isCorrect":  result.IsCorrect,
			})
			if err != nil {
				return
			}
			atomic.AddInt64(answered, 1)

		case "quiz-ended":
			send(conn, "leave", map[string]any{"roomCode": room, "playerName": name})
			return
		}
	}
}

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "WebSocket endpoint")
	room := flag.String("room", "1234-5678", "Room code to drive")
	players := flag.Int("players", 10, "Number of simulated players")
	rounds := flag.Int("rounds", 5, "Number of questions to play")
	questionTime := flag.Duration("question-time", 10*time.Second, "Time the admin holds each question open")
	maxThink := flag.Duration("think", 5*time.Second, "Maximum player think time per question")
	flag.Parse()

	fmt.Println("quizbot")
	fmt.Printf("  Endpoint:   %s\n", *url)
	fmt.Printf("  Room:       %s\n", *room)
	fmt.Printf("  Players:    %d\n", *players)
	fmt.Printf("  Rounds:     %d\n", *rounds)
	fmt.Println()

	// Admin connection drives the quiz lifecycle.
	admin := dial(*url)
	defer admin.Close()
	if err := send(admin, "join", map[string]any{"roomCode": *room, "playerName": "quizbot-admin", "isAdmin": true}); err != nil {
		log.Fatalf("Admin join failed: %v", err)
	}

	// Drain admin inbound so pings keep flowing and broadcasts are
	// visible with -v style debugging if ever needed.
	go func() {
		for {
			if _, _, err := admin.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var answered int64
	var wg sync.WaitGroup
	fmt.Printf("Connecting %d players...\n", *players)
	for i := 0; i < *players; i++ {
		wg.Add(1)
		go runPlayer(*url, *room, getPlayerName(i), *maxThink, &answered, &wg)
	}

	// Give players a moment to validate and join before starting.
	time.Sleep(time.Second)

	fmt.Println("Starting quiz")
	if err := send(admin, "admin-start", map[string]any{"roomCode": *room}); err != nil {
		log.Fatalf("admin-start failed: %v", err)
	}
	time.Sleep(*questionTime)

	for qid := 2; qid <= *rounds; qid++ {
		fmt.Printf("Advancing to question %d\n", qid)
		if err := send(admin, "admin-next-question", map[string]any{"roomCode": *room, "qid": qid}); err != nil {
			log.Fatalf("admin-next-question failed: %v", err)
		}
		time.Sleep(*questionTime)
	}

	fmt.Println("Ending quiz")
	if err := send(admin, "admin-end", map[string]any{"roomCode": *room}); err != nil {
		log.Fatalf("admin-end failed: %v", err)
	}

	wg.Wait()
	fmt.Printf("\nDone. Answers recorded: %d\n", atomic.LoadInt64(&answered))
}
