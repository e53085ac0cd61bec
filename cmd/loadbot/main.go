// Package main - loadbot
// Load generator for stress testing: drives many concurrent rooms through
// full games over the REST API while observing state pushes over WebSocket.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Config for the load bot
type Config struct {
	ServerURL    string
	NumRooms     int
	MoveInterval time.Duration
	TestDuration time.Duration
}

// Stats tracks performance metrics
type Stats struct {
	MovesSent      int64
	FramesReceived int64
	GamesFinished  int64
	Errors         int64
	Latencies      []time.Duration
	mu             sync.Mutex
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "HTTP server base URL")
	numRooms := flag.Int("rooms", 20, "Number of concurrent rooms")
	interval := flag.Duration("interval", 250*time.Millisecond, "Move interval per room")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	flag.Parse()

	config := Config{
		ServerURL:    strings.TrimRight(*serverURL, "/"),
		NumRooms:     *numRooms,
		MoveInterval: *interval,
		TestDuration: *duration,
	}

	fmt.Println("=========================================")
	fmt.Println("🔥 LOADBOT - Stress Test Tool")
	fmt.Println("=========================================")
	fmt.Printf("Server: %s\n", config.ServerURL)
	fmt.Printf("Rooms: %d\n", config.NumRooms)
	fmt.Printf("Interval: %v\n", config.MoveInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\n⚠️ Interrupt received, stopping...")
		cancel()
	}()

	stats := runStressTest(ctx, config)
	printResults(stats, config)
}

func runStressTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup

	fmt.Println("\n🚀 Starting rooms...")

	for i := 0; i < config.NumRooms; i++ {
		wg.Add(1)
		go func(botID int) {
			defer wg.Done()
			runRoom(ctx, botID, config, stats)
		}(i)

		// Stagger room starts to avoid thundering herd
		time.Sleep(25 * time.Millisecond)
	}

	fmt.Printf("✅ All %d rooms started\n\n", config.NumRooms)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				moves := atomic.LoadInt64(&stats.MovesSent)
				frames := atomic.LoadInt64(&stats.FramesReceived)
				done := atomic.LoadInt64(&stats.GamesFinished)
				errs := atomic.LoadInt64(&stats.Errors)
				fmt.Printf("📊 Progress: Moves=%d Frames=%d Finished=%d Errors=%d\n", moves, frames, done, errs)
			}
		}
	}()

	wg.Wait()
	return stats
}

// snapshot is the subset of room state the bot needs to pick a legal move.
type snapshot struct {
	Phase     string `json:"phase"`
	TurnPhase string `json:"turn_phase"`
	Cards     []struct {
		Word     string `json:"word"`
		Revealed bool   `json:"revealed"`
	} `json:"cards"`
	GuessesRemaining int `json:"guesses_remaining"`
}

func runRoom(ctx context.Context, botID int, config Config, stats *Stats) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(botID)))

	var created struct {
		ID   string `json:"id"`
		Code string `json:"code"`
	}
	if err := call(ctx, config, http.MethodPost, "/api/rooms", nil, &created, stats); err != nil {
		log.Printf("Bot %d: room creation failed: %v", botID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}

	seats := []string{"red_spymaster", "red_guesser", "blue_spymaster", "blue_guesser"}
	for i, seat := range seats {
		body := map[string]any{
			"player_id": fmt.Sprintf("BOT_%03d_%d", botID, i),
			"name":      fmt.Sprintf("Bot %d.%d", botID, i),
			"seat":      seat,
		}
		if err := call(ctx, config, http.MethodPost, "/api/rooms/"+created.ID+"/join", body, nil, stats); err != nil {
			atomic.AddInt64(&stats.Errors, 1)
			return
		}
	}
	if err := call(ctx, config, http.MethodPost, "/api/rooms/"+created.ID+"/start", nil, nil, stats); err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}

	// Observe state pushes on a second connection, like a real client would.
	go observe(ctx, config, created.ID, stats)

	ticker := time.NewTicker(config.MoveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var snap snapshot
			if err := call(ctx, config, http.MethodGet, "/api/rooms/"+created.ID, nil, &snap, stats); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				continue
			}
			if snap.Phase == "finished" {
				atomic.AddInt64(&stats.GamesFinished, 1)
				if err := call(ctx, config, http.MethodPost, "/api/rooms/"+created.ID+"/replay", nil, nil, stats); err != nil {
					atomic.AddInt64(&stats.Errors, 1)
					return
				}
				if err := call(ctx, config, http.MethodPost, "/api/rooms/"+created.ID+"/start", nil, nil, stats); err != nil {
					atomic.AddInt64(&stats.Errors, 1)
					return
				}
				continue
			}
			if snap.Phase != "playing" {
				continue
			}
			if err := playMove(ctx, config, created.ID, &snap, rng, stats); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
			}
		}
	}
}

func playMove(ctx context.Context, config Config, roomID string, snap *snapshot, rng *rand.Rand, stats *Stats) error {
	if snap.TurnPhase == "clue" {
		// Clue words only need to be off the board.
		clue := map[string]any{
			"word":   fmt.Sprintf("CLUE%d", rng.Intn(100000)),
			"number": 1 + rng.Intn(3),
		}
		return call(ctx, config, http.MethodPost, "/api/rooms/"+roomID+"/clue", clue, nil, stats)
	}

	// Guess phase: mostly guess a random unrevealed word, sometimes pass.
	if rng.Intn(5) == 0 {
		return call(ctx, config, http.MethodPost, "/api/rooms/"+roomID+"/end-turn", nil, nil, stats)
	}
	var unrevealed []string
	for _, c := range snap.Cards {
		if !c.Revealed {
			unrevealed = append(unrevealed, c.Word)
		}
	}
	if len(unrevealed) == 0 {
		return nil
	}
	guess := map[string]any{"word": unrevealed[rng.Intn(len(unrevealed))]}
	return call(ctx, config, http.MethodPost, "/api/rooms/"+roomID+"/guess", guess, nil, stats)
}

func observe(ctx context.Context, config Config, roomID string, stats *Stats) {
	wsURL := strings.Replace(config.ServerURL, "http", "ws", 1) + "/ws/rooms/" + roomID
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			return
		}
		atomic.AddInt64(&stats.FramesReceived, 1)
	}
}

func call(ctx context.Context, config Config, method, path string, body, out any, stats *Stats) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, config.ServerURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	if method == http.MethodPost {
		atomic.AddInt64(&stats.MovesSent, 1)
	}
	stats.mu.Lock()
	stats.Latencies = append(stats.Latencies, latency)
	stats.mu.Unlock()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil && resp.StatusCode < 300 {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("📊 STRESS TEST RESULTS")
	fmt.Println("=========================================")

	moves := atomic.LoadInt64(&stats.MovesSent)
	frames := atomic.LoadInt64(&stats.FramesReceived)
	done := atomic.LoadInt64(&stats.GamesFinished)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Printf("Moves Sent:      %d\n", moves)
	fmt.Printf("Frames Received: %d\n", frames)
	fmt.Printf("Games Finished:  %d\n", done)
	fmt.Printf("Errors:          %d\n", errs)
	fmt.Printf("Error Rate:      %.2f%%\n", float64(errs)/float64(moves+1)*100)

	throughput := float64(moves) / config.TestDuration.Seconds()
	fmt.Printf("Throughput:      %.2f moves/sec\n", throughput)

	if len(stats.Latencies) > 0 {
		var total time.Duration
		var min, max time.Duration = stats.Latencies[0], stats.Latencies[0]

		for _, l := range stats.Latencies {
			total += l
			if l < min {
				min = l
			}
			if l > max {
				max = l
			}
		}

		avg := total / time.Duration(len(stats.Latencies))

		fmt.Printf("\nLatency:\n")
		fmt.Printf("  Min: %v\n", min)
		fmt.Printf("  Avg: %v\n", avg)
		fmt.Printf("  Max: %v\n", max)
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case errs == 0 && done > 0:
		fmt.Println("✅ TEST PASSED: System handled the load")
	case float64(errs)/float64(moves+1) < 0.05:
		fmt.Println("⚠️ TEST WARNING: Some errors detected")
	default:
		fmt.Println("❌ TEST FAILED: High error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"moves_sent":         moves,
		"frames_received":    frames,
		"games_finished":     done,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]interface{}{
			"rooms":    config.NumRooms,
			"interval": config.MoveInterval.String(),
			"duration": config.TestDuration.String(),
		},
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	os.WriteFile("stress_test_results.json", jsonData, 0644)
	fmt.Println("\n📁 Results saved to stress_test_results.json")
}
