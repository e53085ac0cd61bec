// Package metrics provides observability for the game server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Room/actor metrics
	RoomsActive      int64
	RoomsCreated     int64
	ActorRequests    int64
	ActorLatencySum  int64 // nanoseconds
	ActorLatencyMax  int64
	StaleRejections  int64
	DedupedAIRequests int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesOut       int64
	WSErrors            int64

	// LLM metrics
	LLMRequests   int64
	LLMTokensUsed int64
	LLMCostUSD    float64
	LLMLatencySum int64
	LLMErrors     int64

	// Simulation metrics
	SimulationsRun    int64
	RolloutsEvaluated int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordRoomCreated records a new room.
func (c *Collector) RecordRoomCreated() {
	atomic.AddInt64(&c.RoomsCreated, 1)
	atomic.AddInt64(&c.RoomsActive, 1)
}

// RecordRoomClosed records a room shutdown.
func (c *Collector) RecordRoomClosed() {
	atomic.AddInt64(&c.RoomsActive, -1)
}

// RecordActorRequest records one serialized request through a room actor.
func (c *Collector) RecordActorRequest(latency time.Duration) {
	atomic.AddInt64(&c.ActorRequests, 1)
	atomic.AddInt64(&c.ActorLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.ActorLatencyMax) {
		atomic.StoreInt64(&c.ActorLatencyMax, int64(latency))
	}
}

// RecordStaleRejection records an AI result discarded by the staleness guard.
func (c *Collector) RecordStaleRejection() {
	atomic.AddInt64(&c.StaleRejections, 1)
}

// RecordDedupedRequest records a caller collapsed onto an in-flight AI task.
func (c *Collector) RecordDedupedRequest() {
	atomic.AddInt64(&c.DedupedAIRequests, 1)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records an outbound WebSocket broadcast.
func (c *Collector) RecordWSMessage() {
	atomic.AddInt64(&c.WSMessagesOut, 1)
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// RecordLLMCall records an LLM API call.
func (c *Collector) RecordLLMCall(tokens int, cost float64, latency time.Duration, err error) {
	atomic.AddInt64(&c.LLMRequests, 1)
	atomic.AddInt64(&c.LLMTokensUsed, int64(tokens))
	atomic.AddInt64(&c.LLMLatencySum, int64(latency))
	if err != nil {
		atomic.AddInt64(&c.LLMErrors, 1)
	}

	c.mu.Lock()
	c.LLMCostUSD += cost
	c.mu.Unlock()
}

// RecordSimulation records one evaluator run over a set of candidates.
func (c *Collector) RecordSimulation(rollouts int) {
	atomic.AddInt64(&c.SimulationsRun, 1)
	atomic.AddInt64(&c.RolloutsEvaluated, int64(rollouts))
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	actorRequests := atomic.LoadInt64(&c.ActorRequests)
	llmRequests := atomic.LoadInt64(&c.LLMRequests)

	var actorAvg, llmAvg float64
	if actorRequests > 0 {
		actorAvg = float64(atomic.LoadInt64(&c.ActorLatencySum)) / float64(actorRequests) / 1e6 // ms
	}
	if llmRequests > 0 {
		llmAvg = float64(atomic.LoadInt64(&c.LLMLatencySum)) / float64(llmRequests) / 1e9 // seconds
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"rooms": map[string]interface{}{
			"active":  atomic.LoadInt64(&c.RoomsActive),
			"created": atomic.LoadInt64(&c.RoomsCreated),
		},

		"actor": map[string]interface{}{
			"requests":         actorRequests,
			"avg_latency_ms":   actorAvg,
			"max_latency_ms":   float64(atomic.LoadInt64(&c.ActorLatencyMax)) / 1e6,
			"stale_rejections": atomic.LoadInt64(&c.StaleRejections),
			"deduped_requests": atomic.LoadInt64(&c.DedupedAIRequests),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},

		"llm": map[string]interface{}{
			"requests":        llmRequests,
			"errors":          atomic.LoadInt64(&c.LLMErrors),
			"tokens_used":     atomic.LoadInt64(&c.LLMTokensUsed),
			"cost_usd":        c.LLMCostUSD,
			"avg_latency_sec": llmAvg,
		},

		"simulation": map[string]interface{}{
			"runs":     atomic.LoadInt64(&c.SimulationsRun),
			"rollouts": atomic.LoadInt64(&c.RolloutsEvaluated),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		json.NewEncoder(w).Encode(snapshot)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		fmt.Fprintf(w, "# HELP codewords_rooms_active Active game rooms\n")
		fmt.Fprintf(w, "# TYPE codewords_rooms_active gauge\n")
		fmt.Fprintf(w, "codewords_rooms_active %d\n\n", atomic.LoadInt64(&c.RoomsActive))

		fmt.Fprintf(w, "# HELP codewords_actor_requests Total serialized actor requests\n")
		fmt.Fprintf(w, "# TYPE codewords_actor_requests counter\n")
		fmt.Fprintf(w, "codewords_actor_requests %d\n\n", atomic.LoadInt64(&c.ActorRequests))

		fmt.Fprintf(w, "# HELP codewords_stale_rejections AI results discarded as stale\n")
		fmt.Fprintf(w, "# TYPE codewords_stale_rejections counter\n")
		fmt.Fprintf(w, "codewords_stale_rejections %d\n\n", atomic.LoadInt64(&c.StaleRejections))

		fmt.Fprintf(w, "# HELP codewords_deduped_requests Callers collapsed onto in-flight AI tasks\n")
		fmt.Fprintf(w, "# TYPE codewords_deduped_requests counter\n")
		fmt.Fprintf(w, "codewords_deduped_requests %d\n\n", atomic.LoadInt64(&c.DedupedAIRequests))

		fmt.Fprintf(w, "# HELP codewords_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE codewords_ws_connections gauge\n")
		fmt.Fprintf(w, "codewords_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP codewords_llm_requests Total LLM API requests\n")
		fmt.Fprintf(w, "# TYPE codewords_llm_requests counter\n")
		fmt.Fprintf(w, "codewords_llm_requests %d\n\n", atomic.LoadInt64(&c.LLMRequests))

		fmt.Fprintf(w, "# HELP codewords_llm_tokens_used Total tokens consumed\n")
		fmt.Fprintf(w, "# TYPE codewords_llm_tokens_used counter\n")
		fmt.Fprintf(w, "codewords_llm_tokens_used %d\n\n", atomic.LoadInt64(&c.LLMTokensUsed))

		fmt.Fprintf(w, "# HELP codewords_simulations_run Clue evaluator runs\n")
		fmt.Fprintf(w, "# TYPE codewords_simulations_run counter\n")
		fmt.Fprintf(w, "codewords_simulations_run %d\n\n", atomic.LoadInt64(&c.SimulationsRun))

		c.mu.RLock()
		fmt.Fprintf(w, "# HELP codewords_llm_cost_usd Total LLM cost in USD\n")
		fmt.Fprintf(w, "# TYPE codewords_llm_cost_usd counter\n")
		fmt.Fprintf(w, "codewords_llm_cost_usd %.4f\n", c.LLMCostUSD)
		c.mu.RUnlock()
	}
}
