package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"
)

var (
	streamParts = []string{"Bench", "mark", " safe", " response"}
	unaryResp   = []byte(`{"id":"bench-123","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Hello"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}}`)
	streamFinal = `{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":4,"total_tokens":9}}`
)

// mockUpstream speaks enough of the OpenAI chat API for every chain to
// resolve to it. A share of calls fails with 503 so the router fails over.
type mockUpstream struct {
	failRate   float64
	chunkDelay time.Duration

	calls  atomic.Int64
	failed atomic.Int64
}

func (m *mockUpstream) listen(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", m.chat)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
		fmt.Println("mock upstream stopped:", err)
	}
}

func (m *mockUpstream) chat(w http.ResponseWriter, r *http.Request) {
	m.calls.Add(1)
	if m.failRate > 0 && rand.Float64() < m.failRate {
		m.failed.Add(1)
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Stream bool `json:"stream"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if !req.Stream {
		time.Sleep(10 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(unaryResp)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	send := func(data string) {
		_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	for _, part := range streamParts {
		time.Sleep(m.chunkDelay)
		chunk, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{{"index": 0, "delta": map[string]string{"content": part}}},
		})
		send(string(chunk))
	}
	send(streamFinal)
	send("[DONE]")
}
