package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	mockPort = 9091
	appPort  = 8081
	benchKey = "bench-key-12345"
)

// prompts cover every tier so all three chains get exercised.
var prompts = []string{
	"Hello",
	"Thanks!",
	"Can you explain how a hash map works?",
	"Write me a short paragraph about the ocean and the animals that live in it, keeping it light and friendly.",
	"Implement a lock-free queue and analyze its complexity",
	"Please refactor this function to remove the global state",
}

type options struct {
	duration   time.Duration
	rate       int
	stream     bool
	chaos      bool
	failRate   float64
	chunkDelay time.Duration
}

func main() {
	var opts options
	flag.DurationVar(&opts.duration, "duration", 10*time.Second, "Duration of the test")
	flag.IntVar(&opts.rate, "rate", 50, "Requests per second")
	flag.BoolVar(&opts.stream, "stream", false, "Use streaming requests")
	flag.BoolVar(&opts.chaos, "chaos", false, "Simulate random client disconnections")
	flag.Float64Var(&opts.failRate, "fail-rate", 0, "Fraction of upstream calls the mock fails, forcing failover")
	flag.DurationVar(&opts.chunkDelay, "chunk-delay", 50*time.Millisecond, "Delay between mock stream chunks")
	flag.Parse()

	upstream := &mockUpstream{failRate: opts.failRate, chunkDelay: opts.chunkDelay}
	go upstream.listen(mockPort)

	stop, err := startGateway()
	if err != nil {
		log.Fatal(err)
	}
	defer stop()

	base := fmt.Sprintf("http://localhost:%d", appPort)
	waitForApp(base + "/health")

	done := make(chan struct{})
	if opts.chaos {
		go disconnectRandomly(base+"/v1/chat/completions", max(5, min(opts.rate/10, 50)), done)
	}

	mode := "unary"
	if opts.stream {
		mode = "streaming"
	}
	fmt.Printf("Running %s benchmark: %s at %d req/s (upstream fail rate %.0f%%)\n",
		mode, opts.duration, opts.rate, opts.failRate*100)

	metrics := attack(base+"/v1/chat/completions", opts)
	close(done)

	report(metrics)
	fmt.Printf("Upstream calls: %d (%d failed on purpose)\n", upstream.calls.Load(), upstream.failed.Load())
	printGatewayCounters(base + "/metrics")
}

func attack(url string, opts options) *vegeta.Metrics {
	targeter := func(t *vegeta.Target) error {
		t.Method = http.MethodPost
		t.URL = url
		t.Body = requestBody(prompts[rand.Intn(len(prompts))], opts.stream)
		t.Header = http.Header{
			"Content-Type":  []string{"application/json"},
			"Authorization": []string{"Bearer " + benchKey},
		}
		return nil
	}

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: opts.rate, Per: time.Second}, opts.duration, "tier-router") {
		metrics.Add(res)
	}
	metrics.Close()
	return &metrics
}

func report(m *vegeta.Metrics) {
	fmt.Println("--------------------------------------------------")
	fmt.Println("P50:        ", m.Latencies.P50)
	fmt.Println("P99:        ", m.Latencies.P99)
	fmt.Println("Max:        ", m.Latencies.Max)
	fmt.Printf("Success:     %.2f%%\n", m.Success*100)
	fmt.Printf("Throughput:  %.2f req/s\n", m.Throughput)
	fmt.Println("Status codes:", m.StatusCodes)
	fmt.Println("--------------------------------------------------")

	seen := make(map[string]bool)
	for _, msg := range m.Errors {
		if len(seen) == 5 {
			break
		}
		if !seen[msg] {
			seen[msg] = true
			fmt.Println("error:", msg)
		}
	}
}

// startGateway builds cmd/server and runs it against the mock upstream.
// The returned func kills the process and removes its files.
func startGateway() (func(), error) {
	fmt.Println("Building gateway...")
	build := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		return nil, fmt.Errorf("build gateway: %w", err)
	}

	const configFile = "bench_config.yaml"
	if err := os.WriteFile(configFile, []byte(benchConfig), 0o644); err != nil {
		return nil, fmt.Errorf("write config: %w", err)
	}

	logFile, err := os.Create("bench_server.log")
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("./bin/server")
	cmd.Env = append(os.Environ(), "CONFIG_FILE="+configFile)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("start gateway: %w", err)
	}

	go printResources(cmd.Process.Pid, 2*time.Second)

	return func() {
		_ = cmd.Process.Kill()
		_ = logFile.Close()
		_ = os.Remove(configFile)
		_ = os.Remove("bench.db")
	}, nil
}

func requestBody(prompt string, stream bool) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"stream":   stream,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
	})
	return body
}

// disconnectRandomly opens streaming requests and drops them after 1-200ms
// so abandoned sessions are exercised alongside the main attack.
func disconnectRandomly(url string, workers int, done <-chan struct{}) {
	fmt.Printf("Chaos: %d workers disconnecting after 1-200ms\n", workers)
	client := &http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: workers}}
	payload := requestBody("Chaos request", true)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				ctx, cancel := context.WithTimeout(context.Background(), time.Duration(rand.Intn(200)+1)*time.Millisecond)
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("Authorization", "Bearer "+benchKey)
				if resp, err := client.Do(req); err == nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
				}
				cancel()

				time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
			}
		}()
	}
	wg.Wait()
}

// printGatewayCounters prints the classification and failover counters
// from the gateway's /metrics endpoint.
func printGatewayCounters(url string) {
	resp, err := http.Get(url)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.HasPrefix(line, "tier_router_classifications_total{") ||
			strings.HasPrefix(line, "tier_router_chain_exhausted_total{") ||
			strings.HasPrefix(line, "tier_router_session_outcomes_total{") {
			fmt.Println("  " + line)
		}
	}
}

func printResources(pid int, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	fmt.Printf("%-10s %-10s %-10s\n", "Time", "RSS(MB)", "CPU(%)")
	for range ticker.C {
		out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "rss=,%cpu=").Output()
		if err != nil {
			return
		}
		fields := strings.Fields(string(out))
		if len(fields) < 2 {
			continue
		}
		rss, _ := strconv.ParseFloat(fields[0], 64)
		cpu, _ := strconv.ParseFloat(fields[1], 64)
		fmt.Printf("%-10s %-10.2f %-10.2f\n", time.Now().Format("15:04:05"), rss/1024, cpu)
	}
}

func waitForApp(url string) {
	for i := 0; i < 20; i++ {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	log.Fatal("Gateway did not become healthy")
}

var benchConfig = fmt.Sprintf(`
server:
  port: "%d"
  env: development
  update_check: false
  api_keys: [%q]
log:
  level: "error"
database:
  dsn: "file:bench.db?cache=shared&_journal_mode=WAL&_busy_timeout=5000"
routing:
  fallback_chunk_delay: 0s
providers:
  - id: openai
    type: openai
    name: OpenAI
    api_key: "mock-key"
    base_url: "http://localhost:%d/v1"
    enabled: true
`, appPort, benchKey, mockPort)
