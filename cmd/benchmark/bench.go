package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

// Drives load against a running gateway while serving as a mock
// openai-compatible vendor, so no real tokens are burned. Point the gateway's
// openai base_url at this process:
//
//	OPENAI_BASE_URL=http://localhost:9091/v1 ./bin/server
//	go run ./cmd/benchmark -rate 100 -duration 30s

const mockPort = 9091

func main() {
	duration := flag.Duration("duration", 10*time.Second, "duration of the attack")
	rate := flag.Int("rate", 50, "requests per second")
	target := flag.String("target", "http://localhost:8080", "gateway base URL")
	apiKey := flag.String("key", "", "gateway API key, if auth is enabled")
	flag.Parse()

	go serveMockVendor()
	waitFor(*target + "/health")

	body := []byte(`{"model": "gpt-4o", "messages": [{"role": "user", "content": "Hello"}]}`)
	header := http.Header{"Content-Type": []string{"application/json"}}
	if *apiKey != "" {
		header.Set("Authorization", "Bearer "+*apiKey)
	}

	targeter := func(t *vegeta.Target) error {
		t.Method = "POST"
		t.URL = *target + "/v1/stream"
		t.Body = body
		t.Header = header
		return nil
	}

	fmt.Printf("Attacking %s/v1/stream: %s at %d req/s\n", *target, *duration, *rate)

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics
	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "stream") {
		metrics.Add(res)
	}
	metrics.Close()

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Println("--------------------------------------------------")

	seen := make(map[string]bool)
	for _, msg := range metrics.Errors {
		if len(seen) >= 5 {
			break
		}
		if !seen[msg] {
			fmt.Println(msg)
			seen[msg] = true
		}
	}
}

// serveMockVendor emulates the openai-compatible streaming endpoint with a
// fixed four-chunk reply.
func serveMockVendor() {
	chunks := []string{
		`data: {"choices":[{"delta":{"content":"Bench"}}]}`,
		`data: {"choices":[{"delta":{"content":"mark"}}]}`,
		`data: {"choices":[{"delta":{"content":" reply"}}],"usage":{"prompt_tokens":4,"completion_tokens":3}}`,
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`data: [DONE]`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o"}]}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range chunks {
			time.Sleep(5 * time.Millisecond)
			_, _ = fmt.Fprintf(w, "%s\n\n", chunk)
			flusher.Flush()
		}
	})
	_ = http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux)
}

func waitFor(url string) {
	for i := 0; i < 20; i++ {
		resp, err := http.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	fmt.Println("warning: gateway health check never passed, attacking anyway")
}
