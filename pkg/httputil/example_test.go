package httputil_test

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptouniverse/discovery/pkg/config"
	"github.com/cryptouniverse/discovery/pkg/httputil"
	"github.com/cryptouniverse/discovery/pkg/logger"
)

// Example_basic shows a plain GET through the shared client.
func Example_basic() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
	}
	log := logger.New(cfg)

	// Create HTTP client (SSOT)
	client := httputil.New(cfg, log)

	ctx := context.Background()
	resp, err := client.Get(ctx, "http://localhost:8085/api/opportunities/latest")
	if err != nil {
		fmt.Printf("Request failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Printf("Status: %d\n", resp.StatusCode)
	// Prints the status code of the live request.
}

// Example_withRetry widens the retry window for a flaky upstream.
func Example_withRetry() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
	}
	log := logger.New(cfg)

	// 5 retries, 2s initial backoff
	client := httputil.New(cfg, log).WithRetry(5, 2*time.Second)

	ctx := context.Background()
	resp, err := client.Get(ctx, "http://localhost:8085/health")
	if err != nil {
		fmt.Printf("Request failed after retries: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Println("Request succeeded")
	// Prints success or the final failure after retries.
}

// Example_postJSON starts a discovery scan over HTTP.
func Example_postJSON() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
	}
	log := logger.New(cfg)

	client := httputil.New(cfg, log)

	body := map[string]interface{}{
		"force_refresh":  true,
		"min_confidence": 60,
		"risk_tolerance": "balanced",
	}

	ctx := context.Background()
	resp, err := client.PostJSON(ctx, "http://localhost:8085/api/opportunities/discover", body)
	if err != nil {
		fmt.Printf("POST request failed: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Printf("Scan accepted: %d\n", resp.StatusCode)
	// Prints 202 when a new scan starts, 200 when a live scan is reused.
}

// Example_timeout bounds a poll against a slow endpoint.
func Example_timeout() {
	cfg := &config.Config{
		Env:      "production",
		LogLevel: "info",
	}
	log := logger.New(cfg)

	client := httputil.NewWithTimeout(cfg, log, 5*time.Second).DisableRetry()

	ctx := context.Background()
	resp, err := client.Get(ctx, "http://localhost:8085/api/opportunities/status/abc")
	if err != nil {
		fmt.Printf("Request timeout: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Println("Request completed within timeout")
	// Prints success or the timeout error.
}
