package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryptouniverse/discovery/pkg/config"
	"github.com/cryptouniverse/discovery/pkg/httputil"
	"github.com/cryptouniverse/discovery/pkg/logger"
	"github.com/cryptouniverse/discovery/pkg/redis"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <scan_id>",
	Short: "스캔 상태 모니터링",
	Long: `실행 중인 API 서버에서 스캔 상태를 주기적으로 조회합니다.

표시 정보:
- State: 스캔 수명주기 상태
- Progress: 완료된 전략 수
- Opportunities: 수집된 기회 수

Example:
  go run ./cmd/discovery status 3f2a...-9c
  go run ./cmd/discovery status 3f2a...-9c --remote http://localhost:8085 --refresh 2s`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

var (
	// Status flags
	statusRemote  string
	statusRefresh time.Duration
)

func init() {
	rootCmd.AddCommand(statusCmd)

	// Flags
	statusCmd.Flags().StringVar(&statusRemote, "remote", "http://localhost:8085", "API 서버 주소")
	statusCmd.Flags().DurationVar(&statusRefresh, "refresh", 2*time.Second, "갱신 간격")
}

// statusView mirrors the API's status response shape
type statusView struct {
	ScanID              string `json:"scan_id"`
	State               string `json:"state"`
	StrategiesCompleted int    `json:"strategies_completed"`
	StrategiesTotal     int    `json:"strategies_total"`
	Opportunities       []struct {
		Symbol     string  `json:"symbol"`
		Type       string  `json:"type"`
		Action     string  `json:"action"`
		Confidence float64 `json:"confidence"`
		Fallback   bool    `json:"fallback"`
	} `json:"opportunities"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	scanID := args[0]

	fmt.Println("=== Discovery Scan Status ===")
	fmt.Printf("Scan   : %s\n", scanID)
	fmt.Printf("Remote : %s\n", statusRemote)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	// Watchers sharing a redis also share the poll budget; with redis
	// disabled the limiter admits everything.
	rdb, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	limiter := redis.NewRateLimiter(rdb, "discovery")
	client := httputil.New(cfg, log).
		DisableRetry().
		WithRateLimiter(limiter, redis.APIPollRateLimit)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(statusRefresh)
	defer ticker.Stop()

	for {
		view, err := fetchStatus(client, scanID)
		if err != nil {
			return err
		}

		fmt.Printf("[%s] state=%-10s progress=%d/%d opportunities=%d\n",
			time.Now().Format("15:04:05"), view.State,
			view.StrategiesCompleted, view.StrategiesTotal, len(view.Opportunities))

		if view.State == "complete" || view.State == "failed" || view.State == "not_found" {
			fmt.Println("\nFinal opportunities:")
			for _, opp := range view.Opportunities {
				tag := ""
				if opp.Fallback {
					tag = " [fallback]"
				}
				fmt.Printf("  %-14s %-16s %-6s conf=%.0f%s\n",
					opp.Symbol, opp.Type, opp.Action, opp.Confidence, tag)
			}
			return nil
		}

		select {
		case <-sigChan:
			fmt.Println("\nStopped")
			return nil
		case <-ticker.C:
		}
	}
}

func fetchStatus(client *httputil.Client, scanID string) (*statusView, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/api/opportunities/status/%s", statusRemote, scanID)
	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()

	var view statusView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &view, nil
}
