package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryptouniverse/discovery/internal/contracts"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "단발성 스캔 실행",
	Long: `한 사용자에 대한 탐색 스캔을 실행하고 완료까지 기다립니다.

서버 없이 전체 파이프라인을 로컬에서 실행하는 운영/디버깅 도구입니다.

Example:
  go run ./cmd/discovery scan --user u_123
  go run ./cmd/discovery scan --user u_123 --min-confidence 60 --force`,
	RunE: runScan,
}

var (
	scanUser          string
	scanForce         bool
	scanMinConfidence float64
	scanRisk          string
)

func init() {
	rootCmd.AddCommand(scanCmd)

	// Flags
	scanCmd.Flags().StringVar(&scanUser, "user", "", "스캔 대상 사용자 ID (필수)")
	scanCmd.Flags().BoolVar(&scanForce, "force", false, "진행 중인 스캔을 무시하고 새로 시작")
	scanCmd.Flags().Float64Var(&scanMinConfidence, "min-confidence", 0, "최소 신뢰도 (0-100)")
	scanCmd.Flags().StringVar(&scanRisk, "risk", "", "리스크 성향 (conservative|balanced|aggressive)")
	scanCmd.MarkFlagRequired("user")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Discovery Scan ===")

	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	req := contracts.ScanRequest{
		UserID:        scanUser,
		ForceRefresh:  scanForce,
		MinConfidence: scanMinConfidence,
		RiskTolerance: contracts.RiskTolerance(scanRisk),
	}

	started := time.Now()
	result, err := app.orchestrator.StartScan(ctx, req)
	if err != nil {
		return fmt.Errorf("start scan: %w", err)
	}

	fmt.Printf("Scan ID : %s\n", result.ScanID)
	if result.Reused {
		fmt.Println("          (진행 중인 스캔에 연결됨)")
	}

	// Poll until the record reaches a terminal state
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var record *contracts.ScanRecord
	for range ticker.C {
		record, err = app.store.Get(ctx, result.CacheKey)
		if err != nil {
			return fmt.Errorf("poll scan: %w", err)
		}
		if record == nil {
			return fmt.Errorf("scan record expired while polling")
		}

		fmt.Printf("  [%s] %d/%d strategies\n",
			record.State, record.StrategiesCompleted, record.StrategiesTotal)

		if record.State.IsTerminal() {
			break
		}
	}

	fmt.Printf("\nScan finished in %.1fs (state: %s)\n", time.Since(started).Seconds(), record.State)
	fmt.Printf("Opportunities: %d\n\n", len(record.Opportunities))

	for _, opp := range record.Opportunities {
		tag := ""
		if opp.IsFallback() {
			tag = " [fallback]"
		}
		fmt.Printf("  %-14s %-16s %-6s conf=%.0f%s\n",
			opp.Symbol, opp.Type, opp.Action, opp.Confidence, tag)
	}

	fmt.Println("\nStrategy performance:")
	for id, perf := range record.StrategyPerformance {
		fmt.Printf("  %-16s %-10s found=%-3d elapsed=%dms\n",
			id, perf.Status, perf.OpportunitiesFound, perf.ElapsedMS)
	}

	return nil
}
