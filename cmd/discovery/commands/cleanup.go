package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryptouniverse/discovery/internal/scheduler/jobs"
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "스캔 캐시 정리 도구",
	Long: `스캔 캐시 정리를 즉시 1회 실행합니다.

수행 작업:
- fast 레이어의 만료 엔트리 제거
- 오래 전 종료된 스캔의 룩업 인덱스 정리
- 보존 기간이 지난 스캔 이력 삭제

스케줄러가 주기적으로 수행하는 작업과 동일합니다.

Example:
  go run ./cmd/discovery cleanup`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Discovery Scan Cleanup ===")

	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	job := jobs.NewScanCleanupJob(app.store, app.historyRepo, app.cfg, app.log)
	if err := job.Run(ctx); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	fmt.Println("✅ Cleanup completed")
	return nil
}
