package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "백그라운드 워커",
	Long: `스케줄 작업을 처리하는 백그라운드 워커입니다.

이 워커는:
- 스캔 캐시 정리 (만료된 엔트리 제거, 룩업 인덱스 정리)
- 유니버스 스냅샷 주기적 갱신
- Graceful shutdown 지원

API 서버도 자체 프로세스의 fast 레이어를 정리하지만, 이 워커는
공유 레이어의 정리와 유니버스 갱신을 전담합니다.

Example:
  go run ./cmd/discovery worker`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Discovery Background Worker ===")

	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	app.scheduler.Start()
	defer app.scheduler.Stop()

	fmt.Println("Scheduled jobs:")
	for _, name := range app.scheduler.GetAllJobs() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	app.log.Info("Worker stopped")
	return nil
}
