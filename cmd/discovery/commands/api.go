package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cryptouniverse/discovery/internal/api"
	"github.com/cryptouniverse/discovery/internal/api/handlers"
	"github.com/cryptouniverse/discovery/internal/contracts"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `기회 탐색 API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 스캔 시작/조회 엔드포인트 제공
- 캐시 정리 및 유니버스 갱신 스케줄러 실행

Endpoints:
  GET  /health                                - Health check
  POST /api/opportunities/discover            - 스캔 시작
  GET  /api/opportunities/status/{scan_id}    - 스캔 상태 폴링
  GET  /api/opportunities/latest              - 최근 스캔 조회
  GET  /api/opportunities/history             - 스캔 이력 조회
  GET  /api/opportunities/stream/{scan_id}    - 스캔 진행 스트리밍

Example:
  go run ./cmd/discovery api
  go run ./cmd/discovery api --port 8085`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT 환경변수)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== CryptoUniverse Discovery API Server ===")

	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if apiPort != "" {
		app.cfg.Port = apiPort
	}

	log := app.log
	log.WithFields(map[string]interface{}{
		"port": app.cfg.Port,
		"env":  app.cfg.Env,
	}).Info("Initializing API server")

	var scanHistory contracts.ScanHistory
	if app.historyRepo != nil {
		scanHistory = app.historyRepo
	}

	opportunityHandler := handlers.NewOpportunityHandler(app.orchestrator, app.store, scanHistory, log)
	streamHandler := handlers.NewStreamHandler(app.store, log)

	router := api.NewRouter(opportunityHandler, streamHandler, log)
	server := api.New(app.cfg, log, router)

	// The fast cache layer lives in this process, so its cleanup job
	// must run here too
	app.scheduler.Start()
	defer app.scheduler.Stop()

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", app.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  POST /api/opportunities/discover")
	fmt.Println("  GET  /api/opportunities/status/{scan_id}")
	fmt.Println("  GET  /api/opportunities/latest")
	fmt.Println("  GET  /api/opportunities/history")
	fmt.Println("  GET  /api/opportunities/stream/{scan_id}")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout; in-flight fan-outs are drained so
	// accepted scans still finalize
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.orchestrator.Drain()

	log.Info("Server stopped")
	return nil
}
