package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "discovery",
	Short: "CryptoUniverse Discovery - 기회 탐색 스캔 서비스",
	Long: `CryptoUniverse Discovery CLI

전략 병렬 스캔으로 트레이딩 기회를 탐색하는 서비스.
스캔 시작은 즉시 반환되고, 결과는 폴링/스트리밍으로 조회합니다.

Usage:
  go run ./cmd/discovery [command]

Examples:
  go run ./cmd/discovery api
  go run ./cmd/discovery scan --user u_123
  go run ./cmd/discovery status <scan_id> --remote http://localhost:8085
  go run ./cmd/discovery worker`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
