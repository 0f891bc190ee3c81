package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/forum-rewards/rewarder/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "rewarder",
	Short: "Reconciles forum activity against the on-chain reward ledger and allocates rewards",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.ForumBaseUrl, "", `e.g. "https://forum.example.com"`)
	rootCmd.PersistentFlags().String(config.ForumUsersPath, "/admin/users/list/active.json?order=posts&asc=false&show_emails=true", `Path of the active users listing, relative to the base url`)
	rootCmd.PersistentFlags().String(config.ForumApiKey, "", `Forum API key`)
	rootCmd.PersistentFlags().String(config.ForumApiUsername, "system", `Forum API username`)
	rootCmd.PersistentFlags().Int(config.ForumMaxPages, 1, `Maximum number of user pages to fetch`)
	rootCmd.PersistentFlags().Duration(config.ForumTimeout, 30*time.Second, `HTTP timeout for forum requests`)

	rootCmd.PersistentFlags().String(config.LedgerRpcUrl, "", `e.g. "https://rpc.ftm.tools"`)
	rootCmd.PersistentFlags().Uint64(config.LedgerChainId, 250, `Chain id used when signing transactions`)
	rootCmd.PersistentFlags().String(config.LedgerContractAddress, "", `Address of the rewarder ledger contract`)
	rootCmd.PersistentFlags().String(config.LedgerTokenAddress, "", `Address of the reward token (read from the ledger when empty)`)
	rootCmd.PersistentFlags().String(config.LedgerPrivateKey, "", `Hex encoded private key used to sign ledger transactions`)
	rootCmd.PersistentFlags().Int(config.LedgerReadConcurrency, 4, `Maximum number of concurrent ledger reads`)
	rootCmd.PersistentFlags().Float64(config.LedgerReadsPerSecond, 0, `Rate limit for ledger reads, 0 for unlimited`)
	rootCmd.PersistentFlags().Int32(config.LedgerTokenDecimals, 18, `Decimals of the reward token, used for reporting`)
	rootCmd.PersistentFlags().String(config.LedgerExplorerUrl, "", `e.g. "https://ftmscan.com"`)

	rootCmd.PersistentFlags().String(config.AllocationCountMode, string(config.CountMode_Delta), `Value passed to setCount: "delta" or "absolute"`)
	rootCmd.PersistentFlags().Bool(config.AllocationDryRun, false, `Plan and report without sending transactions`)

	rootCmd.PersistentFlags().String(config.NotifierWebhookUrl, "", `Slack compatible webhook url, notifications are only logged when empty`)

	rootCmd.PersistentFlags().String(config.PrometheusPushgatewayUrl, "", `e.g. "http://pushgateway:9091"`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Bool(config.DataDogTracingEnabled, false, `e.g. "true" or "false"`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runVersionCmd)

	// bind any subcommand flags
	runCmd.PersistentFlags().Duration(config.RunTimeout, 10*time.Minute, `Deadline for the whole run`)
	runCmd.PersistentFlags().String(config.RunReportFile, "", `Path to write the run report to`)
	runCmd.PersistentFlags().String(config.RunReportFormat, "yaml", `Report format: "yaml" or "csv"`)
	runCmd.PersistentFlags().Bool(config.RunProgress, false, `Show a progress bar while reading the ledger`)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	// a missing .env file is not an error
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Failed to load .env file - %+v\n", err)
	}

	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

func initSubCommand(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(config.KebabToSnakeCase(f.Name)); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
