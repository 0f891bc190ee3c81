package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "REWARDER"

// Flag / config keys. Flags are kebab-case and are normalized to snake_case
// before being bound into viper, see KebabToSnakeCase.
const (
	Debug = "debug"

	ForumBaseUrl     = "forum.base-url"
	ForumUsersPath   = "forum.users-path"
	ForumApiKey      = "forum.api-key"
	ForumApiUsername = "forum.api-username"
	ForumMaxPages    = "forum.max-pages"
	ForumTimeout     = "forum.timeout"

	LedgerRpcUrl          = "ledger.rpc-url"
	LedgerChainId         = "ledger.chain-id"
	LedgerContractAddress = "ledger.contract-address"
	LedgerTokenAddress    = "ledger.token-address"
	LedgerPrivateKey      = "ledger.private-key"
	LedgerReadConcurrency = "ledger.read-concurrency"
	LedgerReadsPerSecond  = "ledger.reads-per-second"
	LedgerTokenDecimals   = "ledger.token-decimals"
	LedgerExplorerUrl     = "ledger.explorer-url"

	AllocationCountMode = "allocation.count-mode"
	AllocationDryRun    = "allocation.dry-run"

	NotifierWebhookUrl = "notifier.webhook-url"

	RunTimeout      = "run.timeout"
	RunReportFile   = "run.report-file"
	RunReportFormat = "run.report-format"
	RunProgress     = "run.progress"

	PrometheusPushgatewayUrl = "prometheus.pushgateway-url"

	DataDogStatsdEnabled  = "datadog.statsd.enabled"
	DataDogStatsdUrl      = "datadog.statsd.url"
	DataDogTracingEnabled = "datadog.tracing.enabled"
)

// CountMode controls what value is written by the ledger's setCount call.
type CountMode string

const (
	// CountMode_Delta writes observed - recorded.
	CountMode_Delta CountMode = "delta"
	// CountMode_Absolute writes the freshly observed total.
	CountMode_Absolute CountMode = "absolute"
)

func ParseCountMode(s string) (CountMode, error) {
	switch CountMode(strings.ToLower(strings.TrimSpace(s))) {
	case CountMode_Delta, "":
		return CountMode_Delta, nil
	case CountMode_Absolute:
		return CountMode_Absolute, nil
	}
	return "", fmt.Errorf("unsupported count mode '%s'", s)
}

type ForumConfig struct {
	BaseUrl     string `validate:"required,url"`
	UsersPath   string `validate:"required,startswith=/"`
	ApiKey      string
	ApiUsername string
	MaxPages    int `validate:"min=1"`
	Timeout     time.Duration
}

type LedgerConfig struct {
	RpcUrl          string `validate:"required"`
	ChainId         uint64 `validate:"required"`
	ContractAddress string `validate:"required,eth_addr"`
	TokenAddress    string `validate:"omitempty,eth_addr"`
	PrivateKey      string
	ReadConcurrency int     `validate:"min=1,max=64"`
	ReadsPerSecond  float64 `validate:"min=0"`
	TokenDecimals   int32   `validate:"min=0,max=36"`
	ExplorerUrl     string  `validate:"omitempty,url"`
}

type AllocationConfig struct {
	CountMode CountMode `validate:"oneof=delta absolute"`
	DryRun    bool
}

type NotifierConfig struct {
	WebhookUrl string `validate:"omitempty,url"`
}

type RunConfig struct {
	Timeout      time.Duration
	ReportFile   string
	ReportFormat string `validate:"oneof=yaml csv"`
	Progress     bool
}

type PrometheusConfig struct {
	PushgatewayUrl string `validate:"omitempty,url"`
}

type DataDogConfig struct {
	StatsdConfig struct {
		Enabled bool
		Url     string
	}
	TracingConfig struct {
		Enabled bool
	}
}

type Config struct {
	Debug            bool
	ForumConfig      ForumConfig
	LedgerConfig     LedgerConfig
	AllocationConfig AllocationConfig
	NotifierConfig   NotifierConfig
	RunConfig        RunConfig
	PrometheusConfig PrometheusConfig
	DataDogConfig    DataDogConfig
}

func NewConfig() *Config {
	countMode, err := ParseCountMode(viper.GetString(normalizeFlagName(AllocationCountMode)))
	if err != nil {
		// left invalid on purpose so Validate reports it
		countMode = CountMode(viper.GetString(normalizeFlagName(AllocationCountMode)))
	}

	c := &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		ForumConfig: ForumConfig{
			BaseUrl:     strings.TrimRight(viper.GetString(normalizeFlagName(ForumBaseUrl)), "/"),
			UsersPath:   viper.GetString(normalizeFlagName(ForumUsersPath)),
			ApiKey:      viper.GetString(normalizeFlagName(ForumApiKey)),
			ApiUsername: viper.GetString(normalizeFlagName(ForumApiUsername)),
			MaxPages:    viper.GetInt(normalizeFlagName(ForumMaxPages)),
			Timeout:     viper.GetDuration(normalizeFlagName(ForumTimeout)),
		},

		LedgerConfig: LedgerConfig{
			RpcUrl:          viper.GetString(normalizeFlagName(LedgerRpcUrl)),
			ChainId:         viper.GetUint64(normalizeFlagName(LedgerChainId)),
			ContractAddress: viper.GetString(normalizeFlagName(LedgerContractAddress)),
			TokenAddress:    viper.GetString(normalizeFlagName(LedgerTokenAddress)),
			PrivateKey:      viper.GetString(normalizeFlagName(LedgerPrivateKey)),
			ReadConcurrency: viper.GetInt(normalizeFlagName(LedgerReadConcurrency)),
			ReadsPerSecond:  viper.GetFloat64(normalizeFlagName(LedgerReadsPerSecond)),
			TokenDecimals:   viper.GetInt32(normalizeFlagName(LedgerTokenDecimals)),
			ExplorerUrl:     strings.TrimRight(viper.GetString(normalizeFlagName(LedgerExplorerUrl)), "/"),
		},

		AllocationConfig: AllocationConfig{
			CountMode: countMode,
			DryRun:    viper.GetBool(normalizeFlagName(AllocationDryRun)),
		},

		NotifierConfig: NotifierConfig{
			WebhookUrl: viper.GetString(normalizeFlagName(NotifierWebhookUrl)),
		},

		RunConfig: RunConfig{
			Timeout:      viper.GetDuration(normalizeFlagName(RunTimeout)),
			ReportFile:   viper.GetString(normalizeFlagName(RunReportFile)),
			ReportFormat: strings.ToLower(viper.GetString(normalizeFlagName(RunReportFormat))),
			Progress:     viper.GetBool(normalizeFlagName(RunProgress)),
		},

		PrometheusConfig: PrometheusConfig{
			PushgatewayUrl: viper.GetString(normalizeFlagName(PrometheusPushgatewayUrl)),
		},
	}
	c.DataDogConfig.StatsdConfig.Enabled = viper.GetBool(normalizeFlagName(DataDogStatsdEnabled))
	c.DataDogConfig.StatsdConfig.Url = viper.GetString(normalizeFlagName(DataDogStatsdUrl))
	c.DataDogConfig.TracingConfig.Enabled = viper.GetBool(normalizeFlagName(DataDogTracingEnabled))

	if c.RunConfig.ReportFormat == "" {
		c.RunConfig.ReportFormat = "yaml"
	}

	return c
}

// Validate checks the struct tags and the cross-field rules the tags can't express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !c.AllocationConfig.DryRun && c.LedgerConfig.PrivateKey == "" {
		return fmt.Errorf("invalid config: %s is required unless %s is set", LedgerPrivateKey, AllocationDryRun)
	}
	return nil
}

func (c *Config) GetContractAddress() common.Address {
	return common.HexToAddress(c.LedgerConfig.ContractAddress)
}

// GetTokenAddress returns the configured reward token, or the zero address
// when the token should be resolved from the ledger contract.
func (c *Config) GetTokenAddress() common.Address {
	if c.LedgerConfig.TokenAddress == "" {
		return common.Address{}
	}
	return common.HexToAddress(c.LedgerConfig.TokenAddress)
}

func (c *Config) GetTransactionUrl(txHash string) string {
	if c.LedgerConfig.ExplorerUrl == "" {
		return txHash
	}
	return fmt.Sprintf("%s/tx/%s", c.LedgerConfig.ExplorerUrl, txHash)
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}

func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}
