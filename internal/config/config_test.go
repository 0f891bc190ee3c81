package config

import (
	"strings"
	"testing"
	"time"

	"github.com/forum-rewards/rewarder/internal/tests"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func setValidViperConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set(KebabToSnakeCase(ForumBaseUrl), "https://forum.example.com/")
	viper.Set(KebabToSnakeCase(ForumUsersPath), "/admin/users/list/active.json")
	viper.Set(KebabToSnakeCase(ForumMaxPages), 1)
	viper.Set(KebabToSnakeCase(LedgerRpcUrl), "http://localhost:8545")
	viper.Set(KebabToSnakeCase(LedgerChainId), 250)
	viper.Set(KebabToSnakeCase(LedgerContractAddress), "0x1234567890abcdef1234567890abcdef12345678")
	viper.Set(KebabToSnakeCase(LedgerPrivateKey), "deadbeef")
	viper.Set(KebabToSnakeCase(LedgerReadConcurrency), 4)
	viper.Set(KebabToSnakeCase(LedgerTokenDecimals), 18)
	viper.Set(KebabToSnakeCase(RunTimeout), "5m")
}

func Test_Config(t *testing.T) {
	t.Run("Should build a valid config from viper", func(t *testing.T) {
		setValidViperConfig(t)

		cfg := NewConfig()
		assert.Nil(t, cfg.Validate())

		assert.Equal(t, "https://forum.example.com", cfg.ForumConfig.BaseUrl)
		assert.Equal(t, uint64(250), cfg.LedgerConfig.ChainId)
		assert.Equal(t, CountMode_Delta, cfg.AllocationConfig.CountMode)
		assert.Equal(t, "yaml", cfg.RunConfig.ReportFormat)
		assert.Equal(t, 5*time.Minute, cfg.RunConfig.Timeout)
	})
	t.Run("Should require a private key unless running dry", func(t *testing.T) {
		setValidViperConfig(t)
		viper.Set(KebabToSnakeCase(LedgerPrivateKey), "")

		cfg := NewConfig()
		assert.NotNil(t, cfg.Validate())

		viper.Set(KebabToSnakeCase(AllocationDryRun), true)
		cfg = NewConfig()
		assert.Nil(t, cfg.Validate())
	})
	t.Run("Should reject an invalid contract address", func(t *testing.T) {
		setValidViperConfig(t)
		viper.Set(KebabToSnakeCase(LedgerContractAddress), "not-an-address")

		cfg := NewConfig()
		assert.NotNil(t, cfg.Validate())
	})
	t.Run("Should read unset keys from prefixed environment variables", func(t *testing.T) {
		setValidViperConfig(t)
		viper.SetEnvPrefix(ENV_PREFIX)
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
		viper.AutomaticEnv()

		previous := map[string]string{}
		tests.ReplaceEnv(map[string]string{
			"REWARDER_ALLOCATION_COUNT_MODE": "absolute",
			"REWARDER_NOTIFIER_WEBHOOK_URL":  "https://hooks.example.com/T000/B000",
		}, &previous)
		t.Cleanup(func() { tests.RestoreEnv(previous) })

		cfg := NewConfig()
		assert.Nil(t, cfg.Validate())
		assert.Equal(t, CountMode_Absolute, cfg.AllocationConfig.CountMode)
		assert.Equal(t, "https://hooks.example.com/T000/B000", cfg.NotifierConfig.WebhookUrl)
	})
	t.Run("Should reject an unknown count mode", func(t *testing.T) {
		setValidViperConfig(t)
		viper.Set(KebabToSnakeCase(AllocationCountMode), "sometimes")

		cfg := NewConfig()
		assert.NotNil(t, cfg.Validate())
	})
}

func Test_ParseCountMode(t *testing.T) {
	tests := []struct {
		input    string
		expected CountMode
		hasError bool
	}{
		{"delta", CountMode_Delta, false},
		{"", CountMode_Delta, false},
		{" Absolute ", CountMode_Absolute, false},
		{"unknown", "", true},
	}

	for _, test := range tests {
		result, err := ParseCountMode(test.input)
		if (err != nil) != test.hasError {
			t.Errorf("ParseCountMode(%s) error = %v, wantErr %v", test.input, err, test.hasError)
		}
		if result != test.expected {
			t.Errorf("ParseCountMode(%s) = %v, want %v", test.input, result, test.expected)
		}
	}
}

func Test_GetTransactionUrl(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "0xabc", cfg.GetTransactionUrl("0xabc"))

	cfg.LedgerConfig.ExplorerUrl = "https://ftmscan.com"
	assert.Equal(t, "https://ftmscan.com/tx/0xabc", cfg.GetTransactionUrl("0xabc"))
}

func Test_KebabToSnakeCase(t *testing.T) {
	assert.Equal(t, "forum.base_url", KebabToSnakeCase(ForumBaseUrl))
	assert.Equal(t, "datadog.statsd.enabled", KebabToSnakeCase(DataDogStatsdEnabled))
}
