package relays

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/viper"
)

// Config is the relay process configuration. All keys can come from a
// config.yaml or from RELAY_* environment variables (RELAY_RPC_URL,
// RELAY_PRIVATE_KEY, ...).
type Config struct {
	Network    string `mapstructure:"network"`
	ProjectID  string `mapstructure:"project_id"`
	RPCURL     string `mapstructure:"rpc_url"`
	Contract   string `mapstructure:"contract"`
	PrivateKey string `mapstructure:"private_key"`
	UnlockCode string `mapstructure:"unlock_code"`
	Address    string `mapstructure:"address"`
	ChainID    uint64 `mapstructure:"chain_id"`

	DefaultGas          uint64        `mapstructure:"default_gas"`
	DefaultGasPriceGwei float64       `mapstructure:"default_gas_price_gwei"`
	MaxGasPriceGwei     float64       `mapstructure:"max_gas_price_gwei"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	MaxPolls            int           `mapstructure:"max_polls"`
}

// LoadConfig reads configuration from a config.yaml in the given paths (plus
// the working directory) and from the environment. A missing config file is
// fine; missing env vars fall back to defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("relay")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Defaults double as env-var bindings for Unmarshal.
	v.SetDefault("network", "mainnet")
	v.SetDefault("project_id", "")
	v.SetDefault("rpc_url", "")
	v.SetDefault("contract", "")
	v.SetDefault("private_key", "")
	v.SetDefault("unlock_code", "")
	v.SetDefault("address", "")
	v.SetDefault("chain_id", 1)
	v.SetDefault("default_gas", DefaultGas)
	v.SetDefault("default_gas_price_gwei", 10.0)
	v.SetDefault("max_gas_price_gwei", 80.0)
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("max_polls", DefaultMaxPolls)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("couldn't read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("couldn't decode config: %w", err)
	}
	return &cfg, nil
}

// PrivateKeyECDSA parses the configured private key. Returns nil, nil when no
// key is configured (node-side signing via the unlock code).
func (c *Config) PrivateKeyECDSA() (*ecdsa.PrivateKey, error) {
	if c.PrivateKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse private key: %w", err)
	}
	return key, nil
}

// EngineConfig converts the loaded configuration into engine settings.
func (c *Config) EngineConfig() EngineConfig {
	return EngineConfig{
		ChainID:         c.ChainID,
		Contract:        common.HexToAddress(c.Contract),
		From:            common.HexToAddress(c.Address),
		UnlockCode:      c.UnlockCode,
		DefaultGas:      c.DefaultGas,
		DefaultGasPrice: GweiToWei(c.DefaultGasPriceGwei),
		MaxGasPrice:     GweiToWei(c.MaxGasPriceGwei),
		PollInterval:    c.PollInterval,
		MaxPolls:        c.MaxPolls,
	}
}
