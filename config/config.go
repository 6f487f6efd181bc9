// Package config holds the configuration of a threshold signing party.
//
// Values are resolved by viper in increasing order of precedence: defaults,
// the optional config file, TSS_ prefixed environment variables and command
// line flags. Nested keys map to environment variables by replacing dots and
// dashes with underscores, e.g. relay.dial-backoff -> TSS_RELAY_DIAL_BACKOFF.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/onflow/flow-tss/network/relay"
)

const (
	// EnvPrefix prefixes all environment variables read by Load.
	EnvPrefix = "TSS"

	// EngineSimulated selects the simulated protocol engines.
	// CAUTION: the simulated engines are not secure.
	EngineSimulated = "simulated"
)

// All constant strings are used for CLI flag names. The corresponding config
// keys are listed in flagKeys.
const (
	flagRelayURL         = "relay-url"
	flagRelayDialRetries = "relay-dial-retries"
	flagRelayDialBackoff = "relay-dial-backoff"
	flagRelayRateLimit   = "relay-max-requests-per-second"
	flagDataDir          = "datadir"
	flagMetricsAddress   = "metrics-address"
	flagTimeout          = "timeout"
	flagEngine           = "engine"
	flagOfflineRounds    = "offline-rounds"
	flagPollInterval     = "poll-interval"
	flagLogLevel         = "loglevel"
)

const (
	keyRelayURL         = "relay.url"
	keyRelayDialRetries = "relay.dial-retries"
	keyRelayDialBackoff = "relay.dial-backoff"
	keyRelayRateLimit   = "relay.max-requests-per-second"
	keyDataDir          = "datadir"
	keyMetricsAddress   = "metrics-address"
	keyTimeout          = "timeout"
	keyEngine           = "engine"
	keyOfflineRounds    = "offline-rounds"
	keyPollInterval     = "poll-interval"
	keyLogLevel         = "loglevel"
)

var flagKeys = map[string]string{
	flagRelayURL:         keyRelayURL,
	flagRelayDialRetries: keyRelayDialRetries,
	flagRelayDialBackoff: keyRelayDialBackoff,
	flagRelayRateLimit:   keyRelayRateLimit,
	flagDataDir:          keyDataDir,
	flagMetricsAddress:   keyMetricsAddress,
	flagTimeout:          keyTimeout,
	flagEngine:           keyEngine,
	flagOfflineRounds:    keyOfflineRounds,
	flagPollInterval:     keyPollInterval,
	flagLogLevel:         keyLogLevel,
}

// Config is the configuration of a party.
type Config struct {
	Relay relay.Config `mapstructure:"relay"`
	// DataDir is the directory of the key share database.
	DataDir string `mapstructure:"datadir"`
	// MetricsAddress is the listen address of the prometheus endpoint. Empty disables it.
	MetricsAddress string `mapstructure:"metrics-address"`
	// Timeout bounds every protocol execution, including the wait for other parties.
	Timeout time.Duration `mapstructure:"timeout"`
	Engine  string        `mapstructure:"engine"`
	// OfflineRounds is the number of offline stage rounds of the selected engine.
	OfflineRounds int           `mapstructure:"offline-rounds"`
	PollInterval  time.Duration `mapstructure:"poll-interval"`
	LogLevel      string        `mapstructure:"loglevel"`
}

func DefaultConfig() Config {
	return Config{
		Relay:          relay.DefaultConfig(),
		DataDir:        "./tss-data",
		MetricsAddress: "",
		Timeout:        5 * time.Minute,
		Engine:         EngineSimulated,
		OfflineRounds:  6,
		PollInterval:   250 * time.Millisecond,
		LogLevel:       "info",
	}
}

// Validate returns an error if the configuration cannot be used to run a party.
func (c Config) Validate() error {
	err := c.Relay.Validate()
	if err != nil {
		return err
	}
	if c.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Engine != EngineSimulated {
		return fmt.Errorf("unknown protocol engine %q", c.Engine)
	}
	if c.OfflineRounds < 3 {
		return fmt.Errorf("offline stage needs at least 3 rounds, got %d", c.OfflineRounds)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	_, err = zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// InitializeFlags registers a flag for every configuration value on the flag
// set, using defaults for the default values.
func InitializeFlags(flags *pflag.FlagSet, defaults Config) {
	flags.String(flagRelayURL, defaults.Relay.URL, "websocket endpoint of the session coordination server")
	flags.Uint64(flagRelayDialRetries, defaults.Relay.DialRetries, "number of retries when connecting to the server")
	flags.Duration(flagRelayDialBackoff, defaults.Relay.DialBackoff, "initial delay between connection attempts")
	flags.Float64(flagRelayRateLimit, defaults.Relay.MaxRequestsPerSecond, "maximum number of frames sent to the server per second, 0 disables the limit")
	flags.String(flagDataDir, defaults.DataDir, "directory of the key share database")
	flags.String(flagMetricsAddress, defaults.MetricsAddress, "listen address of the prometheus metrics endpoint, empty disables it")
	flags.Duration(flagTimeout, defaults.Timeout, "upper bound of a key generation or signing session")
	flags.String(flagEngine, defaults.Engine, "protocol engine (simulated)")
	flags.Int(flagOfflineRounds, defaults.OfflineRounds, "number of offline stage rounds of the protocol engine")
	flags.Duration(flagPollInterval, defaults.PollInterval, "interval at which waiting rounds re-check their inbox")
	flags.String(flagLogLevel, defaults.LogLevel, "log level (trace, debug, info, warn, error)")
}

// Load resolves the configuration from defaults, the config file (if not
// empty), the environment and the flags registered by InitializeFlags (if
// flags is not nil), then validates it.
func Load(flags *pflag.FlagSet, file string) (*Config, error) {
	conf := viper.New()
	conf.SetEnvPrefix(EnvPrefix)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	conf.AutomaticEnv()

	setDefaults(conf, DefaultConfig())

	if file != "" {
		conf.SetConfigFile(file)
		err := conf.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", file, err)
		}
	}

	if flags != nil {
		for flagName, key := range flagKeys {
			flag := flags.Lookup(flagName)
			if flag == nil {
				continue
			}
			err := conf.BindPFlag(key, flag)
			if err != nil {
				return nil, fmt.Errorf("could not bind flag %s: %w", flagName, err)
			}
		}
	}

	var config Config
	err := conf.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// setDefaults registers every value of defaults, so that all keys are known
// to AutomaticEnv.
func setDefaults(conf *viper.Viper, defaults Config) {
	conf.SetDefault(keyRelayURL, defaults.Relay.URL)
	conf.SetDefault(keyRelayDialRetries, defaults.Relay.DialRetries)
	conf.SetDefault(keyRelayDialBackoff, defaults.Relay.DialBackoff)
	conf.SetDefault(keyRelayRateLimit, defaults.Relay.MaxRequestsPerSecond)
	conf.SetDefault(keyDataDir, defaults.DataDir)
	conf.SetDefault(keyMetricsAddress, defaults.MetricsAddress)
	conf.SetDefault(keyTimeout, defaults.Timeout)
	conf.SetDefault(keyEngine, defaults.Engine)
	conf.SetDefault(keyOfflineRounds, defaults.OfflineRounds)
	conf.SetDefault(keyPollInterval, defaults.PollInterval)
	conf.SetDefault(keyLogLevel, defaults.LogLevel)
}
