package config

import (
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every ENV variable read by DefaultServiceConfigFromEnv.
const EnvPrefix = "LEDGER"

type LoggerServer struct {
	Level              zerolog.Level
	PrettyPrintConsole bool
}

// Ledger names the store and the settlement modules wired to it.
type Ledger struct {
	StoreAddress        common.Address
	AdminAddress        common.Address
	NativeModuleAddress common.Address
	TokenModuleAddress  common.Address
	ManualModuleAddress common.Address
}

type Fees struct {
	RateNumerator   int64
	RateDenominator int64
	// MaxFees caps every fee. Nil means uncapped.
	MaxFees     *big.Int
	SinkAddress common.Address
}

// Journal is the Postgres database events are appended to.
type Journal struct {
	Enabled          bool
	Host             string
	Port             int
	Username         string
	Password         string `json:"-"` // sensitive
	Database         string
	AdditionalParams map[string]string `json:",omitempty"` // Optional additional connection parameters mapped into the connection string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// ConnectionString generates a connection string to be passed to sql.Open or equivalents, assuming Postgres syntax
func (c Journal) ConnectionString() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s", c.Host, c.Port, c.Username, c.Password, c.Database))

	if _, ok := c.AdditionalParams["sslmode"]; !ok {
		b.WriteString(" sslmode=disable")
	}

	if len(c.AdditionalParams) > 0 {
		params := make([]string, 0, len(c.AdditionalParams))
		for param := range c.AdditionalParams {
			params = append(params, param)
		}

		sort.Strings(params)

		for _, param := range params {
			fmt.Fprintf(&b, " %s=%s", param, c.AdditionalParams[param])
		}
	}

	return b.String()
}

type Metrics struct {
	Enabled   bool
	Namespace string
}

type Server struct {
	Logger  LoggerServer
	Ledger  Ledger
	Fees    Fees
	Journal Journal
	Metrics Metrics
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env_file", ".env.local")

	v.SetDefault("logger.level", zerolog.InfoLevel.String())
	v.SetDefault("logger.pretty_print_console", false)

	v.SetDefault("ledger.store_address", "0x0000000000000000000000000000000000001000")
	v.SetDefault("ledger.admin_address", "0x0000000000000000000000000000000000000001")
	v.SetDefault("ledger.native_module_address", "0x0000000000000000000000000000000000001001")
	v.SetDefault("ledger.token_module_address", "")
	v.SetDefault("ledger.manual_module_address", "")

	v.SetDefault("fees.rate_numerator", 0)
	v.SetDefault("fees.rate_denominator", 0)
	v.SetDefault("fees.max_fees", "")
	v.SetDefault("fees.sink_address", "")

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.host", "postgres")
	v.SetDefault("journal.port", 5432)
	v.SetDefault("journal.user", "dbuser")
	v.SetDefault("journal.password", "")
	v.SetDefault("journal.database", "ledger")
	v.SetDefault("journal.sslmode", "disable")
	v.SetDefault("journal.max_open_conns", 10)
	v.SetDefault("journal.max_idle_conns", 1)
	v.SetDefault("journal.conn_max_lifetime", 60*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "ledger")

	return v
}

// DefaultServiceConfigFromEnv returns the server config as parsed from environment variables
// and their respective defaults defined above.
func DefaultServiceConfigFromEnv() Server {
	v := newViper()

	// An `.env.local` file in the working directory can override the currently set ENV variables.
	// Loading it is skipped in CI.
	if os.Getenv("CI") == "" {
		DotEnvTryLoad(v.GetString("env_file"), os.Setenv)
	}

	return Server{
		Logger: LoggerServer{
			Level:              parseLevel(v.GetString("logger.level")),
			PrettyPrintConsole: v.GetBool("logger.pretty_print_console"),
		},
		Ledger: Ledger{
			StoreAddress:        address(v, "ledger.store_address"),
			AdminAddress:        address(v, "ledger.admin_address"),
			NativeModuleAddress: address(v, "ledger.native_module_address"),
			TokenModuleAddress:  address(v, "ledger.token_module_address"),
			ManualModuleAddress: address(v, "ledger.manual_module_address"),
		},
		Fees: Fees{
			RateNumerator:   v.GetInt64("fees.rate_numerator"),
			RateDenominator: v.GetInt64("fees.rate_denominator"),
			MaxFees:         amount(v, "fees.max_fees"),
			SinkAddress:     address(v, "fees.sink_address"),
		},
		Journal: Journal{
			Enabled:  v.GetBool("journal.enabled"),
			Host:     v.GetString("journal.host"),
			Port:     v.GetInt("journal.port"),
			Username: v.GetString("journal.user"),
			Password: v.GetString("journal.password"),
			Database: v.GetString("journal.database"),
			AdditionalParams: map[string]string{
				"sslmode": v.GetString("journal.sslmode"),
			},
			MaxOpenConns:    v.GetInt("journal.max_open_conns"),
			MaxIdleConns:    v.GetInt("journal.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("journal.conn_max_lifetime"),
		},
		Metrics: Metrics{
			Enabled:   v.GetBool("metrics.enabled"),
			Namespace: v.GetString("metrics.namespace"),
		},
	}
}

func parseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		log.Warn().Err(err).Str("level", s).Msg("Invalid log level, falling back to info")
		return zerolog.InfoLevel
	}
	return level
}

func address(v *viper.Viper, key string) common.Address {
	s := v.GetString(key)
	if s == "" {
		return common.Address{}
	}
	if !common.IsHexAddress(s) {
		log.Warn().Str("key", key).Str("value", s).Msg("Invalid address, ignoring")
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func amount(v *viper.Viper, key string) *big.Int {
	s := v.GetString(key)
	if s == "" {
		return nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		log.Warn().Str("key", key).Str("value", s).Msg("Invalid amount, ignoring")
		return nil
	}
	return n
}
