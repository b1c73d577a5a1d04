package config

import (
	"crypto/ecdsa"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

//go:embed abi/erc20.json
var erc20ABI string

type Contract struct {
	Address common.Address
	ABI     abi.ABI
}

type Config struct {
	Db      DbConfig
	RPC_URL string
	ChainId int64
	Network string

	SigningKey      *ecdsa.PrivateKey
	TokenContract   Contract
	ExplorerBaseURL string

	Server       ServerConfig
	Distribution DistributionConfig

	CronSchedule         string
	LowBalanceThreshold  decimal.Decimal
	CustodialKeyIdentity string
}

type DbConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DbName   string
}

// Enabled reports whether a ledger database was configured.
func (c DbConfig) Enabled() bool {
	return c.Host != ""
}

type ServerConfig struct {
	Port                 int
	JWTSecret            string
	AuthRequired         bool
	SingleRequestTimeout time.Duration
	BulkRequestTimeout   time.Duration
}

type DistributionConfig struct {
	// AllowZeroTokens lets requests whose hours floor to zero tokens through
	// validation. They are then submitted as zero-amount transfers.
	AllowZeroTokens     bool
	BulkConcurrency     int
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
	MaxRetries          int
}

// ConfigurationError is fatal and only ever produced at startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Key, e.Reason)
}

func LoadConfig() (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, &ConfigurationError{Key: ".env", Reason: fmt.Sprintf("could not be loaded: %v", err)}
	}

	env := &envReader{}
	config := Config{
		Db: DbConfig{
			Host:     env.getEnvString("DB_HOST", ptr("")),
			User:     env.getEnvString("DB_USER", ptr("")),
			Password: env.getEnvString("DB_PASS", ptr("")),
			DbName:   env.getEnvString("DB_NAME", ptr("token_distributor")),
			Port:     env.getEnvInt("DB_PORT", ptr(27017)),
		},
		RPC_URL: env.getEnvString("RPC_URL", ptr("https://mainnet-rpc.kxcoscan.com")),
		ChainId: int64(env.getEnvInt("CHAIN_ID", ptr(8060))),
		Network: env.getEnvString("NETWORK_NAME", ptr("Knightsbridge")),

		SigningKey:      env.getEnvPrivateKey("PRIVATE_KEY"),
		TokenContract:   env.loadTokenContract("TOKEN_CONTRACT_ADDRESS"),
		ExplorerBaseURL: env.getEnvString("EXPLORER_BASE_URL", ptr("https://kxcoscan.com")),

		Server: ServerConfig{
			Port:                 env.getEnvInt("PORT", ptr(3001)),
			JWTSecret:            env.getEnvString("JWT_SECRET", ptr("")),
			AuthRequired:         env.getEnvBool("AUTH_REQUIRED", ptr(false)),
			SingleRequestTimeout: env.getEnvDuration("SINGLE_REQUEST_TIMEOUT", ptr(2*time.Minute)),
			BulkRequestTimeout:   env.getEnvDuration("BULK_REQUEST_TIMEOUT", ptr(5*time.Minute)),
		},
		Distribution: DistributionConfig{
			AllowZeroTokens:     env.getEnvBool("ALLOW_ZERO_TOKEN_DISTRIBUTION", ptr(false)),
			BulkConcurrency:     env.getEnvInt("BULK_CONCURRENCY", ptr(1)),
			ReceiptTimeout:      env.getEnvDuration("RECEIPT_TIMEOUT", ptr(2*time.Minute)),
			ReceiptPollInterval: env.getEnvDuration("RECEIPT_POLL_INTERVAL", ptr(2*time.Second)),
			MaxRetries:          env.getEnvInt("MAX_RETRIES", ptr(3)),
		},

		CronSchedule:         env.getEnvString("CRON_SCHEDULE", ptr("0 */5 * * * *")),
		LowBalanceThreshold:  env.getEnvDecimal("LOW_BALANCE_THRESHOLD", ptr(decimal.NewFromInt(100))),
		CustodialKeyIdentity: env.getEnvString("CUSTODIAL_KEY_IDENTITY", ptr("")),
	}

	if config.Server.AuthRequired && config.Server.JWTSecret == "" {
		env.fail("JWT_SECRET", "is required when AUTH_REQUIRED is set")
	}
	if config.Distribution.BulkConcurrency < 1 {
		env.fail("BULK_CONCURRENCY", "must be at least 1")
	}
	if err := env.err(); err != nil {
		return nil, err
	}

	log.Println("✅ Config Loaded")
	return &config, nil
}

// LoadERC20ABI parses the embedded ERC20 interface.
func LoadERC20ABI() (abi.ABI, error) {
	contractABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return contractABI, nil
}

func getConfigPath() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("error getting current file path")
	}
	return filepath.Dir(filename), nil
}

func LoadEnv() error {
	dir, err := getConfigPath()
	if err != nil {
		return err
	}

	envPath := filepath.Join(dir, "../../.env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// .env file doesn't exist, just return without an error
		return nil
	}

	return godotenv.Load(envPath)
}

// envReader collects every configuration problem so startup reports them all at once.
type envReader struct {
	errs []error
}

func (r *envReader) fail(key, reason string) {
	r.errs = append(r.errs, &ConfigurationError{Key: key, Reason: reason})
}

func (r *envReader) err() error {
	return errors.Join(r.errs...)
}

func (r *envReader) getEnvString(key string, defaultValue *string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value != "" {
		return value
	}
	if defaultValue == nil {
		r.fail(key, "is required")
		return ""
	}
	return *defaultValue
}

func (r *envReader) getEnvInt(key string, defaultValue *int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value != "" {
		intValue, err := strconv.Atoi(value)
		if err != nil {
			r.fail(key, "is not a valid integer")
			return 0
		}
		return intValue
	}
	if defaultValue == nil {
		r.fail(key, "is required")
		return 0
	}
	return *defaultValue
}

func (r *envReader) getEnvBool(key string, defaultValue *bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			r.fail(key, "is not a valid boolean")
			return false
		}
		return boolValue
	}
	if defaultValue == nil {
		r.fail(key, "is required")
		return false
	}
	return *defaultValue
}

func (r *envReader) getEnvDuration(key string, defaultValue *time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil || duration <= 0 {
			r.fail(key, "is not a valid positive duration")
			return 0
		}
		return duration
	}
	if defaultValue == nil {
		r.fail(key, "is required")
		return 0
	}
	return *defaultValue
}

func (r *envReader) getEnvDecimal(key string, defaultValue *decimal.Decimal) decimal.Decimal {
	value := strings.TrimSpace(os.Getenv(key))
	if value != "" {
		amount, err := decimal.NewFromString(value)
		if err != nil {
			r.fail(key, "is not a valid decimal")
			return decimal.Zero
		}
		return amount
	}
	if defaultValue == nil {
		r.fail(key, "is required")
		return decimal.Zero
	}
	return *defaultValue
}

func (r *envReader) getEnvPrivateKey(key string) *ecdsa.PrivateKey {
	value := r.getEnvString(key, nil)
	if value == "" {
		return nil
	}
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(value, "0x"))
	if err != nil {
		r.fail(key, "is not a valid hex private key")
		return nil
	}
	return privateKey
}

func (r *envReader) loadTokenContract(key string) Contract {
	address := r.getEnvString(key, nil)
	if address != "" && !common.IsHexAddress(address) {
		r.fail(key, "is not a valid address")
	}
	contractABI, err := LoadERC20ABI()
	if err != nil {
		r.fail(key, err.Error())
	}
	return Contract{
		Address: common.HexToAddress(address),
		ABI:     contractABI,
	}
}

func ptr[T any](v T) *T {
	return &v
}
