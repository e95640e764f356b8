package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
	"github.com/rs/zerolog/log"
)

type Config struct {
	PoolSize       int    `env:"ORACLE_POOL_SIZE" envDefault:"20" validate:"min=1"`
	Stake          string `env:"ORACLE_STAKE" envDefault:"1" validate:"required,numeric"`
	RPCURL         string `env:"LEDGER_RPC_URL" envDefault:"http://localhost:30333" validate:"required,url"`
	WSURL          string `env:"LEDGER_WS_URL" validate:"omitempty,url"`
	ContractHash   string `env:"LEDGER_CONTRACT" validate:"required,len=40,hexadecimal"`
	WalletPath     string `env:"ORACLE_WALLET_PATH" envDefault:"./oracles.json" validate:"required"`
	WalletPassword string `env:"ORACLE_WALLET_PASSWORD"`

	EventSource  string `env:"ORACLE_EVENT_SOURCE" envDefault:"ledger" validate:"oneof=ledger pubsub"`
	StatusPolicy string `env:"ORACLE_STATUS_POLICY" envDefault:"fixed" validate:"oneof=fixed random"`
	StatusCode   uint8  `env:"ORACLE_STATUS_CODE" envDefault:"10"`

	SubmitTimeout       time.Duration `env:"ORACLE_SUBMIT_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	RegisterTimeout     time.Duration `env:"ORACLE_REGISTER_TIMEOUT" envDefault:"60s" validate:"gt=0"`
	MaxConcurrent       int           `env:"ORACLE_MAX_CONCURRENCY" envDefault:"8" validate:"min=1"`
	ShutdownGrace       time.Duration `env:"ORACLE_SHUTDOWN_GRACE" envDefault:"15s" validate:"gt=0"`
	ResubscribeAttempts int           `env:"ORACLE_RESUBSCRIBE_ATTEMPTS" envDefault:"5" validate:"min=1"`
	ResubscribeBackoff  time.Duration `env:"ORACLE_RESUBSCRIBE_BACKOFF" envDefault:"1s" validate:"gt=0"`

	HTTPPort int    `env:"ORACLE_HTTP_PORT" envDefault:"8080" validate:"min=1,max=65535"`
	LogLevel string `env:"ORACLE_LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`

	Subscription    string `env:"ORACLE_REQUEST_SUBSCRIPTION" validate:"required_if=EventSource pubsub"`
	ResultTopic     string `env:"ORACLE_RESULT_TOPIC"`
	GoogleProjectID string `env:"ORACLE_PUBSUB_PROJECT_ID"`
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// gasDecimals is the precision of ORACLE_STAKE.
const gasDecimals = 8

var validate = validator.New()

// Load reads an optional .env file, parses the environment and validates the
// result. It is called once at startup.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg(".env file present but unreadable")
	}
	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.RPCURL = strings.TrimSpace(cfg.RPCURL)
	cfg.ContractHash = strings.TrimPrefix(strings.TrimSpace(cfg.ContractHash), "0x")
	cfg.GoogleProjectID = resolveProjectID(cfg.CredentialsFile, cfg.GoogleProjectID)

	if cfg.WSURL == "" && cfg.RPCURL != "" {
		ws, err := deriveWSURL(cfg.RPCURL)
		if err != nil {
			return nil, err
		}
		cfg.WSURL = ws
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.StakeUnits(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.UsesPubsub() && c.GoogleProjectID == "" {
		return errors.New("invalid config: Pub/Sub in use but Google project id not resolved; set GOOGLE_APPLICATION_CREDENTIALS or ORACLE_PUBSUB_PROJECT_ID or GOOGLE_CLOUD_PROJECT")
	}
	return nil
}

// StakeUnits converts the decimal GAS stake into integer GAS units.
func (c *Config) StakeUnits() (*big.Int, error) {
	v, err := fixedn.FromString(c.Stake, gasDecimals)
	if err != nil {
		return nil, fmt.Errorf("ORACLE_STAKE %q: %w", c.Stake, err)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("ORACLE_STAKE %q: must be positive", c.Stake)
	}
	return v, nil
}

// UsesPubsub reports whether any Pub/Sub client is needed.
func (c *Config) UsesPubsub() bool {
	return c.EventSource == "pubsub" || c.ResultTopic != ""
}

func (c *Config) HTTPAddr() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.HTTPPort))
}

// Redacted returns a view safe for logging
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"poolSize":            c.PoolSize,
		"stake":               c.Stake,
		"rpcURL":              c.RPCURL,
		"wsURL":               c.WSURL,
		"contract":            c.ContractHash,
		"walletPath":          c.WalletPath,
		"walletPasswordSet":   c.WalletPassword != "",
		"eventSource":         c.EventSource,
		"statusPolicy":        c.StatusPolicy,
		"statusCode":          c.StatusCode,
		"submitTimeout":       c.SubmitTimeout.String(),
		"maxConcurrent":       c.MaxConcurrent,
		"httpPort":            c.HTTPPort,
		"logLevel":            c.LogLevel,
		"projectID":           c.GoogleProjectID,
		"requestSubscription": c.Subscription,
		"resultTopic":         c.ResultTopic,
		"credentialsProvided": c.CredentialsFile != "",
	}
}

// deriveWSURL maps an http(s) RPC endpoint onto the node's websocket endpoint.
func deriveWSURL(rpc string) (string, error) {
	u, err := url.Parse(rpc)
	if err != nil {
		return "", fmt.Errorf("invalid LEDGER_RPC_URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid LEDGER_RPC_URL scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	}
	return u.String(), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func projectIDFromCredentials(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var x struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(b, &x); err != nil {
		return "", err
	}
	return x.ProjectID, nil
}

func resolveProjectID(credsFile string, explicit string) string {
	// 1) Prefer the credentials file if set
	if p := strings.TrimSpace(credsFile); p != "" {
		if pid, err := projectIDFromCredentials(p); err == nil && pid != "" {
			log.Debug().Str("credsFile", p).Msg("using project_id from credentials file")
			return strings.TrimSpace(pid)
		}
		log.Warn().Str("credsFile", p).Msg("project_id not found in credentials file or unreadable")
	}

	// 2) Explicit override
	if explicit := strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}

	// 3) Common Google envs
	return strings.TrimSpace(firstNonEmpty(os.Getenv("GOOGLE_PROJECT_ID"), os.Getenv("GOOGLE_CLOUD_PROJECT"), os.Getenv("GCLOUD_PROJECT"), os.Getenv("GCP_PROJECT")))
}
