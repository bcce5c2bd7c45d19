package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath  string
	JSON        bool
	Plain       bool
	EscrowAddr  string
	Sender      string
	ActiveChain string
	FeePct      string
	LedgerPath  string
	SyncPayout  bool
	LogLevel    string
}

// Settings is the resolved runtime configuration. The escrow private key is
// deliberately absent: it is read from the environment by the signer and
// never passes through here.
type Settings struct {
	OutputMode    string
	EscrowAddress string
	SenderAddress string
	ActiveChain   string
	FeePct        string
	MinAmount     string
	MaxAmount     string
	SyncPayout    bool
	LogLevel      string
	LedgerPath    string
	LedgerLock    string
	RPCOverrides  map[string]string
}

type fileConfig struct {
	Output string `yaml:"output"`
	Escrow struct {
		Address string `yaml:"address"`
	} `yaml:"escrow"`
	Wallet struct {
		Address     string `yaml:"address"`
		ActiveChain string `yaml:"active_chain"`
	} `yaml:"wallet"`
	Fees struct {
		Percent string `yaml:"percent"`
	} `yaml:"fees"`
	Limits struct {
		MinAmount string `yaml:"min_amount"`
		MaxAmount string `yaml:"max_amount"`
	} `yaml:"limits"`
	SyncPayout *bool  `yaml:"sync_payout"`
	LogLevel   string `yaml:"log_level"`
	Ledger     struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"ledger"`
	RPC map[string]string `yaml:"rpc"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.FeePct == "" {
		settings.FeePct = "0.5"
	}
	if settings.LogLevel == "" {
		settings.LogLevel = "info"
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Settings{}, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "swapdesk")
	return Settings{
		OutputMode:   "json",
		FeePct:       "0.5",
		LogLevel:     "info",
		LedgerPath:   filepath.Join(dir, "swaps.db"),
		LedgerLock:   filepath.Join(dir, "swaps.lock"),
		RPCOverrides: map[string]string{},
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "swapdesk", "config.yaml"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Escrow.Address != "" {
		settings.EscrowAddress = cfg.Escrow.Address
	}
	if cfg.Wallet.Address != "" {
		settings.SenderAddress = cfg.Wallet.Address
	}
	if cfg.Wallet.ActiveChain != "" {
		settings.ActiveChain = strings.ToLower(cfg.Wallet.ActiveChain)
	}
	if cfg.Fees.Percent != "" {
		settings.FeePct = cfg.Fees.Percent
	}
	if cfg.Limits.MinAmount != "" {
		settings.MinAmount = cfg.Limits.MinAmount
	}
	if cfg.Limits.MaxAmount != "" {
		settings.MaxAmount = cfg.Limits.MaxAmount
	}
	if cfg.SyncPayout != nil {
		settings.SyncPayout = *cfg.SyncPayout
	}
	if cfg.LogLevel != "" {
		settings.LogLevel = strings.ToLower(cfg.LogLevel)
	}
	if cfg.Ledger.Path != "" {
		settings.LedgerPath = cfg.Ledger.Path
	}
	if cfg.Ledger.LockPath != "" {
		settings.LedgerLock = cfg.Ledger.LockPath
	}
	for slug, url := range cfg.RPC {
		if strings.TrimSpace(url) != "" {
			settings.RPCOverrides[strings.ToLower(slug)] = strings.TrimSpace(url)
		}
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("SWAPDESK_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("SWAPDESK_ESCROW_ADDRESS"); v != "" {
		settings.EscrowAddress = v
	}
	if v := os.Getenv("SWAPDESK_WALLET_ADDRESS"); v != "" {
		settings.SenderAddress = v
	}
	if v := os.Getenv("SWAPDESK_ACTIVE_CHAIN"); v != "" {
		settings.ActiveChain = strings.ToLower(v)
	}
	if v := os.Getenv("SWAPDESK_FEE_PERCENT"); v != "" {
		settings.FeePct = v
	}
	if v := os.Getenv("SWAPDESK_MIN_AMOUNT"); v != "" {
		settings.MinAmount = v
	}
	if v := os.Getenv("SWAPDESK_MAX_AMOUNT"); v != "" {
		settings.MaxAmount = v
	}
	if v := os.Getenv("SWAPDESK_SYNC_PAYOUT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.SyncPayout = b
		}
	}
	if v := os.Getenv("SWAPDESK_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("SWAPDESK_LEDGER_PATH"); v != "" {
		settings.LedgerPath = v
	}
	if v := os.Getenv("SWAPDESK_LEDGER_LOCK_PATH"); v != "" {
		settings.LedgerLock = v
	}
	for _, slug := range []string{"ethereum", "base", "arbitrum", "polygon"} {
		if v := os.Getenv("SWAPDESK_RPC_" + strings.ToUpper(slug)); v != "" {
			settings.RPCOverrides[slug] = v
		}
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.EscrowAddr) != "" {
		settings.EscrowAddress = strings.TrimSpace(flags.EscrowAddr)
	}
	if strings.TrimSpace(flags.Sender) != "" {
		settings.SenderAddress = strings.TrimSpace(flags.Sender)
	}
	if strings.TrimSpace(flags.ActiveChain) != "" {
		settings.ActiveChain = strings.ToLower(strings.TrimSpace(flags.ActiveChain))
	}
	if strings.TrimSpace(flags.FeePct) != "" {
		settings.FeePct = strings.TrimSpace(flags.FeePct)
	}
	if strings.TrimSpace(flags.LedgerPath) != "" {
		settings.LedgerPath = strings.TrimSpace(flags.LedgerPath)
		settings.LedgerLock = settings.LedgerPath + ".lock"
	}
	if flags.SyncPayout {
		settings.SyncPayout = true
	}
	if strings.TrimSpace(flags.LogLevel) != "" {
		settings.LogLevel = strings.ToLower(strings.TrimSpace(flags.LogLevel))
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	return nil
}
