// Package config loads and validates the agencyos TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the single configuration struct handed to the orchestrator at
// startup. There is no module-level mutable state; every component that
// needs configuration receives it (or a ConfigManager) through its
// constructor.
type Config struct {
	General    General               `toml:"general" validate:"required"`
	Store      Store                 `toml:"store" validate:"required"`
	Snapshot   Snapshot              `toml:"snapshot" validate:"required"`
	Collectors map[string]Collector  `toml:"collectors"`
	Gates      Gates                 `toml:"gates"`
	Scoring    Scoring               `toml:"scoring"`
	Moves      Moves                 `toml:"moves"`
	API        API                   `toml:"api" validate:"required"`
	Notify     Notify                `toml:"notify"`
	Commitments Commitments          `toml:"commitments"`
}

// General carries process-wide cadence settings.
type General struct {
	CycleInterval   Duration `toml:"cycle_interval"`
	CycleDeadline   Duration `toml:"cycle_deadline"`
	CollectorGrace  Duration `toml:"collector_grace"`
	LogLevel        string   `toml:"log_level"`
	LockFile        string   `toml:"lock_file"`
	Today           string   `toml:"today"` // test-only override of "today", RFC3339 date; empty means time.Now()
}

// Store configures the relational store.
type Store struct {
	DBPath      string `toml:"db_path" validate:"required"`
	BusyTimeout Duration `toml:"busy_timeout"`
}

// Snapshot configures where generated snapshot documents land.
type Snapshot struct {
	OutputDir       string `toml:"output_dir" validate:"required"`
	HistoryRetain   int    `toml:"history_retain"`
	TopMoves        int    `toml:"top_moves"`
}

// Collector is the per-source collector configuration. Map key is the
// collector's logical name (tasks, calendar, gmail, asana, xero).
type Collector struct {
	Enabled     bool     `toml:"enabled"`
	IntervalSec int      `toml:"interval_seconds" validate:"required_if=Enabled true,omitempty,gt=0"`
	Timeout     Duration `toml:"timeout"`
	PageSize    int      `toml:"page_size"`
	APIKey      string   `toml:"api_key"`
}

// Gates configures the thresholds used by the gate battery (§4.4).
type Gates struct {
	ClientCoverageMin  float64 `toml:"client_coverage_min" validate:"omitempty,gt=0,lte=1"`
	CommitmentReadyMin float64 `toml:"commitment_ready_min" validate:"omitempty,gt=0,lte=1"`
	FinanceARCoverageMin float64 `toml:"finance_ar_coverage_min" validate:"omitempty,gt=0,lte=1"`
}

// Scoring configures the mode-weighted domain matrix and thresholds used by
// the scoring/snapshot generator (§4.6).
type Scoring struct {
	ActiveMode  string                          `toml:"active_mode" validate:"omitempty,oneof=ops_head co_founder artist"`
	ModeWeights map[string]map[string]float64   `toml:"mode_weights"`
}

// Moves configures thresholds for the proposal rules (§4.7).
type Moves struct {
	ARCollectionThreshold     float64  `toml:"ar_collection_threshold"`
	CommSilenceDays           int      `toml:"comm_silence_days"`
	BlockedEscalateDays       int      `toml:"blocked_escalate_days"`
	OverloadUtilizationPct    float64  `toml:"overload_utilization_pct"`
	TierAContactGapDays       int      `toml:"tier_a_contact_gap_days"`
	LinkIssueAgeDays          int      `toml:"link_issue_age_days"`
}

// API configures the minimal HTTP boundary (§6).
type API struct {
	Bind            string   `toml:"bind" validate:"required"`
	CORSOrigins     []string `toml:"cors_origins"`
	IntelligenceToken string `toml:"intelligence_token"`
	AuditLog        string   `toml:"audit_log"`
}

// Notify configures the optional webhook notifier.
type Notify struct {
	WebhookURL string `toml:"webhook_url"`
}

// Commitments configures the optional LLM-backed commitment extractor.
type Commitments struct {
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	Model           string `toml:"model"`
}

var validate = validator.New()

// Load reads and validates an agencyos TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	normalizePaths(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Reload reads and validates an agencyos TOML configuration file.
//
// This mirrors Load but is intentionally named to reflect runtime refresh paths.
func Reload(path string) (*Config, error) {
	return Load(path)
}

// LoadManager reads config from path and returns an RWMutex-backed thread-safe manager.
func LoadManager(path string) (ConfigManager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}

	cfg, err := Reload(path)
	if err != nil {
		return nil, err
	}
	return NewRWMutexManager(cfg), nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.CycleInterval.Duration == 0 {
		cfg.General.CycleInterval.Duration = 5 * time.Minute
	}
	if cfg.General.CycleDeadline.Duration == 0 {
		cfg.General.CycleDeadline.Duration = 4 * time.Minute
	}
	if cfg.General.CollectorGrace.Duration == 0 {
		cfg.General.CollectorGrace.Duration = 30 * time.Second
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LockFile == "" {
		cfg.General.LockFile = "agencyos.lock"
	}

	if cfg.Store.BusyTimeout.Duration == 0 {
		cfg.Store.BusyTimeout.Duration = 5 * time.Second
	}

	if cfg.Snapshot.HistoryRetain == 0 {
		cfg.Snapshot.HistoryRetain = 30
	}
	if cfg.Snapshot.TopMoves == 0 {
		cfg.Snapshot.TopMoves = 20
	}

	if cfg.Collectors == nil {
		cfg.Collectors = map[string]Collector{}
	}
	for name, c := range cfg.Collectors {
		if c.Timeout.Duration == 0 {
			c.Timeout.Duration = 30 * time.Second
		}
		if c.PageSize == 0 {
			c.PageSize = 200
		}
		cfg.Collectors[name] = c
	}

	if cfg.Gates.ClientCoverageMin == 0 {
		cfg.Gates.ClientCoverageMin = 0.80
	}
	if cfg.Gates.CommitmentReadyMin == 0 {
		cfg.Gates.CommitmentReadyMin = 0.50
	}
	if cfg.Gates.FinanceARCoverageMin == 0 {
		cfg.Gates.FinanceARCoverageMin = 0.95
	}

	if cfg.Scoring.ActiveMode == "" {
		cfg.Scoring.ActiveMode = "ops_head"
	}
	if cfg.Scoring.ModeWeights == nil {
		cfg.Scoring.ModeWeights = defaultModeWeights()
	}

	if cfg.Moves.ARCollectionThreshold == 0 {
		cfg.Moves.ARCollectionThreshold = 1000
	}
	if cfg.Moves.CommSilenceDays == 0 {
		cfg.Moves.CommSilenceDays = 5
	}
	if cfg.Moves.BlockedEscalateDays == 0 {
		cfg.Moves.BlockedEscalateDays = 3
	}
	if cfg.Moves.OverloadUtilizationPct == 0 {
		cfg.Moves.OverloadUtilizationPct = 100
	}
	if cfg.Moves.TierAContactGapDays == 0 {
		cfg.Moves.TierAContactGapDays = 14
	}
	if cfg.Moves.LinkIssueAgeDays == 0 {
		cfg.Moves.LinkIssueAgeDays = 7
	}

	if cfg.API.Bind == "" {
		cfg.API.Bind = ":8088"
	}
}

// defaultModeWeights returns the fixed weight matrix referenced by §4.6's
// ModeWeightedScore (operator-tunable, but these are sane operator-head
// defaults weighting delivery/cash above comms/capacity).
func defaultModeWeights() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"ops_head": {
			"delivery": 1.0, "clients": 0.9, "cash": 1.0, "comms": 0.6, "capacity": 0.8,
		},
		"co_founder": {
			"delivery": 0.8, "clients": 1.0, "cash": 0.9, "comms": 0.8, "capacity": 0.6,
		},
		"artist": {
			"delivery": 1.0, "clients": 0.6, "cash": 0.5, "comms": 0.5, "capacity": 0.5,
		},
	}
}

func normalizePaths(cfg *Config) {
	cfg.General.LockFile = ExpandHome(cfg.General.LockFile)
	cfg.Store.DBPath = ExpandHome(cfg.Store.DBPath)
	cfg.Snapshot.OutputDir = ExpandHome(cfg.Snapshot.OutputDir)
	cfg.API.AuditLog = ExpandHome(cfg.API.AuditLog)
}

func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	for mode, weights := range cfg.Scoring.ModeWeights {
		for domain, w := range weights {
			if w < 0 {
				return fmt.Errorf("mode_weights[%s][%s] must be >= 0, got %v", mode, domain, w)
			}
		}
	}
	return nil
}

// ExpandHome expands a leading "~" to the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Clone returns a deep copy so readers never observe mutation of a shared config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Collectors = cloneCollectorMap(c.Collectors)
	clone.Scoring.ModeWeights = cloneModeWeights(c.Scoring.ModeWeights)
	clone.API.CORSOrigins = cloneStringSlice(c.API.CORSOrigins)
	return &clone
}

func cloneCollectorMap(m map[string]Collector) map[string]Collector {
	if m == nil {
		return nil
	}
	out := make(map[string]Collector, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneModeWeights(m map[string]map[string]float64) map[string]map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]map[string]float64, len(m))
	for mode, weights := range m {
		inner := make(map[string]float64, len(weights))
		for domain, w := range weights {
			inner[domain] = w
		}
		out[mode] = inner
	}
	return out
}

func cloneStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
