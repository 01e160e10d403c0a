package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/cache"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/cascade"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/encoder"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/escalation"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/safety"
)

// ErrInvalid marks a configuration that failed Validate.
var ErrInvalid = errors.New("invalid config")

// maxFileSize bounds config files read by Load.
const maxFileSize = 1 << 20

// Cache backends.
const (
	CacheSQLite = "sqlite"
	CacheBadger = "badger"
	CacheMemory = "memory"
)

// #region types

// StoreConfig locates the SQLite database holding learned chains, the
// resolution ledger and the SQLite cache tier.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// FileConfig points at an optional YAML file replacing an embedded table.
type FileConfig struct {
	Path string `yaml:"path"` // empty uses the embedded table
}

// CorpusConfig selects the seed corpus and whether learned chains join it.
type CorpusConfig struct {
	Path        string `yaml:"path"`
	LoadLearned bool   `yaml:"load_learned"`
}

// CacheConfig selects the persisted tier behind the memory cache.
type CacheConfig struct {
	Backend  string             `yaml:"backend"` // sqlite | badger | memory
	Capacity int                `yaml:"capacity"`
	TTL      time.Duration      `yaml:"ttl"`
	Badger   cache.BadgerConfig `yaml:"badger"`
}

// Cache returns the memory tier settings.
func (c CacheConfig) Cache() cache.Config {
	return cache.Config{Capacity: c.Capacity, TTL: c.TTL}
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config aggregates every component's settings.
type Config struct {
	Store      StoreConfig       `yaml:"store"`
	Catalog    FileConfig        `yaml:"catalog"`
	Corpus     CorpusConfig      `yaml:"corpus"`
	Encoder    encoder.Config    `yaml:"encoder"`
	Cache      CacheConfig       `yaml:"cache"`
	Cascade    cascade.Config    `yaml:"cascade"`
	Safety     safety.Config     `yaml:"safety"`
	Escalation escalation.Config `yaml:"escalation"`
	Logging    LoggingConfig     `yaml:"logging"`
}

// #endregion types

// #region load

// Default returns the configuration used when no file is given.
func Default() Config {
	cc := cache.DefaultConfig()
	return Config{
		Store:      StoreConfig{Path: "oracle.db"},
		Corpus:     CorpusConfig{LoadLearned: true},
		Encoder:    encoder.DefaultConfig(),
		Cache:      CacheConfig{Backend: CacheSQLite, Capacity: cc.Capacity, TTL: cc.TTL, Badger: cache.BadgerConfig{Path: "oracle-cache"}},
		Cascade:    cascade.DefaultConfig(),
		Safety:     safety.DefaultConfig(),
		Escalation: escalation.DefaultConfig(),
		Logging:    LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML file over Default. Unknown keys are rejected. An empty
// path returns Default unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxFileSize+1))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(data) > maxFileSize {
		return cfg, fmt.Errorf("config %s exceeds %d bytes", path, maxFileSize)
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping fields the document does not set.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// #endregion load

// #region env

// ApplyEnv overrides fields from ORACLE_* variables and OPENAI_API_KEY.
// Unparseable numeric values are ignored.
func (c *Config) ApplyEnv() {
	c.Store.Path = envOr("ORACLE_DB", c.Store.Path)
	c.Catalog.Path = envOr("ORACLE_CATALOG", c.Catalog.Path)
	c.Corpus.Path = envOr("ORACLE_CORPUS", c.Corpus.Path)
	c.Cache.Backend = envOr("ORACLE_CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Badger.Path = envOr("ORACLE_BADGER_DIR", c.Cache.Badger.Path)
	c.Escalation.Backend = envOr("ORACLE_ESCALATION", c.Escalation.Backend)
	c.Escalation.GRPCAddr = envOr("ORACLE_GRPC_ADDR", c.Escalation.GRPCAddr)
	c.Escalation.OpenAI.BaseURL = envOr("ORACLE_OPENAI_BASE_URL", c.Escalation.OpenAI.BaseURL)
	c.Escalation.OpenAI.Model = envOr("ORACLE_OPENAI_MODEL", c.Escalation.OpenAI.Model)
	c.Escalation.OpenAI.APIKey = envOr("OPENAI_API_KEY", c.Escalation.OpenAI.APIKey)
	c.Logging.Level = envOr("ORACLE_LOG_LEVEL", c.Logging.Level)

	if v := os.Getenv("ORACLE_ESCALATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Cascade.EscalationTimeout = d
		}
	}
	if v := os.Getenv("ORACLE_ESCALATION_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Escalation.RPS = f
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion env

// #region validate

// Validate reports every out-of-range field at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	unit := func(name string, v float64) {
		if v < 0 || v > 1 {
			bad("%s must be in [0,1], got %v", name, v)
		}
	}

	unit("cascade.index_threshold", c.Cascade.IndexThreshold)
	unit("cascade.cache_threshold", c.Cascade.CacheThreshold)
	unit("cascade.learn_threshold", c.Cascade.LearnThreshold)
	unit("cascade.overlap_weight", c.Cascade.OverlapWeight)
	if c.Cascade.NoveltyFloor < 0 {
		bad("cascade.novelty_floor must not be negative")
	}
	if c.Cascade.MaxSlots < 1 {
		bad("cascade.max_slots must be positive")
	}
	if c.Encoder.MaxSlots != c.Cascade.MaxSlots || c.Safety.MaxSlots != c.Cascade.MaxSlots {
		bad("max_slots differ: encoder %d, cascade %d, safety %d", c.Encoder.MaxSlots, c.Cascade.MaxSlots, c.Safety.MaxSlots)
	}
	if c.Encoder.UnitWeight <= 0 {
		bad("encoder.unit_weight must be positive")
	}
	if c.Cascade.EscalationTimeout <= 0 {
		bad("cascade.escalation_timeout must be positive")
	}

	unit("safety.max_feedback", c.Safety.MaxFeedback)
	unit("safety.resonance_limit", c.Safety.ResonanceLimit)
	if c.Safety.DriveWarn > c.Safety.DriveCeiling {
		bad("safety.drive_warn %v exceeds drive_ceiling %v", c.Safety.DriveWarn, c.Safety.DriveCeiling)
	}

	switch c.Cache.Backend {
	case CacheSQLite, CacheMemory:
	case CacheBadger:
		if !c.Cache.Badger.InMemory && c.Cache.Badger.Path == "" {
			bad("cache.badger.path is required")
		}
	default:
		bad("cache.backend %q is not sqlite, badger or memory", c.Cache.Backend)
	}
	if c.Cache.Capacity < 1 {
		bad("cache.capacity must be positive")
	}

	switch c.Escalation.Backend {
	case "", "none":
	case "grpc":
		if c.Escalation.GRPCAddr == "" {
			bad("escalation.grpc_addr is required")
		}
	case "openai":
		if c.Escalation.OpenAI.Model == "" {
			bad("escalation.openai.model is required")
		}
	default:
		bad("escalation.backend %q is not none, grpc or openai", c.Escalation.Backend)
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		bad("logging.level: %v", err)
	}
	if c.Store.Path == "" {
		bad("store.path is required")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// #endregion validate
