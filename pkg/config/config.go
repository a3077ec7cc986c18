// Package config는 depdex 실행 설정을 읽고 검증합니다.
//
// 우선순위는 기본값 < YAML 파일 < DEPDEX_ 환경 변수입니다.
// 예: storage.memtable_size는 DEPDEX_STORAGE_MEMTABLE_SIZE로 덮어쓸 수 있습니다.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sukryu/depdex/pkg/adapters/lsmtree"
	"github.com/sukryu/depdex/pkg/adapters/npmregistry"
	"github.com/sukryu/depdex/pkg/domain"
)

// EnvPrefix는 환경 변수 접두사입니다.
const EnvPrefix = "DEPDEX"

const (
	BackendLSM    = "lsm"
	BackendMemory = "memory"
)

// Config는 전체 설정입니다.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Index    IndexConfig    `mapstructure:"index"`
	Registry RegistryConfig `mapstructure:"registry"`
}

// StorageConfig는 KV 저장소 백엔드 설정입니다.
type StorageConfig struct {
	Backend            string        `mapstructure:"backend"` // "lsm" 또는 "memory"
	Path               string        `mapstructure:"path"`
	SyncWrites         bool          `mapstructure:"sync_writes"`
	MemTableSize       int           `mapstructure:"memtable_size"`
	CacheSize          int           `mapstructure:"cache_size"`
	Level0Threshold    int           `mapstructure:"level0_threshold"`
	CompactionInterval time.Duration `mapstructure:"compaction_interval"`
	RecoveryMode       string        `mapstructure:"recovery_mode"`
}

// IndexConfig는 인덱스 설정입니다.
type IndexConfig struct {
	LatestCacheSize    int `mapstructure:"latest_cache_size"`
	ResolveConcurrency int `mapstructure:"resolve_concurrency"`
	ScanWindow         int `mapstructure:"scan_window"`
}

// RegistryConfig는 npm 레지스트리 수집 설정입니다.
type RegistryConfig struct {
	URL         string `mapstructure:"url"`
	Concurrency int    `mapstructure:"concurrency"`
}

// ErrInvalidConfig는 설정 유효성 검사 오류입니다.
type ErrInvalidConfig struct {
	Key     string
	Message string
}

func (e ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Message)
}

// DefaultConfig는 각 하위 패키지의 기본값으로 Config를 만듭니다.
func DefaultConfig() Config {
	lsm := lsmtree.DefaultConfig()
	index := domain.DefaultIndexConfig()
	registry := npmregistry.DefaultConfig()
	return Config{
		Storage: StorageConfig{
			Backend:            BackendLSM,
			Path:               lsm.FilePath,
			SyncWrites:         lsm.SyncWrites,
			MemTableSize:       lsm.MemTableSize,
			CacheSize:          lsm.CacheSize,
			Level0Threshold:    lsm.Level0Threshold,
			CompactionInterval: lsm.CompactionInterval,
			RecoveryMode:       lsm.RecoveryMode,
		},
		Index: IndexConfig{
			LatestCacheSize:    index.LatestCacheSize,
			ResolveConcurrency: index.ResolveConcurrency,
			ScanWindow:         index.ScanWindow,
		},
		Registry: RegistryConfig{
			URL:         registry.URL,
			Concurrency: registry.Concurrency,
		},
	}
}

// settings는 점으로 구분된 키와 값을 반환합니다. 기본값 등록과 파일 출력에 함께 쓰입니다.
func (c Config) settings() map[string]interface{} {
	return map[string]interface{}{
		"storage.backend":             c.Storage.Backend,
		"storage.path":                c.Storage.Path,
		"storage.sync_writes":         c.Storage.SyncWrites,
		"storage.memtable_size":       c.Storage.MemTableSize,
		"storage.cache_size":          c.Storage.CacheSize,
		"storage.level0_threshold":    c.Storage.Level0Threshold,
		"storage.compaction_interval": c.Storage.CompactionInterval.String(),
		"storage.recovery_mode":       c.Storage.RecoveryMode,
		"index.latest_cache_size":     c.Index.LatestCacheSize,
		"index.resolve_concurrency":   c.Index.ResolveConcurrency,
		"index.scan_window":           c.Index.ScanWindow,
		"registry.url":                c.Registry.URL,
		"registry.concurrency":        c.Registry.Concurrency,
	}
}

// Load는 기본값, path의 설정 파일(비어 있으면 생략), 환경 변수 순으로 설정을 읽고 검증합니다.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range DefaultConfig().settings() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		// 확장자가 없으면 YAML로 간주 (.toml, .json은 viper가 확장자로 판별)
		if filepath.Ext(path) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate는 잘못된 설정이 있으면 ErrInvalidConfig를 반환합니다.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendLSM:
		lsm := c.LSMConfig()
		if err := lsm.Validate(); err != nil {
			var invalid lsmtree.ErrInvalidConfig
			if errors.As(err, &invalid) {
				return ErrInvalidConfig{"storage", invalid.Message}
			}
			return ErrInvalidConfig{"storage", err.Error()}
		}
	default:
		return ErrInvalidConfig{"storage.backend", fmt.Sprintf("must be %q or %q, got %q", BackendLSM, BackendMemory, c.Storage.Backend)}
	}

	if c.Index.LatestCacheSize < 0 {
		return ErrInvalidConfig{"index.latest_cache_size", "cannot be negative"}
	}
	if c.Index.ResolveConcurrency <= 0 {
		return ErrInvalidConfig{"index.resolve_concurrency", "must be positive"}
	}
	if c.Index.ScanWindow <= 0 {
		return ErrInvalidConfig{"index.scan_window", "must be positive"}
	}
	if c.Registry.Concurrency <= 0 {
		return ErrInvalidConfig{"registry.concurrency", "must be positive"}
	}
	return nil
}

// LSMConfig는 저장소 설정을 LSM 트리 설정으로 변환합니다.
func (c *Config) LSMConfig() lsmtree.Config {
	lsm := lsmtree.DefaultConfig()
	lsm.FilePath = c.Storage.Path
	lsm.SyncWrites = c.Storage.SyncWrites
	lsm.MemTableSize = c.Storage.MemTableSize
	lsm.CacheSize = c.Storage.CacheSize
	lsm.Level0Threshold = c.Storage.Level0Threshold
	lsm.CompactionInterval = c.Storage.CompactionInterval
	lsm.RecoveryMode = c.Storage.RecoveryMode
	return lsm
}

func (c *Config) IndexConfig() domain.IndexConfig {
	return domain.IndexConfig{
		LatestCacheSize:    c.Index.LatestCacheSize,
		ResolveConcurrency: c.Index.ResolveConcurrency,
		ScanWindow:         c.Index.ScanWindow,
	}
}

func (c *Config) RegistryConfig() npmregistry.Config {
	return npmregistry.Config{
		URL:         c.Registry.URL,
		Concurrency: c.Registry.Concurrency,
	}
}

// Write는 설정을 YAML로 path에 기록합니다. 기존 파일은 덮어쓰지 않습니다.
func (c *Config) Write(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	data, err := yaml.Marshal(nest(c.settings()))
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// WriteDefault는 기본 설정 파일을 생성합니다.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	return cfg.Write(path)
}

// nest는 "a.b" 형태의 키를 중첩 맵으로 바꿉니다.
func nest(flat map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for k, value := range flat {
		section, field, _ := strings.Cut(k, ".")
		m, ok := out[section].(map[string]interface{})
		if !ok {
			m = make(map[string]interface{})
			out[section] = m
		}
		m[field] = value
	}
	return out
}
