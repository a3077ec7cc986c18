package lsmtree

import (
	"time"
)

// Config는 LSM Tree의 설정을 저장하는 구조체입니다.
type Config struct {
	// FilePath는 WAL과 SSTable 파일이 저장될 디렉토리입니다.
	FilePath string

	// MemTableSize는 메모리 테이블의 최대 크기(바이트)입니다.
	// 이 크기에 도달하면 SSTable로 flush 됩니다. 기본값은 4MB입니다.
	MemTableSize int

	// CompactionInterval은 자동 컴팩션 검사 간의 시간 간격입니다.
	// 기본값은 10초입니다.
	CompactionInterval time.Duration

	// Level0Threshold는 컴팩션을 유발하는 level0 SSTable 개수입니다.
	Level0Threshold int

	// CacheSize는 값 캐시에 보관할 최대 엔트리 수입니다. 0이면 캐시를 사용하지 않습니다.
	CacheSize int

	// UseBloomFilter는 SSTable에 블룸 필터 사용 여부를 결정합니다.
	UseBloomFilter bool

	// SyncWrites는 WAL에 쓰기 후 디스크 동기화를 강제할지 여부입니다.
	// 활성화하면 안전성이 증가하지만 성능이 저하됩니다.
	SyncWrites bool

	// ScanChunkSize는 읽기 락 한 번에 수집하는 최대 엔트리 수입니다.
	ScanChunkSize int

	// RecoveryMode는 시작 시 복구 모드를 지정합니다.
	// "strict" 또는 "best_effort"가 가능합니다.
	RecoveryMode string
}

const (
	RecoveryStrict     = "strict"
	RecoveryBestEffort = "best_effort"
)

// DefaultConfig는 기본 설정으로 Config 인스턴스를 반환합니다.
func DefaultConfig() Config {
	return Config{
		FilePath:           "./depdex_data",
		MemTableSize:       4 * 1024 * 1024, // 4MB
		CompactionInterval: 10 * time.Second,
		Level0Threshold:    4,
		CacheSize:          4096,
		UseBloomFilter:     true,
		SyncWrites:         false,
		ScanChunkSize:      128,
		RecoveryMode:       RecoveryStrict,
	}
}

// Validate는 설정의 유효성을 검사하고 잘못된 설정이 있으면 오류를 반환합니다.
func (c *Config) Validate() error {
	if c.FilePath == "" {
		return ErrInvalidConfig{"FilePath is required"}
	}
	if c.MemTableSize <= 0 {
		return ErrInvalidConfig{"MemTableSize must be positive"}
	}
	if c.CompactionInterval <= 0 {
		return ErrInvalidConfig{"CompactionInterval must be positive"}
	}
	if c.Level0Threshold < 2 {
		return ErrInvalidConfig{"Level0Threshold must be at least 2"}
	}
	if c.CacheSize < 0 {
		return ErrInvalidConfig{"CacheSize cannot be negative"}
	}
	if c.ScanChunkSize < 0 {
		return ErrInvalidConfig{"ScanChunkSize cannot be negative"}
	}

	// 복구 모드 검증
	switch c.RecoveryMode {
	case RecoveryStrict, RecoveryBestEffort:
		// 유효함
	default:
		return ErrInvalidConfig{"RecoveryMode must be 'strict' or 'best_effort'"}
	}

	return nil
}
