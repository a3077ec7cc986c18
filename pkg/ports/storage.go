// Package ports는 depdex의 헥사고날 아키텍처에서 저장소 관련 인터페이스를 정의합니다.
// 이 패키지는 도메인 로직(의존성 인덱스)과 어댑터(memdb, LSM 등)를 연결하는 포트 역할을 합니다.
package ports

import (
	"context"
	"errors"

	"github.com/sukryu/depdex/pkg/types"
)

// KVStore는 정렬된 키-값 저장소가 제공해야 하는 동작을 정의하는 인터페이스입니다.
// 원자적 배치 쓰기, 단건 조회, 바이트 순서 범위 스캔을 지원해야 합니다.
type KVStore interface {
	// Get은 주어진 키에 해당하는 값을 조회합니다.
	// 키가 존재하지 않으면 ErrKeyNotFound 오류를 반환합니다.
	Get(ctx context.Context, key string) (string, error)

	// Batch는 여러 엔트리를 하나의 원자적 단위로 적용합니다.
	// Tombstone이 설정된 엔트리는 삭제를 의미하며, 존재하지 않는 키의 삭제는 무시됩니다.
	// 부분 적용은 절대 관찰되어서는 안 됩니다.
	Batch(ctx context.Context, entries []types.Entry) error

	// Scan은 범위 r에 속하는 키를 오름차순으로 순회하며 fn을 호출합니다.
	// fn이 ErrStopScan을 반환하면 오류 없이 순회를 멈추고, 다른 오류는 그대로 반환됩니다.
	// fn 내부에서 같은 저장소에 대한 Get/Batch 호출이 허용되어야 합니다.
	Scan(ctx context.Context, r KeyRange, fn func(key, value string) error) error

	// Close는 저장소가 보유한 자원을 해제합니다.
	Close() error
}

// KeyRange는 반열린 키 구간을 나타냅니다.
// Exclusive가 true이면 Start 자체는 제외됩니다. End는 항상 제외됩니다.
type KeyRange struct {
	Start     string
	Exclusive bool
	End       string
}

// Contains reports whether key falls inside the range.
func (r KeyRange) Contains(key string) bool {
	if r.Exclusive {
		if key <= r.Start {
			return false
		}
	} else if key < r.Start {
		return false
	}
	return key < r.End
}

// After returns the range that resumes strictly after key.
func (r KeyRange) After(key string) KeyRange {
	return KeyRange{Start: key, Exclusive: true, End: r.End}
}

// ErrKeyNotFound는 키가 저장소에 존재하지 않을 때 반환되는 오류입니다.
var ErrKeyNotFound = errors.New("key not found")

// ErrStopScan은 Scan 콜백이 순회를 조기 종료하기 위해 반환하는 값입니다.
var ErrStopScan = errors.New("stop scan")

// StatsProvider is implemented by stores that expose runtime counters.
type StatsProvider interface {
	Stats() map[string]interface{}
}
