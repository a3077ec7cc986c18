package lsmtree

import (
	"errors"
	"fmt"

	"github.com/sukryu/depdex/pkg/ports"
)

// 기본 오류 정의
var (
	// ErrKeyNotFound는 요청된 키를 찾을 수 없을 때 반환됩니다.
	// 포트의 오류와 동일한 값이므로 errors.Is로 두 가지 모두 확인할 수 있습니다.
	ErrKeyNotFound = ports.ErrKeyNotFound

	// ErrDBClosed는 닫힌 데이터베이스에 액세스하려고 할 때 반환됩니다.
	ErrDBClosed = errors.New("database is closed")

	// ErrWALCorrupted는 WAL 파일이 손상되었을 때 반환됩니다.
	ErrWALCorrupted = errors.New("WAL file is corrupted")

	// ErrSSTableCorrupted는 SSTable 파일이 손상되었을 때 반환됩니다.
	ErrSSTableCorrupted = errors.New("SSTable is corrupted")
)

// ErrInvalidConfig는 설정 유효성 검사 오류를 표현합니다.
type ErrInvalidConfig struct {
	Message string
}

// Error는 error 인터페이스를 구현합니다.
func (e ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Message)
}

// ErrSSTableError는 SSTable 관련 오류를 표현합니다.
type ErrSSTableError struct {
	TableID string
	Message string
	Err     error
}

// Error는 error 인터페이스를 구현합니다.
func (e ErrSSTableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("SSTable error (%s): %s (%v)", e.TableID, e.Message, e.Err)
	}
	return fmt.Sprintf("SSTable error (%s): %s", e.TableID, e.Message)
}

// Unwrap은 errors.Unwrap과 함께 사용하기 위한 메서드입니다.
func (e ErrSSTableError) Unwrap() error {
	return e.Err
}

// ErrWALError는 WAL 관련 오류를 표현합니다.
type ErrWALError struct {
	Operation string
	Message   string
	Err       error
}

// Error는 error 인터페이스를 구현합니다.
func (e ErrWALError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("WAL error during %s: %s (%v)", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("WAL error during %s: %s", e.Operation, e.Message)
}

// Unwrap은 errors.Unwrap과 함께 사용하기 위한 메서드입니다.
func (e ErrWALError) Unwrap() error {
	return e.Err
}

// ErrCompactionError는 컴팩션 관련 오류를 표현합니다.
type ErrCompactionError struct {
	Level   int
	Message string
	Err     error
}

// Error는 error 인터페이스를 구현합니다.
func (e ErrCompactionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compaction error at level %d: %s (%v)", e.Level, e.Message, e.Err)
	}
	return fmt.Sprintf("compaction error at level %d: %s", e.Level, e.Message)
}

// Unwrap은 errors.Unwrap과 함께 사용하기 위한 메서드입니다.
func (e ErrCompactionError) Unwrap() error {
	return e.Err
}

// IsNotFound는 주어진 오류가 키를 찾을 수 없는 오류인지 확인합니다.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsCorrupted는 주어진 오류가 데이터 손상과 관련된 오류인지 확인합니다.
func IsCorrupted(err error) bool {
	return errors.Is(err, ErrWALCorrupted) || errors.Is(err, ErrSSTableCorrupted)
}
