package lsmtree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sukryu/depdex/pkg/ports"
	"github.com/sukryu/depdex/pkg/types"
)

// newTestConfig는 테스트용 임시 디렉토리를 사용하는 설정을 반환합니다.
func newTestConfig(t *testing.T) Config {
	t.Helper()
	config := DefaultConfig()
	config.FilePath = t.TempDir()
	config.MemTableSize = 1024 * 1024
	// 자동 컴팩션을 방지하기 위해 컴팩션 간격을 길게 설정합니다.
	config.CompactionInterval = time.Hour
	return config
}

func openTree(t *testing.T, config Config) *LSMTree {
	t.Helper()
	lsm, err := NewLSMTree(config)
	require.NoError(t, err)
	return lsm
}

func scanAll(t *testing.T, lsm *LSMTree, r ports.KeyRange) []types.Entry {
	t.Helper()
	var out []types.Entry
	err := lsm.Scan(context.Background(), r, func(key, value string) error {
		out = append(out, types.Put(key, value))
		return nil
	})
	require.NoError(t, err)
	return out
}

// TestBasicOperations는 Batch, Get, 삭제 기본 연산을 검증합니다.
func TestBasicOperations(t *testing.T) {
	ctx := context.Background()
	lsm := openTree(t, newTestConfig(t))
	defer lsm.Close()

	require.NoError(t, lsm.Batch(ctx, []types.Entry{
		types.Put("alpha", "1"),
		types.Put("beta", "2"),
		types.Put("gamma", "3"),
	}))

	for key, want := range map[string]string{"alpha": "1", "beta": "2", "gamma": "3"} {
		got, err := lsm.Get(ctx, key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got)
	}

	require.NoError(t, lsm.Batch(ctx, []types.Entry{types.Delete("beta")}))
	_, err := lsm.Get(ctx, "beta")
	assert.ErrorIs(t, err, ports.ErrKeyNotFound)
	assert.True(t, IsNotFound(err))
}

// TestRecovery는 WAL 기반 복구 기능을 검증합니다.
func TestRecovery(t *testing.T) {
	ctx := context.Background()
	config := newTestConfig(t)

	lsm := openTree(t, config)
	require.NoError(t, lsm.Batch(ctx, []types.Entry{
		types.Put("delta", "4"),
		types.Put("epsilon", "5"),
	}))
	// Close 없이 WAL만 남긴 상태를 흉내내기 위해 파일 핸들만 닫는다.
	close(lsm.stopCh)
	lsm.wg.Wait()
	require.NoError(t, lsm.wal.Close())
	lsm.closeTables()

	lsm2 := openTree(t, config)
	defer lsm2.Close()
	got, err := lsm2.Get(ctx, "epsilon")
	require.NoError(t, err)
	assert.Equal(t, "5", got)
	// 복구된 엔트리는 SSTable로 flush 된다.
	assert.Equal(t, 1, lsm2.Stats()["level0_tables"])
}

func TestRecoveryDropsTornTail(t *testing.T) {
	ctx := context.Background()
	config := newTestConfig(t)
	walPath := filepath.Join(config.FilePath, "db.wal")

	wal, err := NewWAL(walPath, true)
	require.NoError(t, err)
	require.NoError(t, wal.AppendBatch([]types.Entry{types.Put("kept", "1")}))
	require.NoError(t, wal.Close())

	// 두 번째 레코드를 절반만 기록한다.
	record := encodeBatch(nil, []types.Entry{types.Put("torn", "2")})
	f, err := os.OpenFile(walPath, os.O_APPEND|os.O_WRONLY, 0666)
	require.NoError(t, err)
	_, err = f.Write(record[:len(record)/2])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	lsm := openTree(t, config)
	defer lsm.Close()
	got, err := lsm.Get(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
	_, err = lsm.Get(ctx, "torn")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRecoveryChecksumMismatch(t *testing.T) {
	config := newTestConfig(t)
	walPath := filepath.Join(config.FilePath, "db.wal")

	record := encodeBatch(nil, []types.Entry{types.Put("k", "v")})
	record[len(record)-1] ^= 0xff
	require.NoError(t, os.WriteFile(walPath, record, 0666))

	_, err := NewLSMTree(config)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWALCorrupted)
	assert.True(t, IsCorrupted(err))

	config.RecoveryMode = RecoveryBestEffort
	lsm := openTree(t, config)
	defer lsm.Close()
	_, err = lsm.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

// TestReopenAfterClose는 Close 시 flush된 SSTable에서 데이터를 다시 읽는지 검증합니다.
func TestReopenAfterClose(t *testing.T) {
	ctx := context.Background()
	config := newTestConfig(t)

	lsm := openTree(t, config)
	require.NoError(t, lsm.Batch(ctx, []types.Entry{types.Put("a", "1"), types.Put("b", "2")}))
	require.NoError(t, lsm.Flush())
	require.NoError(t, lsm.Batch(ctx, []types.Entry{types.Delete("a"), types.Put("c", "3")}))
	require.NoError(t, lsm.Close())

	_, err := lsm.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrDBClosed)

	lsm2 := openTree(t, config)
	defer lsm2.Close()
	_, err = lsm2.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrKeyNotFound, "tombstone in the newer table shadows the older value")
	entries := scanAll(t, lsm2, ports.KeyRange{Start: "", End: "\xff"})
	assert.Equal(t, []types.Entry{types.Put("b", "2"), types.Put("c", "3")}, entries)
}

func TestScanMergesMemTableAndTables(t *testing.T) {
	ctx := context.Background()
	config := newTestConfig(t)
	config.ScanChunkSize = 4
	lsm := openTree(t, config)
	defer lsm.Close()

	var batch []types.Entry
	for i := 0; i < 30; i++ {
		batch = append(batch, types.Put(fmt.Sprintf("k%02d", i), "old"))
	}
	require.NoError(t, lsm.Batch(ctx, batch))
	require.NoError(t, lsm.Flush())

	// 짝수 키는 덮어쓰고 3의 배수 키는 삭제한다.
	batch = batch[:0]
	for i := 0; i < 30; i++ {
		key := fmt.Sprintf("k%02d", i)
		switch {
		case i%3 == 0:
			batch = append(batch, types.Delete(key))
		case i%2 == 0:
			batch = append(batch, types.Put(key, "new"))
		}
	}
	require.NoError(t, lsm.Batch(ctx, batch))
	require.NoError(t, lsm.Flush())
	require.NoError(t, lsm.Batch(ctx, []types.Entry{types.Put("k01", "mem")}))

	entries := scanAll(t, lsm, ports.KeyRange{Start: "k00", End: "k20"})
	var keys []string
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"k01", "k02", "k04", "k05", "k07", "k08", "k10", "k11", "k13", "k14", "k16", "k17", "k19"}, keys)
	assert.Equal(t, "mem", entries[0].Value)
	assert.Equal(t, "new", entries[1].Value)
	assert.Equal(t, "old", entries[3].Value)

	entries = scanAll(t, lsm, ports.KeyRange{Start: "k01", Exclusive: true, End: "k03"})
	assert.Equal(t, []types.Entry{types.Put("k02", "new")}, entries)
}

func TestScanCallbackMayWrite(t *testing.T) {
	ctx := context.Background()
	config := newTestConfig(t)
	config.ScanChunkSize = 2
	lsm := openTree(t, config)
	defer lsm.Close()

	require.NoError(t, lsm.Batch(ctx, []types.Entry{
		types.Put("p1", "x"), types.Put("p2", "x"), types.Put("p3", "x"), types.Put("p4", "x"),
	}))
	visited := 0
	err := lsm.Scan(ctx, ports.KeyRange{Start: "p", End: "q"}, func(key, value string) error {
		visited++
		return lsm.Batch(ctx, []types.Entry{types.Delete(key)})
	})
	require.NoError(t, err)
	assert.Equal(t, 4, visited)
	assert.Empty(t, scanAll(t, lsm, ports.KeyRange{Start: "p", End: "q"}))

	err = lsm.Scan(ctx, ports.KeyRange{Start: "", End: "\xff"}, func(key, value string) error {
		return ports.ErrStopScan
	})
	assert.NoError(t, err)
}

// TestConcurrentAccess는 동시성 환경에서의 Batch 및 Get 동작을 검증합니다.
func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	config := newTestConfig(t)
	config.MemTableSize = 16 * 1024 // flush가 여러 번 일어나도록 작게 잡는다.
	lsm := openTree(t, config)
	defer lsm.Close()

	numGoroutines := 10
	numInsertsPerGoroutine := 100
	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numInsertsPerGoroutine; j++ {
				key := fmt.Sprintf("key_%d_%d", id, j)
				if err := lsm.Batch(ctx, []types.Entry{types.Put(key, fmt.Sprintf("value_%d_%d", id, j))}); err != nil {
					t.Errorf("failed to write key %s: %v", key, err)
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numInsertsPerGoroutine; j++ {
				key := fmt.Sprintf("key_%d_%d", id, j)
				value, err := lsm.Get(ctx, key)
				if err != nil {
					t.Errorf("failed to get key %s: %v", key, err)
					continue
				}
				if expected := fmt.Sprintf("value_%d_%d", id, j); value != expected {
					t.Errorf("expected %s, got %s for key %s", expected, value, key)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Greater(t, lsm.Stats()["flushes"], int64(0))
}

// TestForceCompaction는 ForceCompaction을 통한 컴팩션 동작 및 데이터 무결성을 검증합니다.
func TestForceCompaction(t *testing.T) {
	ctx := context.Background()
	config := newTestConfig(t)
	lsm := openTree(t, config)
	defer lsm.Close()

	keys := []string{"a", "b", "c", "d", "e"}
	for i, key := range keys {
		require.NoError(t, lsm.Batch(ctx, []types.Entry{types.Put(key, fmt.Sprintf("%d", i))}))
		require.NoError(t, lsm.Flush())
	}
	require.NoError(t, lsm.Batch(ctx, []types.Entry{types.Delete("c")}))

	require.NoError(t, lsm.ForceCompaction())

	// 컴팩션 후 SSTable이 하나로 합쳐졌는지 확인.
	stats := lsm.Stats()
	assert.Equal(t, 0, stats["level0_tables"])
	assert.Equal(t, 1, stats["level1_tables"])
	assert.Equal(t, int64(1), stats["compactions"])

	for i, key := range keys {
		val, err := lsm.Get(ctx, key)
		if key == "c" {
			assert.ErrorIs(t, err, ErrKeyNotFound)
			continue
		}
		require.NoError(t, err, key)
		assert.Equal(t, fmt.Sprintf("%d", i), val)
	}

	files, err := filepath.Glob(filepath.Join(config.FilePath, "*"+sstSuffix))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestCompactBelowThresholdIsNoop(t *testing.T) {
	ctx := context.Background()
	lsm := openTree(t, newTestConfig(t))
	defer lsm.Close()

	require.NoError(t, lsm.Batch(ctx, []types.Entry{types.Put("a", "1")}))
	require.NoError(t, lsm.Flush())
	require.NoError(t, lsm.compactor.Compact())
	assert.Equal(t, 1, lsm.Stats()["level0_tables"])
	assert.Equal(t, int64(0), lsm.Stats()["compactions"])
}

// TestWALRecordsStat는 WAL 레코드 수가 배치마다 늘고 flush 후 0이 되는지 검증합니다.
func TestWALRecordsStat(t *testing.T) {
	ctx := context.Background()
	lsm := openTree(t, newTestConfig(t))
	defer lsm.Close()

	assert.Equal(t, int64(0), lsm.Stats()["wal_records"])
	require.NoError(t, lsm.Batch(ctx, []types.Entry{types.Put("a", "1"), types.Put("b", "2")}))
	require.NoError(t, lsm.Batch(ctx, []types.Entry{types.Delete("a")}))
	assert.Equal(t, int64(2), lsm.Stats()["wal_records"], "one record per batch")

	require.NoError(t, lsm.Flush())
	assert.Equal(t, int64(0), lsm.Stats()["wal_records"])
}

// TestConcurrentClose는 동시에 Close를 호출해도 패닉 없이 한 번만 닫히는지 검증합니다.
func TestConcurrentClose(t *testing.T) {
	ctx := context.Background()
	config := newTestConfig(t)
	lsm := openTree(t, config)
	require.NoError(t, lsm.Batch(ctx, []types.Entry{types.Put("k", "v")}))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = lsm.Close()
		}(i)
	}
	assert.NotPanics(t, wg.Wait)
	for _, err := range errs {
		assert.NoError(t, err)
	}
	_, err := lsm.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrDBClosed)

	lsm2 := openTree(t, config)
	defer lsm2.Close()
	got, err := lsm2.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got, "the single Close flushed the memtable")
	assert.Equal(t, 1, lsm2.Stats()["level0_tables"])
}

func TestCompactionErrorUnwrap(t *testing.T) {
	cause := ErrSSTableError{TableID: "7", Message: "write failed", Err: os.ErrPermission}
	err := fmt.Errorf("compact: %w", ErrCompactionError{Level: 1, Message: "write output", Err: cause})
	assert.ErrorIs(t, err, os.ErrPermission)
	var compactionErr ErrCompactionError
	require.ErrorAs(t, err, &compactionErr)
	assert.Equal(t, 1, compactionErr.Level)

	assert.Nil(t, errors.Unwrap(ErrCompactionError{Level: 0, Message: "open inputs"}))
}

func TestCorruptedSSTableRejected(t *testing.T) {
	config := newTestConfig(t)
	sst, err := CreateSSTable(config.FilePath, 7, []types.Entry{types.Put("a", "1")}, true)
	require.NoError(t, err)
	require.NoError(t, sst.Close())

	data, err := os.ReadFile(sst.FilePath())
	require.NoError(t, err)
	data[0] ^= 0xff
	require.NoError(t, os.WriteFile(sst.FilePath(), data, 0666))

	_, err = NewLSMTree(config)
	assert.ErrorIs(t, err, ErrSSTableCorrupted)
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	config.RecoveryMode = "lenient"
	var invalid ErrInvalidConfig
	assert.ErrorAs(t, config.Validate(), &invalid)

	config = DefaultConfig()
	config.Level0Threshold = 1
	assert.Error(t, config.Validate())
}
