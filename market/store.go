package market

import (
	"sync"
	"time"
)

// SnapshotStore 维护进程内唯一的 coinId->Snapshot 映射。
// 写入是整值替换（copy-on-write），读者要么看到旧映射、要么看到新映射，
// 绝不会看到半新半旧的混合；读写互不阻塞。
type SnapshotStore struct {
	mu          sync.RWMutex
	current     map[string]Snapshot
	lastFetched time.Time
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{current: map[string]Snapshot{}}
}

// Replace 用新映射整体替换当前映射。调用方交出所有权，之后不得再修改。
func (s *SnapshotStore) Replace(snapshots map[string]Snapshot, fetchedAt time.Time) {
	if snapshots == nil {
		snapshots = map[string]Snapshot{}
	}
	s.mu.Lock()
	s.current = snapshots
	s.lastFetched = fetchedAt
	s.mu.Unlock()
}

// Current 返回最近一次替换进来的映射。返回值是共享引用，调用方只读。
func (s *SnapshotStore) Current() map[string]Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Get 查询单个币种。
func (s *SnapshotStore) Get(coinID string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.current[coinID]
	return snap, ok
}

// Len 返回当前追踪的币种数。
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.current)
}

// LastFetched 返回最近一次成功替换的时间；从未替换过则为零值。
func (s *SnapshotStore) LastFetched() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetched
}

// Staleness 返回距上次成功替换的时长；如无数据返回一个极大的时长。
func (s *SnapshotStore) Staleness() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastFetched.IsZero() {
		return time.Hour * 24 * 365
	}
	return time.Since(s.lastFetched)
}
