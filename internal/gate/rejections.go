package gate

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/SocketCluster/agc-state/pkg/protocol"
)

// ============================================================================
//                              拒绝记录
// ============================================================================

// Rejection 一次握手拒绝的记录
type Rejection struct {
	// RemoteAddr 被拒绝连接的远端地址
	RemoteAddr string `json:"remoteAddr"`

	// Name 错误类别名
	Name string `json:"name"`

	// Message 诊断信息
	Message string `json:"message"`

	// Time 拒绝时间
	Time time.Time `json:"time"`
}

// RejectionLog 有界的近期握手拒绝记录
//
// 容量固定，最旧的记录被淘汰。供自省接口诊断反复被拒的
// 实例（密钥配错、版本过旧等），不做持久化。
type RejectionLog struct {
	mu    sync.Mutex
	seq   uint64
	cache *lru.Cache[uint64, Rejection]
}

// NewRejectionLog 创建拒绝记录
func NewRejectionLog(size int) *RejectionLog {
	if size <= 0 {
		size = 64
	}
	// 容量为正时构造不会失败
	cache, _ := lru.New[uint64, Rejection](size)
	return &RejectionLog{cache: cache}
}

// Record 追加一条拒绝记录
func (l *RejectionLog) Record(remoteAddr string, perr *protocol.Error, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	l.cache.Add(l.seq, Rejection{
		RemoteAddr: remoteAddr,
		Name:       perr.Name,
		Message:    perr.Message,
		Time:       now,
	})
}

// Recent 返回近期拒绝，从旧到新
func (l *RejectionLog) Recent() []Rejection {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.cache.Values()
}

// Len 返回当前记录数
func (l *RejectionLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.cache.Len()
}
