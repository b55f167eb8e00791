package dc

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/game/port"
	"Conquest/modules/kit/logx"
)

const (
	defaultRetryDelay  = 200 * time.Millisecond
	defaultSaveTimeout = 5 * time.Second
	finalAttempts      = 3
)

// Observer 接收每次写库的结果。
type Observer interface {
	FlushDone(batch int, err error, elapsed time.Duration)
}

type Option func(*Flusher)

func WithLogger(l logx.Logger) Option {
	return func(f *Flusher) {
		if l != nil {
			f.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(f *Flusher) { f.observer = o }
}

func WithRetryDelay(d time.Duration) Option {
	return func(f *Flusher) {
		if d > 0 {
			f.retry = d
		}
	}
}

// Flusher 把内存快照异步写入仓储。
// 每个玩家只保留最新版本的待写快照；一次写库带走全部待写快照，
// 所以同一次 Enqueue 的快照（例如战斗双方）总在同一个事务里落库。
type Flusher struct {
	repo     port.PlayerRepository
	log      logx.Logger
	observer Observer
	retry    time.Duration

	mu      sync.Mutex
	pending map[entity.PlayerID]entity.PlayerSnapshot
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewFlusher(repo port.PlayerRepository, opts ...Option) *Flusher {
	f := &Flusher{
		repo:    repo,
		log:     logx.Nop(),
		retry:   defaultRetryDelay,
		pending: make(map[entity.PlayerID]entity.PlayerSnapshot),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	go f.writerLoop()
	return f
}

// Enqueue 合并进待写队列并唤醒写协程。关闭后的调用被忽略。
func (f *Flusher) Enqueue(snaps ...entity.PlayerSnapshot) {
	if len(snaps) == 0 {
		return
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		f.log.Warn("snapshot dropped after close", zap.Int("count", len(snaps)))
		return
	}
	for _, s := range snaps {
		f.mergeLocked(s)
	}
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Pending 待写快照数。
func (f *Flusher) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Close 停止接收并尽量写完剩余快照。
func (f *Flusher) Close(ctx context.Context) error {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.stop)
	}
	f.mu.Unlock()

	select {
	case <-f.done:
		if n := f.Pending(); n > 0 {
			return errs.ErrPersistence.WithData("op", "dc.Close").WithData("lost", n)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mergeLocked 保留版本更高的快照，战报取两者并集。
func (f *Flusher) mergeLocked(s entity.PlayerSnapshot) {
	old, ok := f.pending[s.Player.ID]
	if !ok {
		f.pending[s.Player.ID] = s
		return
	}
	newer, older := s, old
	if old.Version > s.Version {
		newer, older = old, s
	}
	newer.Reports = mergeReports(older.Reports, newer.Reports)
	f.pending[s.Player.ID] = newer
}

func (f *Flusher) popPending() []entity.PlayerSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil
	}
	out := make([]entity.PlayerSnapshot, 0, len(f.pending))
	for _, s := range f.pending {
		out = append(out, s)
	}
	f.pending = make(map[entity.PlayerID]entity.PlayerSnapshot)
	sort.Slice(out, func(i, j int) bool { return out[i].Player.ID < out[j].Player.ID })
	return out
}

// requeue 写库失败时放回；期间若已有更新版本，合并后以新版本为准。
func (f *Flusher) requeue(batch []entity.PlayerSnapshot) {
	f.mu.Lock()
	for _, s := range batch {
		f.mergeLocked(s)
	}
	f.mu.Unlock()
}

func (f *Flusher) writerLoop() {
	defer close(f.done)

	for {
		select {
		case <-f.wake:
			f.consumePending(false)
		case <-f.stop:
			f.consumePending(true)
			return
		}
	}
}

func (f *Flusher) consumePending(final bool) {
	failures := 0
	for {
		batch := f.popPending()
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), defaultSaveTimeout)
		err := f.repo.Save(ctx, batch)
		cancel()
		if f.observer != nil {
			f.observer.FlushDone(len(batch), err, time.Since(start))
		}
		if err == nil {
			failures = 0
			continue
		}

		f.requeue(batch)
		failures++
		logx.ReportSysErrorWithLoggerContext(context.Background(), f.log,
			logx.NewSysLog("dc.flush", err),
			zap.Int("batch", len(batch)), zap.Int("failures", failures))
		if final && failures >= finalAttempts {
			return
		}
		if !final {
			select {
			case <-time.After(f.retry):
			case <-f.stop:
				final = true
			}
			continue
		}
		time.Sleep(f.retry)
	}
}

func mergeReports(a, b []entity.BattleReport) []entity.BattleReport {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]entity.BattleReport, 0, len(a)+len(b))
	for _, r := range append(append([]entity.BattleReport(nil), a...), b...) {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}
