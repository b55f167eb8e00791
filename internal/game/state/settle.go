package state

import (
	"context"
	"time"

	"go.uber.org/zap"

	"Conquest/internal/game/clock"
	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/modules/kit/logx"
)

// txn 收集一条命令在锁内产生的副作用，释放锁后统一发出。
type txn struct {
	events  []Event
	accrued entity.Resources
}

func (t *txn) emit(kind EventKind, pid entity.PlayerID, at time.Time, payload any) {
	t.events = append(t.events, Event{Kind: kind, PlayerID: pid, At: at, Payload: payload})
}

// settle 把玩家推进到 now：按顺序应用到期计时器，每个计时器之前先结算到它的完成时刻，最后结算到 now。
// 调用方持有玩家及其全部城市的锁。单个计时器出错不影响后续计时器，返回第一个错误。
func (s *GameState) settle(p *entity.Player, now time.Time, tx *txn) error {
	var first error
	for {
		tm, ok := s.timers.PopMaturedFor(p.ID, now)
		if !ok {
			break
		}
		tx.accrued = tx.accrued.Add(s.ledger.Accrue(p, tm.FinishAt))
		if err := s.complete(p, tm, tx); err != nil && first == nil {
			first = err
		}
		s.observer.TimerApplied(tm.Kind.String())
	}
	tx.accrued = tx.accrued.Add(s.ledger.Accrue(p, now))
	p.MarkDirty()
	return first
}

func (s *GameState) complete(p *entity.Player, tm clock.Timer, tx *txn) error {
	c := p.City(tm.Key.City)
	if c == nil {
		return errs.Fault("state.complete", nil, map[string]any{
			"player_id": p.ID, "city_id": tm.Key.City, "handle": tm.Handle,
		})
	}
	switch tm.Kind {
	case clock.KindConstruction:
		done, err := s.construction.CompleteMatured(p, c, tm)
		if err != nil {
			return err
		}
		tx.emit(EventConstructionCompleted, p.ID, done.At, done)
		if done.LevelsGained > 0 {
			tx.emit(EventLevelUp, p.ID, done.At, map[string]int{"level": p.Level})
		}
	case clock.KindTraining:
		done, err := s.training.CompleteMatured(p, c, tm)
		if err != nil {
			return err
		}
		tx.emit(EventTrainingCompleted, p.ID, done.At, done)
		if done.Next != nil {
			tx.emit(EventTrainingStarted, p.ID, done.At, *done.Next)
		}
		if done.LevelsGained > 0 {
			tx.emit(EventLevelUp, p.ID, done.At, map[string]int{"level": p.Level})
		}
	default:
		return errs.Fault("state.complete", nil, map[string]any{"kind": tm.Kind.String(), "handle": tm.Handle})
	}
	return nil
}

// Sweep 推进所有有到期计时器的玩家，返回处理的玩家数。由清扫 actor 周期调用。
func (s *GameState) Sweep(ctx context.Context, now time.Time) int {
	owners := s.timers.DueOwners(now)
	settled := 0
	for _, id := range owners {
		p, err := s.player(id)
		if err != nil {
			// 计时器的主人不存在，取出丢弃以免每轮都撞上。
			stray := s.timers.PollMaturedFor(id, now)
			s.reportFault(ctx, "sweep", errs.Fault("state.Sweep", err, map[string]any{
				"player_id": id, "timers": len(stray),
			}))
			continue
		}
		tx := &txn{}
		ls := newLockSet(p)
		if err := ls.acquire(); err != nil {
			s.reportFault(ctx, "sweep", err)
			continue
		}
		err = s.settle(p, now, tx)
		ls.release()

		s.notifier.Notify(tx.events...)
		if err != nil {
			s.reportFault(ctx, "sweep", err)
		}
		settled++
	}
	return settled
}

// FlushDirty 为所有有未落库修改的玩家生成快照并交给 sink，返回快照数量。
func (s *GameState) FlushDirty(ctx context.Context) int {
	s.mu.RLock()
	players := make([]*entity.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p)
	}
	s.mu.RUnlock()

	var snaps []entity.PlayerSnapshot
	for _, p := range players {
		ls := newLockSet(p)
		if err := ls.acquire(); err != nil {
			s.reportFault(ctx, "flush", err)
			continue
		}
		if p.Dirty() {
			snaps = append(snaps, p.BuildSnapshot(s.nextVersion()))
			p.ClearDirty()
		}
		ls.release()
	}
	if len(snaps) > 0 {
		s.sink.Enqueue(snaps...)
		s.log.WithContext(ctx).Debug("dirty players flushed", zap.Int("count", len(snaps)))
	}
	return len(snaps)
}

// Snapshot 当前状态的深拷贝，不推进时间。
func (s *GameState) Snapshot(id entity.PlayerID) (entity.PlayerSnapshot, error) {
	p, err := s.player(id)
	if err != nil {
		return entity.PlayerSnapshot{}, err
	}
	ls := newLockSet(p)
	if err := ls.acquire(); err != nil {
		return entity.PlayerSnapshot{}, err
	}
	defer ls.release()
	return p.BuildSnapshot(s.version.Load()), nil
}

// run 是单玩家命令的公共流程：加锁、结算、执行、解锁、发事件、记统计。
func (s *GameState) run(ctx context.Context, command string, pid entity.PlayerID, now time.Time,
	fn func(p *entity.Player, tx *txn) error) (err error) {
	start := time.Now()
	defer func() {
		s.observer.CommandDone(command, err, time.Since(start))
		if errs.IsFault(err) {
			s.reportFault(ctx, command, err)
		}
	}()

	p, err := s.player(pid)
	if err != nil {
		return err
	}
	ls := newLockSet(p)
	if err := ls.acquire(); err != nil {
		return err
	}
	tx := &txn{}
	err = s.settle(p, now, tx)
	if err == nil {
		err = fn(p, tx)
	}
	ls.release()

	s.notifier.Notify(tx.events...)
	return err
}

func (s *GameState) reportFault(ctx context.Context, action string, err error) {
	logx.ReportSysErrorWithLoggerContext(ctx, s.log, logx.NewSysLog("game."+action, err))
}
