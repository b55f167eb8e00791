package state

import (
	"context"
	"time"

	"go.uber.org/zap"

	"Conquest/internal/game/combat"
	"Conquest/internal/game/construction"
	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/game/training"
)

// StartUpgrade 开始升级城市里的一座建筑。cityID 为 0 表示主城。
func (s *GameState) StartUpgrade(ctx context.Context, pid entity.PlayerID, cityID entity.CityID,
	t entity.BuildingType, now time.Time) (construction.Job, error) {
	if !t.Valid() {
		return construction.Job{}, errs.Invalid("unknown building type %q", t)
	}
	var job construction.Job
	err := s.run(ctx, "start_upgrade", pid, now, func(p *entity.Player, _ *txn) error {
		c, err := s.ownedCity(p, cityID)
		if err != nil {
			return err
		}
		job, err = s.construction.StartUpgrade(p, c, t, now)
		if err != nil {
			return err
		}
		p.Touch(now)
		return nil
	})
	return job, err
}

// CancelUpgrade 取消进行中的升级并按比例退款。
func (s *GameState) CancelUpgrade(ctx context.Context, pid entity.PlayerID, cityID entity.CityID,
	t entity.BuildingType, now time.Time) (entity.Resources, error) {
	if !t.Valid() {
		return entity.Resources{}, errs.Invalid("unknown building type %q", t)
	}
	var refund entity.Resources
	err := s.run(ctx, "cancel_upgrade", pid, now, func(p *entity.Player, _ *txn) error {
		c, err := s.ownedCity(p, cityID)
		if err != nil {
			return err
		}
		refund, err = s.construction.CancelUpgrade(p, c, t)
		if err != nil {
			return err
		}
		p.Touch(now)
		return nil
	})
	return refund, err
}

// StartTraining 在城市里训练 quantity 个 unit。
func (s *GameState) StartTraining(ctx context.Context, pid entity.PlayerID, cityID entity.CityID,
	unit entity.UnitType, quantity int64, now time.Time) (training.Ticket, error) {
	if !unit.Valid() {
		return training.Ticket{}, errs.Invalid("unknown unit type %q", unit)
	}
	if quantity <= 0 {
		return training.Ticket{}, errs.Invalid("quantity must be positive, got %d", quantity)
	}
	var ticket training.Ticket
	err := s.run(ctx, "start_training", pid, now, func(p *entity.Player, _ *txn) error {
		c, err := s.ownedCity(p, cityID)
		if err != nil {
			return err
		}
		ticket, err = s.training.StartTraining(p, c, unit, quantity, now)
		if err != nil {
			return err
		}
		p.Touch(now)
		return nil
	})
	return ticket, err
}

// ResolveAttack 攻方从 sourceCity 派出 force 攻打 targetCity。
// 双方玩家和双方全部城市按全局顺序加锁；双方的修改在同一把锁内写入，并作为一组快照落库。
func (s *GameState) ResolveAttack(ctx context.Context, attackerID entity.PlayerID, sourceCity entity.CityID,
	force entity.Army, targetCity entity.CityID, now time.Time) (res combat.Result, err error) {
	start := time.Now()
	defer func() {
		s.observer.CommandDone("resolve_attack", err, time.Since(start))
		if err == nil {
			s.observer.BattleResolved(res.Report.AttackerWon)
		}
	}()

	if force.IsZero() || force.HasNegative() {
		return res, errs.Invalid("attacking force must be non-empty and non-negative")
	}
	attacker, err := s.player(attackerID)
	if err != nil {
		return res, err
	}
	source, err := s.ownedCity(attacker, sourceCity)
	if err != nil {
		return res, err
	}
	target, err := s.city(targetCity)
	if err != nil {
		return res, err
	}
	if target.Owner == attackerID {
		return res, errs.ErrSelfAttack.WithData("city_id", targetCity)
	}
	defender, err := s.player(target.Owner)
	if err != nil {
		return res, errs.Fault("state.ResolveAttack", err, map[string]any{"city_id": targetCity})
	}

	ls := newLockSet(attacker, defender)
	if err := ls.acquire(); err != nil {
		s.reportFault(ctx, "resolve_attack", err)
		return res, err
	}
	tx := &txn{}
	err = s.settle(attacker, now, tx)
	if err == nil {
		err = s.settle(defender, now, tx)
	}
	if err == nil {
		res, err = s.combat.ResolveAttack(attacker, source, force, defender, target, now)
	}
	if err == nil {
		attacker.Touch(now)
		a := attacker.BuildSnapshot(s.nextVersion())
		d := defender.BuildSnapshot(s.nextVersion())
		a.Reports = []entity.BattleReport{res.Report}
		d.Reports = []entity.BattleReport{res.Report}
		attacker.ClearDirty()
		defender.ClearDirty()
		s.sink.Enqueue(a, d)
	}
	ls.release()

	if err != nil {
		if errs.IsFault(err) {
			s.reportFault(ctx, "resolve_attack", err)
		}
		s.notifier.Notify(tx.events...)
		return res, err
	}

	s.recordReport(res.Report)
	tx.emit(EventBattleResolved, attackerID, now, res)
	tx.emit(EventCityAttacked, defender.ID, now, res.Report)
	s.notifier.Notify(tx.events...)
	s.log.WithContext(ctx).Info("battle resolved",
		zap.String("battle_id", res.Report.ID),
		zap.Int64("attacker", int64(attackerID)),
		zap.Int64("defender", int64(defender.ID)),
		zap.Bool("attacker_won", res.Report.AttackerWon),
		zap.Float64("ratio", res.Report.Ratio),
	)
	return res, nil
}

// Accrue 把玩家结算到 now，返回本次新增的资源。
func (s *GameState) Accrue(ctx context.Context, pid entity.PlayerID, now time.Time) (entity.Resources, error) {
	var delta entity.Resources
	err := s.run(ctx, "accrue", pid, now, func(_ *entity.Player, tx *txn) error {
		delta = tx.accrued
		return nil
	})
	return delta, err
}

// Debit 全有或全无地扣除资源。
func (s *GameState) Debit(ctx context.Context, pid entity.PlayerID, cost entity.Resources, now time.Time) error {
	return s.run(ctx, "debit", pid, now, func(p *entity.Player, _ *txn) error {
		return s.ledger.Debit(p, cost)
	})
}

// Credit 入账，返回受仓库容量限制后实际入账的数量。
func (s *GameState) Credit(ctx context.Context, pid entity.PlayerID, amounts entity.Resources, now time.Time) (entity.Resources, error) {
	if amounts.HasNegative() {
		return entity.Resources{}, errs.Invalid("credit amounts must not be negative")
	}
	var credited entity.Resources
	err := s.run(ctx, "credit", pid, now, func(p *entity.Player, _ *txn) error {
		credited = s.ledger.Credit(p, amounts)
		return nil
	})
	return credited, err
}
