package state

import (
	"context"
	"time"

	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
)

type CollectResult struct {
	Accrued     entity.Resources `json:"accrued"`
	Bonus       entity.Resources `json:"bonus"`
	NextBonusAt time.Time        `json:"next_bonus_at"`
}

type RewardResult struct {
	Reward      entity.Resources `json:"reward"`
	Credited    entity.Resources `json:"credited"`
	Streak      int              `json:"streak"`
	NextClaimAt time.Time        `json:"next_claim_at"`
}

type ExchangeResult struct {
	Gold     int64               `json:"gold"`
	To       entity.ResourceKind `json:"to"`
	Quoted   int64               `json:"quoted"`
	Credited int64               `json:"credited"`
}

// CollectResources 手动收取：结算产出，冷却结束时额外发一份收取奖励。
func (s *GameState) CollectResources(ctx context.Context, pid entity.PlayerID, now time.Time) (CollectResult, error) {
	var out CollectResult
	err := s.run(ctx, "collect_resources", pid, now, func(p *entity.Player, tx *txn) error {
		out.Accrued = tx.accrued
		cooldown := s.bal.Rewards.CollectCooldown
		if p.LastCollectAt.IsZero() || now.Sub(p.LastCollectAt) >= cooldown {
			out.Bonus = s.ledger.Credit(p, s.bal.Rewards.CollectBonus)
			p.LastCollectAt = now
		}
		out.NextBonusAt = p.LastCollectAt.Add(cooldown)
		p.Touch(now)
		return nil
	})
	return out, err
}

// ClaimDailyReward 每个奖励日（按配置时区划分）领取一次，连续领取有递增加成。
func (s *GameState) ClaimDailyReward(ctx context.Context, pid entity.PlayerID, now time.Time) (RewardResult, error) {
	loc := s.bal.Location()
	var out RewardResult
	err := s.run(ctx, "claim_daily_reward", pid, now, func(p *entity.Player, _ *txn) error {
		today := rewardDay(now, loc)
		streak := 1
		if !p.LastDailyClaimAt.IsZero() {
			last := rewardDay(p.LastDailyClaimAt, loc)
			if !today.After(last) {
				return errs.ErrAlreadyClaimedToday.WithData("next_claim_at", last.AddDate(0, 0, 1))
			}
			if last.AddDate(0, 0, 1).Equal(today) {
				streak = p.DailyStreak + 1
			}
		}
		if capDays := s.bal.Rewards.DailyStreakCap; capDays > 0 {
			streak = min(streak, capDays)
		}

		out.Streak = streak
		out.Reward = s.bal.Rewards.Daily.Scale(1 + s.bal.Rewards.DailyStreakBonus*float64(streak-1))
		out.Credited = s.ledger.Credit(p, out.Reward)
		out.NextClaimAt = today.AddDate(0, 0, 1)
		p.LastDailyClaimAt = now
		p.DailyStreak = streak
		p.Touch(now)
		return nil
	})
	return out, err
}

// Exchange 在市场上用金币按固定汇率换其他资源。目标资源放不下全部换得数量时拒绝，金币不动。
func (s *GameState) Exchange(ctx context.Context, pid entity.PlayerID, to entity.ResourceKind, gold int64, now time.Time) (ExchangeResult, error) {
	if gold <= 0 {
		return ExchangeResult{}, errs.Invalid("gold amount must be positive, got %d", gold)
	}
	if !to.Valid() || to == entity.Gold {
		return ExchangeResult{}, errs.Invalid("cannot exchange gold for %q", to)
	}
	quoted := s.ledger.Quote(to, gold)
	if quoted <= 0 {
		return ExchangeResult{}, errs.Invalid("%q is not traded on the market", to)
	}
	out := ExchangeResult{Gold: gold, To: to, Quoted: quoted}
	err := s.run(ctx, "exchange", pid, now, func(p *entity.Player, _ *txn) error {
		cost := entity.Resources{Gold: gold}
		if err := s.ledger.CanDebit(p, cost); err != nil {
			return err
		}
		if room := s.ledger.Room(p, to); room < quoted {
			return errs.ErrStorageFull.
				WithData("resource", to).
				WithData("room", room).
				WithData("quoted", quoted)
		}
		if err := s.ledger.Debit(p, cost); err != nil {
			return err
		}
		var amounts entity.Resources
		amounts.Set(to, quoted)
		out.Credited = s.ledger.Credit(p, amounts).Get(to)
		p.Touch(now)
		return nil
	})
	return out, err
}

// rewardDay 是 t 在 loc 时区的当天零点。
func rewardDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
