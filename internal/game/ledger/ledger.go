package ledger

import (
	"time"

	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/shared/gameconfig"
)

// carryDenominator: 产出按 速率(每分钟) × 幸福度(%) × 毫秒 累计，除以它得到整数资源。
// 余数存进 Player.AccrualCarry，频繁结算不会丢产出。
const carryDenominator = 100 * int64(time.Minute/time.Millisecond)

// Ledger 负责资源的产出结算、扣除和入账。
// 所有方法都作用于调用方已加锁的实体，本身不持有状态。
type Ledger struct {
	bal *gameconfig.Balance
}

func New(bal *gameconfig.Balance) *Ledger {
	return &Ledger{bal: bal}
}

// Accrue 结算上次结算点到 now 的产出，返回实际入账的数量。
// now 不晚于结算点时什么都不做，所以同一个 now 重复调用结果不变。
// 超过仓库容量的部分丢弃，已超过容量的库存不会被削减。
func (l *Ledger) Accrue(p *entity.Player, now time.Time) entity.Resources {
	var delta entity.Resources
	if p.AccruedAt.IsZero() {
		p.AccruedAt = now
		return delta
	}
	if !now.After(p.AccruedAt) {
		return delta
	}
	elapsed := now.Sub(p.AccruedAt).Milliseconds()
	if elapsed <= 0 {
		return delta
	}

	from := p.AccruedAt
	to := from.Add(time.Duration(elapsed) * time.Millisecond)
	var numer entity.Resources
	for _, c := range p.Cities {
		rate := l.cityRate(c)
		hm := l.happinessMillis(c, from, to)
		for _, k := range entity.ResourceKinds {
			numer.Set(k, numer.Get(k)+rate.Get(k)*hm)
		}
	}

	capacity := l.Capacity(p)
	for _, k := range entity.ResourceKinds {
		total := p.AccrualCarry.Get(k) + numer.Get(k)
		whole, carry := total/carryDenominator, total%carryDenominator
		room := max(capacity.Get(k)-p.Resources.Get(k), 0)
		add := min(whole, room)
		if add < whole {
			carry = 0
		}
		p.Resources.Set(k, p.Resources.Get(k)+add)
		p.AccrualCarry.Set(k, carry)
		delta.Set(k, add)
	}
	p.AccruedAt = to

	for _, c := range p.Cities {
		l.recoverHappiness(c, to)
	}
	return delta
}

// Debit 全部资源都够才扣，否则一项都不动。
func (l *Ledger) Debit(p *entity.Player, cost entity.Resources) error {
	if err := l.CanDebit(p, cost); err != nil {
		return err
	}
	p.Resources = p.Resources.Sub(cost)
	return nil
}

// CanDebit 与 Debit 的判定相同但不修改库存，供先校验再提交的流程使用。
func (l *Ledger) CanDebit(p *entity.Player, cost entity.Resources) error {
	if cost.HasNegative() {
		return errs.Invalid("cost must not be negative: %+v", cost)
	}
	if !p.Resources.Covers(cost) {
		return errs.ErrInsufficientResources.
			WithData("required", cost).
			WithData("shortfall", p.Resources.Shortfall(cost))
	}
	return nil
}

// Credit 入账并返回实际入账量；超过容量的部分丢弃，负数按 0 处理。
func (l *Ledger) Credit(p *entity.Player, amounts entity.Resources) entity.Resources {
	capacity := l.Capacity(p)
	var credited entity.Resources
	for _, k := range entity.ResourceKinds {
		amt := amounts.Get(k)
		if amt <= 0 {
			continue
		}
		room := max(capacity.Get(k)-p.Resources.Get(k), 0)
		add := min(amt, room)
		p.Resources.Set(k, p.Resources.Get(k)+add)
		credited.Set(k, add)
	}
	return credited
}

// Capacity 仓库容量：每座城 基础容量 + Σ 建筑等级 × 每级容量，各资源相同。
func (l *Ledger) Capacity(p *entity.Player) entity.Resources {
	var perKind int64
	for _, c := range p.Cities {
		perKind += l.bal.Economy.BaseStorage
		for _, t := range entity.BuildingTypes {
			perKind += l.bal.Building(t).StoragePerLevel * int64(c.BuildingLevel(t))
		}
	}
	var out entity.Resources
	for _, k := range entity.ResourceKinds {
		out.Set(k, perKind)
	}
	return out
}

// Room 资源 k 距仓库容量还差多少，已超容量时为 0。
func (l *Ledger) Room(p *entity.Player, k entity.ResourceKind) int64 {
	return max(l.Capacity(p).Get(k)-p.Resources.Get(k), 0)
}

// ProductionPerMinute 当前每分钟产出（已计幸福度，向下取整），展示用。
func (l *Ledger) ProductionPerMinute(p *entity.Player) entity.Resources {
	var out entity.Resources
	for _, c := range p.Cities {
		out = out.Add(l.CityProductionPerMinute(c))
	}
	return out
}

func (l *Ledger) CityProductionPerMinute(c *entity.City) entity.Resources {
	rate := l.cityRate(c)
	var out entity.Resources
	for _, k := range entity.ResourceKinds {
		out.Set(k, rate.Get(k)*int64(c.Happiness)/100)
	}
	return out
}

// Quote 市场兑换：gold 金币可换多少 to。不支持的资源返回 0。
func (l *Ledger) Quote(to entity.ResourceKind, gold int64) int64 {
	rate, ok := l.bal.Economy.ExchangeRates[to]
	if !ok || rate <= 0 || gold <= 0 {
		return 0
	}
	return int64(float64(gold) * rate)
}

// cityRate 不计幸福度的每分钟产出：Σ 建筑每级产出 × 等级。
func (l *Ledger) cityRate(c *entity.City) entity.Resources {
	var rate entity.Resources
	for _, t := range entity.BuildingTypes {
		prod := l.bal.Building(t).Production
		if prod.IsZero() {
			continue
		}
		lv := int64(c.BuildingLevel(t))
		for _, k := range entity.ResourceKinds {
			rate.Set(k, rate.Get(k)+prod.Get(k)*lv)
		}
	}
	return rate
}

// happinessMillis 是 [from, to) 内 幸福度 × 毫秒 的累计，区间在每次幸福度恢复处切开，
// 结果只取决于区间端点，与中间结算了几次无关。毫秒数按相对 from 的偏移取整，各段之和等于整段。
func (l *Ledger) happinessMillis(c *entity.City, from, to time.Time) int64 {
	h := c.Happiness
	every := l.bal.Economy.HappinessRecoveryEvery
	baseline := l.bal.Economy.HappinessBaseline
	total := to.Sub(from).Milliseconds()
	if c.HappinessAt.IsZero() || h >= baseline || every <= 0 {
		return int64(h) * total
	}

	next := c.HappinessAt.Add(every)
	if !next.After(from) {
		steps := int(from.Sub(c.HappinessAt) / every)
		h = min(h+steps, baseline)
		next = c.HappinessAt.Add(time.Duration(steps+1) * every)
	}
	var sum, done int64
	for done < total {
		if h >= baseline || !next.Before(to) {
			sum += int64(h) * (total - done)
			break
		}
		upTo := next.Sub(from).Milliseconds()
		sum += int64(h) * (upTo - done)
		done = upTo
		h++
		next = next.Add(every)
	}
	return sum
}

// recoverHappiness 幸福度每 HappinessRecoveryEvery 恢复 1 点，直到基线；高于基线不衰减。
func (l *Ledger) recoverHappiness(c *entity.City, now time.Time) {
	every := l.bal.Economy.HappinessRecoveryEvery
	baseline := l.bal.Economy.HappinessBaseline
	if c.HappinessAt.IsZero() || c.Happiness >= baseline || every <= 0 {
		c.HappinessAt = now
		return
	}
	if !now.After(c.HappinessAt) {
		return
	}
	steps := int(now.Sub(c.HappinessAt) / every)
	if steps <= 0 {
		return
	}
	c.SetHappiness(min(c.Happiness+steps, baseline))
	c.HappinessAt = c.HappinessAt.Add(time.Duration(steps) * every)
}
