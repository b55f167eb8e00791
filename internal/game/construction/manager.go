package construction

import (
	"time"

	"Conquest/internal/game/clock"
	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/game/ledger"
	"Conquest/internal/shared/gameconfig"
)

// Job 是一次已开始的升级。
type Job struct {
	City        entity.CityID       `json:"city_id"`
	Building    entity.BuildingType `json:"building"`
	TargetLevel int                 `json:"target_level"`
	Cost        entity.Resources    `json:"cost"`
	StartAt     time.Time           `json:"start_at"`
	FinishAt    time.Time           `json:"finish_at"`
}

// Completion 是一次升级完成后的结果，用于推送和日志。
type Completion struct {
	City         entity.CityID       `json:"city_id"`
	Building     entity.BuildingType `json:"building"`
	Level        int                 `json:"level"`
	At           time.Time           `json:"at"`
	LevelsGained int                 `json:"player_levels_gained,omitempty"`
}

// Manager 管理城市建筑升级。调用方负责持有玩家锁和城市锁。
type Manager struct {
	bal    *gameconfig.Balance
	ledger *ledger.Ledger
	timers *clock.Index
}

func NewManager(bal *gameconfig.Balance, l *ledger.Ledger, timers *clock.Index) *Manager {
	return &Manager{bal: bal, ledger: l, timers: timers}
}

// StartUpgrade 开始把建筑升一级。
// 判定顺序：校验 → 已在建 → 队列满 → 满级 → 资源不足；任何失败都不修改状态。
func (m *Manager) StartUpgrade(p *entity.Player, c *entity.City, t entity.BuildingType, now time.Time) (Job, error) {
	if !t.Valid() {
		return Job{}, errs.Invalid("unknown building type %q", t)
	}
	b := c.Building(t)
	if b == nil {
		return Job{}, errs.Fault("construction.StartUpgrade", nil, map[string]any{"city_id": c.ID, "building": t})
	}
	if b.UnderConstruction() {
		return Job{}, errs.ErrAlreadyUnderConstruction.WithData("building", t).WithData("finish_at", b.FinishAt)
	}
	if c.UnderConstructionCount() >= m.bal.Economy.MaxConstructionQueue {
		return Job{}, errs.ErrQueueFull.WithData("limit", m.bal.Economy.MaxConstructionQueue)
	}
	if b.Level >= m.bal.Economy.MaxBuildingLevel {
		return Job{}, errs.ErrMaxLevelReached.WithData("level", b.Level)
	}

	cost := m.bal.UpgradeCost(t, b.Level)
	if err := m.ledger.CanDebit(p, cost); err != nil {
		return Job{}, err
	}
	finishAt := now.Add(m.bal.UpgradeDuration(t, b.Level))

	handle, err := m.timers.Schedule(p.ID, clock.ConstructionKey(c.ID, t), clock.KindConstruction, finishAt)
	if err != nil {
		// 建筑空闲但计时器还在，说明两者已经不一致。
		return Job{}, errs.Fault("construction.StartUpgrade", err, map[string]any{"city_id": c.ID, "building": t})
	}
	if err := m.ledger.Debit(p, cost); err != nil {
		m.timers.Cancel(handle)
		return Job{}, err
	}
	b.BeginUpgrade(now, finishAt, cost)

	return Job{
		City:        c.ID,
		Building:    t,
		TargetLevel: b.Level + 1,
		Cost:        cost,
		StartAt:     now,
		FinishAt:    finishAt,
	}, nil
}

// CompleteMatured 应用一个到期的建造计时器：等级 +1、结算等级效果、回到空闲。
func (m *Manager) CompleteMatured(p *entity.Player, c *entity.City, tm clock.Timer) (Completion, error) {
	t := entity.BuildingType(tm.Key.Slot)
	b := c.Building(t)
	if tm.Kind != clock.KindConstruction || b == nil || !b.UnderConstruction() {
		return Completion{}, errs.Fault("construction.CompleteMatured", nil, map[string]any{
			"city_id": c.ID, "slot": tm.Key.Slot, "handle": tm.Handle,
		})
	}

	b.FinishUpgrade()
	m.applyEffects(c, b)
	gained := p.GainExperience(m.bal.Progression.ConstructionExperience*int64(b.Level), m.bal.LevelForExperience)

	return Completion{City: c.ID, Building: t, Level: b.Level, At: tm.FinishAt, LevelsGained: gained}, nil
}

// CancelUpgrade 取消进行中的升级，按比例退还已付资源（退款受仓库容量限制）。
func (m *Manager) CancelUpgrade(p *entity.Player, c *entity.City, t entity.BuildingType) (entity.Resources, error) {
	if !t.Valid() {
		return entity.Resources{}, errs.Invalid("unknown building type %q", t)
	}
	b := c.Building(t)
	if !b.UnderConstruction() {
		return entity.Resources{}, errs.ErrNotUnderConstruction.WithData("building", t)
	}
	tm, ok := m.timers.Lookup(clock.ConstructionKey(c.ID, t), clock.KindConstruction)
	if !ok {
		return entity.Resources{}, errs.Fault("construction.CancelUpgrade", nil, map[string]any{"city_id": c.ID, "building": t})
	}
	m.timers.Cancel(tm.Handle)

	refund := m.ledger.Credit(p, b.PaidCost.Floor(m.bal.Economy.CancelRefundRate))
	b.AbortUpgrade()
	return refund, nil
}

// Restore 进程重启后按持久化的完成时间重建计时器。
func (m *Manager) Restore(p *entity.Player, c *entity.City) error {
	for _, t := range entity.BuildingTypes {
		b := c.Building(t)
		if !b.UnderConstruction() {
			continue
		}
		if _, err := m.timers.Schedule(p.ID, clock.ConstructionKey(c.ID, t), clock.KindConstruction, b.FinishAt); err != nil {
			return errs.Fault("construction.Restore", err, map[string]any{"city_id": c.ID, "building": t})
		}
	}
	return nil
}

func (m *Manager) applyEffects(c *entity.City, b *entity.Building) {
	spec := m.bal.Building(b.Type)
	if b.Type == entity.TownHall {
		c.Level = b.Level
	}
	if spec.PopulationPerLevel > 0 {
		c.MaxPopulation += spec.PopulationPerLevel
		c.Population = min(c.Population+spec.PopulationPerLevel, c.MaxPopulation)
	}
	if spec.DefensePerLevel > 0 {
		c.DefenseRating += spec.DefensePerLevel
	}
}
