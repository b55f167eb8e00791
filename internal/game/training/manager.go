package training

import (
	"time"

	"Conquest/internal/game/clock"
	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/game/ledger"
	"Conquest/internal/shared/gameconfig"
)

// Ticket 是下单结果。Position 为 0 表示立即开始训练，否则是在等待队列中的位置（从 1 开始）。
type Ticket struct {
	City     entity.CityID        `json:"city_id"`
	Order    entity.TrainingOrder `json:"order"`
	Position int                  `json:"position"`
}

// Completion 一单训练完成。Next 是随之开始的下一单，没有则为 nil。
type Completion struct {
	City         entity.CityID         `json:"city_id"`
	Unit         entity.UnitType       `json:"unit"`
	Quantity     int64                 `json:"quantity"`
	At           time.Time             `json:"at"`
	LevelsGained int                   `json:"player_levels_gained,omitempty"`
	Next         *entity.TrainingOrder `json:"next,omitempty"`
}

// Manager 管理城市的训练队列。调用方负责持有玩家锁和城市锁。
type Manager struct {
	bal    *gameconfig.Balance
	ledger *ledger.Ledger
	timers *clock.Index
}

func NewManager(bal *gameconfig.Balance, l *ledger.Ledger, timers *clock.Index) *Manager {
	return &Manager{bal: bal, ledger: l, timers: timers}
}

// Cost 训练 quantity 个 unit 的总价。
func (m *Manager) Cost(unit entity.UnitType, quantity int64) entity.Resources {
	per := m.bal.Unit(unit).Cost
	var out entity.Resources
	for _, k := range entity.ResourceKinds {
		out.Set(k, per.Get(k)*quantity)
	}
	return out
}

// StartTraining 下单训练。资源在下单时全额扣除；城市空闲则立即开始，否则排进等待队列。
func (m *Manager) StartTraining(p *entity.Player, c *entity.City, unit entity.UnitType, quantity int64, now time.Time) (Ticket, error) {
	if !unit.Valid() {
		return Ticket{}, errs.Invalid("unknown unit type %q", unit)
	}
	if quantity <= 0 {
		return Ticket{}, errs.Invalid("quantity must be positive, got %d", quantity)
	}
	if limit := m.bal.Economy.MaxTrainingBatch; quantity > limit {
		return Ticket{}, errs.Invalid("quantity %d exceeds batch limit %d", quantity, limit)
	}
	if c.TrainingBusy() && len(c.Pending) >= m.bal.Economy.TrainingQueueLimit {
		return Ticket{}, errs.ErrAlreadyTraining.
			WithData("finish_at", c.Training.FinishAt).
			WithData("pending", len(c.Pending))
	}

	cost := m.Cost(unit, quantity)
	if err := m.ledger.CanDebit(p, cost); err != nil {
		return Ticket{}, err
	}
	order := entity.TrainingOrder{Unit: unit, Quantity: quantity, Cost: cost}

	if c.TrainingBusy() {
		if err := m.ledger.Debit(p, cost); err != nil {
			return Ticket{}, err
		}
		c.Pending = append(c.Pending, order)
		return Ticket{City: c.ID, Order: order, Position: len(c.Pending)}, nil
	}

	order.StartAt = now
	order.FinishAt = now.Add(m.bal.TrainingDuration(unit, quantity, c.BuildingLevel(entity.TrainingGround)))
	handle, err := m.timers.Schedule(p.ID, clock.TrainingKey(c.ID), clock.KindTraining, order.FinishAt)
	if err != nil {
		return Ticket{}, errs.Fault("training.StartTraining", err, map[string]any{"city_id": c.ID})
	}
	if err := m.ledger.Debit(p, cost); err != nil {
		m.timers.Cancel(handle)
		return Ticket{}, err
	}
	c.Training = &order
	return Ticket{City: c.ID, Order: order}, nil
}

// CompleteMatured 应用到期的训练计时器：兵力入城、给经验，等待队列的第一单从到期时刻开始。
func (m *Manager) CompleteMatured(p *entity.Player, c *entity.City, tm clock.Timer) (Completion, error) {
	if tm.Kind != clock.KindTraining || tm.Key.City != c.ID || c.Training == nil {
		return Completion{}, errs.Fault("training.CompleteMatured", nil, map[string]any{
			"city_id": c.ID, "handle": tm.Handle,
		})
	}
	done := *c.Training
	c.Army.Set(done.Unit, c.Army.Get(done.Unit)+done.Quantity)
	c.Training = nil

	xp := m.bal.Unit(done.Unit).Experience * done.Quantity
	out := Completion{
		City:         c.ID,
		Unit:         done.Unit,
		Quantity:     done.Quantity,
		At:           tm.FinishAt,
		LevelsGained: p.GainExperience(xp, m.bal.LevelForExperience),
	}

	if len(c.Pending) == 0 {
		return out, nil
	}
	// 计时器登记成功后才出队，失败时订单留在队首。
	next := c.Pending[0]
	next.StartAt = tm.FinishAt
	next.FinishAt = tm.FinishAt.Add(m.bal.TrainingDuration(next.Unit, next.Quantity, c.BuildingLevel(entity.TrainingGround)))
	if _, err := m.timers.Schedule(p.ID, clock.TrainingKey(c.ID), clock.KindTraining, next.FinishAt); err != nil {
		return out, errs.Fault("training.CompleteMatured", err, map[string]any{"city_id": c.ID})
	}
	c.Pending = c.Pending[1:]
	c.Training = &next
	cp := next
	out.Next = &cp
	return out, nil
}

// Restore 进程重启后为进行中的训练重建计时器。
func (m *Manager) Restore(p *entity.Player, c *entity.City) error {
	if c.Training == nil {
		return nil
	}
	if _, err := m.timers.Schedule(p.ID, clock.TrainingKey(c.ID), clock.KindTraining, c.Training.FinishAt); err != nil {
		return errs.Fault("training.Restore", err, map[string]any{"city_id": c.ID})
	}
	return nil
}
