package combat

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/game/ledger"
	"Conquest/internal/shared/gameconfig"
)

// 浮点乘积取整前的容差，避免 0.45×80 这类结果落到 35.999…
const floorEpsilon = 1e-9

// Result 是一次战斗的结果。
type Result struct {
	Report entity.BattleReport `json:"report"`
	// Credited 是攻方实际入账的掠夺，超过仓库容量的部分丢弃。
	Credited      entity.Resources `json:"credited"`
	CooldownUntil time.Time        `json:"cooldown_until"`
	// AttackerLevelsGained / DefenderLevelsGained 是双方因战斗经验提升的等级数。
	AttackerLevelsGained int `json:"attacker_levels_gained,omitempty"`
	DefenderLevelsGained int `json:"defender_levels_gained,omitempty"`
}

// plan 是战斗对双方造成的全部修改，先算好再一次性写入。
type plan struct {
	attackerArmy      entity.Army
	defenderArmy      entity.Army
	attackerResources entity.Resources
	defenderResources entity.Resources
	targetHappiness   int
	attackerXP        int64
	defenderXP        int64
	result            Result
}

type Option func(*Resolver)

// WithRand 注入随机源，启用命中率浮动（Combat.AccuracyVariance > 0 时）。
func WithRand(r *rand.Rand) Option {
	return func(rs *Resolver) { rs.rng = r }
}

// WithIDGenerator 替换战报 id 生成器，默认 uuid。
func WithIDGenerator(fn func() string) Option {
	return func(rs *Resolver) { rs.newID = fn }
}

// Resolver 结算玩家之间的攻城。
type Resolver struct {
	bal    *gameconfig.Balance
	ledger *ledger.Ledger

	rngMu sync.Mutex
	rng   *rand.Rand
	newID func() string
}

func NewResolver(bal *gameconfig.Balance, l *ledger.Ledger, opts ...Option) *Resolver {
	r := &Resolver{bal: bal, ledger: l, newID: uuid.NewString}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveAttack 用 source 城中的 force 攻打 target 城。
// 调用方按全局顺序持有双方玩家锁和两座城的城市锁；任何错误返回时双方状态都没有被修改。
func (r *Resolver) ResolveAttack(attacker *entity.Player, source *entity.City, force entity.Army,
	defender *entity.Player, target *entity.City, now time.Time) (Result, error) {
	pl, err := r.plan(attacker, source, force, defender, target, now)
	if err != nil {
		return Result{}, err
	}
	return r.apply(pl, attacker, source, defender, target, now), nil
}

// AttackPower Σ 数量 × 攻击 × 命中 × 研究乘数，不含命中浮动。
func (r *Resolver) AttackPower(force entity.Army, researchLevel int) float64 {
	return r.attackPower(force, researchLevel, false)
}

func (r *Resolver) attackPower(force entity.Army, researchLevel int, roll bool) float64 {
	mult := r.bal.ResearchMultiplier(researchLevel)
	var power float64
	for _, u := range entity.UnitTypes {
		n := force.Get(u)
		if n <= 0 {
			continue
		}
		spec := r.bal.Unit(u)
		acc := spec.Accuracy
		if roll {
			acc = r.accuracy(acc)
		}
		power += float64(n) * spec.Attack * acc * mult
	}
	return power
}

// DefensePower Σ 数量 × 防御 × 研究乘数 + 城防。
func (r *Resolver) DefensePower(army entity.Army, researchLevel int, defenseRating int64) float64 {
	mult := r.bal.ResearchMultiplier(researchLevel)
	power := float64(defenseRating)
	for _, u := range entity.UnitTypes {
		if n := army.Get(u); n > 0 {
			power += float64(n) * r.bal.Unit(u).Defense * mult
		}
	}
	return power
}

// AverageAccuracy 按数量加权的平均命中率，展示用。
func (r *Resolver) AverageAccuracy(army entity.Army) float64 {
	total := army.Total()
	if total <= 0 {
		return 0
	}
	var sum float64
	for _, u := range entity.UnitTypes {
		sum += float64(army.Get(u)) * r.bal.Unit(u).Accuracy
	}
	return sum / float64(total)
}

func (r *Resolver) plan(attacker *entity.Player, source *entity.City, force entity.Army,
	defender *entity.Player, target *entity.City, now time.Time) (plan, error) {
	if force.IsZero() || force.HasNegative() {
		return plan{}, errs.Invalid("attacking force must be non-empty and non-negative")
	}
	if source.Owner != attacker.ID {
		return plan{}, errs.ErrNotCityOwner.WithData("city_id", source.ID)
	}
	if target.Owner == attacker.ID || defender.ID == attacker.ID {
		return plan{}, errs.ErrSelfAttack.WithData("city_id", target.ID)
	}
	if target.Owner != defender.ID {
		return plan{}, errs.Fault("combat.plan", nil, map[string]any{
			"city_id": target.ID, "owner": target.Owner, "defender": defender.ID,
		})
	}
	interval := r.bal.Combat.MinAttackInterval
	if !target.LastAttackAt.IsZero() && now.Sub(target.LastAttackAt) < interval {
		return plan{}, errs.ErrTargetOnCooldown.
			WithData("city_id", target.ID).
			WithData("until", target.LastAttackAt.Add(interval))
	}
	if !source.Army.Covers(force) {
		return plan{}, errs.ErrInsufficientForces.
			WithData("available", source.Army).
			WithData("requested", force)
	}

	atk := r.attackPower(force, attacker.ResearchLevel, true)
	def := r.DefensePower(target.Army, defender.ResearchLevel, target.DefenseRating)
	var ratio float64
	if atk+def > 0 {
		ratio = atk / (atk + def)
	}
	won := ratio > 0.5

	c := r.bal.Combat
	atkFrac := (1 - ratio) * c.CasualtyRate
	defFrac := ratio * c.CasualtyRate
	if won {
		defFrac *= c.LoserPenalty
	} else {
		atkFrac *= c.LoserPenalty
	}
	atkLoss := losses(force, atkFrac)
	defLoss := losses(target.Army, defFrac)

	pl := plan{
		attackerArmy:      source.Army.Sub(atkLoss),
		defenderArmy:      target.Army.Sub(defLoss),
		attackerResources: attacker.Resources,
		defenderResources: defender.Resources,
		targetHappiness:   target.Happiness,
		attackerXP:        c.ExperiencePerKill * defLoss.Total(),
		defenderXP:        c.ExperiencePerKill * atkLoss.Total(),
	}

	var plunder, credited entity.Resources
	var cooldownUntil time.Time
	if !target.LastAttackAt.IsZero() {
		cooldownUntil = target.LastAttackAt.Add(interval)
	}
	if won {
		plunder = r.plunder(defender.Resources, force.Sub(atkLoss))
		capacity := r.ledger.Capacity(attacker)
		for _, k := range entity.ResourceKinds {
			amt := plunder.Get(k)
			pl.defenderResources.Set(k, pl.defenderResources.Get(k)-amt)
			room := max(capacity.Get(k)-pl.attackerResources.Get(k), 0)
			add := min(amt, room)
			pl.attackerResources.Set(k, pl.attackerResources.Get(k)+add)
			credited.Set(k, add)
		}
		pl.targetHappiness = target.Happiness - c.HappinessLoss
		cooldownUntil = now.Add(interval)
	}

	pl.result = Result{
		Report: entity.BattleReport{
			ID:             r.newID(),
			Attacker:       attacker.ID,
			Defender:       defender.ID,
			SourceCity:     source.ID,
			TargetCity:     target.ID,
			AttackerWon:    won,
			Ratio:          ratio,
			AttackerPower:  atk,
			DefenderPower:  def,
			AttackerLosses: atkLoss,
			DefenderLosses: defLoss,
			Plunder:        plunder,
			At:             now,
		},
		Credited:      credited,
		CooldownUntil: cooldownUntil,
	}
	return pl, nil
}

func (r *Resolver) apply(pl plan, attacker *entity.Player, source *entity.City,
	defender *entity.Player, target *entity.City, now time.Time) Result {
	source.Army = pl.attackerArmy
	target.Army = pl.defenderArmy
	attacker.Resources = pl.attackerResources
	defender.Resources = pl.defenderResources

	attacker.Stats.Battles++
	defender.Stats.Battles++
	if pl.result.Report.AttackerWon {
		attacker.Stats.Wins++
		defender.Stats.Losses++
		target.SetHappiness(pl.targetHappiness)
		target.HappinessAt = now
		target.LastAttackAt = now
	} else {
		attacker.Stats.Losses++
		defender.Stats.Wins++
	}
	pl.result.AttackerLevelsGained = attacker.GainExperience(pl.attackerXP, r.bal.LevelForExperience)
	pl.result.DefenderLevelsGained = defender.GainExperience(pl.defenderXP, r.bal.LevelForExperience)
	return pl.result
}

// plunder 从守方库存按比例掠夺非法力资源，总量不超过存活部队的负重。
func (r *Resolver) plunder(stock entity.Resources, survivors entity.Army) entity.Resources {
	var carry int64
	for _, u := range entity.UnitTypes {
		carry += survivors.Get(u) * r.bal.Unit(u).Carry
	}
	var want entity.Resources
	for _, k := range entity.ResourceKinds {
		if k == entity.Mana {
			continue
		}
		want.Set(k, int64(math.Floor(float64(max(stock.Get(k), 0))*r.bal.Combat.PlunderRate+floorEpsilon)))
	}
	total := want.Total()
	if total <= carry || total == 0 {
		return want
	}
	var out entity.Resources
	for _, k := range entity.ResourceKinds {
		out.Set(k, want.Get(k)*carry/total)
	}
	return out
}

// accuracy 配置了浮动且注入了随机源时在 ±variance 内浮动，结果夹紧到 (0, 1]。
func (r *Resolver) accuracy(base float64) float64 {
	v := r.bal.Combat.AccuracyVariance
	if r.rng == nil || v <= 0 {
		return base
	}
	r.rngMu.Lock()
	roll := r.rng.Float64()*2 - 1
	r.rngMu.Unlock()
	return min(max(base*(1+roll*v), 0.01), 1)
}

func losses(army entity.Army, frac float64) entity.Army {
	frac = min(max(frac, 0), 1)
	var out entity.Army
	for _, u := range entity.UnitTypes {
		n := army.Get(u)
		if n <= 0 {
			continue
		}
		out.Set(u, min(int64(math.Floor(float64(n)*frac+floorEpsilon)), n))
	}
	return out
}
