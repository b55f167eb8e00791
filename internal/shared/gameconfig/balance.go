package gameconfig

import (
	"fmt"
	"math"
	"time"

	"Conquest/internal/game/entity"
)

// BuildingSpec 是一种建筑的升级曲线和等级效果。
type BuildingSpec struct {
	BaseCost       entity.Resources `mapstructure:"base_cost"`
	CostGrowth     float64          `mapstructure:"cost_growth"`
	BaseDuration   time.Duration    `mapstructure:"base_duration"`
	DurationGrowth float64          `mapstructure:"duration_growth"`
	// Production 是每级每分钟产出。
	Production            entity.Resources `mapstructure:"production"`
	StoragePerLevel       int64            `mapstructure:"storage_per_level"`
	DefensePerLevel       int64            `mapstructure:"defense_per_level"`
	PopulationPerLevel    int64            `mapstructure:"population_per_level"`
	TrainingSpeedPerLevel float64          `mapstructure:"training_speed_per_level"`
}

// UnitSpec 是兵种基础属性，研究等级作为乘数在战斗时叠加。
type UnitSpec struct {
	Cost       entity.Resources `mapstructure:"cost"`
	TrainTime  time.Duration    `mapstructure:"train_time"`
	Attack     float64          `mapstructure:"attack"`
	Defense    float64          `mapstructure:"defense"`
	Accuracy   float64          `mapstructure:"accuracy"`
	Carry      int64            `mapstructure:"carry"`
	Experience int64            `mapstructure:"experience"`
}

type Economy struct {
	StartingResources      entity.Resources `mapstructure:"starting_resources"`
	BaseStorage            int64            `mapstructure:"base_storage"`
	HappinessBaseline      int              `mapstructure:"happiness_baseline"`
	HappinessRecoveryEvery time.Duration    `mapstructure:"happiness_recovery_every"`
	MaxConstructionQueue   int              `mapstructure:"max_construction_queue"`
	TrainingQueueLimit     int              `mapstructure:"training_queue_limit"`
	MaxTrainingBatch       int64            `mapstructure:"max_training_batch"`
	MaxBuildingLevel       int              `mapstructure:"max_building_level"`
	CancelRefundRate       float64          `mapstructure:"cancel_refund_rate"`
	// ExchangeRates 是 1 金币可兑换的各资源数量。
	ExchangeRates map[entity.ResourceKind]float64 `mapstructure:"exchange_rates"`
}

type Combat struct {
	MinAttackInterval     time.Duration `mapstructure:"min_attack_interval"`
	CasualtyRate          float64       `mapstructure:"casualty_rate"`
	LoserPenalty          float64       `mapstructure:"loser_penalty"`
	PlunderRate           float64       `mapstructure:"plunder_rate"`
	HappinessLoss         int           `mapstructure:"happiness_loss"`
	AccuracyVariance      float64       `mapstructure:"accuracy_variance"`
	ResearchBonusPerLevel float64       `mapstructure:"research_bonus_per_level"`
	ExperiencePerKill     int64         `mapstructure:"experience_per_kill"`
}

type Rewards struct {
	CollectBonus     entity.Resources `mapstructure:"collect_bonus"`
	CollectCooldown  time.Duration    `mapstructure:"collect_cooldown"`
	Daily            entity.Resources `mapstructure:"daily"`
	DailyStreakBonus float64          `mapstructure:"daily_streak_bonus"`
	DailyStreakCap   int              `mapstructure:"daily_streak_cap"`
	Timezone         string           `mapstructure:"timezone"`
}

type World struct {
	Width          int         `mapstructure:"width"`
	Height         int         `mapstructure:"height"`
	CityPopulation int64       `mapstructure:"city_population"`
	CityHappiness  int         `mapstructure:"city_happiness"`
	CityDefense    int64       `mapstructure:"city_defense"`
	StartingArmy   entity.Army `mapstructure:"starting_army"`
}

type Rank struct {
	MinLevel int    `mapstructure:"min_level"`
	Name     string `mapstructure:"name"`
}

type Progression struct {
	ExperienceBase         int64  `mapstructure:"experience_base"`
	ConstructionExperience int64  `mapstructure:"construction_experience"`
	MaxLevel               int    `mapstructure:"max_level"`
	Ranks                  []Rank `mapstructure:"ranks"`
}

// Balance 是全部数值配置。
type Balance struct {
	Economy     Economy                                 `mapstructure:"economy"`
	Buildings   map[entity.BuildingType]BuildingSpec    `mapstructure:"buildings"`
	Units       map[entity.UnitType]UnitSpec            `mapstructure:"units"`
	Combat      Combat                                  `mapstructure:"combat"`
	Rewards     Rewards                                 `mapstructure:"rewards"`
	World       World                                   `mapstructure:"world"`
	Progression Progression                             `mapstructure:"progression"`

	loc *time.Location
}

func (b *Balance) Building(t entity.BuildingType) BuildingSpec {
	return b.Buildings[t]
}

func (b *Balance) Unit(u entity.UnitType) UnitSpec {
	return b.Units[u]
}

// UpgradeCost 是从 fromLevel 升到 fromLevel+1 的花费：base × growth^(fromLevel-1)。
func (b *Balance) UpgradeCost(t entity.BuildingType, fromLevel int) entity.Resources {
	spec := b.Building(t)
	return spec.BaseCost.Scale(math.Pow(spec.CostGrowth, float64(max(fromLevel-1, 0))))
}

// UpgradeDuration 同上，至少 1 秒，保证完成时间严格晚于开始时间。
func (b *Balance) UpgradeDuration(t entity.BuildingType, fromLevel int) time.Duration {
	spec := b.Building(t)
	d := time.Duration(float64(spec.BaseDuration) * math.Pow(spec.DurationGrowth, float64(max(fromLevel-1, 0))))
	return max(d.Round(time.Second), time.Second)
}

// TrainingDuration 单兵时长 × 数量 × 校场加速系数（最低 50%）。
func (b *Balance) TrainingDuration(u entity.UnitType, quantity int64, trainingGroundLevel int) time.Duration {
	per := b.Unit(u).TrainTime
	speed := b.Building(entity.TrainingGround).TrainingSpeedPerLevel
	factor := max(1-speed*float64(max(trainingGroundLevel-1, 0)), 0.5)
	d := time.Duration(float64(per) * float64(quantity) * factor)
	return max(d.Round(time.Second), time.Second)
}

// ResearchMultiplier 研究等级带来的属性乘数。
func (b *Balance) ResearchMultiplier(level int) float64 {
	return 1 + b.Combat.ResearchBonusPerLevel*float64(max(level, 0))
}

// ExperienceForLevel 到达 level 级所需的累计经验：base × n(n-1)/2。
func (b *Balance) ExperienceForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(level) * int64(level-1) / 2 * b.Progression.ExperienceBase
}

func (b *Balance) LevelForExperience(exp int64) int {
	if b.Progression.ExperienceBase <= 0 {
		return 1
	}
	level := 1
	for level < b.Progression.MaxLevel && exp >= b.ExperienceForLevel(level+1) {
		level++
	}
	return level
}

func (b *Balance) RankFor(level int) string {
	name := ""
	for _, r := range b.Progression.Ranks {
		if level >= r.MinLevel {
			name = r.Name
		}
	}
	return name
}

// Location 是奖励日的时区。
func (b *Balance) Location() *time.Location {
	if b.loc == nil {
		return time.UTC
	}
	return b.loc
}

// Validate 检查配置完整性，并解析时区。
func (b *Balance) Validate() error {
	for _, t := range entity.BuildingTypes {
		spec, ok := b.Buildings[t]
		if !ok {
			return fmt.Errorf("gameconfig: building %q missing", t)
		}
		if spec.CostGrowth < 1 || spec.DurationGrowth < 1 {
			return fmt.Errorf("gameconfig: building %q growth must be >= 1", t)
		}
		if spec.BaseDuration <= 0 {
			return fmt.Errorf("gameconfig: building %q base_duration must be positive", t)
		}
	}
	for _, u := range entity.UnitTypes {
		spec, ok := b.Units[u]
		if !ok {
			return fmt.Errorf("gameconfig: unit %q missing", u)
		}
		if spec.TrainTime <= 0 || spec.Accuracy <= 0 || spec.Accuracy > 1 {
			return fmt.Errorf("gameconfig: unit %q has invalid train_time/accuracy", u)
		}
	}
	e := b.Economy
	if e.MaxConstructionQueue < 1 {
		return fmt.Errorf("gameconfig: economy.max_construction_queue must be >= 1")
	}
	if e.TrainingQueueLimit < 0 || e.MaxTrainingBatch < 1 {
		return fmt.Errorf("gameconfig: invalid training limits")
	}
	if e.MaxBuildingLevel < 2 {
		return fmt.Errorf("gameconfig: economy.max_building_level must be >= 2")
	}
	if e.CancelRefundRate < 0 || e.CancelRefundRate > 1 {
		return fmt.Errorf("gameconfig: economy.cancel_refund_rate out of [0,1]")
	}
	c := b.Combat
	if c.MinAttackInterval < 0 || c.CasualtyRate < 0 || c.CasualtyRate > 1 || c.PlunderRate < 0 || c.PlunderRate > 1 {
		return fmt.Errorf("gameconfig: invalid combat rates")
	}
	if b.World.Width <= 0 || b.World.Height <= 0 {
		return fmt.Errorf("gameconfig: world size must be positive")
	}
	if b.Progression.MaxLevel < 1 {
		return fmt.Errorf("gameconfig: progression.max_level must be >= 1")
	}
	tz := b.Rewards.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("gameconfig: rewards.timezone: %w", err)
	}
	b.loc = loc
	return nil
}
