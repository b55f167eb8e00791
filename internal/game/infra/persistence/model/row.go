package model

import (
	"time"

	"Conquest/internal/game/entity"
)

// Player 玩家表，version 用于拒绝旧快照。
type Player struct {
	ID            int64            `gorm:"column:id;primaryKey;autoIncrement:false"`
	Version       uint64           `gorm:"column:version;not null;default:0"`
	ExternalID    string           `gorm:"column:external_id;type:varchar(128);uniqueIndex;not null"`
	Name          string           `gorm:"column:name;type:varchar(64);not null"`
	Level         int              `gorm:"column:level;not null;default:1"`
	Experience    int64            `gorm:"column:experience;not null;default:0"`
	ResearchLevel int              `gorm:"column:research_level;not null;default:0"`
	AllianceID    *int64           `gorm:"column:alliance_id"`
	Resources     entity.Resources `gorm:"embedded;embeddedPrefix:res_"`
	AccrualCarry  entity.Resources `gorm:"embedded;embeddedPrefix:carry_"`
	AccruedAt     time.Time        `gorm:"column:accrued_at"`
	LastActionAt  time.Time        `gorm:"column:last_action_at"`
	LastCollectAt *time.Time       `gorm:"column:last_collect_at"`
	LastDailyAt   *time.Time       `gorm:"column:last_daily_claim_at"`
	DailyStreak   int              `gorm:"column:daily_streak;not null;default:0"`
	Wins          int64            `gorm:"column:wins;not null;default:0"`
	Losses        int64            `gorm:"column:losses;not null;default:0"`
	Battles       int64            `gorm:"column:battles;not null;default:0"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime:false"`
}

func (p *Player) TableName() string {
	return "player"
}

type City struct {
	ID            int64       `gorm:"column:id;primaryKey;autoIncrement:false"`
	PlayerID      int64       `gorm:"column:player_id;index;not null"`
	Name          string      `gorm:"column:name;type:varchar(64);not null"`
	Level         int         `gorm:"column:level;not null;default:1"`
	Population    int64       `gorm:"column:population;not null"`
	MaxPopulation int64       `gorm:"column:max_population;not null"`
	Happiness     int         `gorm:"column:happiness;not null"`
	HappinessAt   time.Time   `gorm:"column:happiness_at"`
	DefenseRating int64       `gorm:"column:defense_rating;not null"`
	X             int         `gorm:"column:x;uniqueIndex:idx_city_coord;not null"`
	Y             int         `gorm:"column:y;uniqueIndex:idx_city_coord;not null"`
	LastAttackAt  *time.Time  `gorm:"column:last_attack_at"`
	CreatedAt     time.Time   `gorm:"column:created_at;autoCreateTime:false"`
	Army          entity.Army `gorm:"embedded;embeddedPrefix:army_"`
}

func (c *City) TableName() string {
	return "city"
}

type Building struct {
	CityID    int64            `gorm:"column:city_id;primaryKey;autoIncrement:false"`
	Type      string           `gorm:"column:type;type:varchar(32);primaryKey"`
	PlayerID  int64            `gorm:"column:player_id;index;not null"`
	Level     int              `gorm:"column:level;not null"`
	State     uint8            `gorm:"column:state;not null;default:0"`
	StartedAt *time.Time       `gorm:"column:started_at"`
	FinishAt  *time.Time       `gorm:"column:finish_at"`
	PaidCost  entity.Resources `gorm:"embedded;embeddedPrefix:paid_"`
}

func (b *Building) TableName() string {
	return "city_building"
}

// TrainingOrder Seq 为 0 的是进行中的一单，其余按顺序排队。
type TrainingOrder struct {
	CityID   int64            `gorm:"column:city_id;primaryKey;autoIncrement:false"`
	Seq      int              `gorm:"column:seq;primaryKey;autoIncrement:false"`
	PlayerID int64            `gorm:"column:player_id;index;not null"`
	Unit     string           `gorm:"column:unit;type:varchar(32);not null"`
	Quantity int64            `gorm:"column:quantity;not null"`
	Cost     entity.Resources `gorm:"embedded;embeddedPrefix:cost_"`
	StartAt  *time.Time       `gorm:"column:start_at"`
	FinishAt *time.Time       `gorm:"column:finish_at"`
}

func (o *TrainingOrder) TableName() string {
	return "training_order"
}

type BattleReport struct {
	ID             string           `gorm:"column:id;type:varchar(64);primaryKey"`
	Attacker       int64            `gorm:"column:attacker_id;index;not null"`
	Defender       int64            `gorm:"column:defender_id;index;not null"`
	SourceCity     int64            `gorm:"column:source_city_id;not null"`
	TargetCity     int64            `gorm:"column:target_city_id;not null"`
	AttackerWon    bool             `gorm:"column:attacker_won;not null"`
	Ratio          float64          `gorm:"column:ratio;not null"`
	AttackerPower  float64          `gorm:"column:attacker_power;not null"`
	DefenderPower  float64          `gorm:"column:defender_power;not null"`
	AttackerLosses entity.Army      `gorm:"column:attacker_losses;serializer:json"`
	DefenderLosses entity.Army      `gorm:"column:defender_losses;serializer:json"`
	Plunder        entity.Resources `gorm:"column:plunder;serializer:json"`
	At             time.Time        `gorm:"column:at;index;not null"`
}

func (r *BattleReport) TableName() string {
	return "battle_report"
}

// Tables 迁移时建表的全部模型。
func Tables() []any {
	return []any{&Player{}, &City{}, &Building{}, &TrainingOrder{}, &BattleReport{}}
}

// Rows 是一个快照拆成的全部行。
type Rows struct {
	Player    Player
	Cities    []City
	Buildings []Building
	Orders    []TrainingOrder
	Reports   []BattleReport
}

func SnapshotToRows(s entity.PlayerSnapshot) Rows {
	doc := SnapshotToDoc(s)
	rows := Rows{Player: Player{
		ID:            doc.PlayerID,
		Version:       doc.Version,
		ExternalID:    doc.ExternalID,
		Name:          doc.Name,
		Level:         doc.Level,
		Experience:    doc.Experience,
		ResearchLevel: doc.ResearchLevel,
		AllianceID:    doc.AllianceID,
		Resources:     doc.Resources,
		AccrualCarry:  doc.AccrualCarry,
		AccruedAt:     doc.AccruedAt,
		LastActionAt:  doc.LastActionAt,
		LastCollectAt: nullTime(doc.LastCollectAt),
		LastDailyAt:   nullTime(doc.LastDailyAt),
		DailyStreak:   doc.DailyStreak,
		Wins:          doc.Wins,
		Losses:        doc.Losses,
		Battles:       doc.Battles,
		CreatedAt:     doc.CreatedAt,
	}}
	for _, c := range doc.Cities {
		rows.Cities = append(rows.Cities, City{
			ID:            c.ID,
			PlayerID:      doc.PlayerID,
			Name:          c.Name,
			Level:         c.Level,
			Population:    c.Population,
			MaxPopulation: c.MaxPopulation,
			Happiness:     c.Happiness,
			HappinessAt:   c.HappinessAt,
			DefenseRating: c.DefenseRating,
			X:             c.X,
			Y:             c.Y,
			LastAttackAt:  nullTime(c.LastAttackAt),
			CreatedAt:     c.CreatedAt,
			Army:          c.Army,
		})
		for _, b := range c.Buildings {
			rows.Buildings = append(rows.Buildings, Building{
				CityID: c.ID, Type: b.Type, PlayerID: doc.PlayerID, Level: b.Level, State: b.State,
				StartedAt: nullTime(b.StartedAt), FinishAt: nullTime(b.FinishAt), PaidCost: b.PaidCost,
			})
		}
		seq := 0
		if c.Training != nil {
			rows.Orders = append(rows.Orders, orderRow(c.ID, doc.PlayerID, seq, *c.Training))
		}
		for _, o := range c.Pending {
			seq++
			rows.Orders = append(rows.Orders, orderRow(c.ID, doc.PlayerID, seq, o))
		}
	}
	for _, r := range s.Reports {
		rows.Reports = append(rows.Reports, ReportToRow(r))
	}
	return rows
}

// RowsToSnapshot 把一个玩家的行还原成快照；Orders 需按 (city_id, seq) 排好序。
func RowsToSnapshot(rows Rows) entity.PlayerSnapshot {
	p := rows.Player
	doc := PlayerDoc{
		PlayerID:      p.ID,
		Version:       p.Version,
		ExternalID:    p.ExternalID,
		Name:          p.Name,
		Level:         p.Level,
		Experience:    p.Experience,
		ResearchLevel: p.ResearchLevel,
		AllianceID:    p.AllianceID,
		Resources:     p.Resources,
		AccrualCarry:  p.AccrualCarry,
		AccruedAt:     p.AccruedAt,
		LastActionAt:  p.LastActionAt,
		LastCollectAt: timeOf(p.LastCollectAt),
		LastDailyAt:   timeOf(p.LastDailyAt),
		DailyStreak:   p.DailyStreak,
		Wins:          p.Wins,
		Losses:        p.Losses,
		Battles:       p.Battles,
		CreatedAt:     p.CreatedAt,
	}
	byCity := make(map[int64]int, len(rows.Cities))
	for _, c := range rows.Cities {
		byCity[c.ID] = len(doc.Cities)
		doc.Cities = append(doc.Cities, CityDoc{
			ID:            c.ID,
			Name:          c.Name,
			Level:         c.Level,
			Population:    c.Population,
			MaxPopulation: c.MaxPopulation,
			Happiness:     c.Happiness,
			HappinessAt:   c.HappinessAt,
			DefenseRating: c.DefenseRating,
			X:             c.X,
			Y:             c.Y,
			LastAttackAt:  timeOf(c.LastAttackAt),
			CreatedAt:     c.CreatedAt,
			Army:          c.Army,
		})
	}
	for _, b := range rows.Buildings {
		i, ok := byCity[b.CityID]
		if !ok {
			continue
		}
		doc.Cities[i].Buildings = append(doc.Cities[i].Buildings, BuildingDoc{
			Type: b.Type, Level: b.Level, State: b.State,
			StartedAt: timeOf(b.StartedAt), FinishAt: timeOf(b.FinishAt), PaidCost: b.PaidCost,
		})
	}
	for _, o := range rows.Orders {
		i, ok := byCity[o.CityID]
		if !ok {
			continue
		}
		od := TrainingOrderDoc{Unit: o.Unit, Quantity: o.Quantity, Cost: o.Cost, StartAt: timeOf(o.StartAt), FinishAt: timeOf(o.FinishAt)}
		if o.Seq == 0 {
			doc.Cities[i].Training = &od
			continue
		}
		doc.Cities[i].Pending = append(doc.Cities[i].Pending, od)
	}
	s := DocToSnapshot(doc)
	for _, r := range rows.Reports {
		s.Reports = append(s.Reports, RowToReport(r))
	}
	return s
}

func ReportToRow(r entity.BattleReport) BattleReport {
	return BattleReport{
		ID:             r.ID,
		Attacker:       int64(r.Attacker),
		Defender:       int64(r.Defender),
		SourceCity:     int64(r.SourceCity),
		TargetCity:     int64(r.TargetCity),
		AttackerWon:    r.AttackerWon,
		Ratio:          r.Ratio,
		AttackerPower:  r.AttackerPower,
		DefenderPower:  r.DefenderPower,
		AttackerLosses: r.AttackerLosses,
		DefenderLosses: r.DefenderLosses,
		Plunder:        r.Plunder,
		At:             r.At,
	}
}

func RowToReport(r BattleReport) entity.BattleReport {
	return entity.BattleReport{
		ID:             r.ID,
		Attacker:       entity.PlayerID(r.Attacker),
		Defender:       entity.PlayerID(r.Defender),
		SourceCity:     entity.CityID(r.SourceCity),
		TargetCity:     entity.CityID(r.TargetCity),
		AttackerWon:    r.AttackerWon,
		Ratio:          r.Ratio,
		AttackerPower:  r.AttackerPower,
		DefenderPower:  r.DefenderPower,
		AttackerLosses: r.AttackerLosses,
		DefenderLosses: r.DefenderLosses,
		Plunder:        r.Plunder,
		At:             r.At,
	}
}

func orderRow(cityID, playerID int64, seq int, o TrainingOrderDoc) TrainingOrder {
	return TrainingOrder{
		CityID: cityID, Seq: seq, PlayerID: playerID, Unit: o.Unit, Quantity: o.Quantity,
		Cost: o.Cost, StartAt: nullTime(o.StartAt), FinishAt: nullTime(o.FinishAt),
	}
}

// nullTime 零值时间存为 NULL，严格模式的 DATETIME 不接受零日期。
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
