package model

import (
	"time"

	"Conquest/internal/game/entity"
)

// PlayerDoc 是 mongodb 中一个玩家聚合的文档，城市内嵌。
type PlayerDoc struct {
	PlayerID      int64            `bson:"_id"`
	Version       uint64           `bson:"version"`
	ExternalID    string           `bson:"external_id"`
	Name          string           `bson:"name"`
	Level         int              `bson:"level"`
	Experience    int64            `bson:"experience"`
	ResearchLevel int              `bson:"research_level"`
	AllianceID    *int64           `bson:"alliance_id,omitempty"`
	Resources     entity.Resources `bson:"resources"`
	AccrualCarry  entity.Resources `bson:"accrual_carry"`
	AccruedAt     time.Time        `bson:"accrued_at"`
	LastActionAt  time.Time        `bson:"last_action_at"`
	LastCollectAt time.Time        `bson:"last_collect_at"`
	LastDailyAt   time.Time        `bson:"last_daily_claim_at"`
	DailyStreak   int              `bson:"daily_streak"`
	Wins          int64            `bson:"wins"`
	Losses        int64            `bson:"losses"`
	Battles       int64            `bson:"battles"`
	CreatedAt     time.Time        `bson:"created_at"`
	Cities        []CityDoc        `bson:"cities"`
}

type CityDoc struct {
	ID            int64              `bson:"id"`
	Name          string             `bson:"name"`
	Level         int                `bson:"level"`
	Population    int64              `bson:"population"`
	MaxPopulation int64              `bson:"max_population"`
	Happiness     int                `bson:"happiness"`
	HappinessAt   time.Time          `bson:"happiness_at"`
	DefenseRating int64              `bson:"defense_rating"`
	X             int                `bson:"x"`
	Y             int                `bson:"y"`
	LastAttackAt  time.Time          `bson:"last_attack_at"`
	CreatedAt     time.Time          `bson:"created_at"`
	Army          entity.Army        `bson:"army"`
	Buildings     []BuildingDoc      `bson:"buildings"`
	Training      *TrainingOrderDoc  `bson:"training,omitempty"`
	Pending       []TrainingOrderDoc `bson:"pending,omitempty"`
}

type BuildingDoc struct {
	Type      string           `bson:"type"`
	Level     int              `bson:"level"`
	State     uint8            `bson:"state"`
	StartedAt time.Time        `bson:"started_at,omitempty"`
	FinishAt  time.Time        `bson:"finish_at,omitempty"`
	PaidCost  entity.Resources `bson:"paid_cost"`
}

type TrainingOrderDoc struct {
	Unit     string           `bson:"unit"`
	Quantity int64            `bson:"quantity"`
	Cost     entity.Resources `bson:"cost"`
	StartAt  time.Time        `bson:"start_at"`
	FinishAt time.Time        `bson:"finish_at"`
}

// BattleReportDoc 单独成集合，Participants 上建索引以便按玩家查询。
type BattleReportDoc struct {
	ID             string           `bson:"_id"`
	Participants   []int64          `bson:"participants"`
	Attacker       int64            `bson:"attacker"`
	Defender       int64            `bson:"defender"`
	SourceCity     int64            `bson:"source_city"`
	TargetCity     int64            `bson:"target_city"`
	AttackerWon    bool             `bson:"attacker_won"`
	Ratio          float64          `bson:"ratio"`
	AttackerPower  float64          `bson:"attacker_power"`
	DefenderPower  float64          `bson:"defender_power"`
	AttackerLosses entity.Army      `bson:"attacker_losses"`
	DefenderLosses entity.Army      `bson:"defender_losses"`
	Plunder        entity.Resources `bson:"plunder"`
	At             time.Time        `bson:"at"`
}

func SnapshotToDoc(s entity.PlayerSnapshot) PlayerDoc {
	p := s.Player
	doc := PlayerDoc{
		PlayerID:      int64(p.ID),
		Version:       s.Version,
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
		LastCollectAt: p.LastCollectAt,
		LastDailyAt:   p.LastDailyClaimAt,
		DailyStreak:   p.DailyStreak,
		Wins:          p.Stats.Wins,
		Losses:        p.Stats.Losses,
		Battles:       p.Stats.Battles,
		CreatedAt:     p.CreatedAt,
		Cities:        make([]CityDoc, 0, len(s.Cities)),
	}
	for _, c := range s.Cities {
		cd := CityDoc{
			ID:            int64(c.ID),
			Name:          c.Name,
			Level:         c.Level,
			Population:    c.Population,
			MaxPopulation: c.MaxPopulation,
			Happiness:     c.Happiness,
			HappinessAt:   c.HappinessAt,
			DefenseRating: c.DefenseRating,
			X:             c.X,
			Y:             c.Y,
			LastAttackAt:  c.LastAttackAt,
			CreatedAt:     c.CreatedAt,
			Army:          c.Army,
		}
		for _, b := range c.SortedBuildings() {
			cd.Buildings = append(cd.Buildings, BuildingDoc{
				Type: string(b.Type), Level: b.Level, State: uint8(b.State),
				StartedAt: b.StartedAt, FinishAt: b.FinishAt, PaidCost: b.PaidCost,
			})
		}
		if c.Training != nil {
			o := orderToDoc(*c.Training)
			cd.Training = &o
		}
		for _, o := range c.Pending {
			cd.Pending = append(cd.Pending, orderToDoc(o))
		}
		doc.Cities = append(doc.Cities, cd)
	}
	return doc
}

func DocToSnapshot(doc PlayerDoc) entity.PlayerSnapshot {
	s := entity.PlayerSnapshot{
		Version: doc.Version,
		Player: entity.PlayerState{
			ID:               entity.PlayerID(doc.PlayerID),
			ExternalID:       doc.ExternalID,
			Name:             doc.Name,
			Level:            doc.Level,
			Experience:       doc.Experience,
			ResearchLevel:    doc.ResearchLevel,
			AllianceID:       doc.AllianceID,
			Resources:        doc.Resources,
			AccrualCarry:     doc.AccrualCarry,
			AccruedAt:        doc.AccruedAt,
			LastActionAt:     doc.LastActionAt,
			LastCollectAt:    doc.LastCollectAt,
			LastDailyClaimAt: doc.LastDailyAt,
			DailyStreak:      doc.DailyStreak,
			Stats:            entity.BattleStats{Wins: doc.Wins, Losses: doc.Losses, Battles: doc.Battles},
			CreatedAt:        doc.CreatedAt,
		},
	}
	for _, cd := range doc.Cities {
		c := entity.CityState{
			ID:            entity.CityID(cd.ID),
			Owner:         entity.PlayerID(doc.PlayerID),
			Name:          cd.Name,
			Level:         cd.Level,
			Population:    cd.Population,
			MaxPopulation: cd.MaxPopulation,
			Happiness:     cd.Happiness,
			HappinessAt:   cd.HappinessAt,
			DefenseRating: cd.DefenseRating,
			X:             cd.X,
			Y:             cd.Y,
			LastAttackAt:  cd.LastAttackAt,
			CreatedAt:     cd.CreatedAt,
			Army:          cd.Army,
			Buildings:     make(map[entity.BuildingType]*entity.Building, len(cd.Buildings)),
		}
		for _, b := range cd.Buildings {
			t := entity.BuildingType(b.Type)
			c.Buildings[t] = &entity.Building{
				Type: t, Level: b.Level, State: entity.ConstructionState(b.State),
				StartedAt: b.StartedAt, FinishAt: b.FinishAt, PaidCost: b.PaidCost,
			}
		}
		if cd.Training != nil {
			o := docToOrder(*cd.Training)
			c.Training = &o
		}
		for _, o := range cd.Pending {
			c.Pending = append(c.Pending, docToOrder(o))
		}
		s.Cities = append(s.Cities, c)
	}
	return s
}

func ReportToDoc(r entity.BattleReport) BattleReportDoc {
	return BattleReportDoc{
		ID:             r.ID,
		Participants:   []int64{int64(r.Attacker), int64(r.Defender)},
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

func DocToReport(d BattleReportDoc) entity.BattleReport {
	return entity.BattleReport{
		ID:             d.ID,
		Attacker:       entity.PlayerID(d.Attacker),
		Defender:       entity.PlayerID(d.Defender),
		SourceCity:     entity.CityID(d.SourceCity),
		TargetCity:     entity.CityID(d.TargetCity),
		AttackerWon:    d.AttackerWon,
		Ratio:          d.Ratio,
		AttackerPower:  d.AttackerPower,
		DefenderPower:  d.DefenderPower,
		AttackerLosses: d.AttackerLosses,
		DefenderLosses: d.DefenderLosses,
		Plunder:        d.Plunder,
		At:             d.At,
	}
}

func orderToDoc(o entity.TrainingOrder) TrainingOrderDoc {
	return TrainingOrderDoc{Unit: string(o.Unit), Quantity: o.Quantity, Cost: o.Cost, StartAt: o.StartAt, FinishAt: o.FinishAt}
}

func docToOrder(d TrainingOrderDoc) entity.TrainingOrder {
	return entity.TrainingOrder{Unit: entity.UnitType(d.Unit), Quantity: d.Quantity, Cost: d.Cost, StartAt: d.StartAt, FinishAt: d.FinishAt}
}
