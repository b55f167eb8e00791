package state

import (
	"context"
	"sort"
	"time"

	"Conquest/internal/game/entity"
)

type BuildingView struct {
	Type         entity.BuildingType `json:"type"`
	Level        int                 `json:"level"`
	State        string              `json:"state"`
	FinishAt     *time.Time          `json:"finish_at,omitempty"`
	NextCost     entity.Resources    `json:"next_cost"`
	NextDuration int64               `json:"next_duration_sec"`
	MaxLevel     bool                `json:"max_level,omitempty"`
}

type CityView struct {
	ID             entity.CityID          `json:"id"`
	Owner          entity.PlayerID        `json:"owner"`
	Name           string                 `json:"name"`
	Level          int                    `json:"level"`
	Population     int64                  `json:"population"`
	MaxPopulation  int64                  `json:"max_population"`
	Happiness      int                    `json:"happiness"`
	DefenseRating  int64                  `json:"defense_rating"`
	X              int                    `json:"x"`
	Y              int                    `json:"y"`
	ProtectedUntil *time.Time             `json:"protected_until,omitempty"`
	Buildings      []BuildingView         `json:"buildings"`
	Army           entity.Army            `json:"army"`
	Training       *entity.TrainingOrder  `json:"training,omitempty"`
	Pending        []entity.TrainingOrder `json:"pending,omitempty"`
	Production     entity.Resources       `json:"production_per_min"`
	Resources      entity.Resources       `json:"resources"`
	Capacity       entity.Resources       `json:"capacity"`
}

type CityArmy struct {
	CityID entity.CityID `json:"city_id"`
	Name   string        `json:"name"`
	Army   entity.Army   `json:"army"`
}

type ArmyView struct {
	Cities          []CityArmy  `json:"cities"`
	Total           entity.Army `json:"total"`
	Units           int64       `json:"units"`
	AttackPower     float64     `json:"attack_power"`
	DefensePower    float64     `json:"defense_power"`
	AverageAccuracy float64     `json:"average_accuracy"`
}

type ProfileView struct {
	ID            entity.PlayerID    `json:"id"`
	ExternalID    string             `json:"external_id"`
	Name          string             `json:"name"`
	Level         int                `json:"level"`
	Rank          string             `json:"rank"`
	Experience    int64              `json:"experience"`
	NextLevelAt   int64              `json:"next_level_at,omitempty"`
	ResearchLevel int                `json:"research_level"`
	AllianceID    *int64             `json:"alliance_id,omitempty"`
	Cities        int                `json:"cities"`
	TotalArmy     int64              `json:"total_army"`
	Wealth        int64              `json:"wealth"`
	Resources     entity.Resources   `json:"resources"`
	Capacity      entity.Resources   `json:"capacity"`
	Production    entity.Resources   `json:"production_per_min"`
	Stats         entity.BattleStats `json:"stats"`
	LastActionAt  time.Time          `json:"last_action_at"`
	CreatedAt     time.Time          `json:"created_at"`
}

// GetCitySnapshot 结算后返回城市视图。cityID 为 0 表示主城。
func (s *GameState) GetCitySnapshot(ctx context.Context, pid entity.PlayerID, cityID entity.CityID, now time.Time) (CityView, error) {
	var v CityView
	err := s.run(ctx, "city_snapshot", pid, now, func(p *entity.Player, _ *txn) error {
		c, err := s.ownedCity(p, cityID)
		if err != nil {
			return err
		}
		v = s.cityView(p, c)
		return nil
	})
	return v, err
}

// GetArmySnapshot 结算后返回玩家全部城市的兵力和战力。
func (s *GameState) GetArmySnapshot(ctx context.Context, pid entity.PlayerID, now time.Time) (ArmyView, error) {
	var v ArmyView
	err := s.run(ctx, "army_snapshot", pid, now, func(p *entity.Player, _ *txn) error {
		var defense float64
		for _, c := range p.Cities {
			v.Cities = append(v.Cities, CityArmy{CityID: c.ID, Name: c.Name, Army: c.Army})
			v.Total = v.Total.Add(c.Army)
			defense += s.combat.DefensePower(c.Army, p.ResearchLevel, c.DefenseRating)
		}
		v.Units = v.Total.Total()
		v.AttackPower = s.combat.AttackPower(v.Total, p.ResearchLevel)
		v.DefensePower = defense
		v.AverageAccuracy = s.combat.AverageAccuracy(v.Total)
		return nil
	})
	return v, err
}

// GetProfileSnapshot 结算后返回玩家档案。
func (s *GameState) GetProfileSnapshot(ctx context.Context, pid entity.PlayerID, now time.Time) (ProfileView, error) {
	var v ProfileView
	err := s.run(ctx, "profile_snapshot", pid, now, func(p *entity.Player, _ *txn) error {
		v = ProfileView{
			ID:            p.ID,
			ExternalID:    p.ExternalID,
			Name:          p.Name,
			Level:         p.Level,
			Rank:          s.bal.RankFor(p.Level),
			Experience:    p.Experience,
			ResearchLevel: p.ResearchLevel,
			Cities:        len(p.Cities),
			Wealth:        p.Resources.Total(),
			Resources:     p.Resources,
			Capacity:      s.ledger.Capacity(p),
			Production:    s.ledger.ProductionPerMinute(p),
			Stats:         p.Stats,
			LastActionAt:  p.LastActionAt,
			CreatedAt:     p.CreatedAt,
		}
		if p.Level < s.bal.Progression.MaxLevel {
			v.NextLevelAt = s.bal.ExperienceForLevel(p.Level + 1)
		}
		if p.AllianceID != nil {
			id := *p.AllianceID
			v.AllianceID = &id
		}
		for _, c := range p.Cities {
			v.TotalArmy += c.Army.Total()
		}
		return nil
	})
	return v, err
}

func (s *GameState) cityView(p *entity.Player, c *entity.City) CityView {
	snap := c.Snapshot()
	v := CityView{
		ID:            snap.ID,
		Owner:         snap.Owner,
		Name:          snap.Name,
		Level:         snap.Level,
		Population:    snap.Population,
		MaxPopulation: snap.MaxPopulation,
		Happiness:     snap.Happiness,
		DefenseRating: snap.DefenseRating,
		X:             snap.X,
		Y:             snap.Y,
		Army:          snap.Army,
		Training:      snap.Training,
		Pending:       snap.Pending,
		Production:    s.ledger.CityProductionPerMinute(c),
		Resources:     p.Resources,
		Capacity:      s.ledger.Capacity(p),
	}
	if !snap.LastAttackAt.IsZero() {
		until := snap.LastAttackAt.Add(s.bal.Combat.MinAttackInterval)
		v.ProtectedUntil = &until
	}
	maxLevel := s.bal.Economy.MaxBuildingLevel
	for _, b := range snap.SortedBuildings() {
		bv := BuildingView{
			Type:     b.Type,
			Level:    b.Level,
			State:    b.State.String(),
			MaxLevel: b.Level >= maxLevel,
		}
		if b.UnderConstruction() {
			at := b.FinishAt
			bv.FinishAt = &at
		}
		if !bv.MaxLevel {
			bv.NextCost = s.bal.UpgradeCost(b.Type, b.Level)
			bv.NextDuration = int64(s.bal.UpgradeDuration(b.Type, b.Level) / time.Second)
		}
		v.Buildings = append(v.Buildings, bv)
	}
	return v
}

// MapCity 是地图上的一座城，只含创建后不再变化的字段。
type MapCity struct {
	ID    entity.CityID   `json:"id"`
	Owner entity.PlayerID `json:"owner"`
	Name  string          `json:"name"`
	X     int             `json:"x"`
	Y     int             `json:"y"`
}

// WorldMap 按城市 id 升序列出地图上的城市，offset/limit 分页。
func (s *GameState) WorldMap(offset, limit int) []MapCity {
	s.mu.RLock()
	all := make([]MapCity, 0, len(s.cities))
	for _, c := range s.cities {
		all = append(all, MapCity{ID: c.ID, Owner: c.Owner, Name: c.Name, X: c.X, Y: c.Y})
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset < 0 || offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
