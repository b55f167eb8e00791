package entity

import "time"

// BattleReport 是一次战斗的结果记录，随双方快照一起落库。
type BattleReport struct {
	ID             string    `json:"id"`
	Attacker       PlayerID  `json:"attacker"`
	Defender       PlayerID  `json:"defender"`
	SourceCity     CityID    `json:"source_city"`
	TargetCity     CityID    `json:"target_city"`
	AttackerWon    bool      `json:"attacker_won"`
	Ratio          float64   `json:"ratio"`
	AttackerPower  float64   `json:"attacker_power"`
	DefenderPower  float64   `json:"defender_power"`
	AttackerLosses Army      `json:"attacker_losses"`
	DefenderLosses Army      `json:"defender_losses"`
	Plunder        Resources `json:"plunder"`
	At             time.Time `json:"at"`
}

// PlayerSnapshot 是一个玩家聚合在某一时刻的完整拷贝。
// Version 单调递增，写库时旧版本不能覆盖新版本。
type PlayerSnapshot struct {
	Version uint64
	Player  PlayerState
	Cities  []CityState
	Reports []BattleReport
}

// BuildSnapshot 深拷贝玩家及其全部城市，调用方需持有玩家锁和城市锁。
func (p *Player) BuildSnapshot(version uint64) PlayerSnapshot {
	s := PlayerSnapshot{
		Version: version,
		Player:  p.PlayerState,
		Cities:  make([]CityState, 0, len(p.Cities)),
	}
	if p.AllianceID != nil {
		v := *p.AllianceID
		s.Player.AllianceID = &v
	}
	for _, c := range p.Cities {
		s.Cities = append(s.Cities, c.Snapshot())
	}
	return s
}

// Hydrate 由快照还原聚合，仓储加载时使用。
func Hydrate(s PlayerSnapshot) *Player {
	cities := make([]*City, 0, len(s.Cities))
	for _, cs := range s.Cities {
		cs.Owner = s.Player.ID
		cities = append(cities, NewCity(cs))
	}
	return NewPlayer(s.Player, cities...)
}
