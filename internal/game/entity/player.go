package entity

import (
	"sync"
	"time"
)

type PlayerID int64

type BattleStats struct {
	Wins    int64 `json:"wins"`
	Losses  int64 `json:"losses"`
	Battles int64 `json:"battles"`
}

// PlayerState 是玩家可持久化的全部状态，不含锁和城市指针。
type PlayerState struct {
	ID            PlayerID
	ExternalID    string
	Name          string
	Level         int
	Experience    int64
	ResearchLevel int
	AllianceID    *int64

	Resources Resources
	// AccrualCarry 是上次结算不足 1 的产出余数，单位见 ledger。
	AccrualCarry Resources
	AccruedAt    time.Time

	LastActionAt     time.Time
	LastCollectAt    time.Time
	LastDailyClaimAt time.Time
	DailyStreak      int

	Stats     BattleStats
	CreatedAt time.Time
}

// Player 是玩家聚合：mu 保护 PlayerState 和 Cities 列表，城市自身字段由城市锁保护。
type Player struct {
	mu sync.Mutex
	PlayerState
	Cities []*City

	dirty bool
}

func NewPlayer(s PlayerState, cities ...*City) *Player {
	if s.Level < 1 {
		s.Level = 1
	}
	return &Player{PlayerState: s, Cities: cities}
}

func (p *Player) Lock()   { p.mu.Lock() }
func (p *Player) Unlock() { p.mu.Unlock() }

// Touch 推进最后行动时间，只前进不后退。
func (p *Player) Touch(now time.Time) {
	if now.After(p.LastActionAt) {
		p.LastActionAt = now
	}
}

// GainExperience 增加经验，并按 levelFor 换算等级；等级只升不降。
func (p *Player) GainExperience(xp int64, levelFor func(exp int64) int) (levelsGained int) {
	if xp <= 0 {
		return 0
	}
	p.Experience += xp
	if levelFor == nil {
		return 0
	}
	if lv := levelFor(p.Experience); lv > p.Level {
		levelsGained = lv - p.Level
		p.Level = lv
	}
	return levelsGained
}

func (p *Player) City(id CityID) *City {
	for _, c := range p.Cities {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Capital 第一座城。
func (p *Player) Capital() *City {
	if len(p.Cities) == 0 {
		return nil
	}
	return p.Cities[0]
}

func (p *Player) MarkDirty()  { p.dirty = true }
func (p *Player) Dirty() bool { return p.dirty }
func (p *Player) ClearDirty() { p.dirty = false }
