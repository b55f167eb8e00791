package entity

import (
	"sync"
	"time"
)

type CityID int64

const (
	MinHappiness = 0
	MaxHappiness = 100
)

// TrainingOrder 是城市训练队列中的一单，资源在下单时已经扣除。
type TrainingOrder struct {
	Unit     UnitType  `json:"unit"`
	Quantity int64     `json:"quantity"`
	Cost     Resources `json:"cost"`
	StartAt  time.Time `json:"start_at"`
	FinishAt time.Time `json:"finish_at"`
}

// CityState 是城市可持久化的全部状态，不含锁。
type CityState struct {
	ID            CityID
	Owner         PlayerID
	Name          string
	Level         int
	Population    int64
	MaxPopulation int64
	Happiness     int
	// HappinessAt 是幸福度恢复的结算点。
	HappinessAt   time.Time
	DefenseRating int64
	X             int
	Y             int
	LastAttackAt  time.Time
	CreatedAt     time.Time

	Buildings map[BuildingType]*Building
	Army      Army
	Training  *TrainingOrder
	Pending   []TrainingOrder
}

// City 属于且只属于一个玩家。mu 保护 CityState 的全部字段。
type City struct {
	mu sync.Mutex
	CityState
}

func NewCity(s CityState) *City {
	if s.Buildings == nil {
		s.Buildings = make(map[BuildingType]*Building, len(BuildingTypes))
	}
	for _, t := range BuildingTypes {
		if _, ok := s.Buildings[t]; !ok {
			s.Buildings[t] = &Building{Type: t, Level: 1}
		}
	}
	c := &City{CityState: s}
	c.SetHappiness(s.Happiness)
	return c
}

func (c *City) Lock()   { c.mu.Lock() }
func (c *City) Unlock() { c.mu.Unlock() }

func (c *City) Building(t BuildingType) *Building {
	return c.Buildings[t]
}

func (c *City) BuildingLevel(t BuildingType) int {
	if b := c.Buildings[t]; b != nil {
		return b.Level
	}
	return 0
}

// UnderConstructionCount 正在建造的建筑数量。
func (c *City) UnderConstructionCount() int {
	n := 0
	for _, b := range c.Buildings {
		if b.UnderConstruction() {
			n++
		}
	}
	return n
}

// SetHappiness 写入并夹紧到 [0, 100]。
func (c *City) SetHappiness(v int) {
	c.Happiness = min(max(v, MinHappiness), MaxHappiness)
}

// TrainingBusy 是否有进行中的训练。
func (c *City) TrainingBusy() bool {
	return c.Training != nil
}

// Snapshot 深拷贝，调用方需持有锁。
func (c *City) Snapshot() CityState {
	s := c.CityState
	s.Buildings = make(map[BuildingType]*Building, len(c.Buildings))
	for t, b := range c.Buildings {
		cp := *b
		s.Buildings[t] = &cp
	}
	if c.Training != nil {
		cp := *c.Training
		s.Training = &cp
	}
	s.Pending = append([]TrainingOrder(nil), c.Pending...)
	return s
}

// SortedBuildings 按 BuildingTypes 顺序返回。
func (s CityState) SortedBuildings() []Building {
	out := make([]Building, 0, len(s.Buildings))
	for _, t := range BuildingTypes {
		if b := s.Buildings[t]; b != nil {
			out = append(out, *b)
		}
	}
	return out
}
