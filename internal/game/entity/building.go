package entity

import "time"

type BuildingType string

const (
	TownHall       BuildingType = "town_hall"
	Houses         BuildingType = "houses"
	Farm           BuildingType = "farm"
	Mine           BuildingType = "mine"
	Factory        BuildingType = "factory"
	TrainingGround BuildingType = "training_ground"
	Walls          BuildingType = "walls"
	Gate           BuildingType = "gate"
)

var BuildingTypes = []BuildingType{TownHall, Houses, Farm, Mine, Factory, TrainingGround, Walls, Gate}

func (t BuildingType) Valid() bool {
	for _, bt := range BuildingTypes {
		if bt == t {
			return true
		}
	}
	return false
}

type ConstructionState uint8

const (
	Idle ConstructionState = iota
	UnderConstruction
)

func (s ConstructionState) String() string {
	if s == UnderConstruction {
		return "under_construction"
	}
	return "idle"
}

// Building 每个城市每种类型只有一个。
type Building struct {
	Type      BuildingType      `json:"type"`
	Level     int               `json:"level"`
	State     ConstructionState `json:"state"`
	StartedAt time.Time         `json:"started_at,omitempty"`
	FinishAt  time.Time         `json:"finish_at,omitempty"`
	// PaidCost 是本次升级已扣除的资源，取消时按比例退还。
	PaidCost Resources `json:"paid_cost"`
}

func (b *Building) UnderConstruction() bool {
	return b != nil && b.State == UnderConstruction
}

// BeginUpgrade 进入建造状态。
func (b *Building) BeginUpgrade(now, finishAt time.Time, paid Resources) {
	b.State = UnderConstruction
	b.StartedAt = now
	b.FinishAt = finishAt
	b.PaidCost = paid
}

// FinishUpgrade 等级 +1 并回到空闲。
func (b *Building) FinishUpgrade() {
	b.Level++
	b.reset()
}

// AbortUpgrade 回到空闲，等级不变。
func (b *Building) AbortUpgrade() {
	b.reset()
}

func (b *Building) reset() {
	b.State = Idle
	b.StartedAt = time.Time{}
	b.FinishAt = time.Time{}
	b.PaidCost = Resources{}
}
