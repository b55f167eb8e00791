package messages

import (
	"time"

	"Conquest/internal/game/entity"
)

// Command 是发往玩家 actor 的命令，按 PlayerID 路由。
type Command interface {
	Player() entity.PlayerID
	Stamp(traceID string, at time.Time)
}

// Base 是命令的公共头。At 由 runtime 在投递时填入，actor 内统一以它作为 now。
type Base struct {
	PlayerID entity.PlayerID
	TraceID  string
	At       time.Time
}

func (b Base) Player() entity.PlayerID { return b.PlayerID }

func (b *Base) Stamp(traceID string, at time.Time) {
	b.TraceID = traceID
	b.At = at
}

// Reply 是所有命令的统一回复。
type Reply struct {
	Value any
	Err   error
}

type StartUpgrade struct {
	Base
	CityID   entity.CityID
	Building entity.BuildingType
}

type CancelUpgrade struct {
	Base
	CityID   entity.CityID
	Building entity.BuildingType
}

type StartTraining struct {
	Base
	CityID   entity.CityID
	Unit     entity.UnitType
	Quantity int64
}

type Attack struct {
	Base
	SourceCity entity.CityID
	TargetCity entity.CityID
	Force      entity.Army
}

type CollectResources struct{ Base }

type ClaimDailyReward struct{ Base }

type Exchange struct {
	Base
	To   entity.ResourceKind
	Gold int64
}

type CitySnapshot struct {
	Base
	CityID entity.CityID
}

type ArmySnapshot struct{ Base }

type ProfileSnapshot struct{ Base }

type BattleReports struct {
	Base
	Limit int
}
