package state

import (
	"time"

	"Conquest/internal/game/entity"
)

type EventKind string

const (
	EventConstructionCompleted EventKind = "construction.completed"
	EventTrainingCompleted     EventKind = "training.completed"
	EventTrainingStarted       EventKind = "training.started"
	EventLevelUp               EventKind = "player.level_up"
	EventBattleResolved        EventKind = "battle.resolved"
	EventCityAttacked          EventKind = "city.attacked"
)

// Event 是推送给玩家的领域事件，在释放锁之后发出。
type Event struct {
	Kind     EventKind       `json:"kind"`
	PlayerID entity.PlayerID `json:"player_id"`
	At       time.Time       `json:"at"`
	Payload  any             `json:"payload,omitempty"`
}

// Notifier 接收领域事件，实现方不得阻塞。
type Notifier interface {
	Notify(events ...Event)
}

// Observer 接收命令和计时器的统计信息。
type Observer interface {
	CommandDone(command string, err error, elapsed time.Duration)
	TimerApplied(kind string)
	BattleResolved(attackerWon bool)
	PlayersRegistered(total int)
}

type nopNotifier struct{}

func (nopNotifier) Notify(...Event) {}

type nopObserver struct{}

func (nopObserver) CommandDone(string, error, time.Duration) {}
func (nopObserver) TimerApplied(string)                      {}
func (nopObserver) BattleResolved(bool)                      {}
func (nopObserver) PlayersRegistered(int)                    {}

type nopSink struct{}

func (nopSink) Enqueue(...entity.PlayerSnapshot) {}
