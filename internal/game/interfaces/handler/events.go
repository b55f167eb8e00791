package handler

import (
	"Conquest/internal/game/state"
	"Conquest/internal/shared/transport/ws"
)

// EventPusher 把领域事件推到玩家的事件流连接上，连接慢时丢弃而不阻塞命令。
type EventPusher struct {
	hub *ws.Hub
}

func NewEventPusher(hub *ws.Hub) *EventPusher {
	return &EventPusher{hub: hub}
}

func (p *EventPusher) Notify(events ...state.Event) {
	for _, ev := range events {
		p.hub.Push(int64(ev.PlayerID), string(ev.Kind), ev)
	}
}
