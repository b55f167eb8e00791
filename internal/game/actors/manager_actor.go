package actors

import (
	"github.com/asynkron/protoactor-go/actor"

	"Conquest/internal/game/actor/messages"
	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/game/state"
)

// ManagerActor 只做路由：按玩家 id 找到或创建玩家 actor 并转发。
type ManagerActor struct {
	game         *state.GameState
	dispatcher   *Dispatcher
	playerActors map[entity.PlayerID]*actor.PID
	byPID        map[string]entity.PlayerID
}

func NewManagerActor(game *state.GameState) *ManagerActor {
	return &ManagerActor{
		game:         game,
		dispatcher:   NewDispatcher(),
		playerActors: make(map[entity.PlayerID]*actor.PID),
		byPID:        make(map[string]entity.PlayerID),
	}
}

func (m *ManagerActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Terminated:
		if id, ok := m.byPID[msg.Who.Id]; ok {
			delete(m.byPID, msg.Who.Id)
			delete(m.playerActors, id)
		}
	case messages.Command:
		id := msg.Player()
		if id <= 0 {
			ctx.Respond(fail(errs.Invalid("invalid player id %d", id)))
			return
		}
		// 未注册的玩家不建 actor，避免被任意 id 撑爆。
		if !m.game.HasPlayer(id) {
			ctx.Respond(fail(errs.ErrPlayerNotFound.WithData("player_id", id)))
			return
		}
		ctx.Forward(m.getOrSpawn(ctx, id))
	}
}

func (m *ManagerActor) getOrSpawn(ctx actor.Context, playerID entity.PlayerID) *actor.PID {
	if pid, ok := m.playerActors[playerID]; ok && pid != nil {
		return pid
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewPlayerActor(playerID, m.game, m.dispatcher)
	})
	// ManagerActor 创建子 actor，子 actor 停止时收到 Terminated
	pid := ctx.Spawn(props)
	m.playerActors[playerID] = pid
	m.byPID[pid.Id] = playerID
	return pid
}
