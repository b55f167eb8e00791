package actors

import (
	"context"

	"github.com/asynkron/protoactor-go/actor"

	"Conquest/internal/game/actor/messages"
	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/game/state"
	"Conquest/modules/kit/tracex"
)

type State int

const (
	None State = iota
	Online
	Stopping
	Offline
)

// PlayerActor 串行处理一个玩家的命令。跨玩家的互斥由 GameState 的锁保证。
type PlayerActor struct {
	state      State
	playerID   entity.PlayerID
	game       *state.GameState
	dispatcher *Dispatcher
}

func NewPlayerActor(playerID entity.PlayerID, game *state.GameState, dispatcher *Dispatcher) *PlayerActor {
	return &PlayerActor{
		state:      None,
		playerID:   playerID,
		game:       game,
		dispatcher: dispatcher,
	}
}

func (p *PlayerActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		p.state = Online
	case *actor.Stopping:
		p.state = Stopping
	case *actor.Stopped:
		p.state = Offline
	case *actor.Restarting:
		p.state = None
	case messages.Command:
		if p.state != Online {
			ctx.Respond(fail(errs.ErrPlayerNotFound.WithMsg("player %d is not online", p.playerID)))
			return
		}
		p.dispatcher.Dispatch(ctx, p, msg)
	}
}

func (p *PlayerActor) PlayerID() entity.PlayerID {
	return p.playerID
}

func (p *PlayerActor) Game() *state.GameState {
	return p.game
}

// commandContext 带上链路和玩家 id，供日志使用。
func commandContext(b messages.Base) context.Context {
	ctx := context.Background()
	if b.TraceID != "" {
		ctx = tracex.WithTraceID(ctx, b.TraceID)
	}
	ctx = tracex.WithSpanID(ctx, "player")
	return tracex.WithPlayerID(ctx, int64(b.PlayerID))
}
