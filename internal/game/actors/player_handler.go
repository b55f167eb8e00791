package actors

import (
	"github.com/asynkron/protoactor-go/actor"

	"Conquest/internal/game/actor/messages"
)

type PlayerHandler struct {
}

// 全局实例
var PH = &PlayerHandler{}

func (h *PlayerHandler) HandleStartUpgrade(ctx actor.Context, p *PlayerActor, req *messages.StartUpgrade) {
	job, err := p.game.StartUpgrade(commandContext(req.Base), req.PlayerID, req.CityID, req.Building, req.At)
	ctx.Respond(reply(job, err))
}

func (h *PlayerHandler) HandleCancelUpgrade(ctx actor.Context, p *PlayerActor, req *messages.CancelUpgrade) {
	refund, err := p.game.CancelUpgrade(commandContext(req.Base), req.PlayerID, req.CityID, req.Building, req.At)
	ctx.Respond(reply(refund, err))
}

func (h *PlayerHandler) HandleStartTraining(ctx actor.Context, p *PlayerActor, req *messages.StartTraining) {
	ticket, err := p.game.StartTraining(commandContext(req.Base), req.PlayerID, req.CityID, req.Unit, req.Quantity, req.At)
	ctx.Respond(reply(ticket, err))
}

func (h *PlayerHandler) HandleAttack(ctx actor.Context, p *PlayerActor, req *messages.Attack) {
	res, err := p.game.ResolveAttack(commandContext(req.Base), req.PlayerID, req.SourceCity, req.Force, req.TargetCity, req.At)
	ctx.Respond(reply(res, err))
}

func (h *PlayerHandler) HandleCollectResources(ctx actor.Context, p *PlayerActor, req *messages.CollectResources) {
	res, err := p.game.CollectResources(commandContext(req.Base), req.PlayerID, req.At)
	ctx.Respond(reply(res, err))
}

func (h *PlayerHandler) HandleClaimDailyReward(ctx actor.Context, p *PlayerActor, req *messages.ClaimDailyReward) {
	res, err := p.game.ClaimDailyReward(commandContext(req.Base), req.PlayerID, req.At)
	ctx.Respond(reply(res, err))
}

func (h *PlayerHandler) HandleExchange(ctx actor.Context, p *PlayerActor, req *messages.Exchange) {
	res, err := p.game.Exchange(commandContext(req.Base), req.PlayerID, req.To, req.Gold, req.At)
	ctx.Respond(reply(res, err))
}

func (h *PlayerHandler) HandleCitySnapshot(ctx actor.Context, p *PlayerActor, req *messages.CitySnapshot) {
	v, err := p.game.GetCitySnapshot(commandContext(req.Base), req.PlayerID, req.CityID, req.At)
	ctx.Respond(reply(v, err))
}

func (h *PlayerHandler) HandleArmySnapshot(ctx actor.Context, p *PlayerActor, req *messages.ArmySnapshot) {
	v, err := p.game.GetArmySnapshot(commandContext(req.Base), req.PlayerID, req.At)
	ctx.Respond(reply(v, err))
}

func (h *PlayerHandler) HandleProfileSnapshot(ctx actor.Context, p *PlayerActor, req *messages.ProfileSnapshot) {
	v, err := p.game.GetProfileSnapshot(commandContext(req.Base), req.PlayerID, req.At)
	ctx.Respond(reply(v, err))
}

func (h *PlayerHandler) HandleBattleReports(ctx actor.Context, p *PlayerActor, req *messages.BattleReports) {
	ctx.Respond(ok(p.game.Reports(req.PlayerID, req.Limit)))
}
