package actors

import (
	"reflect"

	"github.com/asynkron/protoactor-go/actor"

	"Conquest/internal/game/actor/messages"
	"Conquest/internal/game/errs"
)

type Dispatcher struct {
	handlers map[reflect.Type]Handler
}

type Handler struct {
	fn      reflect.Value // handler 函数
	reqType reflect.Type  // 请求类型
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[reflect.Type]Handler),
	}
	d.registerAll()
	return d
}

func (d *Dispatcher) registerAll() {
	register(d, PH.HandleStartUpgrade)
	register(d, PH.HandleCancelUpgrade)
	register(d, PH.HandleStartTraining)
	register(d, PH.HandleAttack)
	register(d, PH.HandleCollectResources)
	register(d, PH.HandleClaimDailyReward)
	register(d, PH.HandleExchange)
	register(d, PH.HandleCitySnapshot)
	register(d, PH.HandleArmySnapshot)
	register(d, PH.HandleProfileSnapshot)
	register(d, PH.HandleBattleReports)
}

// register 按请求的具体类型注册处理函数，请求必须是指针。
func register[Req messages.Command](
	d *Dispatcher,
	fn func(ctx actor.Context, p *PlayerActor, req Req),
) {
	reqType := reflect.TypeOf((*Req)(nil)).Elem()
	if reqType.Kind() != reflect.Ptr {
		panic("dispatcher req type must be pointer message")
	}
	d.handlers[reqType] = Handler{
		fn:      reflect.ValueOf(fn),
		reqType: reqType,
	}
}

func (d *Dispatcher) Dispatch(ctx actor.Context, p *PlayerActor, req messages.Command) {
	if req == nil {
		ctx.Respond(fail(errs.Invalid("nil request")))
		return
	}
	handler, ok := d.handlers[reflect.TypeOf(req)]
	if !ok {
		ctx.Respond(fail(errs.Invalid("no handler for %T", req)))
		return
	}
	handler.fn.Call([]reflect.Value{
		reflect.ValueOf(ctx),
		reflect.ValueOf(p),
		reflect.ValueOf(req),
	})
}
