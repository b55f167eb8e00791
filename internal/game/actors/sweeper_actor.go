package actors

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"Conquest/internal/game/state"
	"Conquest/modules/kit/logx"
	"Conquest/modules/kit/tracex"
)

type sweepTick struct{}

func (sweepTick) NotInfluenceReceiveTimeout() {}

type flushTick struct{}

func (flushTick) NotInfluenceReceiveTimeout() {}

// SweeperActor 周期推进有到期计时器的玩家，并把脏玩家交给落库队列。
type SweeperActor struct {
	game       *state.GameState
	log        logx.Logger
	now        func() time.Time
	sweepEvery time.Duration
	flushEvery time.Duration
	stop       chan struct{}
}

func NewSweeperActor(game *state.GameState, log logx.Logger, now func() time.Time, sweepEvery, flushEvery time.Duration) *SweeperActor {
	if log == nil {
		log = logx.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &SweeperActor{
		game:       game,
		log:        log,
		now:        now,
		sweepEvery: sweepEvery,
		flushEvery: flushEvery,
	}
}

func (s *SweeperActor) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case *actor.Started:
		s.startLoop(ctx)
	case *actor.Stopping:
		s.stopLoop()
		// 停机前把最后的修改交出去
		s.game.FlushDirty(s.context())
	case *actor.Restarting:
		s.stopLoop()
	case sweepTick:
		start := time.Now()
		if n := s.game.Sweep(s.context(), s.now()); n > 0 {
			s.log.Debug("sweep settled players", zap.Int("players", n), zap.Duration("elapsed", time.Since(start)))
		}
	case flushTick:
		s.game.FlushDirty(s.context())
	}
}

func (s *SweeperActor) context() context.Context {
	return tracex.WithSpanID(tracex.EnsureTraceID(context.Background()), "sweeper")
}

func (s *SweeperActor) startLoop(ctx actor.Context) {
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	self := ctx.Self()
	root := ctx.ActorSystem().Root

	tick := func(stop <-chan struct{}, every time.Duration, msg any) {
		if every <= 0 {
			return
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				root.Send(self, msg)
			case <-stop:
				return
			}
		}
	}
	go tick(s.stop, s.sweepEvery, sweepTick{})
	go tick(s.stop, s.flushEvery, flushTick{})
}

func (s *SweeperActor) stopLoop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
}
