package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	protoactor "github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"

	"Conquest/internal/game/actor/messages"
	"Conquest/internal/game/actors"
	"Conquest/internal/game/state"
	"Conquest/modules/kit/logx"
	"Conquest/modules/kit/tracex"
)

const (
	defaultAskTimeout = 3 * time.Second
	defaultSweepEvery = 2 * time.Second
	defaultFlushEvery = 5 * time.Second
)

// RuntimeError 是投递层面的失败（超时、runtime 未初始化、回复类型不对），与业务错误区分。
type RuntimeError struct {
	Message string
	Cause   error
}

func (e *RuntimeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *RuntimeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsRuntimeError 判断是否是投递失败。
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}

type Option func(*Runtime)

func WithAskTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock 替换命令时间来源，测试用。
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSweep 设置清扫和落库的周期；不大于 0 表示关闭对应的周期任务。
func WithSweep(sweepEvery, flushEvery time.Duration) Option {
	return func(r *Runtime) {
		r.sweepEvery = sweepEvery
		r.flushEvery = flushEvery
	}
}

func WithLogger(l logx.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.log = l
		}
	}
}

type Runtime struct {
	system  *protoactor.ActorSystem
	root    *protoactor.RootContext
	manager *protoactor.PID
	sweeper *protoactor.PID
	timeout time.Duration
	now     func() time.Time
	log     logx.Logger

	sweepEvery time.Duration
	flushEvery time.Duration
	stopOnce   sync.Once
}

func NewRuntime(game *state.GameState, opts ...Option) *Runtime {
	r := &Runtime{
		timeout:    defaultAskTimeout,
		now:        time.Now,
		log:        logx.Nop(),
		sweepEvery: defaultSweepEvery,
		flushEvery: defaultFlushEvery,
	}
	for _, opt := range opts {
		opt(r)
	}

	/**
	ActorSystem 管理 PID、调度、邮箱和系统消息；
	root context 是系统外部对 actor 的操作入口。
	*/
	r.system = protoactor.NewActorSystem()
	r.root = r.system.Root

	// manager 只路由，不干重活
	r.manager = r.root.Spawn(protoactor.PropsFromProducer(func() protoactor.Actor {
		return actors.NewManagerActor(game)
	}))
	r.sweeper = r.root.Spawn(protoactor.PropsFromProducer(func() protoactor.Actor {
		return actors.NewSweeperActor(game, r.log, r.now, r.sweepEvery, r.flushEvery)
	}))
	return r
}

// Shutdown 先停清扫 actor（它在停止前做最后一次 FlushDirty），再停 manager 和系统。可重复调用。
func (r *Runtime) Shutdown() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() {
		if r.root != nil && r.sweeper != nil {
			if err := r.root.PoisonFuture(r.sweeper).Wait(); err != nil {
				r.log.Warn("sweeper stop failed", zap.Error(err))
			}
		}
		if r.root != nil && r.manager != nil {
			_ = r.root.StopFuture(r.manager).Wait()
		}
		if r.system != nil {
			r.system.Shutdown()
		}
	})
}

// Do 把命令投递给对应玩家的 actor 并等待回复。
func (r *Runtime) Do(ctx context.Context, cmd messages.Command) (any, error) {
	if r == nil || r.root == nil {
		return nil, &RuntimeError{Message: "actor runtime 未初始化"}
	}
	if cmd == nil {
		return nil, &RuntimeError{Message: "command 为空"}
	}
	traceID, _ := tracex.TraceIDFrom(ctx)
	cmd.Stamp(traceID, r.now())

	res, err := r.request(r.manager, cmd, r.timeoutFromContext(ctx))
	if err != nil {
		return nil, err
	}
	reply, ok := res.(*messages.Reply)
	if !ok || reply == nil {
		return nil, &RuntimeError{Message: fmt.Sprintf("actor 返回类型非法: %T", res)}
	}
	return reply.Value, reply.Err
}

// Ask 是带类型的 Do。
func Ask[T any](ctx context.Context, r *Runtime, cmd messages.Command) (T, error) {
	var zero T
	v, err := r.Do(ctx, cmd)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, &RuntimeError{Message: fmt.Sprintf("actor 回复值类型非法: %T", v)}
	}
	return out, nil
}

func (r *Runtime) request(pid *protoactor.PID, msg any, timeout time.Duration) (any, error) {
	if pid == nil {
		return nil, &RuntimeError{Message: "actor pid 为空"}
	}

	// RequestFuture 注册一个 future 作为 Sender，对方 Respond 或超时后返回
	future := r.root.RequestFuture(pid, msg, timeout)
	res, err := future.Result()
	if err != nil {
		return nil, &RuntimeError{
			Message: "actor 请求失败",
			Cause:   err,
		}
	}
	return res, nil
}

func (r *Runtime) timeoutFromContext(ctx context.Context) time.Duration {
	if r == nil || r.timeout <= 0 {
		return defaultAskTimeout
	}
	if ctx == nil {
		return r.timeout
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return r.timeout
	}
	remain := time.Until(deadline)
	if remain <= 0 {
		return time.Millisecond
	}
	if remain < r.timeout {
		return remain
	}
	return r.timeout
}
