package state

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"Conquest/internal/game/clock"
	"Conquest/internal/game/combat"
	"Conquest/internal/game/construction"
	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/game/ledger"
	"Conquest/internal/game/port"
	"Conquest/internal/game/training"
	"Conquest/internal/shared/gameconfig"
	"Conquest/modules/kit/logx"
)

const (
	maxNameLen       = 32
	recentReports    = 20
	placementRetries = 64
)

// IDGenerator 生成全局唯一的玩家和城市 id。
type IDGenerator interface {
	NextID() int64
}

type coord struct{ x, y int }

// GameState 是游戏状态的聚合根，外部只通过它读写玩家和城市。
//
// mu 只保护注册表（几个索引 map）；实体字段由实体自己的锁保护，
// 命令先在 mu 下查到实体，再按 lockSet 的顺序加实体锁。
type GameState struct {
	bal          *gameconfig.Balance
	ledger       *ledger.Ledger
	timers       *clock.Index
	construction *construction.Manager
	training     *training.Manager
	combat       *combat.Resolver

	log      logx.Logger
	ids      IDGenerator
	sink     port.SnapshotSink
	notifier Notifier
	observer Observer

	rngMu sync.Mutex
	rng   *rand.Rand

	mu         sync.RWMutex
	players    map[entity.PlayerID]*entity.Player
	byExternal map[string]entity.PlayerID
	cities     map[entity.CityID]*entity.City
	coords     map[coord]entity.CityID

	reportsMu sync.Mutex
	reports   map[entity.PlayerID][]entity.BattleReport

	version atomic.Uint64
}

type Option func(*GameState)

func WithLogger(l logx.Logger) Option {
	return func(s *GameState) {
		if l != nil {
			s.log = l
		}
	}
}

func WithIDGenerator(g IDGenerator) Option {
	return func(s *GameState) { s.ids = g }
}

func WithSink(sink port.SnapshotSink) Option {
	return func(s *GameState) {
		if sink != nil {
			s.sink = sink
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *GameState) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *GameState) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithRand 注入随机源，用于城市落点和战斗命中浮动。
func WithRand(r *rand.Rand) Option {
	return func(s *GameState) { s.rng = r }
}

// WithCombatOptions 透传给战斗结算器。
func WithCombatOptions(opts ...combat.Option) Option {
	return func(s *GameState) {
		s.combat = combat.NewResolver(s.bal, s.ledger, opts...)
	}
}

func New(bal *gameconfig.Balance, opts ...Option) *GameState {
	l := ledger.New(bal)
	timers := clock.NewIndex()
	s := &GameState{
		bal:          bal,
		ledger:       l,
		timers:       timers,
		construction: construction.NewManager(bal, l, timers),
		training:     training.NewManager(bal, l, timers),
		log:          logx.Nop(),
		ids:          &sequence{},
		sink:         nopSink{},
		notifier:     nopNotifier{},
		observer:     nopObserver{},
		players:      make(map[entity.PlayerID]*entity.Player),
		byExternal:   make(map[string]entity.PlayerID),
		cities:       make(map[entity.CityID]*entity.City),
		coords:       make(map[coord]entity.CityID),
		reports:      make(map[entity.PlayerID][]entity.BattleReport),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	if s.combat == nil {
		s.combat = combat.NewResolver(bal, l, combat.WithRand(s.rng))
	}
	return s
}

func (s *GameState) Balance() *gameconfig.Balance { return s.bal }

// Timers 暴露计时器索引，供清扫节奏和测试观察。
func (s *GameState) Timers() *clock.Index { return s.timers }

// RegisterPlayer 按外部用户 id 注册玩家并分配第一座城。重复注册返回已有 id，created 为 false。
func (s *GameState) RegisterPlayer(ctx context.Context, externalID, name string, now time.Time) (id entity.PlayerID, created bool, err error) {
	start := time.Now()
	defer func() { s.observer.CommandDone("register_player", err, time.Since(start)) }()

	externalID = strings.TrimSpace(externalID)
	name = strings.TrimSpace(name)
	if externalID == "" {
		return 0, false, errs.Invalid("external id is required")
	}
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return 0, false, errs.Invalid("display name must be 1-%d characters", maxNameLen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byExternal[externalID]; ok {
		return existing, false, nil
	}
	at, err := s.placeCityLocked()
	if err != nil {
		return 0, false, err
	}

	pid := entity.PlayerID(s.ids.NextID())
	cid := entity.CityID(s.ids.NextID())
	if _, dup := s.players[pid]; dup {
		return 0, false, errs.Fault("state.RegisterPlayer", nil, map[string]any{"player_id": pid})
	}
	w := s.bal.World
	city := entity.NewCity(entity.CityState{
		ID:            cid,
		Owner:         pid,
		Name:          name,
		Level:         1,
		Population:    w.CityPopulation,
		MaxPopulation: w.CityPopulation,
		Happiness:     w.CityHappiness,
		HappinessAt:   now,
		DefenseRating: w.CityDefense,
		X:             at.x,
		Y:             at.y,
		CreatedAt:     now,
		Army:          w.StartingArmy,
	})
	p := entity.NewPlayer(entity.PlayerState{
		ID:           pid,
		ExternalID:   externalID,
		Name:         name,
		Level:        1,
		Resources:    s.bal.Economy.StartingResources,
		AccruedAt:    now,
		LastActionAt: now,
		CreatedAt:    now,
	}, city)
	p.MarkDirty()

	s.players[pid] = p
	s.byExternal[externalID] = pid
	s.cities[cid] = city
	s.coords[at] = cid
	s.observer.PlayersRegistered(len(s.players))

	s.log.WithContext(ctx).Info("player registered",
		zap.Int64("player_id", int64(pid)),
		zap.String("external_id", externalID),
		zap.Int64("city_id", int64(cid)),
		zap.Int("x", at.x), zap.Int("y", at.y),
	)
	return pid, true, nil
}

// PlayerIDByExternal 按外部用户 id 查玩家。
func (s *GameState) PlayerIDByExternal(externalID string) (entity.PlayerID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalID]
	return id, ok
}

func (s *GameState) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

func (s *GameState) CityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cities)
}

// Load 从仓储恢复全部玩家，并按持久化的完成时间重建计时器。只能在对外服务前调用一次。
func (s *GameState) Load(ctx context.Context, repo port.PlayerRepository) error {
	snaps, err := repo.LoadAll(ctx)
	if err != nil {
		return errs.Persist("state.Load", err, nil)
	}

	loaded := make([]*entity.Player, 0, len(snaps))
	s.mu.Lock()
	for _, snap := range snaps {
		if _, dup := s.players[snap.Player.ID]; dup {
			s.mu.Unlock()
			return errs.Fault("state.Load", nil, map[string]any{"player_id": snap.Player.ID, "reason": "duplicate player"})
		}
		p := entity.Hydrate(snap)
		s.players[p.ID] = p
		if p.ExternalID != "" {
			s.byExternal[p.ExternalID] = p.ID
		}
		for _, c := range p.Cities {
			s.cities[c.ID] = c
			s.coords[coord{c.X, c.Y}] = c.ID
		}
		if snap.Version > s.version.Load() {
			s.version.Store(snap.Version)
		}
		if len(snap.Reports) > 0 {
			s.reports[p.ID] = trimReports(snap.Reports)
		}
		loaded = append(loaded, p)
	}
	total := len(s.players)
	s.mu.Unlock()

	for _, p := range loaded {
		ls := newLockSet(p)
		if err := ls.acquire(); err != nil {
			return err
		}
		err := s.restoreTimers(p)
		ls.release()
		if err != nil {
			return err
		}
	}
	s.observer.PlayersRegistered(total)
	s.log.WithContext(ctx).Info("game state loaded",
		zap.Int("players", total),
		zap.Int("timers", s.timers.Len()),
		zap.Uint64("version", s.version.Load()),
	)
	return nil
}

func (s *GameState) restoreTimers(p *entity.Player) error {
	for _, c := range p.Cities {
		if err := s.construction.Restore(p, c); err != nil {
			return err
		}
		if err := s.training.Restore(p, c); err != nil {
			return err
		}
	}
	return nil
}

// HasPlayer 玩家是否已注册。
func (s *GameState) HasPlayer(id entity.PlayerID) bool {
	_, err := s.player(id)
	return err == nil
}

func (s *GameState) player(id entity.PlayerID) (*entity.Player, error) {
	if id <= 0 {
		return nil, errs.ErrPlayerNotFound.WithData("player_id", id)
	}
	s.mu.RLock()
	p := s.players[id]
	s.mu.RUnlock()
	if p == nil {
		return nil, errs.ErrPlayerNotFound.WithData("player_id", id)
	}
	return p, nil
}

func (s *GameState) city(id entity.CityID) (*entity.City, error) {
	s.mu.RLock()
	c := s.cities[id]
	s.mu.RUnlock()
	if c == nil {
		return nil, errs.ErrCityNotFound.WithData("city_id", id)
	}
	return c, nil
}

// ownedCity 城市必须属于玩家；cityID 为 0 时取主城。城市归属创建后不变，无需加锁读取。
func (s *GameState) ownedCity(p *entity.Player, cityID entity.CityID) (*entity.City, error) {
	if cityID == 0 {
		if c := p.Capital(); c != nil {
			return c, nil
		}
		return nil, errs.ErrCityNotFound.WithData("player_id", p.ID)
	}
	c, err := s.city(cityID)
	if err != nil {
		return nil, err
	}
	if c.Owner != p.ID {
		return nil, errs.ErrNotCityOwner.WithData("city_id", cityID)
	}
	return c, nil
}

// placeCityLocked 随机找一个空坐标，多次碰撞后顺序扫描。调用方持有 mu。
func (s *GameState) placeCityLocked() (coord, error) {
	w, h := s.bal.World.Width, s.bal.World.Height
	s.rngMu.Lock()
	for i := 0; i < placementRetries; i++ {
		at := coord{s.rng.IntN(w), s.rng.IntN(h)}
		if _, taken := s.coords[at]; !taken {
			s.rngMu.Unlock()
			return at, nil
		}
	}
	s.rngMu.Unlock()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if _, taken := s.coords[coord{x, y}]; !taken {
				return coord{x, y}, nil
			}
		}
	}
	return coord{}, errs.Fault("state.placeCity", nil, map[string]any{"reason": "world map is full"})
}

func (s *GameState) nextVersion() uint64 {
	return s.version.Add(1)
}

func (s *GameState) recordReport(r entity.BattleReport) {
	s.reportsMu.Lock()
	defer s.reportsMu.Unlock()
	for _, id := range []entity.PlayerID{r.Attacker, r.Defender} {
		s.reports[id] = trimReports(append(s.reports[id], r))
	}
}

// Reports 最近的战报，新的在前。
func (s *GameState) Reports(playerID entity.PlayerID, limit int) []entity.BattleReport {
	s.reportsMu.Lock()
	defer s.reportsMu.Unlock()
	list := s.reports[playerID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]entity.BattleReport, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out
}

func trimReports(list []entity.BattleReport) []entity.BattleReport {
	if len(list) <= recentReports {
		return list
	}
	return append([]entity.BattleReport(nil), list[len(list)-recentReports:]...)
}

// sequence 是没有注入 id 生成器时的进程内自增 id，只用于测试和单机演示。
type sequence struct{ n atomic.Int64 }

func (q *sequence) NextID() int64 { return q.n.Add(1) }
