package state

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"Conquest/internal/game/clock"
	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/shared/gameconfig"
)

var t0 = time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu     sync.Mutex
	groups [][]entity.PlayerSnapshot
}

func (r *recordingSink) Enqueue(snaps ...entity.PlayerSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = append(r.groups, append([]entity.PlayerSnapshot(nil), snaps...))
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Notify(events ...Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recordingNotifier) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type fakeRepo struct {
	snaps []entity.PlayerSnapshot
}

func (f *fakeRepo) LoadAll(context.Context) ([]entity.PlayerSnapshot, error) { return f.snaps, nil }
func (f *fakeRepo) Save(_ context.Context, snaps []entity.PlayerSnapshot) error {
	f.snaps = append(f.snaps, snaps...)
	return nil
}
func (f *fakeRepo) Reports(context.Context, entity.PlayerID, int) ([]entity.BattleReport, error) {
	return nil, nil
}

func newState(t *testing.T, opts ...Option) *GameState {
	t.Helper()
	opts = append([]Option{WithRand(rand.New(rand.NewPCG(3, 5)))}, opts...)
	return New(gameconfig.MustDefault(), opts...)
}

func mustRegister(t *testing.T, s *GameState, ext string) entity.PlayerID {
	t.Helper()
	id, created, err := s.RegisterPlayer(context.Background(), ext, "lord "+ext, t0)
	if err != nil || !created {
		t.Fatalf("register %s: id=%d created=%v err=%v", ext, id, created, err)
	}
	return id
}

func rich(t *testing.T, s *GameState, id entity.PlayerID) {
	t.Helper()
	if _, err := s.Credit(context.Background(), id, entity.Resources{Gold: 9000, Wood: 9000, Stone: 9000, Iron: 9000}, t0); err != nil {
		t.Fatalf("credit err=%v", err)
	}
}

func TestRegisterPlayer_幂等且坐标唯一(t *testing.T) {
	s := newState(t)
	ctx := context.Background()

	a := mustRegister(t, s, "tg:1")
	again, created, err := s.RegisterPlayer(ctx, "tg:1", "other", t0)
	if err != nil || created || again != a {
		t.Fatalf("re-register id=%d created=%v err=%v", again, created, err)
	}
	mustRegister(t, s, "tg:2")
	if _, _, err := s.RegisterPlayer(ctx, "  ", "x", t0); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("err=%v", err)
	}

	cities := s.WorldMap(0, 0)
	if len(cities) != 2 {
		t.Fatalf("cities=%v", cities)
	}
	if cities[0].X == cities[1].X && cities[0].Y == cities[1].Y {
		t.Fatalf("duplicate coordinates %+v", cities)
	}
	snap, err := s.Snapshot(a)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if snap.Player.Resources.Gold != 2000 || snap.Cities[0].Army.Infantry != 100 || snap.Cities[0].Happiness != 85 {
		t.Fatalf("starting state=%+v", snap)
	}
}

func TestStartUpgrade_并发升级城墙只有一个成功(t *testing.T) {
	s := newState(t)
	id := mustRegister(t, s, "tg:walls")
	rich(t, s, id)

	var (
		wg       sync.WaitGroup
		ok, busy atomic.Int32
		start    = make(chan struct{})
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.StartUpgrade(context.Background(), id, 0, entity.Walls, t0)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, errs.ErrAlreadyUnderConstruction):
				busy.Add(1)
			default:
				t.Errorf("unexpected err=%v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	if ok.Load() != 1 || busy.Load() != 1 {
		t.Fatalf("ok=%d busy=%d", ok.Load(), busy.Load())
	}
	if s.Timers().Len() != 1 {
		t.Fatalf("timers=%d", s.Timers().Len())
	}
}

func TestStartUpgrade_市政厅金币不足(t *testing.T) {
	s := newState(t)
	id := mustRegister(t, s, "tg:poor")
	ctx := context.Background()
	if _, err := s.Credit(ctx, id, entity.Resources{Gold: 2000, Wood: 5000, Stone: 5000, Iron: 5000}, t0); err != nil {
		t.Fatalf("err=%v", err)
	}

	_, err := s.StartUpgrade(ctx, id, 0, entity.TownHall, t0)
	if !errors.Is(err, errs.ErrInsufficientResources) {
		t.Fatalf("err=%v", err)
	}
	snap, _ := s.Snapshot(id)
	if snap.Player.Resources.Gold != 4000 {
		t.Fatalf("gold=%d want 4000", snap.Player.Resources.Gold)
	}
}

func TestSweep_无人操作也完成建造(t *testing.T) {
	n := &recordingNotifier{}
	s := newState(t, WithNotifier(n))
	id := mustRegister(t, s, "tg:sweep")
	rich(t, s, id)

	job, err := s.StartUpgrade(context.Background(), id, 0, entity.Farm, t0)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if got := s.Sweep(context.Background(), job.FinishAt.Add(-time.Second)); got != 0 {
		t.Fatalf("nothing should be due, settled=%d", got)
	}
	if got := s.Sweep(context.Background(), job.FinishAt); got != 1 {
		t.Fatalf("settled=%d", got)
	}
	snap, _ := s.Snapshot(id)
	farm := snap.Cities[0].Buildings[entity.Farm]
	if farm.Level != 2 || farm.UnderConstruction() {
		t.Fatalf("farm=%+v", farm)
	}
	kinds := n.kinds()
	if len(kinds) == 0 || kinds[0] != EventConstructionCompleted {
		t.Fatalf("events=%v", kinds)
	}
}

func TestSettle_计时器完成前后分段结算产出(t *testing.T) {
	s := newState(t)
	id := mustRegister(t, s, "tg:accrue")
	rich(t, s, id)
	ctx := context.Background()

	job, err := s.StartUpgrade(ctx, id, 0, entity.Farm, t0)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if job.FinishAt.Sub(t0) != 10*time.Minute {
		t.Fatalf("farm duration=%v", job.FinishAt.Sub(t0))
	}
	delta, err := s.Accrue(ctx, id, t0.Add(20*time.Minute))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	// 1 级 10 分钟 42.5 + 2 级 10 分钟 85，幸福度 85%。
	if delta.Food != 127 {
		t.Fatalf("food delta=%d want 127", delta.Food)
	}
}

func TestResolveAttack_双方快照成组落库且保护期生效(t *testing.T) {
	sink := &recordingSink{}
	n := &recordingNotifier{}
	s := newState(t, WithSink(sink), WithNotifier(n))
	ctx := context.Background()
	a := mustRegister(t, s, "tg:a")
	d := mustRegister(t, s, "tg:d")
	target := s.WorldMap(0, 0)[1]
	if target.Owner != d {
		t.Fatalf("map order=%+v", s.WorldMap(0, 0))
	}

	attackerCity, _ := s.Snapshot(a)
	force := attackerCity.Cities[0].Army
	res, err := s.ResolveAttack(ctx, a, 0, force, target.ID, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !res.Report.AttackerWon {
		t.Fatalf("report=%+v", res.Report)
	}
	if len(sink.groups) != 1 || len(sink.groups[0]) != 2 {
		t.Fatalf("groups=%d", len(sink.groups))
	}
	for _, snap := range sink.groups[0] {
		if len(snap.Reports) != 1 || snap.Reports[0].ID != res.Report.ID {
			t.Fatalf("snapshot for %d missing report", snap.Player.ID)
		}
	}
	if got := s.Reports(d, 10); len(got) != 1 {
		t.Fatalf("defender reports=%v", got)
	}

	_, err = s.ResolveAttack(ctx, a, 0, entity.Army{Infantry: 1}, target.ID, t0.Add(time.Minute+30*time.Second))
	if !errors.Is(err, errs.ErrTargetOnCooldown) {
		t.Fatalf("err=%v want TargetOnCooldown", err)
	}
	if _, err := s.ResolveAttack(ctx, a, 0, entity.Army{Infantry: 1}, attackerCity.Cities[0].ID, t0); !errors.Is(err, errs.ErrSelfAttack) {
		t.Fatalf("err=%v want SelfAttack", err)
	}
	if _, err := s.ResolveAttack(ctx, a, target.ID, entity.Army{Infantry: 1}, target.ID, t0); !errors.Is(err, errs.ErrNotCityOwner) {
		t.Fatalf("err=%v want NotCityOwner", err)
	}
}

func TestResolveAttack_互相攻击不死锁(t *testing.T) {
	bal := gameconfig.MustDefault()
	bal.Combat.MinAttackInterval = 0
	s := New(bal, WithRand(rand.New(rand.NewPCG(9, 9))))
	ctx := context.Background()
	a := mustRegister(t, s, "tg:x")
	b := mustRegister(t, s, "tg:y")
	m := s.WorldMap(0, 0)
	cityOf := map[entity.PlayerID]entity.CityID{m[0].Owner: m[0].ID, m[1].Owner: m[1].ID}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, pair := range [][2]entity.PlayerID{{a, b}, {b, a}} {
			wg.Add(1)
			go func(from, to entity.PlayerID) {
				defer wg.Done()
				_, err := s.ResolveAttack(ctx, from, 0, entity.Army{Infantry: 1}, cityOf[to], t0.Add(time.Hour))
				if err != nil && !errors.Is(err, errs.ErrInsufficientForces) {
					t.Errorf("err=%v", err)
				}
			}(pair[0], pair[1])
		}
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("attacks deadlocked")
	}
}

func TestLockSet_乱序是一致性故障(t *testing.T) {
	p1 := entity.NewPlayer(entity.PlayerState{ID: 1})
	p2 := entity.NewPlayer(entity.PlayerState{ID: 2})
	ls := &lockSet{players: []*entity.Player{p2, p1}}
	if err := ls.acquire(); !errors.Is(err, errs.ErrConsistencyFault) {
		t.Fatalf("err=%v", err)
	}
	// 失败时不应持有任何锁。
	p1.Lock()
	p2.Lock()
	p2.Unlock()
	p1.Unlock()
}

func TestClaimDailyReward_每日一次与连续加成(t *testing.T) {
	s := newState(t)
	ctx := context.Background()
	id := mustRegister(t, s, "tg:daily")

	first, err := s.ClaimDailyReward(ctx, id, t0)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if first.Streak != 1 || first.Reward.Gold != 750 {
		t.Fatalf("first=%+v", first)
	}
	if _, err := s.ClaimDailyReward(ctx, id, t0.Add(10*time.Hour)); !errors.Is(err, errs.ErrAlreadyClaimedToday) {
		t.Fatalf("err=%v", err)
	}
	second, err := s.ClaimDailyReward(ctx, id, t0.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if second.Streak != 2 || second.Reward.Gold != 825 {
		t.Fatalf("second=%+v", second)
	}
	third, err := s.ClaimDailyReward(ctx, id, t0.Add(96*time.Hour))
	if err != nil || third.Streak != 1 {
		t.Fatalf("streak should reset after a gap: %+v err=%v", third, err)
	}
}

func TestCollectResources_奖励每小时一次(t *testing.T) {
	s := newState(t)
	ctx := context.Background()
	id := mustRegister(t, s, "tg:collect")

	first, err := s.CollectResources(ctx, id, t0.Add(time.Minute))
	if err != nil || first.Bonus.Gold != 200 {
		t.Fatalf("first=%+v err=%v", first, err)
	}
	second, _ := s.CollectResources(ctx, id, t0.Add(30*time.Minute))
	if !second.Bonus.IsZero() || second.Accrued.IsZero() {
		t.Fatalf("second=%+v", second)
	}
	if !second.NextBonusAt.Equal(t0.Add(61 * time.Minute)) {
		t.Fatalf("next=%v", second.NextBonusAt)
	}
}

func TestExchange_金币换粮(t *testing.T) {
	s := newState(t)
	ctx := context.Background()
	id := mustRegister(t, s, "tg:market")

	res, err := s.Exchange(ctx, id, entity.Food, 100, t0)
	if err != nil || res.Credited != 200 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if _, err := s.Exchange(ctx, id, entity.Iron, 1_000_000, t0); !errors.Is(err, errs.ErrInsufficientResources) {
		t.Fatalf("err=%v", err)
	}
	if _, err := s.Exchange(ctx, id, entity.Mana, 10, t0); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("err=%v", err)
	}
}

func TestExchange_目标资源已满时拒绝且不扣金币(t *testing.T) {
	s := newState(t)
	ctx := context.Background()
	id := mustRegister(t, s, "tg:market-full")

	if _, err := s.Credit(ctx, id, entity.Resources{Food: 10_000_000}, t0); err != nil {
		t.Fatalf("fill food: %v", err)
	}
	before, err := s.Snapshot(id)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	_, err = s.Exchange(ctx, id, entity.Food, 1000, t0)
	if !errors.Is(err, errs.ErrStorageFull) {
		t.Fatalf("err=%v want storage full", err)
	}
	after, _ := s.Snapshot(id)
	if after.Player.Resources != before.Player.Resources {
		t.Fatalf("resources changed on rejected exchange: %+v -> %+v", before.Player.Resources, after.Player.Resources)
	}
}

func TestLoad_按完成时间重建计时器(t *testing.T) {
	finish := t0.Add(time.Hour)
	city := entity.CityState{
		ID: 20, Owner: 10, Name: "old", Happiness: 85, HappinessAt: t0, Level: 1,
		Buildings: map[entity.BuildingType]*entity.Building{
			entity.Mine: {Type: entity.Mine, Level: 3, State: entity.UnderConstruction, StartedAt: t0, FinishAt: finish},
		},
		Training: &entity.TrainingOrder{Unit: entity.Infantry, Quantity: 5, StartAt: t0, FinishAt: finish.Add(time.Minute)},
	}
	repo := &fakeRepo{snaps: []entity.PlayerSnapshot{{
		Version: 41,
		Player:  entity.PlayerState{ID: 10, ExternalID: "tg:old", Name: "old", AccruedAt: t0},
		Cities:  []entity.CityState{city},
	}}}

	s := newState(t)
	if err := s.Load(context.Background(), repo); err != nil {
		t.Fatalf("load err=%v", err)
	}
	if s.Timers().Len() != 2 {
		t.Fatalf("timers=%d", s.Timers().Len())
	}
	if _, ok := s.Timers().Lookup(clock.ConstructionKey(20, entity.Mine), clock.KindConstruction); !ok {
		t.Fatalf("construction timer not restored")
	}
	if id, ok := s.PlayerIDByExternal("tg:old"); !ok || id != 10 {
		t.Fatalf("external index id=%d ok=%v", id, ok)
	}

	s.Sweep(context.Background(), finish.Add(time.Minute))
	snap, _ := s.Snapshot(10)
	if snap.Cities[0].Buildings[entity.Mine].Level != 4 || snap.Cities[0].Army.Infantry != 5 {
		t.Fatalf("city=%+v", snap.Cities[0])
	}
	if snap.Version < 41 {
		t.Fatalf("version should continue from persisted value, got %d", snap.Version)
	}
}

func TestFlushDirty_只输出有修改的玩家(t *testing.T) {
	sink := &recordingSink{}
	s := newState(t, WithSink(sink))
	mustRegister(t, s, "tg:f1")
	mustRegister(t, s, "tg:f2")

	if n := s.FlushDirty(context.Background()); n != 2 {
		t.Fatalf("first flush=%d", n)
	}
	if n := s.FlushDirty(context.Background()); n != 0 {
		t.Fatalf("second flush=%d", n)
	}
	if len(sink.groups) != 1 || sink.groups[0][0].Version == sink.groups[0][1].Version {
		t.Fatalf("groups=%+v", sink.groups)
	}
}
