package ledger

import (
	"errors"
	"testing"
	"time"

	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/shared/gameconfig"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func newPlayer(res entity.Resources, happiness int) *entity.Player {
	c := entity.NewCity(entity.CityState{ID: 1, Owner: 1, Happiness: happiness, HappinessAt: t0})
	p := entity.NewPlayer(entity.PlayerState{ID: 1, Resources: res, AccruedAt: t0}, c)
	return p
}

func TestAccrue_二级农场五分钟产出50粮(t *testing.T) {
	l := New(gameconfig.MustDefault())
	p := newPlayer(entity.Resources{Food: 1000}, 100)
	p.Capital().Buildings[entity.Farm].Level = 2

	if got := l.CityProductionPerMinute(p.Capital()).Food; got != 10 {
		t.Fatalf("farm L2 rate=%d want 10/min", got)
	}
	delta := l.Accrue(p, t0.Add(5*time.Minute))
	if delta.Food != 50 {
		t.Fatalf("accrued food=%d want 50", delta.Food)
	}
	if p.Resources.Food != 1050 {
		t.Fatalf("food=%d want 1050", p.Resources.Food)
	}
}

func TestAccrue_同一时刻重复调用幂等(t *testing.T) {
	l := New(gameconfig.MustDefault())
	p := newPlayer(entity.Resources{}, 85)
	now := t0.Add(37*time.Minute + 123*time.Millisecond)

	l.Accrue(p, now)
	once := p.Resources
	second := l.Accrue(p, now)
	if !second.IsZero() || p.Resources != once {
		t.Fatalf("second accrue changed state: delta=%+v before=%+v after=%+v", second, once, p.Resources)
	}
}

func TestAccrue_分段结算与一次结算相同(t *testing.T) {
	l := New(gameconfig.MustDefault())
	a := newPlayer(entity.Resources{}, 85)
	b := newPlayer(entity.Resources{}, 85)

	for i := 1; i <= 60; i++ {
		l.Accrue(a, t0.Add(time.Duration(i)*7*time.Second))
	}
	l.Accrue(b, t0.Add(420*time.Second))
	if a.Resources != b.Resources {
		t.Fatalf("split=%+v whole=%+v", a.Resources, b.Resources)
	}
}

func TestAccrue_低于基线时频繁结算不多产(t *testing.T) {
	l := New(gameconfig.MustDefault())
	a := newPlayer(entity.Resources{}, 40)
	b := newPlayer(entity.Resources{}, 40)
	for _, p := range []*entity.Player{a, b} {
		p.Capital().Buildings[entity.Farm].Level = 3
	}

	for i := 1; i <= 60; i++ {
		l.Accrue(a, t0.Add(time.Duration(i)*10*time.Minute))
	}
	l.Accrue(b, t0.Add(10*time.Hour))

	if a.Resources != b.Resources {
		t.Fatalf("frequent=%+v single=%+v", a.Resources, b.Resources)
	}
	if a.Capital().Happiness != b.Capital().Happiness || a.Capital().Happiness != 85 {
		t.Fatalf("happiness frequent=%d single=%d", a.Capital().Happiness, b.Capital().Happiness)
	}
	// 40 点起每 10 分钟恢复 1 点，前 45 段逐段升高，之后 15 段停在 85。
	var want int64
	for i := 0; i < 60; i++ {
		want += int64(min(40+i, 85)) * 10
	}
	rate := l.cityRate(a.Capital()).Gold
	if got := a.Resources.Gold; got != rate*want/100 {
		t.Fatalf("gold=%d want %d", got, rate*want/100)
	}
}

func TestAccrue_不超过容量且不减少(t *testing.T) {
	l := New(gameconfig.MustDefault())
	p := newPlayer(entity.Resources{}, 100)
	capacity := l.Capacity(p)
	p.Resources = entity.Resources{Food: capacity.Food - 3, Gold: capacity.Gold + 500}

	before := p.Resources
	l.Accrue(p, t0.Add(24*time.Hour))
	for _, k := range entity.ResourceKinds {
		if p.Resources.Get(k) < before.Get(k) {
			t.Fatalf("%s decreased: %d -> %d", k, before.Get(k), p.Resources.Get(k))
		}
		if before.Get(k) <= capacity.Get(k) && p.Resources.Get(k) > capacity.Get(k) {
			t.Fatalf("%s exceeded cap: %d > %d", k, p.Resources.Get(k), capacity.Get(k))
		}
	}
	if p.Resources.Food != capacity.Food {
		t.Fatalf("food should saturate at cap, got=%d", p.Resources.Food)
	}
	if p.Resources.Gold != before.Gold {
		t.Fatalf("over-cap gold must stay untouched, got=%d", p.Resources.Gold)
	}
}

func TestAccrue_时间倒退不生效(t *testing.T) {
	l := New(gameconfig.MustDefault())
	p := newPlayer(entity.Resources{}, 85)
	if d := l.Accrue(p, t0.Add(-time.Hour)); !d.IsZero() {
		t.Fatalf("delta=%+v", d)
	}
	if !p.AccruedAt.Equal(t0) {
		t.Fatalf("accrual point moved backwards")
	}
}

func TestAccrue_幸福度向基线恢复(t *testing.T) {
	l := New(gameconfig.MustDefault())
	p := newPlayer(entity.Resources{}, 60)
	l.Accrue(p, t0.Add(35*time.Minute))
	if got := p.Capital().Happiness; got != 63 {
		t.Fatalf("happiness=%d want 63", got)
	}
	l.Accrue(p, t0.Add(100*time.Hour))
	if got := p.Capital().Happiness; got != 85 {
		t.Fatalf("happiness=%d want baseline 85", got)
	}
}

func TestDebit_不足时一项都不扣(t *testing.T) {
	l := New(gameconfig.MustDefault())
	p := newPlayer(entity.Resources{Gold: 4000, Wood: 5000, Stone: 5000, Iron: 5000}, 85)
	before := p.Resources

	err := l.Debit(p, entity.Resources{Gold: 5000, Wood: 3000, Stone: 2000, Iron: 1000})
	if !errors.Is(err, errs.ErrInsufficientResources) {
		t.Fatalf("err=%v", err)
	}
	if p.Resources != before {
		t.Fatalf("partial debit: before=%+v after=%+v", before, p.Resources)
	}
	if err := l.Debit(p, entity.Resources{Gold: 4000}); err != nil {
		t.Fatalf("exact debit err=%v", err)
	}
	if p.Resources.Gold != 0 {
		t.Fatalf("gold=%d", p.Resources.Gold)
	}
	if err := l.Debit(p, entity.Resources{Gold: -1}); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("negative cost err=%v", err)
	}
}

func TestCredit_溢出丢弃(t *testing.T) {
	l := New(gameconfig.MustDefault())
	p := newPlayer(entity.Resources{}, 85)
	capacity := l.Capacity(p)
	p.Resources.Iron = capacity.Iron - 10

	got := l.Credit(p, entity.Resources{Iron: 100, Gold: 5, Food: -3})
	if got.Iron != 10 || got.Gold != 5 || got.Food != 0 {
		t.Fatalf("credited=%+v", got)
	}
	if p.Resources.Iron != capacity.Iron {
		t.Fatalf("iron=%d", p.Resources.Iron)
	}
}

func TestQuote_市场汇率(t *testing.T) {
	l := New(gameconfig.MustDefault())
	if got := l.Quote(entity.Food, 100); got != 200 {
		t.Fatalf("food=%d", got)
	}
	if got := l.Quote(entity.Iron, 101); got != 50 {
		t.Fatalf("iron=%d", got)
	}
	if got := l.Quote(entity.Mana, 100); got != 0 {
		t.Fatalf("mana should not be exchangeable, got=%d", got)
	}
}
