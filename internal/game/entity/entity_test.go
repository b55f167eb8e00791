package entity

import (
	"testing"
	"time"
)

func TestResources_Covers与Shortfall(t *testing.T) {
	stock := Resources{Gold: 4000, Wood: 3000, Stone: 2000, Iron: 1000}
	cost := Resources{Gold: 5000, Wood: 3000, Stone: 2000, Iron: 1000}
	if stock.Covers(cost) {
		t.Fatalf("gold 不足时不应覆盖")
	}
	if got := stock.Shortfall(cost); got != (Resources{Gold: 1000}) {
		t.Fatalf("shortfall=%+v", got)
	}
	if !stock.Add(Resources{Gold: 1000}).Covers(cost) {
		t.Fatalf("补足后应覆盖")
	}
}

func TestResources_Floor不多给(t *testing.T) {
	got := Resources{Gold: 99, Food: 10}.Floor(0.15)
	if got.Gold != 14 || got.Food != 1 {
		t.Fatalf("floor=%+v", got)
	}
}

func TestArmy_SubAndCovers(t *testing.T) {
	a := Army{Infantry: 100, Archers: 50, Cavalry: 30, Siege: 5}
	force := Army{Infantry: 60, Siege: 5}
	if !a.Covers(force) {
		t.Fatalf("应覆盖")
	}
	rest := a.Sub(force)
	if rest.Infantry != 40 || rest.Siege != 0 || rest.Total() != 120 {
		t.Fatalf("rest=%+v", rest)
	}
	if a.Covers(Army{Cavalry: 31}) {
		t.Fatalf("cavalry 超出时不应覆盖")
	}
}

func TestBuilding_升级状态流转(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := &Building{Type: Walls, Level: 1}
	b.BeginUpgrade(now, now.Add(time.Minute), Resources{Stone: 10})
	if !b.UnderConstruction() {
		t.Fatalf("期望建造中")
	}
	b.FinishUpgrade()
	if b.Level != 2 || b.UnderConstruction() || !b.PaidCost.IsZero() {
		t.Fatalf("完成后状态异常 %+v", b)
	}
}

func TestCity_补齐建筑并夹紧幸福度(t *testing.T) {
	c := NewCity(CityState{ID: 1, Happiness: 140})
	if len(c.Buildings) != len(BuildingTypes) {
		t.Fatalf("buildings=%d", len(c.Buildings))
	}
	if c.Happiness != MaxHappiness {
		t.Fatalf("happiness=%d", c.Happiness)
	}
	c.SetHappiness(-5)
	if c.Happiness != 0 {
		t.Fatalf("happiness=%d", c.Happiness)
	}
}

func TestBuildSnapshot_深拷贝(t *testing.T) {
	c := NewCity(CityState{ID: 7, Owner: 1})
	c.Training = &TrainingOrder{Unit: Infantry, Quantity: 10}
	p := NewPlayer(PlayerState{ID: 1}, c)

	s := p.BuildSnapshot(3)
	c.Buildings[Farm].Level = 9
	c.Training.Quantity = 99

	if s.Version != 3 || len(s.Cities) != 1 {
		t.Fatalf("snapshot=%+v", s)
	}
	if s.Cities[0].Buildings[Farm].Level != 1 {
		t.Fatalf("快照不应随实体变化")
	}
	if s.Cities[0].Training.Quantity != 10 {
		t.Fatalf("训练单应被拷贝")
	}

	back := Hydrate(s)
	if back.Capital().Owner != 1 || back.Capital().BuildingLevel(Farm) != 1 {
		t.Fatalf("hydrate 失败")
	}
}

func TestPlayer_经验与等级单调(t *testing.T) {
	p := NewPlayer(PlayerState{ID: 1})
	levelFor := func(exp int64) int { return 1 + int(exp/100) }
	if got := p.GainExperience(250, levelFor); got != 2 || p.Level != 3 {
		t.Fatalf("gained=%d level=%d", got, p.Level)
	}
	if got := p.GainExperience(-10, levelFor); got != 0 || p.Experience != 250 {
		t.Fatalf("负经验不应生效")
	}
	p.Touch(time.Unix(100, 0))
	p.Touch(time.Unix(50, 0))
	if p.LastActionAt != time.Unix(100, 0) {
		t.Fatalf("last action 不应回退")
	}
}
