package memory

import (
	"context"
	"testing"
	"time"

	"Conquest/internal/game/entity"
)

func snapshot(id entity.PlayerID, version uint64, gold int64) entity.PlayerSnapshot {
	return entity.PlayerSnapshot{
		Version: version,
		Player:  entity.PlayerState{ID: id, Name: "p", Resources: entity.Resources{Gold: gold}},
		Cities: []entity.CityState{{
			ID: entity.CityID(id * 10), Owner: id, Name: "c",
			Buildings: map[entity.BuildingType]*entity.Building{
				entity.Farm: {Type: entity.Farm, Level: 2},
			},
		}},
	}
}

func TestSave_旧版本不覆盖新版本(t *testing.T) {
	ctx := context.Background()
	r := NewPlayerRepo()
	if err := r.Save(ctx, []entity.PlayerSnapshot{snapshot(1, 5, 500)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := r.Save(ctx, []entity.PlayerSnapshot{snapshot(1, 3, 300)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	all, _ := r.LoadAll(ctx)
	if len(all) != 1 || all[0].Version != 5 || all[0].Player.Resources.Gold != 500 {
		t.Fatalf("stale snapshot overwrote newer one: %+v", all)
	}
}

func TestSave_深拷贝隔离调用方(t *testing.T) {
	ctx := context.Background()
	r := NewPlayerRepo()
	s := snapshot(2, 1, 10)
	_ = r.Save(ctx, []entity.PlayerSnapshot{s})
	s.Cities[0].Buildings[entity.Farm].Level = 9

	all, _ := r.LoadAll(ctx)
	if got := all[0].Cities[0].Buildings[entity.Farm].Level; got != 2 {
		t.Fatalf("stored snapshot mutated through caller, level=%d", got)
	}
}

func TestReports_双方可见且倒序(t *testing.T) {
	ctx := context.Background()
	r := NewPlayerRepo()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b1 := entity.BattleReport{ID: "b1", Attacker: 1, Defender: 2, At: t0}
	b2 := entity.BattleReport{ID: "b2", Attacker: 2, Defender: 1, At: t0.Add(time.Hour)}

	a := snapshot(1, 1, 0)
	d := snapshot(2, 2, 0)
	a.Reports = []entity.BattleReport{b1}
	d.Reports = []entity.BattleReport{b1}
	_ = r.Save(ctx, []entity.PlayerSnapshot{a, d})
	a2 := snapshot(1, 3, 0)
	a2.Reports = []entity.BattleReport{b2}
	_ = r.Save(ctx, []entity.PlayerSnapshot{a2})

	got, _ := r.Reports(ctx, 1, 10)
	if len(got) != 2 || got[0].ID != "b2" || got[1].ID != "b1" {
		t.Fatalf("unexpected reports: %+v", got)
	}
	got, _ = r.Reports(ctx, 2, 1)
	if len(got) != 1 || got[0].ID != "b2" {
		t.Fatalf("defender should see latest report, got %+v", got)
	}

	all, _ := r.LoadAll(ctx)
	if len(all[0].Reports) != 2 || all[0].Reports[0].ID != "b1" {
		t.Fatalf("LoadAll reports should be oldest first: %+v", all[0].Reports)
	}
}
