package gameconfig

import (
	"testing"
	"time"

	"Conquest/internal/game/entity"
)

func TestUpgradeCost_按等级单调递增(t *testing.T) {
	b := MustDefault()
	first := b.UpgradeCost(entity.TownHall, 1)
	if first != (entity.Resources{Gold: 5000, Wood: 3000, Stone: 2000, Iron: 1000}) {
		t.Fatalf("town hall 1->2 cost=%+v", first)
	}
	second := b.UpgradeCost(entity.TownHall, 2)
	if second.Gold != 7500 {
		t.Fatalf("town hall 2->3 gold=%d", second.Gold)
	}
	if b.UpgradeDuration(entity.TownHall, 1) != 2*time.Hour {
		t.Fatalf("town hall duration=%v", b.UpgradeDuration(entity.TownHall, 1))
	}
	if b.UpgradeDuration(entity.Walls, 3) <= b.UpgradeDuration(entity.Walls, 2) {
		t.Fatalf("duration should grow with level")
	}
}

func TestTrainingDuration_校场加速有下限(t *testing.T) {
	b := MustDefault()
	if got := b.TrainingDuration(entity.Infantry, 10, 1); got != 5*time.Minute {
		t.Fatalf("10 infantry at TG1=%v", got)
	}
	if got := b.TrainingDuration(entity.Infantry, 10, 100); got != 150*time.Second {
		t.Fatalf("speed factor should floor at 50%%, got=%v", got)
	}
	if b.TrainingDuration(entity.Siege, 1, 1) <= b.TrainingDuration(entity.Cavalry, 1, 1) {
		t.Fatalf("siege should be slowest")
	}
}

func TestLevelForExperience(t *testing.T) {
	b := MustDefault()
	cases := map[int64]int{0: 1, 499: 1, 500: 2, 1499: 2, 1500: 3}
	for exp, want := range cases {
		if got := b.LevelForExperience(exp); got != want {
			t.Fatalf("exp=%d level=%d want=%d", exp, got, want)
		}
	}
	if b.RankFor(1) != "Beginner" || b.RankFor(12) != "Lord" {
		t.Fatalf("rank mismatch")
	}
}

func TestLoad_覆盖部分字段(t *testing.T) {
	b, err := Load(map[string]any{
		"combat":  map[string]any{"min_attack_interval": "90s"},
		"economy": map[string]any{"max_construction_queue": 2},
		"rewards": map[string]any{"timezone": "Asia/Shanghai"},
	})
	if err != nil {
		t.Fatalf("load err=%v", err)
	}
	if b.Combat.MinAttackInterval != 90*time.Second {
		t.Fatalf("interval=%v", b.Combat.MinAttackInterval)
	}
	if b.Economy.MaxConstructionQueue != 2 || b.Economy.StartingResources.Gold != 2000 {
		t.Fatalf("override should keep other defaults: %+v", b.Economy)
	}
	if b.Location().String() != "Asia/Shanghai" {
		t.Fatalf("loc=%v", b.Location())
	}
}

func TestLoad_非法配置被拒绝(t *testing.T) {
	if _, err := Load(map[string]any{"economy": map[string]any{"max_construction_queue": 0}}); err == nil {
		t.Fatalf("expected validation error")
	}
}
