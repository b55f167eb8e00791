package mysql

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"Conquest/internal/game/entity"
	"Conquest/internal/game/infra/persistence/model"
)

// 需要一个专用的测试库：CONQUEST_TEST_MYSQL_DSN=root:root@tcp(127.0.0.1:3306)/conquest_test?parseTime=true&loc=UTC
// 测试会清空并重建全部表。
func newTestRepo(t *testing.T) *PlayerRepo {
	t.Helper()
	dsn := os.Getenv("CONQUEST_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("CONQUEST_TEST_MYSQL_DSN not set")
	}
	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open mysql: %v", err)
	}
	if err := db.Migrator().DropTable(model.Tables()...); err != nil {
		t.Fatalf("drop tables: %v", err)
	}
	repo := NewPlayerRepo(db)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func snapshot(id entity.PlayerID, version uint64, gold int64) entity.PlayerSnapshot {
	return entity.PlayerSnapshot{
		Version: version,
		Player: entity.PlayerState{
			ID: id, ExternalID: fmt.Sprintf("ext:%d", id), Name: "p", Level: 1,
			Resources: entity.Resources{Gold: gold},
			AccruedAt: t0, LastActionAt: t0, CreatedAt: t0,
		},
		Cities: []entity.CityState{{
			ID: entity.CityID(id * 10), Owner: id, Name: "c", X: int(id), Y: 1,
			HappinessAt: t0, CreatedAt: t0,
			Buildings: map[entity.BuildingType]*entity.Building{
				entity.Farm: {Type: entity.Farm, Level: 2},
			},
			Training: &entity.TrainingOrder{Unit: entity.Archers, Quantity: 5, StartAt: t0, FinishAt: t0.Add(time.Minute)},
		}},
	}
}

func TestPlayerRepo_旧版本不覆盖新版本(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if err := repo.Save(ctx, []entity.PlayerSnapshot{snapshot(1, 5, 500)}); err != nil {
		t.Fatalf("save v5: %v", err)
	}
	if err := repo.Save(ctx, []entity.PlayerSnapshot{snapshot(1, 3, 300)}); err != nil {
		t.Fatalf("save v3: %v", err)
	}
	all, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 1 || all[0].Version != 5 || all[0].Player.Resources.Gold != 500 {
		t.Fatalf("stale snapshot overwrote newer one: %+v", all)
	}
	c := all[0].Cities[0]
	if c.Buildings[entity.Farm].Level != 2 || c.Training == nil || c.Training.Quantity != 5 {
		t.Fatalf("city not restored: %+v", c)
	}
}

func TestPlayerRepo_一组快照同事务写入(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	report := entity.BattleReport{ID: "b1", Attacker: 1, Defender: 2, At: t0,
		AttackerLosses: entity.Army{Infantry: 3}, Plunder: entity.Resources{Gold: 40}}

	a, d := snapshot(1, 1, 100), snapshot(2, 2, 200)
	a.Reports = []entity.BattleReport{report}
	d.Reports = []entity.BattleReport{report}
	if err := repo.Save(ctx, []entity.PlayerSnapshot{a, d}); err != nil {
		t.Fatalf("save: %v", err)
	}

	for _, id := range []entity.PlayerID{1, 2} {
		reports, err := repo.Reports(ctx, id, 10)
		if err != nil {
			t.Fatalf("reports: %v", err)
		}
		if len(reports) != 1 || reports[0].Plunder.Gold != 40 || reports[0].AttackerLosses.Infantry != 3 {
			t.Fatalf("player %d reports=%+v", id, reports)
		}
	}
}
