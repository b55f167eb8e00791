package mysql

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/game/infra/persistence/model"
)

const loadReports = 20

const (
	OpLoadAll = "repo.player.LoadAll"
	OpSave    = "repo.player.Save"
	OpReports = "repo.player.Reports"
	OpMigrate = "repo.player.Migrate"
)

// PlayerRepo 关系库实现，mysql 和 postgres 共用。
type PlayerRepo struct {
	db *gorm.DB
}

func NewPlayerRepo(db *gorm.DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

func (r *PlayerRepo) WithTx(tx *gorm.DB) *PlayerRepo {
	return &PlayerRepo{
		db: tx,
	}
}

// Migrate 建表。
func (r *PlayerRepo) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(model.Tables()...); err != nil {
		return errs.Persist(OpMigrate, err, nil)
	}
	return nil
}

func (r *PlayerRepo) LoadAll(ctx context.Context) ([]entity.PlayerSnapshot, error) {
	db := r.db.WithContext(ctx)

	var players []model.Player
	if err := db.Order("id").Find(&players).Error; err != nil {
		return nil, errs.Persist(OpLoadAll, err, nil)
	}
	var cities []model.City
	if err := db.Order("id").Find(&cities).Error; err != nil {
		return nil, errs.Persist(OpLoadAll, err, nil)
	}
	var buildings []model.Building
	if err := db.Find(&buildings).Error; err != nil {
		return nil, errs.Persist(OpLoadAll, err, nil)
	}
	var orders []model.TrainingOrder
	if err := db.Order("city_id, seq").Find(&orders).Error; err != nil {
		return nil, errs.Persist(OpLoadAll, err, nil)
	}

	grouped := make(map[int64]*model.Rows, len(players))
	for _, p := range players {
		grouped[p.ID] = &model.Rows{Player: p}
	}
	for _, c := range cities {
		if g := grouped[c.PlayerID]; g != nil {
			g.Cities = append(g.Cities, c)
		}
	}
	for _, b := range buildings {
		if g := grouped[b.PlayerID]; g != nil {
			g.Buildings = append(g.Buildings, b)
		}
	}
	for _, o := range orders {
		if g := grouped[o.PlayerID]; g != nil {
			g.Orders = append(g.Orders, o)
		}
	}

	out := make([]entity.PlayerSnapshot, 0, len(players))
	for _, p := range players {
		s := model.RowsToSnapshot(*grouped[p.ID])
		recent, err := r.Reports(ctx, s.Player.ID, loadReports)
		if err != nil {
			return nil, err
		}
		sort.Slice(recent, func(i, j int) bool { return recent[i].At.Before(recent[j].At) })
		s.Reports = recent
		out = append(out, s)
	}
	return out, nil
}

// Save 整组快照一个事务。玩家行加行锁比较版本，旧版本跳过；子表整体替换。
func (r *PlayerRepo) Save(ctx context.Context, snaps []entity.PlayerSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := r.WithTx(tx)
		for _, s := range snaps {
			if err := txRepo.saveOne(s); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PlayerRepo) saveOne(s entity.PlayerSnapshot) error {
	rows := model.SnapshotToRows(s)
	pid := rows.Player.ID
	data := map[string]any{"player_id": pid, "version": s.Version}

	if len(rows.Reports) > 0 {
		if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows.Reports).Error; err != nil {
			return errs.Persist(OpSave, err, data)
		}
	}

	var cur model.Player
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "version").Where("id = ?", pid).Take(&cur).Error
	switch {
	case err == nil:
		if cur.Version >= s.Version {
			return nil
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return errs.Persist(OpSave, err, data)
	}

	if err := r.db.Save(&rows.Player).Error; err != nil {
		return errs.Persist(OpSave, err, data)
	}
	for _, m := range []any{&model.TrainingOrder{}, &model.Building{}, &model.City{}} {
		if err := r.db.Where("player_id = ?", pid).Delete(m).Error; err != nil {
			return errs.Persist(OpSave, err, data)
		}
	}
	if len(rows.Cities) > 0 {
		if err := r.db.Create(&rows.Cities).Error; err != nil {
			return errs.Persist(OpSave, err, data)
		}
	}
	if len(rows.Buildings) > 0 {
		if err := r.db.Create(&rows.Buildings).Error; err != nil {
			return errs.Persist(OpSave, err, data)
		}
	}
	if len(rows.Orders) > 0 {
		if err := r.db.Create(&rows.Orders).Error; err != nil {
			return errs.Persist(OpSave, err, data)
		}
	}
	return nil
}

func (r *PlayerRepo) Reports(ctx context.Context, playerID entity.PlayerID, limit int) ([]entity.BattleReport, error) {
	q := r.db.WithContext(ctx).
		Where("attacker_id = ? OR defender_id = ?", int64(playerID), int64(playerID)).
		Order("at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.BattleReport
	if err := q.Find(&rows).Error; err != nil {
		return nil, errs.Persist(OpReports, err, map[string]any{"player_id": playerID})
	}
	out := make([]entity.BattleReport, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.RowToReport(row))
	}
	return out, nil
}
