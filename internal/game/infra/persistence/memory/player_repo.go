package memory

import (
	"context"
	"sort"
	"sync"

	"Conquest/internal/game/entity"
)

// loadReports 是 LoadAll 时每个玩家带回的战报条数。
const loadReports = 20

// PlayerRepo 进程内仓储，用于单机演示和测试；重启即丢失。
type PlayerRepo struct {
	mu      sync.RWMutex
	players map[entity.PlayerID]entity.PlayerSnapshot
	reports map[string]entity.BattleReport
}

func NewPlayerRepo() *PlayerRepo {
	return &PlayerRepo{
		players: make(map[entity.PlayerID]entity.PlayerSnapshot),
		reports: make(map[string]entity.BattleReport),
	}
}

func (r *PlayerRepo) LoadAll(ctx context.Context) ([]entity.PlayerSnapshot, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.PlayerSnapshot, 0, len(r.players))
	for _, s := range r.players {
		s = copySnapshot(s)
		recent := r.reportsOfLocked(s.Player.ID, loadReports)
		for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
			recent[i], recent[j] = recent[j], recent[i]
		}
		s.Reports = recent
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Player.ID < out[j].Player.ID })
	return out, nil
}

// Save 整组在一把锁内写入；旧版本跳过，战报按 id 去重。
func (r *PlayerRepo) Save(ctx context.Context, snaps []entity.PlayerSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range snaps {
		for _, rep := range s.Reports {
			if _, ok := r.reports[rep.ID]; !ok {
				r.reports[rep.ID] = rep
			}
		}
		if cur, ok := r.players[s.Player.ID]; ok && cur.Version >= s.Version {
			continue
		}
		s = copySnapshot(s)
		s.Reports = nil
		r.players[s.Player.ID] = s
	}
	return nil
}

func (r *PlayerRepo) Reports(ctx context.Context, playerID entity.PlayerID, limit int) ([]entity.BattleReport, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reportsOfLocked(playerID, limit), nil
}

// Version 已存的版本，不存在时为 0。
func (r *PlayerRepo) Version(id entity.PlayerID) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.players[id].Version
}

// reportsOfLocked 新的在前。
func (r *PlayerRepo) reportsOfLocked(id entity.PlayerID, limit int) []entity.BattleReport {
	var out []entity.BattleReport
	for _, rep := range r.reports {
		if rep.Attacker == id || rep.Defender == id {
			out = append(out, rep)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.After(out[j].At)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func copySnapshot(s entity.PlayerSnapshot) entity.PlayerSnapshot {
	cities := make([]entity.CityState, 0, len(s.Cities))
	for _, c := range s.Cities {
		c := c
		bs := make(map[entity.BuildingType]*entity.Building, len(c.Buildings))
		for t, b := range c.Buildings {
			cp := *b
			bs[t] = &cp
		}
		c.Buildings = bs
		if c.Training != nil {
			cp := *c.Training
			c.Training = &cp
		}
		c.Pending = append([]entity.TrainingOrder(nil), c.Pending...)
		cities = append(cities, c)
	}
	s.Cities = cities
	if s.Player.AllianceID != nil {
		v := *s.Player.AllianceID
		s.Player.AllianceID = &v
	}
	s.Reports = append([]entity.BattleReport(nil), s.Reports...)
	return s
}
