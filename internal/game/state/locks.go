package state

import (
	"sort"

	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
)

// lockSet 是一条命令要持有的全部锁。
// 加锁顺序固定：玩家按 id 升序，然后这些玩家的全部城市按 id 升序；释放顺序相反。
type lockSet struct {
	players []*entity.Player
	cities  []*entity.City
	held    bool
}

func newLockSet(players ...*entity.Player) *lockSet {
	seen := make(map[entity.PlayerID]struct{}, len(players))
	ls := &lockSet{}
	for _, p := range players {
		if p == nil {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		ls.players = append(ls.players, p)
		ls.cities = append(ls.cities, p.Cities...)
	}
	sort.Slice(ls.players, func(i, j int) bool { return ls.players[i].ID < ls.players[j].ID })
	sort.Slice(ls.cities, func(i, j int) bool { return ls.cities[i].ID < ls.cities[j].ID })
	return ls
}

// acquire 先校验顺序再加锁，顺序不对时一把锁都不拿。
func (ls *lockSet) acquire() error {
	if ls.held {
		return errs.Fault("state.lockSet.acquire", nil, map[string]any{"reason": "already held"})
	}
	for i := 1; i < len(ls.players); i++ {
		if ls.players[i-1].ID >= ls.players[i].ID {
			return errs.Fault("state.lockSet.acquire", nil, map[string]any{
				"reason": "player order", "prev": ls.players[i-1].ID, "next": ls.players[i].ID,
			})
		}
	}
	for i := 1; i < len(ls.cities); i++ {
		if ls.cities[i-1].ID >= ls.cities[i].ID {
			return errs.Fault("state.lockSet.acquire", nil, map[string]any{
				"reason": "city order", "prev": ls.cities[i-1].ID, "next": ls.cities[i].ID,
			})
		}
	}
	for _, p := range ls.players {
		p.Lock()
	}
	for _, c := range ls.cities {
		c.Lock()
	}
	ls.held = true
	return nil
}

func (ls *lockSet) release() {
	if !ls.held {
		return
	}
	for i := len(ls.cities) - 1; i >= 0; i-- {
		ls.cities[i].Unlock()
	}
	for i := len(ls.players) - 1; i >= 0; i-- {
		ls.players[i].Unlock()
	}
	ls.held = false
}
