package clock

import (
	"container/heap"
	"errors"
	"sort"
	"sync"
	"time"

	"Conquest/internal/game/entity"
)

type Kind uint8

const (
	KindConstruction Kind = iota + 1
	KindTraining
)

func (k Kind) String() string {
	switch k {
	case KindConstruction:
		return "construction"
	case KindTraining:
		return "training"
	default:
		return "unknown"
	}
}

// TrainingSlot 是训练计时器的槽位名，建造计时器的槽位是建筑类型。
const TrainingSlot = "training"

// EntityKey 定位计时器作用的实体：城市 + 槽位。
type EntityKey struct {
	City entity.CityID
	Slot string
}

func ConstructionKey(city entity.CityID, t entity.BuildingType) EntityKey {
	return EntityKey{City: city, Slot: string(t)}
}

func TrainingKey(city entity.CityID) EntityKey {
	return EntityKey{City: city, Slot: TrainingSlot}
}

func (k EntityKey) Less(o EntityKey) bool {
	if k.City != o.City {
		return k.City < o.City
	}
	return k.Slot < o.Slot
}

type Handle uint64

type Timer struct {
	Handle   Handle
	Owner    entity.PlayerID
	Key      EntityKey
	Kind     Kind
	FinishAt time.Time
}

// Before 是到期处理顺序：完成时间，其次 (EntityKey, Kind) 升序。
func (t Timer) Before(o Timer) bool {
	if !t.FinishAt.Equal(o.FinishAt) {
		return t.FinishAt.Before(o.FinishAt)
	}
	if t.Key != o.Key {
		return t.Key.Less(o.Key)
	}
	return t.Kind < o.Kind
}

var ErrDuplicateTimer = errors.New("clock: timer already scheduled for entity and kind")

type slot struct {
	key  EntityKey
	kind Kind
}

type item struct {
	timer Timer
	index int
}

type timerHeap []*item

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].timer.Before(h[j].timer) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// Index 是全部计时器的唯一权威来源。每个玩家一个最小堆，按 owner 轮询时无需扫描他人。
// 同一 (EntityKey, Kind) 同时最多一个计时器。
type Index struct {
	mu       sync.Mutex
	seq      Handle
	byOwner  map[entity.PlayerID]*timerHeap
	byHandle map[Handle]*item
	bySlot   map[slot]Handle
}

func NewIndex() *Index {
	return &Index{
		byOwner:  make(map[entity.PlayerID]*timerHeap),
		byHandle: make(map[Handle]*item),
		bySlot:   make(map[slot]Handle),
	}
}

func (x *Index) Schedule(owner entity.PlayerID, key EntityKey, kind Kind, finishAt time.Time) (Handle, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	s := slot{key: key, kind: kind}
	if _, exists := x.bySlot[s]; exists {
		return 0, ErrDuplicateTimer
	}
	x.seq++
	it := &item{timer: Timer{Handle: x.seq, Owner: owner, Key: key, Kind: kind, FinishAt: finishAt}}
	h := x.byOwner[owner]
	if h == nil {
		h = &timerHeap{}
		x.byOwner[owner] = h
	}
	heap.Push(h, it)
	x.byHandle[x.seq] = it
	x.bySlot[s] = x.seq
	return x.seq, nil
}

// Cancel 移除计时器，返回是否存在。
func (x *Index) Cancel(handle Handle) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	it, ok := x.byHandle[handle]
	if !ok {
		return false
	}
	if h := x.byOwner[it.timer.Owner]; h != nil && it.index >= 0 {
		heap.Remove(h, it.index)
		x.dropEmpty(it.timer.Owner)
	}
	x.forget(it.timer)
	return true
}

// PollMatured 取出全部 FinishAt <= now 的计时器并按处理顺序返回；每个计时器只会被取出一次。
func (x *Index) PollMatured(now time.Time) []Timer {
	x.mu.Lock()
	defer x.mu.Unlock()

	var out []Timer
	for owner := range x.byOwner {
		out = append(out, x.popDue(owner, now)...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// PollMaturedFor 只取某个玩家的到期计时器，已按处理顺序排列。
func (x *Index) PollMaturedFor(owner entity.PlayerID, now time.Time) []Timer {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.popDue(owner, now)
}

// PopMaturedFor 只取某个玩家最早的一个到期计时器。
// 处理一个计时器可能调度新的计时器（训练队列的下一单），逐个取出才能保证顺序。
func (x *Index) PopMaturedFor(owner entity.PlayerID, now time.Time) (Timer, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	h := x.byOwner[owner]
	if h == nil || h.Len() == 0 || (*h)[0].timer.FinishAt.After(now) {
		return Timer{}, false
	}
	it := heap.Pop(h).(*item)
	x.forget(it.timer)
	x.dropEmpty(owner)
	return it.timer, true
}

// DueOwners 返回有到期计时器的玩家（升序），不取出计时器。
func (x *Index) DueOwners(now time.Time) []entity.PlayerID {
	x.mu.Lock()
	defer x.mu.Unlock()

	var out []entity.PlayerID
	for owner, h := range x.byOwner {
		if h.Len() > 0 && !(*h)[0].timer.FinishAt.After(now) {
			out = append(out, owner)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (x *Index) Lookup(key EntityKey, kind Kind) (Timer, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	handle, ok := x.bySlot[slot{key: key, kind: kind}]
	if !ok {
		return Timer{}, false
	}
	return x.byHandle[handle].timer, true
}

// NextDue 最早的完成时间。
func (x *Index) NextDue() (time.Time, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	var next time.Time
	found := false
	for _, h := range x.byOwner {
		if h.Len() == 0 {
			continue
		}
		at := (*h)[0].timer.FinishAt
		if !found || at.Before(next) {
			next, found = at, true
		}
	}
	return next, found
}

func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.byHandle)
}

func (x *Index) popDue(owner entity.PlayerID, now time.Time) []Timer {
	h := x.byOwner[owner]
	if h == nil {
		return nil
	}
	var out []Timer
	for h.Len() > 0 && !(*h)[0].timer.FinishAt.After(now) {
		it := heap.Pop(h).(*item)
		x.forget(it.timer)
		out = append(out, it.timer)
	}
	x.dropEmpty(owner)
	return out
}

func (x *Index) forget(t Timer) {
	delete(x.byHandle, t.Handle)
	delete(x.bySlot, slot{key: t.Key, kind: t.Kind})
}

func (x *Index) dropEmpty(owner entity.PlayerID) {
	if h := x.byOwner[owner]; h != nil && h.Len() == 0 {
		delete(x.byOwner, owner)
	}
}
