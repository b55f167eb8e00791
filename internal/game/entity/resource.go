package entity

import "math"

type ResourceKind string

const (
	Gold  ResourceKind = "gold"
	Food  ResourceKind = "food"
	Wood  ResourceKind = "wood"
	Stone ResourceKind = "stone"
	Iron  ResourceKind = "iron"
	Mana  ResourceKind = "mana"
)

// ResourceKinds 固定遍历顺序，所有按资源循环的逻辑都用它保证确定性。
var ResourceKinds = []ResourceKind{Gold, Food, Wood, Stone, Iron, Mana}

func (k ResourceKind) Valid() bool {
	switch k {
	case Gold, Food, Wood, Stone, Iron, Mana:
		return true
	}
	return false
}

// Resources 是六种资源的数量，既用作库存也用作消耗、产出和容量。
type Resources struct {
	Gold  int64 `json:"gold" bson:"gold" mapstructure:"gold"`
	Food  int64 `json:"food" bson:"food" mapstructure:"food"`
	Wood  int64 `json:"wood" bson:"wood" mapstructure:"wood"`
	Stone int64 `json:"stone" bson:"stone" mapstructure:"stone"`
	Iron  int64 `json:"iron" bson:"iron" mapstructure:"iron"`
	Mana  int64 `json:"mana" bson:"mana" mapstructure:"mana"`
}

func (r Resources) Get(k ResourceKind) int64 {
	switch k {
	case Gold:
		return r.Gold
	case Food:
		return r.Food
	case Wood:
		return r.Wood
	case Stone:
		return r.Stone
	case Iron:
		return r.Iron
	case Mana:
		return r.Mana
	}
	return 0
}

func (r *Resources) Set(k ResourceKind, v int64) {
	switch k {
	case Gold:
		r.Gold = v
	case Food:
		r.Food = v
	case Wood:
		r.Wood = v
	case Stone:
		r.Stone = v
	case Iron:
		r.Iron = v
	case Mana:
		r.Mana = v
	}
}

func (r Resources) Add(o Resources) Resources {
	for _, k := range ResourceKinds {
		r.Set(k, r.Get(k)+o.Get(k))
	}
	return r
}

func (r Resources) Sub(o Resources) Resources {
	for _, k := range ResourceKinds {
		r.Set(k, r.Get(k)-o.Get(k))
	}
	return r
}

// Covers 判断库存是否覆盖 cost 的每一项。
func (r Resources) Covers(cost Resources) bool {
	for _, k := range ResourceKinds {
		if r.Get(k) < cost.Get(k) {
			return false
		}
	}
	return true
}

// Shortfall 返回每项还差多少（不差的为 0）。
func (r Resources) Shortfall(cost Resources) Resources {
	var out Resources
	for _, k := range ResourceKinds {
		if d := cost.Get(k) - r.Get(k); d > 0 {
			out.Set(k, d)
		}
	}
	return out
}

func (r Resources) HasNegative() bool {
	for _, k := range ResourceKinds {
		if r.Get(k) < 0 {
			return true
		}
	}
	return false
}

func (r Resources) IsZero() bool {
	return r == Resources{}
}

func (r Resources) Total() int64 {
	var sum int64
	for _, k := range ResourceKinds {
		sum += r.Get(k)
	}
	return sum
}

// Scale 按系数缩放，四舍五入到整数。
func (r Resources) Scale(f float64) Resources {
	var out Resources
	for _, k := range ResourceKinds {
		out.Set(k, int64(math.Round(float64(r.Get(k))*f)))
	}
	return out
}

// Floor 按系数缩放，向下取整，用于退款和掠夺这类不能多给的场景。
func (r Resources) Floor(f float64) Resources {
	var out Resources
	for _, k := range ResourceKinds {
		out.Set(k, int64(math.Floor(float64(r.Get(k))*f)))
	}
	return out
}
