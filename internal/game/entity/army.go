package entity

type UnitType string

const (
	Infantry UnitType = "infantry"
	Archers  UnitType = "archers"
	Cavalry  UnitType = "cavalry"
	Siege    UnitType = "siege"
)

var UnitTypes = []UnitType{Infantry, Archers, Cavalry, Siege}

func (u UnitType) Valid() bool {
	switch u {
	case Infantry, Archers, Cavalry, Siege:
		return true
	}
	return false
}

// Army 只记录各兵种数量，战斗属性在战斗时按研究等级实时计算。
type Army struct {
	Infantry int64 `json:"infantry" bson:"infantry" mapstructure:"infantry"`
	Archers  int64 `json:"archers" bson:"archers" mapstructure:"archers"`
	Cavalry  int64 `json:"cavalry" bson:"cavalry" mapstructure:"cavalry"`
	Siege    int64 `json:"siege" bson:"siege" mapstructure:"siege"`
}

func (a Army) Get(u UnitType) int64 {
	switch u {
	case Infantry:
		return a.Infantry
	case Archers:
		return a.Archers
	case Cavalry:
		return a.Cavalry
	case Siege:
		return a.Siege
	}
	return 0
}

func (a *Army) Set(u UnitType, n int64) {
	switch u {
	case Infantry:
		a.Infantry = n
	case Archers:
		a.Archers = n
	case Cavalry:
		a.Cavalry = n
	case Siege:
		a.Siege = n
	}
}

func (a Army) Add(o Army) Army {
	for _, u := range UnitTypes {
		a.Set(u, a.Get(u)+o.Get(u))
	}
	return a
}

func (a Army) Sub(o Army) Army {
	for _, u := range UnitTypes {
		a.Set(u, a.Get(u)-o.Get(u))
	}
	return a
}

// Covers 判断 a 是否包含 force 的全部兵力。
func (a Army) Covers(force Army) bool {
	for _, u := range UnitTypes {
		if a.Get(u) < force.Get(u) {
			return false
		}
	}
	return true
}

func (a Army) HasNegative() bool {
	for _, u := range UnitTypes {
		if a.Get(u) < 0 {
			return true
		}
	}
	return false
}

func (a Army) Total() int64 {
	var n int64
	for _, u := range UnitTypes {
		n += a.Get(u)
	}
	return n
}

func (a Army) IsZero() bool {
	return a == Army{}
}
