package utils

import (
	"testing"
	"time"
)

func TestNewSnowflake_节点号越界(t *testing.T) {
	if _, err := NewSnowflake(-1); err == nil {
		t.Fatalf("期望负数节点号报错")
	}
	if _, err := NewSnowflake(MaxNodeID + 1); err == nil {
		t.Fatalf("期望超出范围的节点号报错")
	}
}

func TestSnowflake_单调递增且可拆解(t *testing.T) {
	s, err := NewSnowflake(7)
	if err != nil {
		t.Fatalf("NewSnowflake err=%v", err)
	}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	clock := base
	s.now = func() int64 { return clock }

	a := s.NextID()
	b := s.NextID()
	clock -= 5 // 时钟回拨
	c := s.NextID()
	if !(a < b && b < c) {
		t.Fatalf("期望严格递增: %d %d %d", a, b, c)
	}

	at, node, seq := Decompose(c)
	if node != 7 || seq != 2 || at.UnixMilli() != base {
		t.Fatalf("Decompose got at=%v node=%d seq=%d", at, node, seq)
	}
}

func TestSnowflake_序号用尽进入下一毫秒(t *testing.T) {
	s, _ := NewSnowflake(1)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	calls := 0
	s.now = func() int64 {
		calls++
		if calls > int(maxSeq)+2 {
			return base + 1
		}
		return base
	}

	var last int64
	for i := int64(0); i <= maxSeq+1; i++ {
		last = s.NextID()
	}
	at, _, seq := Decompose(last)
	if at.UnixMilli() != base+1 || seq != 0 {
		t.Fatalf("期望序号用尽后进入下一毫秒, at=%v seq=%d", at, seq)
	}
}
