package utils

import (
	"fmt"
	"sync"
	"time"
)

const (
	// 2026-01-01 00:00:00 UTC，单位毫秒
	snowflakeEpochMilli int64 = 1767225600000

	nodeBits uint8 = 10
	seqBits  uint8 = 12

	MaxNodeID int64 = -1 ^ (-1 << nodeBits)
	maxSeq    int64 = -1 ^ (-1 << seqBits)

	nodeShift uint8 = seqBits
	timeShift uint8 = nodeBits + seqBits
)

// Snowflake 生成玩家和城市 id：毫秒时间戳 | 节点号 | 序号，单节点内严格递增。
type Snowflake struct {
	mu     sync.Mutex
	nodeID int64
	lastTS int64
	seq    int64
	now    func() int64
}

func NewSnowflake(nodeID int64) (*Snowflake, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, fmt.Errorf("snowflake node id out of range [0,%d]: %d", MaxNodeID, nodeID)
	}
	return &Snowflake{nodeID: nodeID, now: func() int64 { return time.Now().UnixMilli() }}, nil
}

// NextID 同一毫秒内序号用尽时等到下一毫秒。
func (s *Snowflake) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	if ts < s.lastTS {
		// 时钟回拨时不回退，保持单调递增。
		ts = s.lastTS
	}

	if ts == s.lastTS {
		s.seq = (s.seq + 1) & maxSeq
		if s.seq == 0 {
			ts = s.waitNextMillisecond(s.lastTS)
		}
	} else {
		s.seq = 0
	}

	s.lastTS = ts
	return ((ts - snowflakeEpochMilli) << timeShift) | (s.nodeID << nodeShift) | s.seq
}

func (s *Snowflake) waitNextMillisecond(lastTS int64) int64 {
	ts := s.now()
	for ts <= lastTS {
		time.Sleep(100 * time.Microsecond)
		ts = s.now()
	}
	return ts
}

// Decompose 拆出 id 的生成时间、节点号和序号，排查问题时用。
func Decompose(id int64) (at time.Time, nodeID, seq int64) {
	ms := id>>timeShift + snowflakeEpochMilli
	return time.UnixMilli(ms).UTC(), (id >> nodeShift) & MaxNodeID, id & maxSeq
}
