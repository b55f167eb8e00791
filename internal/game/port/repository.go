package port

import (
	"context"

	"Conquest/internal/game/entity"
)

// PlayerRepository 是玩家聚合的持久化端口。
type PlayerRepository interface {
	// LoadAll 加载全部玩家的最新快照，Reports 只带最近若干条战报，旧的在前。
	LoadAll(ctx context.Context) ([]entity.PlayerSnapshot, error)
	// Save 在一个事务里写入一组快照；同一玩家已存的版本不低于快照版本时跳过该玩家。
	Save(ctx context.Context, snaps []entity.PlayerSnapshot) error
	// Reports 按时间倒序返回某玩家参与的战报。
	Reports(ctx context.Context, playerID entity.PlayerID, limit int) ([]entity.BattleReport, error)
}

// SnapshotSink 接收需要落库的快照。一次调用里的快照必须一起写入。
type SnapshotSink interface {
	Enqueue(snaps ...entity.PlayerSnapshot)
}
