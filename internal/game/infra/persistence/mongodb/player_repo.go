package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"Conquest/internal/game/entity"
	"Conquest/internal/game/errs"
	"Conquest/internal/game/infra/persistence/model"
)

const (
	defaultPlayerCollectionName = "player"
	defaultReportCollectionName = "battle_report"
	loadReports                 = 20
)

const (
	OpLoadAll       = "repo.player.LoadAll"
	OpSave          = "repo.player.Save"
	OpReports       = "repo.player.Reports"
	OpEnsureIndexes = "repo.player.EnsureIndexes"
)

// PlayerRepo 每个玩家一个文档，战报单独成集合。
// client 非空时整组快照在一个多文档事务里写入，需要副本集。
type PlayerRepo struct {
	client  *mongo.Client
	players *mongo.Collection
	reports *mongo.Collection
}

func NewPlayerRepo(db *mongo.Database, useTransactions bool) *PlayerRepo {
	if db == nil {
		return &PlayerRepo{}
	}
	r := &PlayerRepo{
		players: db.Collection(defaultPlayerCollectionName),
		reports: db.Collection(defaultReportCollectionName),
	}
	if useTransactions {
		r.client = db.Client()
	}
	return r
}

func (r *PlayerRepo) ready(op string) error {
	if r == nil || r.players == nil {
		return errs.Persist(op, errors.New("mongodb player collection is nil"), nil)
	}
	return nil
}

// EnsureIndexes 建战报查询索引和外部 id 唯一索引。
func (r *PlayerRepo) EnsureIndexes(ctx context.Context) error {
	if err := r.ready(OpEnsureIndexes); err != nil {
		return err
	}
	_, err := r.players.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "external_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errs.Persist(OpEnsureIndexes, err, nil)
	}
	_, err = r.reports.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "participants", Value: 1}, {Key: "at", Value: -1}},
	})
	return errs.Persist(OpEnsureIndexes, err, nil)
}

func (r *PlayerRepo) LoadAll(ctx context.Context) ([]entity.PlayerSnapshot, error) {
	if err := r.ready(OpLoadAll); err != nil {
		return nil, err
	}
	cur, err := r.players.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errs.Persist(OpLoadAll, err, nil)
	}
	var docs []model.PlayerDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errs.Persist(OpLoadAll, err, nil)
	}

	out := make([]entity.PlayerSnapshot, 0, len(docs))
	for _, doc := range docs {
		s := model.DocToSnapshot(doc)
		recent, err := r.Reports(ctx, s.Player.ID, loadReports)
		if err != nil {
			return nil, err
		}
		for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
			recent[i], recent[j] = recent[j], recent[i]
		}
		s.Reports = recent
		out = append(out, s)
	}
	return out, nil
}

func (r *PlayerRepo) Save(ctx context.Context, snaps []entity.PlayerSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	if err := r.ready(OpSave); err != nil {
		return err
	}
	if r.client == nil {
		return r.write(ctx, snaps)
	}

	sess, err := r.client.StartSession()
	if err != nil {
		return errs.Persist(OpSave, err, nil)
	}
	defer sess.EndSession(context.Background())
	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, r.write(ctx, snaps)
	})
	return err
}

// write 战报按 _id 幂等写入；玩家文档只在已存版本更低时替换。
func (r *PlayerRepo) write(ctx context.Context, snaps []entity.PlayerSnapshot) error {
	var reportModels []mongo.WriteModel
	seen := make(map[string]struct{})
	for _, s := range snaps {
		for _, rep := range s.Reports {
			if _, dup := seen[rep.ID]; dup {
				continue
			}
			seen[rep.ID] = struct{}{}
			reportModels = append(reportModels, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": rep.ID}).
				SetReplacement(model.ReportToDoc(rep)).
				SetUpsert(true))
		}
	}
	if len(reportModels) > 0 {
		if _, err := r.reports.BulkWrite(ctx, reportModels, options.BulkWrite().SetOrdered(false)); err != nil {
			return errs.Persist(OpSave, err, map[string]any{"reports": len(reportModels)})
		}
	}

	fresh, err := r.freshOnly(ctx, snaps)
	if err != nil {
		return err
	}
	for _, s := range fresh {
		doc := model.SnapshotToDoc(s)
		_, err := r.players.ReplaceOne(ctx,
			bson.M{"_id": doc.PlayerID, "version": bson.M{"$lt": doc.Version}},
			doc,
			options.Replace().SetUpsert(true),
		)
		// 并发写入了更新的版本：过滤不匹配，upsert 撞主键。
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return errs.Persist(OpSave, err, map[string]any{"player_id": doc.PlayerID, "version": doc.Version})
		}
	}
	return nil
}

// freshOnly 去掉已存版本不低于快照版本的玩家。
func (r *PlayerRepo) freshOnly(ctx context.Context, snaps []entity.PlayerSnapshot) ([]entity.PlayerSnapshot, error) {
	ids := make([]int64, 0, len(snaps))
	for _, s := range snaps {
		ids = append(ids, int64(s.Player.ID))
	}
	cur, err := r.players.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"_id": 1, "version": 1}),
	)
	if err != nil {
		return nil, errs.Persist(OpSave, err, nil)
	}
	var stored []struct {
		ID      int64  `bson:"_id"`
		Version uint64 `bson:"version"`
	}
	if err := cur.All(ctx, &stored); err != nil {
		return nil, errs.Persist(OpSave, err, nil)
	}
	versions := make(map[int64]uint64, len(stored))
	for _, v := range stored {
		versions[v.ID] = v.Version
	}

	out := snaps[:0:0]
	for _, s := range snaps {
		if v, ok := versions[int64(s.Player.ID)]; ok && v >= s.Version {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *PlayerRepo) Reports(ctx context.Context, playerID entity.PlayerID, limit int) ([]entity.BattleReport, error) {
	if err := r.ready(OpReports); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.reports.Find(ctx, bson.M{"participants": int64(playerID)}, opts)
	if err != nil {
		return nil, errs.Persist(OpReports, err, map[string]any{"player_id": playerID})
	}
	var docs []model.BattleReportDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errs.Persist(OpReports, err, map[string]any{"player_id": playerID})
	}
	out := make([]entity.BattleReport, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.DocToReport(d))
	}
	return out, nil
}
