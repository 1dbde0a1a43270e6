package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hitoshi/secrets/internal/model"
)

// SessionsCollection はセッションを保存するMongoDBコレクション名。
const SessionsCollection = "sessions"

type mongoSession struct {
	Token  string    `bson:"_id"`
	Data   []byte    `bson:"data"`
	Expiry time.Time `bson:"expiry"`
}

// MongoSessionRepo はMongoDBを使用したセッションリポジトリ。
type MongoSessionRepo struct {
	coll *mongo.Collection
}

// NewMongoSessionRepo はMongoSessionRepoを生成する。
func NewMongoSessionRepo(db *mongo.Database) *MongoSessionRepo {
	return &MongoSessionRepo{coll: db.Collection(SessionsCollection)}
}

// EnsureIndexes はexpiryにTTLインデックスを作成する。
// TTLモニタの削除は遅延するため、FindCtxでも有効期限を判定する。
func (r *MongoSessionRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiry", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return model.NewStoreError("create session indexes", err)
	}
	return nil
}

// FindCtx は有効期限内のセッションデータを取得する。
func (r *MongoSessionRepo) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	var doc mongoSession
	err := r.coll.FindOne(ctx, bson.M{
		"_id":    token,
		"expiry": bson.M{"$gt": time.Now()},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, model.NewStoreError("find session", err)
	}
	return doc.Data, true, nil
}

// CommitCtx はセッションデータを保存する。同一トークンが存在すれば上書きする。
func (r *MongoSessionRepo) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": token},
		bson.M{"$set": bson.M{"data": b, "expiry": expiry}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return model.NewStoreError("commit session", err)
	}
	return nil
}

// DeleteCtx は指定トークンのセッションを削除する。
func (r *MongoSessionRepo) DeleteCtx(ctx context.Context, token string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": token}); err != nil {
		return model.NewStoreError("delete session", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *MongoSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.M{"expiry": bson.M{"$lte": time.Now()}})
	if err != nil {
		return 0, model.NewStoreError("delete expired sessions", err)
	}
	return result.DeletedCount, nil
}

// Find はFindCtxのcontextなし版。
func (r *MongoSessionRepo) Find(token string) ([]byte, bool, error) {
	return r.FindCtx(context.Background(), token)
}

// Commit はCommitCtxのcontextなし版。
func (r *MongoSessionRepo) Commit(token string, b []byte, expiry time.Time) error {
	return r.CommitCtx(context.Background(), token, b, expiry)
}

// Delete はDeleteCtxのcontextなし版。
func (r *MongoSessionRepo) Delete(token string) error {
	return r.DeleteCtx(context.Background(), token)
}

// compile-time interface check
var _ SessionRepository = (*MongoSessionRepo)(nil)
