package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hitoshi/secrets/internal/model"
)

// UsersCollection はユーザーを保存するMongoDBコレクション名。
const UsersCollection = "users"

// mongoUser はusersコレクションのドキュメント表現。
type mongoUser struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"password_hash,omitempty"`
	GoogleID     *string   `bson:"google_id,omitempty"`
	FacebookID   *string   `bson:"facebook_id,omitempty"`
	Secret       *string   `bson:"secret,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d *mongoUser) toModel() *model.User {
	return &model.User{
		ID:           d.ID,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		GoogleID:     d.GoogleID,
		FacebookID:   d.FacebookID,
		Secret:       d.Secret,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MongoUserRepo はMongoDBを使用したユーザーリポジトリ。
type MongoUserRepo struct {
	coll *mongo.Collection
}

// NewMongoUserRepo はMongoUserRepoを生成する。
func NewMongoUserRepo(db *mongo.Database) *MongoUserRepo {
	return &MongoUserRepo{coll: db.Collection(UsersCollection)}
}

// EnsureIndexes はusersコレクションに必要なインデックスを作成する。
// 外部IDは存在する場合のみ一意とする。
func (r *MongoUserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}, {Key: "created_at", Value: 1}}},
		{
			Keys: bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"google_id": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "facebook_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"facebook_id": bson.M{"$exists": true}}),
		},
	})
	if err != nil {
		return model.NewStoreError("create user indexes", err)
	}
	return nil
}

// Create はローカルアカウントのユーザーを作成する。
func (r *MongoUserRepo) Create(ctx context.Context, user *model.User) error {
	if !user.HasCredential() {
		return fmt.Errorf("user must have a password or provider id: %w", model.ErrInvalidInput)
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		now := time.Now()
		user.CreatedAt = now
		user.UpdatedAt = now
	}

	_, err := r.coll.InsertOne(ctx, &mongoUser{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		GoogleID:     user.GoogleID,
		FacebookID:   user.FacebookID,
		Secret:       user.Secret,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
	if err != nil {
		return model.NewStoreError("insert user", err)
	}
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MongoUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "find user by id")
}

func (r *MongoUserRepo) findOne(ctx context.Context, filter bson.M, op string) (*model.User, error) {
	var doc mongoUser
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, model.NewStoreError(op, err)
	}
	return doc.toModel(), nil
}

// FindByUsername はユーザー名が一致するユーザーを登録順で返す。
func (r *MongoUserRepo) FindByUsername(ctx context.Context, username string) ([]*model.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"username": username}, opts)
	if err != nil {
		return nil, model.NewStoreError("find users by username", err)
	}

	var docs []mongoUser
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, model.NewStoreError("decode users", err)
	}

	users := make([]*model.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toModel())
	}
	return users, nil
}

// FindOrCreateByProvider はproviderの外部IDでユーザーを検索し、存在しなければ作成する。
// $setOnInsertによるupsertで1回の往復で完結させる。
func (r *MongoUserRepo) FindOrCreateByProvider(ctx context.Context, identity model.ExternalIdentity) (*model.User, bool, error) {
	field, err := providerField(identity.Provider)
	if err != nil {
		return nil, false, err
	}
	if identity.ProviderUserID == "" {
		return nil, false, fmt.Errorf("empty provider user id: %w", model.ErrInvalidInput)
	}

	newID := uuid.New().String()
	now := time.Now()
	filter := bson.M{field: identity.ProviderUserID}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":        newID,
		"username":   identity.Name,
		"created_at": now,
		"updated_at": now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc mongoUser
	err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// 同時に作成された場合は既存ドキュメントを返す
		user, findErr := r.findOne(ctx, filter, "find user by provider")
		if findErr != nil {
			return nil, false, findErr
		}
		if user == nil {
			return nil, false, model.NewStoreError("find user by provider", err)
		}
		return user, false, nil
	}
	if err != nil {
		return nil, false, model.NewStoreError("upsert federated user", err)
	}
	return doc.toModel(), doc.ID == newID, nil
}

// UpdateSecret はユーザーのシークレットを上書きする。
func (r *MongoUserRepo) UpdateSecret(ctx context.Context, userID, secret string) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"secret": secret, "updated_at": time.Now()}},
	)
	if err != nil {
		return model.NewStoreError("update secret", err)
	}
	if result.MatchedCount == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// ListWithSecrets はシークレットが設定されている全ユーザーのシークレットを登録順で返す。
func (r *MongoUserRepo) ListWithSecrets(ctx context.Context) ([]model.SecretEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1, "secret": 1})
	cursor, err := r.coll.Find(ctx, bson.M{"secret": bson.M{"$ne": nil}}, opts)
	if err != nil {
		return nil, model.NewStoreError("list secrets", err)
	}

	var docs []mongoUser
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, model.NewStoreError("decode secrets", err)
	}

	entries := make([]model.SecretEntry, 0, len(docs))
	for _, d := range docs {
		if d.Secret == nil {
			continue
		}
		entries = append(entries, model.SecretEntry{UserID: d.ID, Secret: *d.Secret})
	}
	return entries, nil
}

// compile-time interface check
var _ UserRepository = (*MongoUserRepo)(nil)
