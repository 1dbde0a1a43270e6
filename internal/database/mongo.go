package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDB はMongoDBクライアントと利用するデータベースをまとめたもの。
type MongoDB struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// OpenMongo はMongoDBに接続し、疎通確認を行う。
// dbNameが空の場合は"userDB"を使用する。
func OpenMongo(ctx context.Context, uri, dbName string) (*MongoDB, error) {
	if dbName == "" {
		dbName = "userDB"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDB{Client: client, DB: client.Database(dbName)}, nil
}

// PingContext はMongoDBへの疎通を確認する。
// *sql.DBと同じシグネチャでヘルスチェックに使用できる。
func (m *MongoDB) PingContext(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

// Close は接続を切断する。
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
