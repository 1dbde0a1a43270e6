// Command secrets はシークレット共有Webアプリケーションを起動する。
//
// サブコマンド:
//
//	serve        Webサーバーを起動する（デフォルト）
//	worker       期限切れセッションを定期削除する
//	migrate      スキーマを作成する
//	healthcheck  /health を確認する（Dockerヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/secrets/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
