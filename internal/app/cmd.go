package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモード（検証スケジューラ+収集+クリーンアップ常駐）で起動することを示す。
	CommandWorker Command = "worker"
	// CommandCheck はリンク検証を1回だけ実行することを示す。
	CommandCheck Command = "check"
	// CommandCollect は候補リンク収集を1回だけ実行することを示す。
	CommandCollect Command = "collect"
	// CommandGenerate はM3Uプレイリストを生成してファイルに出力することを示す。
	CommandGenerate Command = "generate"
	// CommandSync はYAMLカタログをデータベースへ同期することを示す。
	CommandSync Command = "sync"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "worker":
		return CommandWorker
	case "check":
		return CommandCheck
	case "collect":
		return CommandCollect
	case "generate":
		return CommandGenerate
	case "sync":
		return CommandSync
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
