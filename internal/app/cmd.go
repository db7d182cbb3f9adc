package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandLambda はAWS Lambda（API Gatewayプロキシ統合）として起動することを示す。
	CommandLambda Command = "lambda"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandExport は指定テーブルをワイドレイアウトのCSVとして標準出力に書き出すことを示す。
	// メモリバックエンドではシードCSVの内容のみが対象になる。
	CommandExport Command = "export"
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
	case "lambda":
		return CommandLambda
	case "migrate":
		return CommandMigrate
	case "export":
		return CommandExport
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// commandArg はサブコマンドに続くi番目の引数を返す。存在しない場合は空文字列。
func commandArg(args []string, i int) string {
	if len(args) <= i+1 {
		return ""
	}
	return args[i+1]
}
