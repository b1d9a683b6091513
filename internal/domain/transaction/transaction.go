package transaction

import "context"

// Tx はローカルトランザクションを表すインターフェース
// 座席数のCAS更新と調整記録の追加を同一トランザクションで行うために使用する
type Tx interface {
	Commit() error
	Rollback() error
}

// Manager はトランザクションを開始する
type Manager interface {
	Begin(ctx context.Context) (Tx, error)
}
