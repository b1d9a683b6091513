package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/transaction"
)

var errForeignTx = errors.New("postgres 以外のトランザクションが渡されました")

// TxWrapper は sqlx.Tx を transaction.Tx インターフェースでラップする
type TxWrapper struct {
	*sqlx.Tx
}

// Commit はトランザクションをコミットする
func (t *TxWrapper) Commit() error {
	return t.Tx.Commit()
}

// Rollback はトランザクションをロールバックする
// コミット済みの場合は何もしない
func (t *TxWrapper) Rollback() error {
	if err := t.Tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// TxManager は sqlx.DB を使用したトランザクションマネージャー
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager は新しい TxManager を作成する
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// Begin は READ COMMITTED のトランザクションを開始する
// 座席数の更新は version 条件付きの UPDATE で競合を検出するため、これで十分
func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	return &TxWrapper{Tx: tx}, nil
}

// UnwrapTx は transaction.Tx から sqlx.Tx を取り出す
func UnwrapTx(tx transaction.Tx) (*sqlx.Tx, error) {
	if wrapper, ok := tx.(*TxWrapper); ok {
		return wrapper.Tx, nil
	}
	return nil, errForeignTx
}
