package booking

import "errors"

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound     = errors.New("予約が見つかりません")
	ErrForbidden           = errors.New("予約の所有者ではありません")
	ErrInvalidState        = errors.New("予約の状態が不正です")
	ErrAlreadyCancelled    = errors.New("予約は既にキャンセルされています")
	ErrStatusConflict      = errors.New("予約の状態が他の処理によって更新されました")
	ErrStoreIDRequired     = errors.New("店舗IDは必須です")
	ErrUserIDRequired      = errors.New("ユーザーIDは必須です")
	ErrBookingDateRequired = errors.New("予約日は必須です")
	ErrInvalidPartySize    = errors.New("人数は1以上である必要があります")
	ErrLedgerInconsistency = errors.New("座席数と予約の整合性が崩れています")
)
