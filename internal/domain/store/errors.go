package store

import "errors"

// Store ドメインのエラー定義
var (
	ErrStoreNotFound                = errors.New("店舗が見つかりません")
	ErrStoreIDRequired              = errors.New("店舗IDは必須です")
	ErrInvalidTotalSeats            = errors.New("座席数は0以上である必要があります")
	ErrStoreAlreadyExists           = errors.New("同じIDの店舗が既に存在します")
	ErrInvalidDelta                 = errors.New("座席の増減数は0以外である必要があります")
	ErrOccupancyNotFound            = errors.New("使用中座席数が未作成です")
	ErrCapacityExceeded             = errors.New("空席が不足しています")
	ErrNegativeOccupancy            = errors.New("使用中座席数が0未満になります")
	ErrVersionConflict              = errors.New("座席数の書き込みが競合しました")
	ErrConcurrentAdjustmentConflict = errors.New("座席数の更新が競合しました。再試行してください")
	ErrAdjustmentNotFound           = errors.New("座席調整記録が見つかりません")
	ErrAdjustmentAlreadyApplied     = errors.New("同じキーの座席調整が既に適用されています")
)
