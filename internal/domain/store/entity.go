package store

import "time"

// Store は座席数を持つ店舗を表す
// 座席数(TotalSeats)は本サブシステムの範囲では作成後に変更されない
type Store struct {
	ID         string
	Name       string
	TotalSeats int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewStore は新しい店舗を作成する
func NewStore(id, name string, totalSeats int) *Store {
	now := time.Now()
	return &Store{
		ID:         id,
		Name:       name,
		TotalSeats: totalSeats,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate は店舗の検証を行う
func (s *Store) Validate() error {
	if s.ID == "" {
		return ErrStoreIDRequired
	}
	if s.TotalSeats < 0 {
		return ErrInvalidTotalSeats
	}
	return nil
}

// Occupancy は店舗ごとの使用中座席数を表す
type Occupancy struct {
	StoreID   string
	InUse     int
	Version   int64 // 書き込みごとに1増える
	UpdatedAt time.Time
}

// EmptyOccupancy は未作成の店舗に対するデフォルト値を返す
func EmptyOccupancy(storeID string) *Occupancy {
	return &Occupancy{StoreID: storeID}
}

// Apply は delta を適用した次の状態を計算する
// 上限・下限を超える場合はエラーを返し、自身は変更しない
func (o *Occupancy) Apply(delta, totalSeats int) (*Occupancy, error) {
	next := o.InUse + delta
	if next > totalSeats {
		return nil, ErrCapacityExceeded
	}
	if next < 0 {
		return nil, ErrNegativeOccupancy
	}
	return &Occupancy{
		StoreID:   o.StoreID,
		InUse:     next,
		Version:   o.Version + 1,
		UpdatedAt: time.Now(),
	}, nil
}

// Available は空席数を返す
func (o *Occupancy) Available(totalSeats int) int {
	return totalSeats - o.InUse
}

// Adjustment は冪等キー付きで適用された座席数の増減記録
type Adjustment struct {
	Key          string
	StoreID      string
	Delta        int
	InUseAfter   int
	VersionAfter int64
	CreatedAt    time.Time
}

// Capacity は空席照会の結果
type Capacity struct {
	StoreID    string
	TotalSeats int
	InUse      int
	Available  int
	Version    int64
}
