package application

import (
	"context"
	"fmt"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
)

type StoreService struct {
	storeRepo store.Repository
}

func NewStoreService(storeRepo store.Repository) *StoreService {
	return &StoreService{storeRepo: storeRepo}
}

type CreateStoreInput struct {
	ID         string
	Name       string
	TotalSeats int
}

func (s *StoreService) CreateStore(ctx context.Context, input CreateStoreInput) (*store.Store, error) {
	st := store.NewStore(input.ID, input.Name, input.TotalSeats)
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.storeRepo.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("店舗作成に失敗しました: %w", err)
	}
	return st, nil
}

func (s *StoreService) GetStore(ctx context.Context, id string) (*store.Store, error) {
	return s.storeRepo.GetByID(ctx, id)
}
