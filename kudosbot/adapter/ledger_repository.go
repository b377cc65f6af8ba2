package adapter

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yammine/kudos-go/kudosbot/app"
	"github.com/yammine/kudos-go/kudosbot/domain"
)

type LedgerRepository struct {
	DB *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{DB: db}
}

func (l LedgerRepository) Migrate() error {
	return l.DB.AutoMigrate(&domain.Transaction{}, &domain.Allocation{})
}

func (l LedgerRepository) Give(ctx context.Context, in *app.GiveInput, giveFn app.GiveFunc) (*domain.Allocation, error) {
	var allocation *domain.Allocation
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		allocation, txErr = getAllocationExclusive(tx, in.GiverID)
		if txErr != nil {
			return fmt.Errorf("get giver allocation exclusive: %w", txErr)
		}

		out, txErr := giveFn(ctx, &app.GiveFuncIn{Allocation: allocation, Input: in})
		if txErr != nil {
			return fmt.Errorf("business logic: %w", txErr)
		}

		if err := tx.Model(allocation).Update("remaining", allocation.Remaining).Error; err != nil {
			return fmt.Errorf("updating allocation: %w", err)
		}

		if err := tx.Create(out.Transaction).Error; err != nil {
			return fmt.Errorf("inserting transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return allocation, nil
}

func (l LedgerRepository) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	if err := l.DB.WithContext(ctx).Order("id").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (l LedgerRepository) GetOrCreateAllocation(ctx context.Context, userID string) (*domain.Allocation, error) {
	var allocation domain.Allocation
	err := l.DB.WithContext(ctx).
		Where(domain.Allocation{UserID: userID}).
		Attrs(domain.Allocation{Remaining: domain.DefaultAllowance}).
		FirstOrCreate(&allocation).
		Error
	if err != nil {
		return nil, fmt.Errorf("get or create allocation: %w", err)
	}
	return &allocation, nil
}

// ResetAllocations wipes the ledger and gives every user that had an allocation a fresh one.
func (l LedgerRepository) ResetAllocations(ctx context.Context) (int, error) {
	var restored int
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var userIDs []string
		if err := tx.Model(&domain.Allocation{}).Order("user_id").Pluck("user_id", &userIDs).Error; err != nil {
			return fmt.Errorf("collecting known users: %w", err)
		}

		if err := tx.Where("1 = 1").Delete(&domain.Transaction{}).Error; err != nil {
			return fmt.Errorf("deleting transactions: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&domain.Allocation{}).Error; err != nil {
			return fmt.Errorf("deleting allocations: %w", err)
		}

		if len(userIDs) == 0 {
			return nil
		}

		allocations := make([]*domain.Allocation, len(userIDs))
		for i, id := range userIDs {
			allocations[i] = domain.NewAllocation(id)
		}
		if err := tx.Create(allocations).Error; err != nil {
			return fmt.Errorf("reseeding allocations: %w", err)
		}
		restored = len(allocations)

		return nil
	})

	return restored, err
}

var _ app.LedgerRepository = (*LedgerRepository)(nil)

func getAllocationExclusive(tx *gorm.DB, userID string) (*domain.Allocation, error) {
	var allocation domain.Allocation
	err := forUpdate(tx).
		Where(domain.Allocation{UserID: userID}).
		Attrs(domain.Allocation{Remaining: domain.DefaultAllowance}).
		FirstOrCreate(&allocation).
		Error
	if err != nil {
		return nil, fmt.Errorf("get allocation: %w", err)
	}

	return &allocation, nil
}
