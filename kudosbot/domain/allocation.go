package domain

import (
	"fmt"

	"github.com/yammine/kudos-go"
)

const (
	ErrInvalidAmount         kudos.Sentinel = "amount must be between 5 and 100, in multiples of 5"
	ErrInsufficientAllowance kudos.Sentinel = "insufficient allowance"
)

const (
	DefaultAllowance = 100
	MinAmount        = 5
	MaxAmount        = 100
	AmountStep       = 5
)

// Allocation is what a user has left to give until the next reset.
type Allocation struct {
	UserID    string `gorm:"primaryKey"`
	Remaining int    `gorm:"not null;default:100"`
}

func (Allocation) TableName() string {
	return "kudos_allocations"
}

func NewAllocation(userID string) *Allocation {
	return &Allocation{UserID: userID, Remaining: DefaultAllowance}
}

func ValidateAmount(amount int) error {
	if amount < MinAmount || amount > MaxAmount || amount%AmountStep != 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	return nil
}

// Give debits amount from the allocation and returns the transaction to record.
func (a *Allocation) Give(receiverID string, amount int, message string) (*Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if amount > a.Remaining {
		return nil, fmt.Errorf("%w: %d left, tried to give %d", ErrInsufficientAllowance, a.Remaining, amount)
	}

	a.Remaining -= amount

	return &Transaction{
		GiverID:    a.UserID,
		ReceiverID: receiverID,
		Amount:     amount,
		Message:    message,
	}, nil
}
