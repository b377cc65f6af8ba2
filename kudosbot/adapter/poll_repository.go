package adapter

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yammine/kudos-go/kudosbot/app"
	"github.com/yammine/kudos-go/kudosbot/domain"
)

type PollRepository struct {
	DB *gorm.DB
}

func NewPollRepository(db *gorm.DB) *PollRepository {
	return &PollRepository{DB: db}
}

func (p PollRepository) Migrate() error {
	return p.DB.AutoMigrate(&domain.PollWeek{}, &domain.Vote{})
}

// OpenPoll marks the week open. It reports false, and changes nothing, when the week is already open.
func (p PollRepository) OpenPoll(ctx context.Context, week domain.Week) (bool, error) {
	opened := false
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var status domain.PollWeek
		err := forUpdate(tx).
			Where(domain.PollWeek{Year: week.Year, Week: week.Number}).
			FirstOrCreate(&status).
			Error
		if err != nil {
			return fmt.Errorf("get poll week: %w", err)
		}
		if status.IsOpen {
			return nil
		}

		if err := tx.Model(&status).Update("is_open", true).Error; err != nil {
			return fmt.Errorf("opening poll: %w", err)
		}
		opened = true

		return nil
	})

	return opened, err
}

func (p PollRepository) CastVote(ctx context.Context, vote *domain.Vote) error {
	week := domain.Week{Year: vote.Year, Number: vote.Week}

	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getOpenWeekExclusive(tx, week); err != nil {
			return err
		}

		var existing int64
		err := tx.Model(&domain.Vote{}).
			Where("year = ? AND week = ? AND voter_id = ?", vote.Year, vote.Week, vote.VoterID).
			Count(&existing).
			Error
		if err != nil {
			return fmt.Errorf("looking up ballot: %w", err)
		}
		if existing > 0 {
			return domain.ErrAlreadyVoted
		}

		if err := tx.Create(vote).Error; err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}

		return nil
	})
}

func (p PollRepository) CountVotes(ctx context.Context, week domain.Week) (int, error) {
	db := p.DB.WithContext(ctx)
	if _, err := getOpenWeek(db, week); err != nil {
		return 0, err
	}

	var count int64
	err := db.Model(&domain.Vote{}).
		Where("year = ? AND week = ?", week.Year, week.Number).
		Count(&count).
		Error
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}

	return int(count), nil
}

// ClosePoll closes the week and purges its ballots, returning them so the caller can tally.
func (p PollRepository) ClosePoll(ctx context.Context, week domain.Week) ([]*domain.Vote, error) {
	var votes []*domain.Vote
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		status, err := getOpenWeekExclusive(tx, week)
		if err != nil {
			return err
		}

		if err := tx.Where("year = ? AND week = ?", week.Year, week.Number).Order("id").Find(&votes).Error; err != nil {
			return fmt.Errorf("fetching votes: %w", err)
		}

		if err := tx.Model(status).Update("is_open", false).Error; err != nil {
			return fmt.Errorf("closing poll: %w", err)
		}

		if err := tx.Where("year = ? AND week = ?", week.Year, week.Number).Delete(&domain.Vote{}).Error; err != nil {
			return fmt.Errorf("deleting votes: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return votes, nil
}

var _ app.PollRepository = (*PollRepository)(nil)

func getOpenWeekExclusive(tx *gorm.DB, week domain.Week) (*domain.PollWeek, error) {
	return getOpenWeek(forUpdate(tx), week)
}

func getOpenWeek(tx *gorm.DB, week domain.Week) (*domain.PollWeek, error) {
	var statuses []*domain.PollWeek
	err := tx.Where("year = ? AND week = ?", week.Year, week.Number).Limit(1).Find(&statuses).Error
	if err != nil {
		return nil, fmt.Errorf("fetching poll week: %w", err)
	}
	if len(statuses) == 0 || !statuses[0].IsOpen {
		return nil, domain.ErrPollNotOpen
	}

	return statuses[0], nil
}
