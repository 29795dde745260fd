package repositories

import (
	"context"

	"github.com/anonto42/lofi-room/backend/internal/models"
	"gorm.io/gorm"
)

// WorryRepository defines the interface for worry note operations
type WorryRepository interface {
	CreateWorry(ctx context.Context, worry *models.Worry) error
	CountWorries(ctx context.Context, uid string) (int64, error)
}

// PostgresWorryRepository implements WorryRepository for PostgreSQL
type PostgresWorryRepository struct {
	db *gorm.DB
}

// NewPostgresWorryRepository creates a new PostgresWorryRepository
func NewPostgresWorryRepository(db *gorm.DB) *PostgresWorryRepository {
	return &PostgresWorryRepository{db: db}
}

func (r *PostgresWorryRepository) CreateWorry(ctx context.Context, worry *models.Worry) error {
	return r.db.WithContext(ctx).Create(worry).Error
}

func (r *PostgresWorryRepository) CountWorries(ctx context.Context, uid string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Worry{}).Where("uid = ?", uid).Count(&count).Error
	return count, err
}
