package turn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// OpenDB opens a GORM connection for the given backend ("postgres" or "sqlite").
func OpenDB(backend, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("postgres store requires a DSN")
		}
		dialector = postgres.Open(dsn)
	case "sqlite":
		if dsn == "" {
			dsn = "mindful-chat.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", backend)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", backend, err)
	}
	return db, nil
}

// GormStore persists turns through GORM.
type GormStore struct {
	db      *gorm.DB
	now     func() time.Time
	created *sequenceClock
}

// NewGormStore wraps an open connection. Call AutoMigrate before first use.
// Creation order is kept per store instance; replicas sharing a database only
// stay ordered to clock precision.
func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	o := buildOptions(opts)
	return &GormStore{db: db, now: o.now, created: newSequenceClock(o.now)}
}

func (s *GormStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Turn{}); err != nil {
		return fmt.Errorf("auto migrate turns: %w", err)
	}
	return nil
}

func (s *GormStore) Create(ctx context.Context, t Turn) (Turn, error) {
	prepared, err := prepare(t, s.created.next())
	if err != nil {
		return Turn{}, err
	}
	if err := s.db.WithContext(ctx).Create(&prepared).Error; err != nil {
		return Turn{}, fmt.Errorf("create turn: %w", err)
	}
	return prepared, nil
}

func (s *GormStore) ListByOwner(ctx context.Context, owner string) ([]Turn, error) {
	var out []Turn
	err := s.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	if out == nil {
		out = []Turn{}
	}
	return out, nil
}

func (s *GormStore) DeleteAllByOwner(ctx context.Context, owner string) (int64, error) {
	res := s.db.WithContext(ctx).Where("owner = ?", owner).Delete(&Turn{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete turns: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (Turn, error) {
	var t Turn
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Turn{}, ErrNotFound
	}
	if err != nil {
		return Turn{}, fmt.Errorf("get turn: %w", err)
	}
	return t, nil
}

func (s *GormStore) List(ctx context.Context, page, limit int) ([]Turn, int64, error) {
	page, limit = normalizePage(page, limit)

	var total int64
	if err := s.db.WithContext(ctx).Model(&Turn{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count turns: %w", err)
	}

	var out []Turn
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list turns: %w", err)
	}
	if out == nil {
		out = []Turn{}
	}
	return out, total, nil
}

func (s *GormStore) UpdateReviewFlag(ctx context.Context, id string, flag ReviewFlag) (Turn, error) {
	if !flag.Valid() {
		return Turn{}, ErrInvalidReviewFlag
	}
	res := s.db.WithContext(ctx).
		Model(&Turn{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"review_flag": flag,
			"updated_at":  s.now().UTC(),
		})
	if res.Error != nil {
		return Turn{}, fmt.Errorf("update review flag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return Turn{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Turn{})
	if res.Error != nil {
		return fmt.Errorf("delete turn: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Stats(ctx context.Context, since time.Time) (Stats, error) {
	db := s.db.WithContext(ctx)
	since = since.UTC()

	var stats Stats
	if err := db.Model(&Turn{}).Count(&stats.TotalTurns).Error; err != nil {
		return Stats{}, fmt.Errorf("count turns: %w", err)
	}
	if err := db.Model(&Turn{}).Distinct("owner").Count(&stats.TotalUsers).Error; err != nil {
		return Stats{}, fmt.Errorf("count owners: %w", err)
	}
	if err := db.Model(&Turn{}).Where("created_at >= ?", since).Count(&stats.NewTurns).Error; err != nil {
		return Stats{}, fmt.Errorf("count new turns: %w", err)
	}

	firsts := db.Model(&Turn{}).Select("owner, MIN(created_at) AS first_at").Group("owner")
	if err := db.Table("(?) AS firsts", firsts).Where("first_at >= ?", since).Count(&stats.NewUsers).Error; err != nil {
		return Stats{}, fmt.Errorf("count new owners: %w", err)
	}
	return stats, nil
}
