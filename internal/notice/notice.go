// Package notice keeps user-facing toasts. Notices raised while handling a
// request are returned with its response and, for signed-in users, kept
// until dismissed.
package notice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/hostel_meals/internal/collection"
	"github.com/Skotchmaster/hostel_meals/pkg/logging"
)

var ErrNotFound = errors.New("notice not found")

type Record struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID string    `gorm:"index;size:64;not null" json:"-"`
	Level     string    `gorm:"not null" json:"level"`
	Title     string    `gorm:"not null" json:"title"`
	Message   string    `gorm:"not null;default:''" json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Record) TableName() string { return "notices" }

type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Add(ctx context.Context, sessionID string, n collection.Notice) (*Record, error) {
	rec := &Record{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Level:     string(n.Level),
		Title:     n.Title,
		Message:   n.Message,
	}
	if err := s.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) List(ctx context.Context, sessionID string) ([]Record, error) {
	recs := []Record{}
	err := s.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&recs).Error
	return recs, err
}

func (s *Store) Dismiss(ctx context.Context, sessionID, id string) error {
	res := s.DB.WithContext(ctx).Where("session_id = ? AND id = ?", sessionID, id).Delete(&Record{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("created_at < ?", t).Delete(&Record{})
	return res.RowsAffected, res.Error
}

// Collector gathers the notices of one request.
type Collector struct {
	store     *Store
	sessionID string

	mu      sync.Mutex
	notices []collection.Notice
}

// NewCollector persists into store when sessionID is set; either may be empty.
func NewCollector(store *Store, sessionID string) *Collector {
	return &Collector{store: store, sessionID: sessionID}
}

func (c *Collector) Notify(ctx context.Context, n collection.Notice) {
	c.mu.Lock()
	c.notices = append(c.notices, n)
	c.mu.Unlock()

	if c.store == nil || c.sessionID == "" {
		return
	}
	if _, err := c.store.Add(ctx, c.sessionID, n); err != nil {
		logging.FromContext(ctx).Warn("notice_store_failed", "error", err)
	}
}

func (c *Collector) Notices() []collection.Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]collection.Notice, len(c.notices))
	copy(out, c.notices)
	return out
}

type ctxKey struct{}

func IntoContext(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext never returns nil; without a collector notices are dropped.
func FromContext(ctx context.Context) *Collector {
	if c, ok := ctx.Value(ctxKey{}).(*Collector); ok {
		return c
	}
	return &Collector{}
}
