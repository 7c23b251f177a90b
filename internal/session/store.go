package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNoSession = errors.New("no session")

type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Session{}); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Store) Create(ctx context.Context, token string, sess *Session) error {
	sess.ID = hashToken(token)
	return s.DB.WithContext(ctx).Create(sess).Error
}

func (s *Store) Find(ctx context.Context, token string) (*Session, error) {
	var sess Session
	err := s.DB.WithContext(ctx).Where("id = ?", hashToken(token)).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) Save(ctx context.Context, sess *Session) error {
	return s.DB.WithContext(ctx).Save(sess).Error
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Delete(&Session{}, "id = ?", id).Error
}

// DeleteByEmail signs a user out everywhere.
func (s *Store) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	res := s.DB.WithContext(ctx).Where("email = ?", email).Delete(&Session{})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at < ?", now).Delete(&Session{})
	return res.RowsAffected, res.Error
}
