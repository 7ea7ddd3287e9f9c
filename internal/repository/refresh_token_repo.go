package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"taskmanager/internal/domain"
)

// RefreshTokenRepository is the SQL refresh token ledger. Rows are keyed by
// the SHA-256 of the token; a row is deleted the moment its token is spent.
type RefreshTokenRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRefreshTokenRepository returns the ledger backed by the refresh_tokens table.
func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db, now: time.Now}
}

// Persist records a newly issued token.
func (r *RefreshTokenRepository) Persist(ctx context.Context, subjectID, token string, expiresAt time.Time) (*domain.RefreshToken, error) {
	t := &domain.RefreshToken{
		UserID:    subjectID,
		TokenHash: HashToken(token),
		ExpiresAt: expiresAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, domain.NewStorageError("persist refresh token", err)
	}
	return t, nil
}

// FindByTokenAndSubject returns the live row for token owned by subjectID.
func (r *RefreshTokenRepository) FindByTokenAndSubject(ctx context.Context, token, subjectID string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND user_id = ? AND expires_at > ?", HashToken(token), subjectID, r.now().UTC()).
		First(&t).Error
	if err != nil {
		return nil, translate("find refresh token", err)
	}
	return &t, nil
}

// DeleteByToken removes the row for token if there is one. Deleting an
// absent token is not an error.
func (r *RefreshTokenRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("token_hash = ?", HashToken(token)).
		Delete(&domain.RefreshToken{})
	if res.Error != nil {
		return 0, domain.NewStorageError("delete refresh token", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteBySubject removes every row of subjectID.
func (r *RefreshTokenRepository) DeleteBySubject(ctx context.Context, subjectID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ?", subjectID).
		Delete(&domain.RefreshToken{})
	if res.Error != nil {
		return 0, domain.NewStorageError("delete refresh tokens by user", res.Error)
	}
	return res.RowsAffected, nil
}

// Consume deletes the row for (token, subjectID) and returns it. Of several
// concurrent callers presenting the same token exactly one gets the row;
// the rest see domain.ErrNotFound.
func (r *RefreshTokenRepository) Consume(ctx context.Context, token, subjectID string) (*domain.RefreshToken, error) {
	hash := HashToken(token)

	var consumed domain.RefreshToken
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("token_hash = ? AND user_id = ?", hash, subjectID).First(&consumed).Error; err != nil {
			return err
		}

		// the conditional delete decides the race: losers affect zero rows
		res := tx.Where("id = ? AND token_hash = ?", consumed.ID, hash).Delete(&domain.RefreshToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("consume refresh token", err)
	}

	if consumed.IsExpired(r.now()) {
		return nil, domain.ErrNotFound
	}
	return &consumed, nil
}

// DeleteExpired removes rows past their expiry.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", r.now().UTC()).
		Delete(&domain.RefreshToken{})
	if res.Error != nil {
		return 0, domain.NewStorageError("delete expired refresh tokens", res.Error)
	}
	return res.RowsAffected, nil
}
