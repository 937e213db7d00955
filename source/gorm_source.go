package source

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/model"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSource is the postgres-backed reference implementation of both
// ContentSource and RelationshipSource.
type GormSource struct {
	DB *gorm.DB
}

func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{DB: db}
}

// SetupAndMigrate creates the tables backing GormSource.
func SetupAndMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.VisitLog{},
		&model.VisitLogLike{},
		&model.UserFavorite{},
		&model.UserBlock{},
		&model.GymFavorite{},
	)
}

func toContentItems(rows []*model.VisitLog) []*model.ContentItem {
	out := make([]*model.ContentItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToContentItem())
	}
	return out
}

func (s *GormSource) ListGlobal(ctx context.Context, cursor string, limit int) ([]*model.ContentItem, error) {
	if err := ValidatePageLimit(limit); err != nil {
		return nil, err
	}
	resume, resumeId, err := ParseCursor(cursor)
	if err != nil {
		return nil, err
	}

	var rows []*model.VisitLog
	query := s.DB.WithContext(ctx).Model(&model.VisitLog{}).
		Order("created_at desc, id desc").
		Limit(limit)
	if !resume.IsZero() {
		if resumeId > 0 {
			query = query.Where("(created_at, id) < (?, ?)", resume, resumeId)
		} else {
			query = query.Where("created_at < ?", resume)
		}
	}
	if result := query.Find(&rows); result.Error != nil {
		return nil, model.NewNetworkError(result.Error)
	}
	return toContentItems(rows), nil
}

func (s *GormSource) ListByAuthor(ctx context.Context, authorId string, offset, limit int) ([]*model.ContentItem, error) {
	if err := ValidateOffsetArgs(offset, limit); err != nil {
		return nil, err
	}
	var rows []*model.VisitLog
	result := s.DB.WithContext(ctx).Model(&model.VisitLog{}).
		Where("author_id = ?", authorId).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&rows)
	if result.Error != nil {
		return nil, model.NewNetworkError(result.Error)
	}
	return toContentItems(rows), nil
}

func (s *GormSource) ListByLocation(ctx context.Context, gymId int64, offset, limit int) ([]*model.ContentItem, error) {
	if err := ValidateOffsetArgs(offset, limit); err != nil {
		return nil, err
	}
	if gymId <= 0 {
		return nil, model.NewValidationError("gym id must be a positive integer, got %d", gymId)
	}
	var rows []*model.VisitLog
	result := s.DB.WithContext(ctx).Model(&model.VisitLog{}).
		Where("gym_id = ?", gymId).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&rows)
	if result.Error != nil {
		return nil, model.NewNetworkError(result.Error)
	}
	return toContentItems(rows), nil
}

func (s *GormSource) ListFavoritesOnly(ctx context.Context, userId string, cursor string, limit int) ([]*model.ContentItem, error) {
	if err := ValidatePageLimit(limit); err != nil {
		return nil, err
	}
	resume, resumeId, err := ParseCursor(cursor)
	if err != nil {
		return nil, err
	}

	var rows []*model.VisitLog
	query := s.DB.WithContext(ctx).Model(&model.VisitLog{}).
		Joins("JOIN user_favorites ON user_favorites.target_id = visit_logs.author_id").
		Where("user_favorites.user_id = ?", userId).
		Order("visit_logs.created_at desc, visit_logs.id desc").
		Limit(limit)
	if !resume.IsZero() {
		if resumeId > 0 {
			query = query.Where("(visit_logs.created_at, visit_logs.id) < (?, ?)", resume, resumeId)
		} else {
			query = query.Where("visit_logs.created_at < ?", resume)
		}
	}
	if result := query.Find(&rows); result.Error != nil {
		return nil, model.NewNetworkError(result.Error)
	}
	return toContentItems(rows), nil
}

func (s *GormSource) Publish(ctx context.Context, item *model.ContentItem) (int64, error) {
	row := model.VisitLog{
		AuthorId:    item.AuthorId,
		GymId:       item.GymId,
		Body:        item.Body,
		VisitedDate: datatypes.Date(item.VisitedDate),
		MediaRefs:   pq.StringArray(item.MediaRefs),
		MovieRef:    item.MovieRef,
	}
	if result := s.DB.WithContext(ctx).Create(&row); result.Error != nil {
		return 0, model.NewNetworkError(result.Error)
	}
	return row.Id, nil
}

func (s *GormSource) Edit(ctx context.Context, id int64, edit ContentEdit) error {
	updates := map[string]interface{}{}
	if edit.Body != nil {
		updates["body"] = *edit.Body
	}
	if edit.VisitedDate != nil {
		updates["visited_date"] = datatypes.Date(*edit.VisitedDate)
	}
	if edit.MediaRefs != nil {
		updates["media_refs"] = pq.StringArray(*edit.MediaRefs)
	}
	if edit.MovieRef != nil {
		updates["movie_ref"] = *edit.MovieRef
	}
	if len(updates) == 0 {
		return nil
	}

	result := s.DB.WithContext(ctx).Model(&model.VisitLog{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return model.NewNetworkError(result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(model.ErrNotFound, "visit log %d", id)
	}
	return nil
}

func (s *GormSource) Delete(ctx context.Context, id int64) error {
	result := s.DB.WithContext(ctx).Delete(&model.VisitLog{}, id)
	if result.Error != nil {
		return model.NewNetworkError(result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.Wrapf(model.ErrNotFound, "visit log %d", id)
	}
	return nil
}

// Like inserts the like edge and bumps the denormalized counter. Inserting an
// existing edge is a no-op, the counter only moves on a fresh edge.
func (s *GormSource) Like(ctx context.Context, id int64, userId string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.VisitLog
		if result := tx.First(&row, id); result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return errors.Wrapf(model.ErrNotFound, "visit log %d", id)
			}
			return model.NewNetworkError(result.Error)
		}
		like := model.VisitLogLike{UserId: userId, VisitLogId: id, CreatedAt: time.Now()}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
		if result.Error != nil {
			return model.NewNetworkError(result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&model.VisitLog{}).Where("id = ?", id).
			UpdateColumn("liked_count", gorm.Expr("liked_count + 1")).Error
	})
}

func (s *GormSource) Unlike(ctx context.Context, id int64, userId string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ? AND visit_log_id = ?", userId, id).
			Delete(&model.VisitLogLike{})
		if result.Error != nil {
			return model.NewNetworkError(result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&model.VisitLog{}).Where("id = ? AND liked_count > 0", id).
			UpdateColumn("liked_count", gorm.Expr("liked_count - 1")).Error
	})
}

func (s *GormSource) ListFavoriteUsers(ctx context.Context, userId string) ([]string, error) {
	var targets []string
	result := s.DB.WithContext(ctx).Model(&model.UserFavorite{}).
		Where("user_id = ?", userId).
		Pluck("target_id", &targets)
	if result.Error != nil {
		return nil, model.NewNetworkError(result.Error)
	}
	return targets, nil
}

func (s *GormSource) ListFavoritedByUsers(ctx context.Context, userId string) ([]string, error) {
	var sources []string
	result := s.DB.WithContext(ctx).Model(&model.UserFavorite{}).
		Where("target_id = ?", userId).
		Pluck("user_id", &sources)
	if result.Error != nil {
		return nil, model.NewNetworkError(result.Error)
	}
	return sources, nil
}

func (s *GormSource) AddFavoriteUser(ctx context.Context, userId, targetId string) error {
	edge := model.UserFavorite{UserId: userId, TargetId: targetId, CreatedAt: time.Now()}
	result := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
	if result.Error != nil {
		return model.NewNetworkError(result.Error)
	}
	return nil
}

func (s *GormSource) RemoveFavoriteUser(ctx context.Context, userId, targetId string) error {
	result := s.DB.WithContext(ctx).Where("user_id = ? AND target_id = ?", userId, targetId).
		Delete(&model.UserFavorite{})
	if result.Error != nil {
		return model.NewNetworkError(result.Error)
	}
	return nil
}

func (s *GormSource) ListBlockedUsers(ctx context.Context, userId string) ([]string, error) {
	var targets []string
	result := s.DB.WithContext(ctx).Model(&model.UserBlock{}).
		Where("user_id = ?", userId).
		Pluck("target_id", &targets)
	if result.Error != nil {
		return nil, model.NewNetworkError(result.Error)
	}
	return targets, nil
}

func (s *GormSource) AddBlockUser(ctx context.Context, userId, targetId string) error {
	edge := model.UserBlock{UserId: userId, TargetId: targetId, CreatedAt: time.Now()}
	result := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
	if result.Error != nil {
		return model.NewNetworkError(result.Error)
	}
	return nil
}

func (s *GormSource) RemoveBlockUser(ctx context.Context, userId, targetId string) error {
	result := s.DB.WithContext(ctx).Where("user_id = ? AND target_id = ?", userId, targetId).
		Delete(&model.UserBlock{})
	if result.Error != nil {
		return model.NewNetworkError(result.Error)
	}
	return nil
}

func (s *GormSource) ListFavoriteGyms(ctx context.Context, userId string) ([]int64, error) {
	var gyms []int64
	result := s.DB.WithContext(ctx).Model(&model.GymFavorite{}).
		Where("user_id = ?", userId).
		Pluck("gym_id", &gyms)
	if result.Error != nil {
		return nil, model.NewNetworkError(result.Error)
	}
	return gyms, nil
}

func (s *GormSource) AddFavoriteGym(ctx context.Context, userId string, gymId int64) error {
	edge := model.GymFavorite{UserId: userId, GymId: gymId, CreatedAt: time.Now()}
	result := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
	if result.Error != nil {
		return model.NewNetworkError(result.Error)
	}
	return nil
}

func (s *GormSource) RemoveFavoriteGym(ctx context.Context, userId string, gymId int64) error {
	result := s.DB.WithContext(ctx).Where("user_id = ? AND gym_id = ?", userId, gymId).
		Delete(&model.GymFavorite{})
	if result.Error != nil {
		return model.NewNetworkError(result.Error)
	}
	return nil
}
