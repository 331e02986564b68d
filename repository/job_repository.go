package repository

import (
	"context"
	"errors"
	"time"

	"Chroma/model"

	"gorm.io/gorm"
)

// JobFilter 列表查询条件，零值表示不过滤
type JobFilter struct {
	Kind   model.JobKind
	Status model.JobStatus
	Before time.Time // 只返回早于该时间创建的任务
	Limit  int
	Offset int
}

// JobRepository 任务数据访问接口
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	GetByID(ctx context.Context, id string) (*model.Job, error)
	Update(ctx context.Context, job *model.Job) error
	UpdateStatus(ctx context.Context, id string, status model.JobStatus, errMsg string) error
	List(ctx context.Context, filter JobFilter) ([]*model.Job, error)
	Delete(ctx context.Context, id string) error
}

// gormJobRepository GORM 实现
type gormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository 创建 GORM 任务仓库
func NewGormJobRepository(db *gorm.DB) JobRepository {
	return &gormJobRepository{db: db}
}

// Create 创建任务
func (r *gormJobRepository) Create(ctx context.Context, job *model.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID 根据ID获取任务，不存在时返回 nil, nil
func (r *gormJobRepository) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// Update 更新任务
func (r *gormJobRepository) Update(ctx context.Context, job *model.Job) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// UpdateStatus 只更新状态和错误信息
func (r *gormJobRepository) UpdateStatus(ctx context.Context, id string, status model.JobStatus, errMsg string) error {
	return r.db.WithContext(ctx).Model(&model.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errMsg,
		}).Error
}

// List 按创建时间倒序列出任务
func (r *gormJobRepository) List(ctx context.Context, filter JobFilter) ([]*model.Job, error) {
	q := r.db.WithContext(ctx).Model(&model.Job{})
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if !filter.Before.IsZero() {
		q = q.Where("created_at < ?", filter.Before)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var jobs []*model.Job
	err := q.Order("created_at DESC").Find(&jobs).Error
	return jobs, err
}

// Delete 删除任务
func (r *gormJobRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Job{}).Error
}
