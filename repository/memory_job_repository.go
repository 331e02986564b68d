package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"Chroma/model"
)

// memoryJobRepository 不启用数据库时使用，进程重启后记录丢失
type memoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
}

// NewMemoryJobRepository 创建内存任务仓库
func NewMemoryJobRepository() JobRepository {
	return &memoryJobRepository{jobs: make(map[string]model.Job)}
}

func (r *memoryJobRepository) Create(_ context.Context, job *model.Job) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memoryJobRepository) GetByID(_ context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (r *memoryJobRepository) Update(_ context.Context, job *model.Job) error {
	job.UpdatedAt = time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memoryJobRepository) UpdateStatus(_ context.Context, id string, status model.JobStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil
	}
	job.Status = status
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now()
	r.jobs[id] = job
	return nil
}

func (r *memoryJobRepository) List(_ context.Context, filter JobFilter) ([]*model.Job, error) {
	r.mu.RLock()
	jobs := make([]*model.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if filter.Kind != "" && j.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if !filter.Before.IsZero() && !j.CreatedAt.Before(filter.Before) {
			continue
		}
		job := j
		jobs = append(jobs, &job)
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(a, b int) bool { return jobs[a].CreatedAt.After(jobs[b].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(jobs) {
			return []*model.Job{}, nil
		}
		jobs = jobs[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(jobs) {
		jobs = jobs[:filter.Limit]
	}
	return jobs, nil
}

func (r *memoryJobRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	return nil
}
