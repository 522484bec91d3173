package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lingua-backend/internal/models"
	"lingua-backend/internal/repository"
)

// JobQueue records jobs in Postgres and hands them to the worker pool through Redis lists.
type JobQueue struct {
	jobRepo *repository.JobRepo
	redis   *redis.Client
}

func NewJobQueue(jobRepo *repository.JobRepo, redisClient *redis.Client) *JobQueue {
	return &JobQueue{jobRepo: jobRepo, redis: redisClient}
}

// QueueName is the Redis list a job type is pushed to.
func QueueName(jobType string) string {
	return "queue:" + jobType
}

// Queues lists every queue the worker pool consumes.
func Queues() []string {
	return []string{
		QueueName(models.JobTypeSourceProcessing),
		QueueName(models.JobTypeFlashcardGeneration),
	}
}

// Enqueue stores job and pushes it onto its queue.
func (q *JobQueue) Enqueue(ctx context.Context, job *models.Job) error {
	if err := q.jobRepo.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return q.push(ctx, job)
}

// Requeue pushes job again after delay without touching its stored row.
func (q *JobQueue) Requeue(job *models.Job, delay time.Duration) {
	time.AfterFunc(delay, func() {
		q.push(context.Background(), job)
	})
}

func (q *JobQueue) push(ctx context.Context, job *models.Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.redis.LPush(ctx, QueueName(job.Type), string(jobBytes)).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}
