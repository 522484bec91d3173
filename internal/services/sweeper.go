package services

import (
	"context"
	"log"
	"time"

	"lingua-backend/internal/repository"
)

const (
	sweepInterval  = 15 * time.Minute
	studyIdleAfter = 2 * time.Hour
)

type idleSessionCloser interface {
	CloseIdle(ctx context.Context, cutoff time.Time) (int64, error)
}

// StudySessionSweeper ends study sessions that stopped receiving judgments without ever
// completing, so their durations stop growing.
type StudySessionSweeper struct {
	studies  idleSessionCloser
	idle     time.Duration
	stopChan chan struct{}
}

func NewStudySessionSweeper(studies *repository.StudySessionRepo) *StudySessionSweeper {
	return &StudySessionSweeper{
		studies:  studies,
		idle:     studyIdleAfter,
		stopChan: make(chan struct{}),
	}
}

func (s *StudySessionSweeper) Start() {
	go s.loop()
	log.Printf("Study session sweeper started")
}

func (s *StudySessionSweeper) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *StudySessionSweeper) loop() {
	// Run on startup as well as by interval.
	s.sweep(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep(context.Background(), time.Now().UTC())
		}
	}
}

func (s *StudySessionSweeper) sweep(ctx context.Context, now time.Time) {
	closed, err := s.studies.CloseIdle(ctx, now.Add(-s.idle))
	if err != nil {
		log.Printf("study sweeper: failed to close idle sessions: %v", err)
		return
	}
	if closed > 0 {
		log.Printf("study sweeper: closed %d idle study sessions", closed)
	}
}
