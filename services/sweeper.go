package services

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

// MatchSweeper periodically abandons matches nobody finished.
type MatchSweeper struct {
	scheduler gocron.Scheduler
}

func NewMatchSweeper(service *MatchService, interval, maxAge time.Duration) (*MatchSweeper, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, eris.Wrap(err, "failed to create scheduler")
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n := service.AbandonStale(maxAge); n > 0 {
				log.Info().Int("matches", n).Msg("abandoned stale matches")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to schedule match sweep")
	}

	return &MatchSweeper{scheduler: sched}, nil
}

func (s *MatchSweeper) Start() {
	s.scheduler.Start()
}

func (s *MatchSweeper) Shutdown() error {
	return s.scheduler.Shutdown()
}
