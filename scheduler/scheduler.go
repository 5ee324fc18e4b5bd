package scheduler

import (
	"context"
	"log"
	"time"

	"livestock-heat-api/forecast"

	"github.com/robfig/cron/v3"
)

const trainTimeout = 10 * time.Minute

// Scheduler retrains the forecast models on a cron schedule. An empty
// spec disables it.
type Scheduler struct {
	cron      *cron.Cron
	svc       *forecast.Service
	spec      string
	isRunning bool
}

func New(svc *forecast.Service, spec string) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		svc:  svc,
		spec: spec,
	}
}

func (s *Scheduler) Start() error {
	if s.spec == "" {
		log.Println("Scheduler: periodic retraining is disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		log.Println("Scheduler: starting retraining job...")
		ctx, cancel := context.WithTimeout(context.Background(), trainTimeout)
		defer cancel()
		result, err := s.svc.Train(ctx)
		if err != nil {
			log.Printf("Scheduler: retraining failed: %v", err)
			return
		}
		log.Printf("Scheduler: retraining completed, version=%s rows=%d",
			result.ModelVersion, result.RecordsUsed)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Scheduler: started with retraining cron %q", s.spec)
	return nil
}

func (s *Scheduler) Stop() {
	if s.isRunning {
		s.cron.Stop()
		s.isRunning = false
		log.Println("Scheduler: stopped")
	}
}
