package source

import (
	"context"
	"log"
	"time"

	"github.com/KeelyW-11/school-equipment-inventory/internal/catalog"
)

// Loader is the part of the catalog the reload loop drives.
type Loader interface {
	Load(ctx context.Context, src catalog.Source) catalog.LoadReport
}

// Service loads the catalog at startup and, when an interval is set, keeps reloading it.
type Service struct {
	src       catalog.Source
	loader    Loader
	interval  time.Duration
	afterLoad func(ctx context.Context)
}

// NewService creates the load loop. afterLoad, if not nil, runs after every load, which is
// where pending scans get drained.
func NewService(src catalog.Source, loader Loader, interval time.Duration, afterLoad func(ctx context.Context)) *Service {
	return &Service{src: src, loader: loader, interval: interval, afterLoad: afterLoad}
}

// Run performs the initial load, then reloads on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	log.Println("Starting catalog loader...")
	s.LoadOnce(ctx)

	if s.interval <= 0 {
		log.Println("Catalog reload is disabled.")
		return
	}

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Catalog loader shutting down.")
			return
		case <-timer.C:
			s.LoadOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// LoadOnce performs a single load and runs the after-load hook.
func (s *Service) LoadOnce(ctx context.Context) catalog.LoadReport {
	report := s.loader.Load(ctx, s.src)
	if report.Fallback {
		log.Printf("Catalog load from %s fell back to defaults (%d records)", report.Source, report.Records)
	} else {
		log.Printf("Catalog loaded %d records from %s (%d rows skipped)", report.Records, report.Source, report.Skipped)
	}
	if s.afterLoad != nil {
		s.afterLoad(ctx)
	}
	return report
}
