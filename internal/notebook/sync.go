package notebook

import (
	"context"
	"errors"
	"sync"
	"time"

	"kitsune-client/internal/model"
	"kitsune-client/pkg/logger"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMinWait = 500 * time.Millisecond
	DefaultMaxWait = 30 * time.Second
)

// Metrics receives sync activity. Without WithMetrics nothing is recorded.
type Metrics interface {
	SnapshotApplied(notebooks int)
	FeedDropped(err error)
	ViewerLookup(err error)
}

type noMetrics struct{}

func (noMetrics) SnapshotApplied(int) {}
func (noMetrics) FeedDropped(error)   {}
func (noMetrics) ViewerLookup(error)  {}

// Sync keeps a Store in step with the backend: one viewer lookup plus the
// registry push feed, reconnected with capped exponential backoff.
type Sync struct {
	store    *Store
	session  model.SessionToken
	source   Source
	resolver Resolver

	minWait time.Duration
	maxWait time.Duration
	metrics Metrics
}

func NewSync(store *Store, session model.SessionToken, source Source, resolver Resolver, minWait, maxWait time.Duration) *Sync {
	if minWait <= 0 {
		minWait = DefaultMinWait
	}
	if maxWait < minWait {
		maxWait = DefaultMaxWait
	}
	return &Sync{
		store:    store,
		session:  session,
		source:   source,
		resolver: resolver,
		minWait:  minWait,
		maxWait:  maxWait,
		metrics:  noMetrics{},
	}
}

// WithMetrics sets where sync activity is recorded. Call before Run.
func (s *Sync) WithMetrics(m Metrics) *Sync {
	if m != nil {
		s.metrics = m
	}
	return s
}

// Run blocks until ctx is done. The viewer lookup and the feed run
// independently; a lookup failure leaves BaseURL absent and is not retried.
func (s *Sync) Run(ctx context.Context) error {
	log := logger.WithField("session", s.session)

	var wg sync.WaitGroup
	if s.resolver != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.resolveBaseURL(ctx, log)
		}()
	}
	defer wg.Wait()

	attempt := 0
	for {
		err := s.source.Watch(ctx, s.session, func(list []model.Notebook) {
			attempt = 0
			s.store.ApplySnapshot(list)
			s.metrics.SnapshotApplied(len(list))
		})
		if ctx.Err() != nil {
			log.Debug("notebook sync stopped")
			return nil
		}

		s.metrics.FeedDropped(err)
		wait := retryablehttp.DefaultBackoff(s.minWait, s.maxWait, attempt, nil)
		attempt++
		if errors.Is(err, ErrFeedClosed) {
			log.Infof("notebook feed closed, reconnecting in %s", wait)
		} else {
			log.Warnf("notebook feed failed: %v, reconnecting in %s", err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Debug("notebook sync stopped")
			return nil
		case <-timer.C:
		}
	}
}

func (s *Sync) resolveBaseURL(ctx context.Context, log *logrus.Entry) {
	url, err := s.resolver.ViewerURL(ctx, s.session)
	if ctx.Err() == nil {
		s.metrics.ViewerLookup(err)
	}
	if err != nil {
		if ctx.Err() == nil {
			log.Warnf("viewer url lookup failed, notebooks will not be shown: %v", err)
		}
		return
	}
	s.store.SetBaseURL(url)
	log.Infof("viewer available at %s", url)
}
