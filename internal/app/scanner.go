// Package app holds the scan pipeline: pairing, message composition and the
// scanner loop that drives them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/tagrelay/internal/domain"
	"github.com/bft-labs/tagrelay/internal/metrics"
	"github.com/bft-labs/tagrelay/internal/ports"
	"github.com/bft-labs/tagrelay/pkg/log"
)

// Default scanner timings.
const (
	DefaultReadInterval  = 2 * time.Second
	DefaultFlashDuration = 2 * time.Second
	DefaultSentDuration  = 2 * time.Second
)

// ScannerConfig contains timing for the scan loop.
type ScannerConfig struct {
	ReadInterval   time.Duration
	FlashDuration  time.Duration
	SentDuration   time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Transmitter delivers composed messages.
type Transmitter interface {
	Transmit(ctx context.Context, msg domain.Message) (domain.TransmitResult, error)
}

// Scanner reads tags and turns object/location pairs into delivered messages.
type Scanner struct {
	config    ScannerConfig
	reader    ports.TagReader
	catalog   ports.Catalog
	pairing   *Pairing
	composer  *Composer
	tx        Transmitter
	statsRepo ports.StatsRepository
	indicator ports.Indicator
	metrics   *metrics.Metrics
	logger    log.Logger

	mu    sync.Mutex
	stats domain.Statistics
}

// NewScanner creates a scanner. statsRepo, indicator and m may be nil.
func NewScanner(
	config ScannerConfig,
	reader ports.TagReader,
	catalog ports.Catalog,
	composer *Composer,
	tx Transmitter,
	statsRepo ports.StatsRepository,
	indicator ports.Indicator,
	m *metrics.Metrics,
	logger log.Logger,
) *Scanner {
	if config.ReadInterval < 0 {
		config.ReadInterval = 0
	}
	if config.FlashDuration <= 0 {
		config.FlashDuration = DefaultFlashDuration
	}
	if config.SentDuration <= 0 {
		config.SentDuration = DefaultSentDuration
	}
	if config.BackoffInitial <= 0 {
		config.BackoffInitial = DefaultBackoffInitial
	}
	if config.BackoffMax <= 0 {
		config.BackoffMax = DefaultBackoffMax
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Scanner{
		config:    config,
		reader:    reader,
		catalog:   catalog,
		pairing:   NewPairing(logger),
		composer:  composer,
		tx:        tx,
		statsRepo: statsRepo,
		indicator: indicator,
		metrics:   m,
		logger:    logger,
	}
}

// Pairing exposes the pairing state machine.
func (s *Scanner) Pairing() *Pairing {
	return s.pairing
}

// Statistics returns the in-memory scan counters.
func (s *Scanner) Statistics() domain.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// RecordStart loads persisted statistics and bumps the service start counter.
// A storage failure is logged and counting starts from the loaded values.
func (s *Scanner) RecordStart(ctx context.Context) domain.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.statsRepo != nil {
		stats, err := s.statsRepo.Load(ctx)
		if err != nil {
			s.logger.Error("failed to load statistics", log.Err(err))
		}
		s.stats = stats
	}
	s.stats.ServiceStarts++
	s.saveLocked(ctx)

	s.logger.Info("service start recorded",
		log.Int("service_starts", s.stats.ServiceStarts),
		log.Int("total_tags", s.stats.TotalTags),
	)
	return s.stats
}

// Run loops RunOnce until ctx is done or the reader is exhausted.
func (s *Scanner) Run(ctx context.Context) error {
	bo := newReadBackoff(s.config.BackoffInitial, s.config.BackoffMax)

	s.logger.Info("scanner started", log.Duration("read_interval", s.config.ReadInterval))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.showWaiting()
		_, err := s.RunOnce(ctx)

		delay := s.config.ReadInterval
		switch {
		case err == nil:
			bo.Reset()
		case errors.Is(err, io.EOF):
			s.logger.Info("tag reader exhausted, stopping scanner")
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, domain.ErrReadFailed):
			delay = bo.NextBackOff()
			s.logger.Warn("tag read failed, backing off",
				log.Err(err),
				log.Duration("delay", delay),
			)
		case errors.Is(err, domain.ErrUnknownItem):
			bo.Reset()
		default:
			bo.Reset()
			s.logger.Error("scan cycle failed", log.Err(err))
		}

		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}
}

// RunOnce performs one read, classify, pair, compose and transmit cycle.
// sent reports whether a message left the pipeline (broker or fallback).
func (s *Scanner) RunOnce(ctx context.Context) (sent bool, err error) {
	read, err := s.reader.Read(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return false, err
		}
		s.metrics.ScansTotal.WithLabelValues(metrics.ScanReadError).Inc()
		s.show(domain.Signal{Color: domain.ColorRed, Flash: true, Duration: s.config.FlashDuration})
		return false, fmt.Errorf("%w: %w", domain.ErrReadFailed, err)
	}

	id := strings.TrimSpace(read.Text)
	s.logger.Debug("tag read", log.Uint64("tag_id", read.TagID), log.String("text", id))

	item, err := s.catalog.Resolve(id)
	if err != nil {
		s.metrics.ScansTotal.WithLabelValues(metrics.ScanUnknown).Inc()
		s.logger.Warn("unknown tag", log.String("id", id))
		s.show(domain.Signal{Color: domain.ColorRed, Flash: true, Duration: s.config.FlashDuration})
		return false, err
	}

	switch item.Type {
	case domain.Object:
		s.metrics.ScansTotal.WithLabelValues(metrics.ScanObject).Inc()
		s.logger.Info("object scanned", log.String("id", item.ItemID), log.String("name", item.Name()))
		s.show(domain.Signal{Color: domain.ColorYellow, Flash: true, Duration: s.config.FlashDuration})
	case domain.Location:
		s.metrics.ScansTotal.WithLabelValues(metrics.ScanLocation).Inc()
		s.logger.Info("location scanned", log.String("id", item.ItemID), log.String("name", item.Name()))
		s.show(domain.Signal{Color: domain.ColorBlue, Flash: true, Duration: s.config.FlashDuration})
	}

	pair, _ := s.pairing.Scan(item)
	if pair == nil {
		return false, nil
	}

	s.show(domain.Signal{Color: domain.ColorGreen, Flash: true, Duration: s.config.FlashDuration})

	msg := s.composer.Compose(*pair)
	res, err := s.tx.Transmit(ctx, msg)
	s.recordScan(ctx, msg.Timestamp)
	if err != nil {
		s.show(domain.Signal{Color: domain.ColorRed, Flash: true, Duration: s.config.FlashDuration})
		return false, err
	}

	s.logger.Info("scan pair delivered",
		log.String("message_id", msg.MessageID),
		log.String("object", pair.Object.ItemID),
		log.String("location", pair.Location.ItemID),
		log.String("method", res.Method),
		log.Int("fallback_queue", res.FallbackQueueSize),
	)
	s.show(domain.Signal{Color: domain.ColorPurple, Duration: s.config.SentDuration})
	return true, nil
}

func (s *Scanner) recordScan(ctx context.Context, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalTags++
	last := at
	s.stats.LastScan = &last
	s.saveLocked(ctx)
}

func (s *Scanner) saveLocked(ctx context.Context) {
	if s.statsRepo == nil {
		return
	}
	if err := s.statsRepo.Save(ctx, s.stats); err != nil {
		s.logger.Error("failed to save statistics", log.Err(err))
	}
}

func (s *Scanner) show(sig domain.Signal) {
	if s.indicator != nil {
		s.indicator.Show(sig)
	}
}

func (s *Scanner) showWaiting() {
	if s.indicator != nil {
		s.indicator.Waiting()
	}
}
