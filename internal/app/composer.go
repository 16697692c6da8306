package app

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/tagrelay/internal/domain"
)

// Composer turns completed pairs into messages. It does no I/O.
type Composer struct {
	counter    atomic.Uint64
	now        func() time.Time
	starts     func() int
	instanceID string
	configFile string
	hostname   string
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) ComposerOption {
	return func(c *Composer) { c.now = now }
}

// WithServiceStarts supplies the persisted service start counter.
func WithServiceStarts(fn func() int) ComposerOption {
	return func(c *Composer) { c.starts = fn }
}

// WithConfigFile records the configuration path in scanner info.
func WithConfigFile(path string) ComposerOption {
	return func(c *Composer) { c.configFile = path }
}

// WithInstanceID overrides the generated process instance id.
func WithInstanceID(id string) ComposerOption {
	return func(c *Composer) { c.instanceID = id }
}

// NewComposer creates a composer with a fresh instance id.
func NewComposer(opts ...ComposerOption) *Composer {
	hostname, _ := os.Hostname()
	c := &Composer{
		now:        time.Now,
		starts:     func() int { return 0 },
		instanceID: uuid.NewString(),
		hostname:   hostname,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InstanceID identifies this process in every composed message.
func (c *Composer) InstanceID() string {
	return c.instanceID
}

// Compose builds the message for pair. Message ids are unique per process.
func (c *Composer) Compose(pair Pair) domain.Message {
	now := c.now()
	n := c.counter.Add(1)

	return domain.Message{
		MessageID: fmt.Sprintf("msg_%d_%d", now.UnixMilli(), n),
		Timestamp: now,
		ScanType:  domain.ScanTypeRFID,
		Object:    pair.Object.Ref(),
		Location:  pair.Location.Ref(),
		Action: domain.Action{
			Type: domain.ActionObjectLocationScan,
			Description: fmt.Sprintf("Object %s scanned at location %s",
				pair.Object.Name(), pair.Location.Name()),
		},
		ScannerInfo: domain.ScannerInfo{
			ServiceStarts: c.starts(),
			ConfigFile:    c.configFile,
			InstanceID:    c.instanceID,
			Hostname:      c.hostname,
		},
	}
}
