package app

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bft-labs/tagrelay/internal/adapters/fs"
	"github.com/bft-labs/tagrelay/internal/catalog"
	"github.com/bft-labs/tagrelay/internal/delivery"
	"github.com/bft-labs/tagrelay/internal/domain"
	"github.com/bft-labs/tagrelay/internal/metrics"
	"github.com/bft-labs/tagrelay/internal/ports"
)

// scriptReader returns the scripted reads in order, then io.EOF.
type scriptReader struct {
	mu    sync.Mutex
	reads []readResult
}

type readResult struct {
	text string
	err  error
}

func reads(texts ...string) *scriptReader {
	r := &scriptReader{}
	for _, t := range texts {
		r.reads = append(r.reads, readResult{text: t})
	}
	return r
}

func (r *scriptReader) Read(ctx context.Context) (domain.TagRead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reads) == 0 {
		return domain.TagRead{}, io.EOF
	}
	next := r.reads[0]
	r.reads = r.reads[1:]
	if next.err != nil {
		return domain.TagRead{}, next.err
	}
	return domain.TagRead{TagID: 1, Text: next.text}, nil
}

type fakeTransmitter struct {
	mu   sync.Mutex
	msgs []domain.Message
	err  error
}

func (f *fakeTransmitter) Transmit(ctx context.Context, msg domain.Message) (domain.TransmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.TransmitResult{}, f.err
	}
	f.msgs = append(f.msgs, msg)
	return domain.TransmitResult{Message: msg, Method: domain.MethodBroker}, nil
}

func (f *fakeTransmitter) sent() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.msgs...)
}

type recordingIndicator struct {
	mu      sync.Mutex
	colors  []domain.Color
	waiting int
}

func (r *recordingIndicator) Show(sig domain.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.colors = append(r.colors, sig.Color)
}

func (r *recordingIndicator) SetBrokerStatus(bool) {}

func (r *recordingIndicator) Waiting() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiting++
}

func (r *recordingIndicator) shown() []domain.Color {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Color(nil), r.colors...)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New("unused.toml", nil)
	items := []struct {
		id   string
		typ  domain.ItemType
		name string
	}{
		{"RFID1", domain.Object, "Drill"},
		{"RFID2", domain.Object, "Saw"},
		{"OP1", domain.Location, "Bay 1"},
	}
	for _, it := range items {
		if err := c.Add(it.id, it.typ, map[string]any{"name": it.name}); err != nil {
			t.Fatalf("Add(%s): %v", it.id, err)
		}
	}
	return c
}

type scannerFixture struct {
	scanner   *Scanner
	tx        *fakeTransmitter
	indicator *recordingIndicator
	metrics   *metrics.Metrics
	stats     *fs.StatsFileRepository
}

func newScannerFixture(t *testing.T, reader ports.TagReader) *scannerFixture {
	t.Helper()
	f := &scannerFixture{
		tx:        &fakeTransmitter{},
		indicator: &recordingIndicator{},
		metrics:   metrics.New(),
		stats:     fs.NewStatsFileRepository(t.TempDir()),
	}
	f.scanner = NewScanner(
		ScannerConfig{ReadInterval: time.Millisecond, BackoffInitial: time.Millisecond, BackoffMax: 5 * time.Millisecond},
		reader,
		testCatalog(t),
		NewComposer(),
		f.tx,
		f.stats,
		f.indicator,
		f.metrics,
		nil,
	)
	return f
}

// scanCount returns the scans_total sample for outcome.
func scanCount(m *metrics.Metrics, outcome string) float64 {
	return testutil.ToFloat64(m.ScansTotal.WithLabelValues(outcome))
}

func TestScanner_RunOncePairs(t *testing.T) {
	f := newScannerFixture(t, reads("RFID1", " OP1 \n"))
	ctx := context.Background()

	sent, err := f.scanner.RunOnce(ctx)
	if err != nil || sent {
		t.Fatalf("first RunOnce = (%v, %v), want (false, nil)", sent, err)
	}

	sent, err = f.scanner.RunOnce(ctx)
	if err != nil || !sent {
		t.Fatalf("second RunOnce = (%v, %v), want (true, nil)", sent, err)
	}

	msgs := f.tx.sent()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	if msgs[0].Object.ID != "RFID1" || msgs[0].Location.ID != "OP1" {
		t.Errorf("message pair = %s/%s, want RFID1/OP1", msgs[0].Object.ID, msgs[0].Location.ID)
	}

	want := []domain.Color{
		domain.ColorYellow,
		domain.ColorBlue,
		domain.ColorGreen,
		domain.ColorPurple,
	}
	if got := f.indicator.shown(); !reflect.DeepEqual(got, want) {
		t.Errorf("signals = %v, want %v", got, want)
	}

	if got := scanCount(f.metrics, metrics.ScanObject); got != 1 {
		t.Errorf("object scans = %v, want 1", got)
	}
	if got := scanCount(f.metrics, metrics.ScanLocation); got != 1 {
		t.Errorf("location scans = %v, want 1", got)
	}
}

func TestScanner_UnknownTagLeavesSlotsUntouched(t *testing.T) {
	f := newScannerFixture(t, reads("RFID1", "ZZZZ"))
	ctx := context.Background()

	if _, err := f.scanner.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	sent, err := f.scanner.RunOnce(ctx)
	if sent {
		t.Error("unknown tag produced a message")
	}
	if !errors.Is(err, domain.ErrUnknownItem) {
		t.Errorf("RunOnce() error = %v, want ErrUnknownItem", err)
	}

	obj, loc := f.scanner.Pairing().Pending()
	if obj.ItemID != "RFID1" || !loc.IsZero() {
		t.Errorf("pending = %s/%+v, want RFID1 and no location", obj.ItemID, loc)
	}
	if n := len(f.tx.sent()); n != 0 {
		t.Errorf("sent %d messages, want 0", n)
	}
	if shown := f.indicator.shown(); len(shown) < 2 || shown[1] != domain.ColorRed {
		t.Errorf("signals = %v, want red for the unknown tag", shown)
	}
	if got := scanCount(f.metrics, metrics.ScanUnknown); got != 1 {
		t.Errorf("unknown scans = %v, want 1", got)
	}
}

func TestScanner_ReadErrorIsWrapped(t *testing.T) {
	r := &scriptReader{reads: []readResult{{err: errors.New("antenna timeout")}}}
	f := newScannerFixture(t, r)

	if _, err := f.scanner.RunOnce(context.Background()); !errors.Is(err, domain.ErrReadFailed) {
		t.Errorf("RunOnce() error = %v, want ErrReadFailed", err)
	}
	if got := scanCount(f.metrics, metrics.ScanReadError); got != 1 {
		t.Errorf("read error scans = %v, want 1", got)
	}
}

func TestScanner_DeliveryExhaustedClearsSlots(t *testing.T) {
	f := newScannerFixture(t, reads("RFID1", "OP1"))
	f.tx.err = domain.ErrDeliveryExhausted
	ctx := context.Background()

	if _, err := f.scanner.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := f.scanner.RunOnce(ctx); !errors.Is(err, domain.ErrDeliveryExhausted) {
		t.Errorf("RunOnce() error = %v, want ErrDeliveryExhausted", err)
	}

	if got := f.scanner.Pairing().State(); got != PairEmpty {
		t.Errorf("pairing state = %v, want Empty", got)
	}
	if got := f.scanner.Statistics().TotalTags; got != 1 {
		t.Errorf("TotalTags = %d, want 1", got)
	}
}

func TestScanner_RunStopsAtEOFAndRecordsStats(t *testing.T) {
	r := &scriptReader{reads: []readResult{
		{text: "RFID1"},
		{err: errors.New("crc error")},
		{text: "ZZZZ"},
		{text: "OP1"},
		{text: "RFID2"},
		{text: "OP1"},
	}}
	f := newScannerFixture(t, r)
	ctx := context.Background()

	if start := f.scanner.RecordStart(ctx); start.ServiceStarts != 1 {
		t.Errorf("ServiceStarts = %d, want 1", start.ServiceStarts)
	}

	if err := f.scanner.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v, want nil at EOF", err)
	}

	msgs := f.tx.sent()
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want 2", len(msgs))
	}
	if msgs[0].Object.ID != "RFID1" || msgs[1].Object.ID != "RFID2" {
		t.Errorf("objects = %s, %s, want RFID1, RFID2", msgs[0].Object.ID, msgs[1].Object.ID)
	}

	saved, err := f.stats.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if saved.TotalTags != 2 || saved.ServiceStarts != 1 {
		t.Errorf("saved stats = %+v, want 2 tags and 1 start", saved)
	}
	if saved.LastScan == nil {
		t.Error("LastScan not recorded")
	}

	// A second process start bumps the counter.
	again := newScannerFixture(t, reads())
	again.scanner.statsRepo = f.stats
	if got := again.scanner.RecordStart(ctx).ServiceStarts; got != 2 {
		t.Errorf("ServiceStarts on restart = %d, want 2", got)
	}
}

func TestScanner_RunStopsOnCancel(t *testing.T) {
	blocking := readerFunc(func(ctx context.Context) (domain.TagRead, error) {
		<-ctx.Done()
		return domain.TagRead{}, ctx.Err()
	})
	f := newScannerFixture(t, blocking)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.scanner.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type readerFunc func(ctx context.Context) (domain.TagRead, error)

func (f readerFunc) Read(ctx context.Context) (domain.TagRead, error) { return f(ctx) }

// switchDialer is a minimal broker that can be taken up and down.
type switchDialer struct {
	mu        sync.Mutex
	up        bool
	published []string
}

func (d *switchDialer) set(up bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.up = up
}

func (d *switchDialer) Dial(ctx context.Context) (ports.BrokerConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.up {
		return nil, errors.New("connection refused")
	}
	return switchConn{d}, nil
}

type switchConn struct{ d *switchDialer }

func (c switchConn) Alive() error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if !c.d.up {
		return errors.New("connection reset")
	}
	return nil
}

func (c switchConn) Publish(ctx context.Context, p ports.Publishing) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if !c.d.up {
		return errors.New("connection reset")
	}
	c.d.published = append(c.d.published, p.MessageID)
	return nil
}

func (c switchConn) Close() error { return nil }

func TestScenario_BrokerDownThenRecovers(t *testing.T) {
	dialer := &switchDialer{}
	store := fs.NewFallbackFileStore(t.TempDir(), "rfid_messages", nil)
	engine := delivery.New(delivery.Config{
		Host:          "localhost",
		Port:          5672,
		QueueName:     "rfid_messages",
		RetryInterval: 10 * time.Millisecond,
	}, dialer, store, nil)
	t.Cleanup(func() { _ = engine.Close() })

	scanner := NewScanner(ScannerConfig{}, reads("RFID1", "OP1"), testCatalog(t), NewComposer(), engine, nil, nil, nil, nil)
	ctx := context.Background()

	if _, err := scanner.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}
	sent, err := scanner.RunOnce(ctx)
	if err != nil || !sent {
		t.Fatalf("RunOnce() = (%v, %v), want (true, nil)", sent, err)
	}
	if got := engine.FallbackCount(); got != 1 {
		t.Fatalf("FallbackCount() = %d, want 1", got)
	}

	if err := engine.Start(ctx); err != nil {
		t.Fatal(err)
	}
	dialer.set(true)

	deadline := time.Now().Add(2 * time.Second)
	for engine.FallbackCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("fallback queue not replayed after broker recovered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	if len(dialer.published) != 1 {
		t.Errorf("published %v, want one message", dialer.published)
	}
}
