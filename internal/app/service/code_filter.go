package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// CodeCreatedSubject is the core NATS subject every instance listens on to learn new ids.
const CodeCreatedSubject = "qrcodes.created"

// CodeFilter tracks the QR code ids this instance knows about. It is a hint: ids
// created elsewhere may be missing until an announcement, a Refresh or a scan adds them.
type CodeFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeFilter sizes the filter for expected ids at the given false-positive rate.
func NewCodeFilter(expected uint, fpRate float64) *CodeFilter {
	if expected == 0 {
		expected = 100_000
	}
	return &CodeFilter{filter: bloom.NewWithEstimates(expected, fpRate)}
}

// Seed adds every id in ids.
func (f *CodeFilter) Seed(ids []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.filter.AddString(strconv.Itoa(id))
	}
}

// IDLister lists every stored QR code id.
type IDLister interface {
	ListIDs(ctx context.Context) ([]int, error)
}

// Refresh seeds the filter with every id the store currently holds.
func (f *CodeFilter) Refresh(ctx context.Context, store IDLister) (int, error) {
	ids, err := store.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("refresh code filter: %w", err)
	}
	f.Seed(ids)
	return len(ids), nil
}

// Add records a newly created id.
func (f *CodeFilter) Add(id int) {
	f.mu.Lock()
	f.filter.AddString(strconv.Itoa(id))
	f.mu.Unlock()
}

// MightContain reports false only when id was never added.
func (f *CodeFilter) MightContain(id int) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(strconv.Itoa(id))
}

// Subscribe feeds ids announced by other instances into the filter.
// Subscribe before Refresh so no id created in between is lost.
func (f *CodeFilter) Subscribe(nc *nats.Conn, logger *zap.Logger) (*nats.Subscription, error) {
	return nc.Subscribe(CodeCreatedSubject, f.announcementHandler(logger))
}

func (f *CodeFilter) announcementHandler(logger *zap.Logger) nats.MsgHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(msg *nats.Msg) {
		id, err := strconv.Atoi(string(msg.Data))
		if err != nil {
			logger.Warn("ignoring malformed qr code announcement", zap.ByteString("data", msg.Data))
			return
		}
		f.Add(id)
	}
}

// CodeAnnouncer broadcasts newly created ids to every instance.
type CodeAnnouncer struct {
	nc *nats.Conn
}

// NewCodeAnnouncer creates an announcer on the given connection.
func NewCodeAnnouncer(nc *nats.Conn) *CodeAnnouncer {
	return &CodeAnnouncer{nc: nc}
}

// Announce publishes id on CodeCreatedSubject.
func (a *CodeAnnouncer) Announce(id int) error {
	return a.nc.Publish(CodeCreatedSubject, []byte(strconv.Itoa(id)))
}
