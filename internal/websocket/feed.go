package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hargapangan/pangan-monitor/internal/hargaapi"
	"github.com/hargapangan/pangan-monitor/internal/reconcile"
	"github.com/hargapangan/pangan-monitor/internal/view"
	"github.com/hargapangan/pangan-monitor/pkg/logger"
)

// Event types pushed to clients
const (
	EventComparison = "comparison"
	EventChanged    = "price_changed"
	EventError      = "error"
)

// Event message pushed to live feed clients
type Event struct {
	Type        string      `json:"type"`
	CommodityID uint        `json:"commodity_id"`
	Generation  uint64      `json:"generation,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	Message     string      `json:"message,omitempty"`
	Data        interface{} `json:"data,omitempty"`
}

// ComparisonSource recomputes the comparison of one commodity
type ComparisonSource interface {
	CompareCommodity(ctx context.Context, sess hargaapi.Session, commodityID uint) (*reconcile.Comparison, error)
}

// Broadcaster delivers an event to a commodity room
type Broadcaster interface {
	SendToRoom(commodityID uint, message interface{}) error
}

// Feed recomputes comparisons when prices change and pushes them to the hub.
// Each recomputation takes a generation; a result that finishes after a newer
// recomputation was started is dropped.
type Feed struct {
	source   ComparisonSource
	out      Broadcaster
	trackers *view.Registry[*reconcile.Comparison]
	timeout  time.Duration
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewFeed creates a live comparison feed
func NewFeed(source ComparisonSource, out Broadcaster, timeout time.Duration) *Feed {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Feed{
		source:   source,
		out:      out,
		trackers: view.NewRegistry[*reconcile.Comparison](),
		timeout:  timeout,
		log:      logger.Get().Component("live_feed"),
	}
}

func trackerKey(commodityID uint) string {
	return fmt.Sprintf("comparison:%d", commodityID)
}

// Refresh starts a recomputation for commodityID and returns its generation
func (f *Feed) Refresh(sess hargaapi.Session, commodityID uint) uint64 {
	tracker := f.trackers.For(trackerKey(commodityID))
	gen := tracker.Begin()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()

		result, err := f.source.CompareCommodity(ctx, sess, commodityID)
		if err != nil {
			tracker.IfCurrent(gen, func() {
				f.log.Warn("Live comparison refresh failed", map[string]interface{}{
					"commodity_id": commodityID,
					"generation":   gen,
					"error":        err.Error(),
				})
				f.send(Event{Type: EventError, CommodityID: commodityID, Generation: gen, Message: errorMessage(err)})
			})
			return
		}

		delivered := tracker.Publish(gen, result, func(c *reconcile.Comparison) {
			f.send(Event{Type: EventComparison, CommodityID: commodityID, Generation: gen, Data: c})
		})
		if !delivered {
			f.log.Debug("Discarded stale comparison", map[string]interface{}{
				"commodity_id": commodityID,
				"generation":   gen,
			})
		}
	}()

	return gen
}

// NotifyChange announces a price change and recomputes the commodity
func (f *Feed) NotifyChange(sess hargaapi.Session, commodityID uint, reason string) {
	f.send(Event{Type: EventChanged, CommodityID: commodityID, Reason: reason})
	f.Refresh(sess, commodityID)
}

// Latest last accepted comparison of commodityID
func (f *Feed) Latest(commodityID uint) (*reconcile.Comparison, uint64, bool) {
	return f.trackers.For(trackerKey(commodityID)).Latest()
}

// Forget drops the stored comparison of commodityID once nobody follows it
func (f *Feed) Forget(commodityID uint) {
	f.trackers.Forget(trackerKey(commodityID))
}

// Wait blocks until all running recomputations finished
func (f *Feed) Wait() {
	f.wg.Wait()
}

func (f *Feed) send(event Event) {
	if err := f.out.SendToRoom(event.CommodityID, event); err != nil {
		f.log.Error("Failed to push live event", err, map[string]interface{}{
			"commodity_id": event.CommodityID,
			"type":         event.Type,
		})
	}
}

func errorMessage(err error) string {
	if msg, ok := hargaapi.RejectionMessage(err); ok {
		return msg
	}
	return "Gagal memperbarui perbandingan harga"
}
