package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Kareem-3del/auction-platform-sub003/internal/domain"
	"github.com/Kareem-3del/auction-platform-sub003/pkg/logger"

	"github.com/robfig/cron/v3"
)

// RoomWatcher periodically re-reads the snapshot for every product that still
// has viewers and closes rooms whose auction has ended. It is the safety net
// for a transactional system that never posted the status change. Only the
// leader instance publishes the ended event, so viewers get it exactly once
// per cluster.
type RoomWatcher struct {
	cron     *cron.Cron
	registry domain.ConnectionRegistry
	products domain.ProductRepository
	relay    *EventRelay
	leader   domain.LeaderElection
	instance string
	log      logger.Logger
}

func NewRoomWatcher(registry domain.ConnectionRegistry, products domain.ProductRepository,
	relay *EventRelay, leader domain.LeaderElection, instanceID string,
	log logger.Logger) *RoomWatcher {
	return &RoomWatcher{
		cron:     cron.New(),
		registry: registry,
		products: products,
		relay:    relay,
		leader:   leader,
		instance: instanceID,
		log:      log,
	}
}

func (w *RoomWatcher) Start(ctx context.Context) error {
	w.log.Info("Starting room watcher")

	_, err := w.cron.AddFunc("@every 1m", func() {
		w.sweep(ctx)
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	return nil
}

func (w *RoomWatcher) Stop() error {
	w.log.Info("Stopping room watcher")
	w.cron.Stop()
	return nil
}

func (w *RoomWatcher) sweep(ctx context.Context) {
	isLeader, err := w.leader.IsLeader(ctx, w.instance)
	if err != nil {
		w.log.Error("Leader check failed", "error", err)
		return
	}
	if !isLeader {
		return
	}

	now := time.Now()
	for _, productID := range w.registry.ActiveRooms() {
		snap, err := w.products.GetSnapshot(ctx, productID)
		if err != nil {
			w.log.Error("Failed to refresh snapshot", "product_id", productID, "error", err)
			continue
		}

		if !snap.Ended(now) {
			continue
		}

		data, err := json.Marshal(map[string]interface{}{
			"productId": productID,
			"status":    domain.ProductEnded,
			"endTime":   snap.EndTime,
			"message":   "Auction has ended",
		})
		if err != nil {
			continue
		}

		if err := w.relay.SubmitEvent(ctx, "auction_status", data); err != nil {
			w.log.Error("Failed to broadcast auction end", "product_id", productID, "error", err)
			continue
		}

		w.registry.CloseRoom(productID)
		w.log.Info("Closed room for ended auction", "product_id", productID)
	}
}
