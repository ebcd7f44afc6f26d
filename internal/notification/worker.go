package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"github.com/KeelyW-11/school-equipment-inventory/internal/model"
)

var severityOrder = []model.Severity{
	model.SeverityInfo,
	model.SeveritySuccess,
	model.SeverityWarning,
	model.SeverityError,
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// pushPayload is the JSON body delivered to the service worker.
type pushPayload struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Severity model.Severity `json:"severity"`
	Tag      string         `json:"tag,omitempty"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan model.Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.Event, size*16),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case ev := <-wp.jobs:
			wp.broadcast(ctx, ev)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an event for push delivery. When the queue is full the push is dropped;
// the event is still in the hub's feed.
func (wp *WorkerPool) Dispatch(ev model.Event) {
	select {
	case wp.jobs <- ev:
	default:
		log.Printf("Push queue full, dropping event %s", ev.ID)
	}
}

// broadcast sends ev to every subscription whose minimum level it meets.
func (wp *WorkerPool) broadcast(ctx context.Context, ev model.Event) {
	var levels []model.Severity
	for _, l := range severityOrder {
		if ev.Severity.AtLeast(l) {
			levels = append(levels, l)
		}
	}
	if len(levels) == 0 {
		return
	}

	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Where("min_level IN ?", levels).Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching subscriptions for event %s: %v", ev.ID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(pushPayload{
		Title:    "Equipment inventory",
		Body:     ev.Message,
		Severity: ev.Severity,
		Tag:      ev.TargetID,
	})
	if err != nil {
		log.Printf("Error encoding push payload: %v", err)
		return
	}

	log.Printf("Sending %d notifications for event %s", len(subscriptions), ev.ID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
