package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"chime-server/models"
)

// SubscriptionStore is what the push sender needs from the database.
type SubscriptionStore interface {
	ListPushSubscriptions() ([]models.PushSubscription, error)
	DeletePushSubscriptionByEndpoint(endpoint string) error
}

// WebPushSender delivers through the Web Push protocol to the service worker
// registered by the browser, so reminders fire even when no page is open.
type WebPushSender struct {
	store           SubscriptionStore
	subscriber      string
	vapidPublicKey  string
	vapidPrivateKey string
}

func NewWebPushSender(store SubscriptionStore, subscriber, vapidPublicKey, vapidPrivateKey string) *WebPushSender {
	return &WebPushSender{
		store:           store,
		subscriber:      subscriber,
		vapidPublicKey:  vapidPublicKey,
		vapidPrivateKey: vapidPrivateKey,
	}
}

func (s *WebPushSender) Name() string { return "webpush" }

// pushPayload mirrors the options the service worker hands to
// showNotification.
type pushPayload struct {
	Title              string `json:"title"`
	Body               string `json:"body"`
	Tag                string `json:"tag"`
	Icon               string `json:"icon"`
	Badge              string `json:"badge"`
	RequireInteraction bool   `json:"requireInteraction"`
	Vibrate            []int  `json:"vibrate"`
	Timestamp          int64  `json:"timestamp"`
}

func (s *WebPushSender) Send(ctx context.Context, n Notification, tag string) error {
	subs, err := s.store.ListPushSubscriptions()
	if err != nil {
		return fmt.Errorf("list push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return errors.New("no push subscriptions registered")
	}

	payload, err := json.Marshal(pushPayload{
		Title:              n.Title,
		Body:               n.Body,
		Tag:                tag,
		Icon:               "/static/calendar-icon.png",
		Badge:              "/static/calendar-icon.png",
		RequireInteraction: true,
		Vibrate:            []int{200, 100, 200},
		Timestamp:          n.FireAt.UnixMilli(),
	})
	if err != nil {
		return err
	}

	sent := 0
	var lastErr error
	for _, sub := range subs {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}, &webpush.Options{
			Subscriber:      s.subscriber,
			VAPIDPublicKey:  s.vapidPublicKey,
			VAPIDPrivateKey: s.vapidPrivateKey,
			TTL:             60,
		})
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			// The browser dropped this subscription; forget it.
			log.Printf("[PUSH] subscription gone (%d), removing %s", resp.StatusCode, sub.Endpoint)
			if derr := s.store.DeletePushSubscriptionByEndpoint(sub.Endpoint); derr != nil {
				log.Printf("[PUSH] failed to remove stale subscription: %v", derr)
			}
			lastErr = fmt.Errorf("push endpoint gone: %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			lastErr = fmt.Errorf("push endpoint returned %d", resp.StatusCode)
		default:
			sent++
		}
		resp.Body.Close()
	}

	if sent == 0 {
		return fmt.Errorf("push delivery failed for all %d subscription(s): %w", len(subs), lastErr)
	}
	return nil
}
