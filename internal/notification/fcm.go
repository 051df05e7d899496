package notification

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/sharath018/campus-events-backend/config"
)

// FCM allows at most 500 tokens per multicast.
const multicastBatch = 500

var ErrPushDisabled = errors.New("FCM client not initialized")

// PushSender delivers a push message to device tokens and reports the
// tokens FCM no longer recognises.
type PushSender interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (stale []string, err error)
}

// FCMSender is the Firebase Cloud Messaging PushSender.
type FCMSender struct {
	client *messaging.Client
	logger *zap.Logger
}

// NewFCMSender initialises Firebase with the service account credentials.
// Missing or broken configuration yields a sender that reports ErrPushDisabled.
func NewFCMSender(ctx context.Context, cfg *config.Config, logger *zap.Logger) *FCMSender {
	if cfg.FCMCredentialsPath == "" {
		logger.Warn("FCM not configured, push notifications disabled")
		return &FCMSender{logger: logger}
	}

	var fbCfg *firebase.Config
	if cfg.FCMProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.FCMProjectID}
	}
	app, err := firebase.NewApp(ctx, fbCfg, option.WithCredentialsFile(cfg.FCMCredentialsPath))
	if err != nil {
		logger.Error("firebase app init failed", zap.Error(err))
		return &FCMSender{logger: logger}
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		logger.Error("FCM client init failed", zap.Error(err))
		return &FCMSender{logger: logger}
	}

	logger.Info("FCM initialized", zap.String("project", cfg.FCMProjectID))
	return &FCMSender{client: client, logger: logger}
}

func (f *FCMSender) Send(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	if f.client == nil {
		return nil, ErrPushDisabled
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	var stale []string
	failed := 0
	for i := 0; i < len(tokens); i += multicastBatch {
		end := min(i+multicastBatch, len(tokens))
		batch := tokens[i:end]

		resp, err := f.client.SendEachForMulticast(ctx, buildMulticast(batch, title, body, data))
		if err != nil {
			f.logger.Error("FCM multicast batch failed", zap.Int("tokens", len(batch)), zap.Error(err))
			failed += len(batch)
			continue
		}

		for idx, r := range resp.Responses {
			if r.Success {
				continue
			}
			if messaging.IsUnregistered(r.Error) {
				stale = append(stale, batch[idx])
				continue
			}
			failed++
			f.logger.Warn("FCM send failed", zap.Error(r.Error))
		}
	}

	if failed > 0 {
		return stale, fmt.Errorf("failed to send to %d/%d tokens", failed, len(tokens))
	}
	return stale, nil
}

func buildMulticast(tokens []string, title, body string, data map[string]string) *messaging.MulticastMessage {
	badge := 1
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   data,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID:    "campus_events",
				Priority:     messaging.PriorityHigh,
				DefaultSound: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default", Badge: &badge},
			},
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: title,
				Body:  body,
				Icon:  "/icon-192x192.png",
			},
		},
	}
}
