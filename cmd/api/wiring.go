package main

import (
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/infrastructure"
	"github.com/contest-radar/backend/internal/notify"
	"github.com/contest-radar/backend/internal/scheduler"
)

// newChannelRegistry registers every transport whose credentials are set
func newChannelRegistry(config *infrastructure.NotifyConfig, logger *zap.Logger) *notify.Registry {
	var channels []notify.Channel

	if config.EmailEnabled() {
		channels = append(channels, notify.NewEmailChannel(config.SMTPHost, config.SMTPPort, config.EmailUser, config.EmailPass, logger))
	}

	switch {
	case config.TwilioEnabled():
		channels = append(channels, notify.NewTwilioChannel(config.TwilioBaseURL, config.TwilioSID, config.TwilioToken, config.TwilioFrom, logger))
	case config.SMSDevLog:
		channels = append(channels, notify.NewLogSMSChannel(logger))
	}

	registry := notify.NewRegistry(channels...)
	logger.Info("Delivery channels registered", zap.Any("channels", registry.Names()))
	return registry
}

// newLocker returns the shared tick lock, or nil without redis
func newLocker(client *redis.Client, ttl time.Duration) scheduler.Locker {
	if client == nil {
		return nil
	}
	return scheduler.NewRedisLocker(client, scheduler.DefaultLockKey, ttl)
}
