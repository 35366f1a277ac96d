package handler

import (
	"wschat/internal/app/relay"
	"wschat/internal/configs"
	"wschat/internal/pkg/metrics"
)

// AppDeps holds what the relay's handlers need.
type AppDeps struct {
	Room    *relay.Room
	Config  *configs.AppConfig
	Metrics *metrics.Metrics
}
