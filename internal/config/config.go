// Package config holds the user-facing toggles record and its persistence as an opaque blob.
package config

import (
	"math"
	"time"
)

// Config is the settings record the engine reads every tick.
type Config struct {
	EnableAutoCollect     bool `json:"enable_auto_collect"`
	EnableOpenCollect     bool `json:"enable_open_collect"`
	EnableWishlistCollect bool `json:"enable_wishlist_collect"`
	EnableAutoUnload      bool `json:"enable_auto_unload"`

	PickupRadius    float64 `json:"pickup_radius"`
	ScanIntervalSec float64 `json:"scan_interval_sec"`
	MinQuality      int     `json:"min_quality"`

	// HUD anchor for the notification stack.
	MessageX float64 `json:"message_x"`
	MessageY float64 `json:"message_y"`

	MessageCooldownSec float64 `json:"message_cooldown_sec"`
}

func Default() Config {
	return Config{
		EnableAutoCollect:     false,
		EnableOpenCollect:     true,
		EnableWishlistCollect: false,
		EnableAutoUnload:      false,
		PickupRadius:          12,
		ScanIntervalSec:       2,
		MinQuality:            1,
		MessageX:              -400,
		MessageY:              -200,
		MessageCooldownSec:    20,
	}
}

// PeriodicActive reports whether the periodic scan should run.
// Open-collect mode replaces periodic scanning with collection on container open.
func (c Config) PeriodicActive() bool {
	return !c.EnableOpenCollect && (c.EnableAutoCollect || c.EnableWishlistCollect)
}

// OpenCollectActive reports whether containers are collected when opened.
func (c Config) OpenCollectActive() bool {
	return c.EnableAutoCollect && c.EnableOpenCollect
}

func (c Config) ScanInterval() time.Duration {
	return secs(c.ScanIntervalSec)
}

func (c Config) MessageCooldown() time.Duration {
	return secs(c.MessageCooldownSec)
}

func (c Config) PickupRadiusSq() float64 {
	r := c.PickupRadius
	if r < 0 || math.IsNaN(r) {
		r = 0
	}
	return r * r
}

func secs(v float64) time.Duration {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}
