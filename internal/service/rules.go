package service

import "time"

// EarnRule gates how often a wallet may earn for a given reason.
type EarnRule struct {
	Points   int
	Once     bool          // grantable at most one time per wallet, ever
	Cooldown time.Duration // minimum gap between successive grants
}

// StoreItem is a purchasable catalog entry.
type StoreItem struct {
	Cost int
}

// DefaultEarnRules is the static earn rule table. Rules are configuration,
// never mutated at runtime.
func DefaultEarnRules() map[string]EarnRule {
	return map[string]EarnRule{
		"purchase":    {Points: 20, Cooldown: 5 * time.Second},
		"signup":      {Points: 100, Once: true},
		"daily_login": {Points: 50, Cooldown: 20 * time.Hour},
		"watch_video": {Points: 10, Cooldown: 60 * time.Second},
	}
}

// DefaultStoreItems is the static spend catalog.
func DefaultStoreItems() map[string]StoreItem {
	return map[string]StoreItem{
		"pack_01":      {Cost: 200},
		"preset_chain": {Cost: 500},
	}
}
