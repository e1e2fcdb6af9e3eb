package domain

import "time"

// Signal bus channels for market lifecycle events.
const (
	EventMarketCreated    = "market_created"
	EventMarketUpdated    = "market_updated"
	EventMarketActivating = "market_activating"
	EventMarketActivated  = "market_activated"
	EventMarketReverted   = "market_reverted"
)

// LifecycleEvent is the payload published on the signal bus whenever a
// market changes state. RevertReason is set only for EventMarketReverted.
type LifecycleEvent struct {
	Event           string       `json:"event"`
	UID             string       `json:"uid"`
	Author          string       `json:"author"`
	Status          MarketStatus `json:"status"`
	TransactionHash string       `json:"transactionHash,omitempty"`
	Address         string       `json:"address,omitempty"`
	RevertReason    string       `json:"revertReason,omitempty"`
	At              time.Time    `json:"at"`
}
