package live

import (
	"time"

	"flexboard/internal/model"
)

// Message types of the socket protocol.
const (
	TypeSubscribe         = "subscribe"
	TypeUnsubscribe       = "unsubscribe"
	TypePing              = "ping"
	TypeConnected         = "connected"
	TypeSubscribed        = "subscribed"
	TypeUnsubscribed      = "unsubscribed"
	TypePong              = "pong"
	TypeRankChange        = "rank_change"
	TypeLeaderboardUpdate = "leaderboard_update"
	TypeError             = "error"
)

// Socket error messages.
const (
	MsgInvalidFormat = "Invalid message format"
	MsgUnknownType   = "Unknown message type"
)

// ClientMessage is any client-to-server frame.
type ClientMessage struct {
	Type            string `json:"type"`
	LeaderboardType string `json:"leaderboardType,omitempty"`
	Region          string `json:"region,omitempty"`
}

// ConnectedMessage is sent once after the socket is registered.
type ConnectedMessage struct {
	Type          string    `json:"type"`
	ClientID      string    `json:"clientId"`
	Authenticated bool      `json:"authenticated"`
	Timestamp     time.Time `json:"timestamp"`
}

// SubscriptionMessage acknowledges subscribe and unsubscribe requests.
type SubscriptionMessage struct {
	Type            string                `json:"type"`
	LeaderboardType model.LeaderboardType `json:"leaderboardType"`
	Region          *string               `json:"region"`
	Timestamp       time.Time             `json:"timestamp"`
}

// PongMessage answers a client ping.
type PongMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorMessage reports a frame the server could not act on. The connection
// stays open.
type ErrorMessage struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RankChangeMessage tells a client that a user's rank in a scope moved.
// RankChange is previous minus new rank, 0 when there is no previous rank.
type RankChangeMessage struct {
	Type            string                `json:"type"`
	UserID          string                `json:"userId"`
	LeaderboardType model.LeaderboardType `json:"leaderboardType"`
	Region          *string               `json:"region,omitempty"`
	OldRank         *int64                `json:"oldRank,omitempty"`
	NewRank         int64                 `json:"newRank"`
	RankChange      int64                 `json:"rankChange"`
	TotalFlexPoints int64                 `json:"totalFlexPoints"`
	Timestamp       time.Time             `json:"timestamp"`
}

// LeaderboardUpdateMessage tells subscribers which ranks of a scope changed.
type LeaderboardUpdateMessage struct {
	Type            string                `json:"type"`
	LeaderboardType model.LeaderboardType `json:"leaderboardType"`
	Region          *string               `json:"region,omitempty"`
	AffectedRanks   []int64               `json:"affectedRanks"`
	Timestamp       time.Time             `json:"timestamp"`
}
