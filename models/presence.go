package models

import (
	"fmt"
	"time"
)

// PresenceStatus is the boolean online signal exposed by the tracker.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "ONLINE"
	StatusOffline PresenceStatus = "OFFLINE"
)

// StatusEvent is the transient message produced when a user's presence
// changes. It is delivered at most once and never stored.
type StatusEvent struct {
	UserID    string         `json:"user_id"`
	Status    PresenceStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
}

// StatusTopic returns the per-user destination that status events for
// the given user are published to.
func StatusTopic(userID string) string {
	return fmt.Sprintf("/topic/user/%s/status", userID)
}

// StatusResponse is the HTTP representation of a user's presence.
type StatusResponse struct {
	UserID   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
}

// OnlineUsersResponse lists the users currently marked online.
type OnlineUsersResponse struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}
