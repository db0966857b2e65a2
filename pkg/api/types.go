// Package api implements the HTTP API and Prometheus metrics endpoint.
package api

import "time"

// Response is the standard JSON response envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse describes the server and its active configuration.
type StatusResponse struct {
	Uptime         string `json:"uptime"`
	ActiveID       string `json:"active_id,omitempty"`
	ActivePolicies int    `json:"active_policies"`
	Warnings       int    `json:"warnings"`
	HistoryEntries int    `json:"history_entries"`
	ConfigMode     bool   `json:"config_mode"`
	Dirty          bool   `json:"dirty"`
}

// MergeRequest is the body of POST /api/v1/merge. Base is ignored when
// UseActive is set.
type MergeRequest struct {
	Base      string `json:"base"`
	UseActive bool   `json:"use_active"`
	Document  string `json:"document"`
}

// CheckRequest is the body of POST /api/v1/check.
type CheckRequest struct {
	Document string `json:"document"`
}

// LoadRequest is the body of POST /api/v1/config/load. Mode is "merge"
// (default) or "override".
type LoadRequest struct {
	Mode string `json:"mode"`
	Text string `json:"text"`
}

// DeleteRequest is the body of POST /api/v1/config/delete.
type DeleteRequest struct {
	Path string `json:"path"`
}

// CommitRequest is the body of POST /api/v1/config/commit.
type CommitRequest struct {
	Comment string `json:"comment"`
}

// RollbackRequest is the body of POST /api/v1/config/rollback.
type RollbackRequest struct {
	N int `json:"n"`
}

// TextResponse carries rendered configuration or diff text.
type TextResponse struct {
	Output string `json:"output"`
}

// HistoryEntry is one rollback slot.
type HistoryEntry struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Comment   string    `json:"comment,omitempty"`
	MergeID   string    `json:"merge_id,omitempty"`
}
