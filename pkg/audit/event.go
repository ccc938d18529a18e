// Package audit provides change-attribution logging for bridge-domain
// lifecycle actions.
package audit

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Action categorizes audit events
type Action string

const (
	ActionAssign   Action = "assign"
	ActionRelease  Action = "release"
	ActionEdit     Action = "edit"
	ActionDeploy   Action = "deploy"
	ActionDiscover Action = "discover"
	ActionDrift    Action = "drift_resolve"
)

// Event records who did what to which bridge domain
type Event struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	User         string            `json:"user"`
	Action       Action            `json:"action"`
	BridgeDomain string            `json:"bridge_domain,omitempty"`
	Device       string            `json:"device,omitempty"`
	Interface    string            `json:"interface,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
	Success      bool              `json:"success"`
	Error        string            `json:"error,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
}

// NewEvent creates an audit event for the given user and action
func NewEvent(user string, action Action, bridgeDomain string) *Event {
	return &Event{
		ID:           generateID(),
		Timestamp:    time.Now(),
		User:         user,
		Action:       action,
		BridgeDomain: bridgeDomain,
		Success:      true,
	}
}

// WithDevice sets the device name
func (e *Event) WithDevice(device string) *Event {
	e.Device = device
	return e
}

// WithInterface sets the interface name
func (e *Event) WithInterface(iface string) *Event {
	e.Interface = iface
	return e
}

// WithSession sets the edit-session id
func (e *Event) WithSession(id string) *Event {
	e.SessionID = id
	return e
}

// WithDetail adds a free-form detail field
func (e *Event) WithDetail(key, value string) *Event {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithError marks the event failed and records the error text
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Success = false
		e.Error = err.Error()
	}
	return e
}

// Filter defines criteria for querying audit events
type Filter struct {
	User         string
	Action       Action
	BridgeDomain string
	Device       string
	StartTime    time.Time
	EndTime      time.Time
	Limit        int
}

func generateID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return time.Now().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}
