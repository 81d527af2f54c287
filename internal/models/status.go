package models

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a record.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusProposed   Status = "proposed"
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusDeprecated Status = "deprecated"
	StatusSuperseded Status = "superseded"
)

// DefaultStatus applies when a record declares none.
const DefaultStatus = StatusDraft

// Statuses lists every state in lifecycle order.
var Statuses = []Status{
	StatusDraft,
	StatusProposed,
	StatusAccepted,
	StatusRejected,
	StatusDeprecated,
	StatusSuperseded,
}

var validStatuses = map[Status]bool{
	StatusDraft:      true,
	StatusProposed:   true,
	StatusAccepted:   true,
	StatusRejected:   true,
	StatusDeprecated: true,
	StatusSuperseded: true,
}

// ParseStatus normalises a declared status. Only the first word counts, so
// MADR values such as "superseded by [ADR-0005](0005-x.md)" are accepted.
func ParseStatus(s string) (Status, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return "", fmt.Errorf("empty status")
	}
	st := Status(strings.Trim(fields[0], ".,;:"))
	if !validStatuses[st] {
		return "", fmt.Errorf("invalid status %q: must be one of: draft, proposed, accepted, rejected, deprecated, superseded", s)
	}
	return st, nil
}
