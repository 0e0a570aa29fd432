package pos

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kiwari-pos/kot-api/internal/enum"
)

// ErrInvalidTransition is returned when a KOT cannot move to the requested status.
var ErrInvalidTransition = errors.New("invalid kot status transition")

// KOT is a kitchen order ticket. Items are fixed once the ticket exists.
type KOT struct {
	ID          string
	Number      string
	TableID     string
	TableNumber string
	Items       []LineItem
	Status      string
	Priority    string
	Waiter      string
	CreatedAt   time.Time
}

// nextStatus is the forward path. Terminal statuses have no entry.
var nextStatus = map[string]string{
	enum.KOTStatusPending:   enum.KOTStatusPreparing,
	enum.KOTStatusPreparing: enum.KOTStatusReady,
	enum.KOTStatusReady:     enum.KOTStatusCompleted,
}

// NextStatus returns the status Advance would move current to.
func NextStatus(current string) (string, error) {
	next, ok := nextStatus[current]
	if !ok {
		return "", fmt.Errorf("%w: cannot advance from %s", ErrInvalidTransition, current)
	}
	return next, nil
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status string) bool {
	return status == enum.KOTStatusCompleted || status == enum.KOTStatusCancelled
}

// CanCancel reports whether a KOT in status may be cancelled.
// Once ready, a ticket has to be completed.
func CanCancel(status string) bool {
	return status == enum.KOTStatusPending || status == enum.KOTStatusPreparing
}

// IsBillable reports whether a KOT in status can be billed.
func IsBillable(status string) bool {
	return status == enum.KOTStatusReady || status == enum.KOTStatusCompleted
}

// IsKOTStatus reports whether s is a known KOT status.
func IsKOTStatus(s string) bool {
	for _, st := range enum.KOTStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// Advance moves k one step forward. On error k is left untouched.
func Advance(k *KOT) error {
	next, err := NextStatus(k.Status)
	if err != nil {
		return err
	}
	k.Status = next
	return nil
}

// Cancel moves k to cancelled. On error k is left untouched.
func Cancel(k *KOT) error {
	if !CanCancel(k.Status) {
		return fmt.Errorf("%w: cannot cancel from %s", ErrInvalidTransition, k.Status)
	}
	k.Status = enum.KOTStatusCancelled
	return nil
}

// NormalizePriority maps an empty priority to normal.
func NormalizePriority(p string) string {
	if p == "" {
		return enum.PriorityNormal
	}
	return p
}

// PriorityRank orders priorities: high=0, normal=1, low=2.
// Unknown values rank as normal.
func PriorityRank(p string) int {
	switch p {
	case enum.PriorityHigh:
		return 0
	case enum.PriorityLow:
		return 2
	}
	return 1
}

// SortWorklist orders kots highest priority first, oldest first within a priority.
func SortWorklist(kots []KOT) {
	sort.SliceStable(kots, func(i, j int) bool {
		ri, rj := PriorityRank(kots[i].Priority), PriorityRank(kots[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return kots[i].CreatedAt.Before(kots[j].CreatedAt)
	})
}

// CountByStatus tallies kots per status, plus "all".
func CountByStatus(kots []KOT) map[string]int {
	counts := map[string]int{"all": len(kots)}
	for _, st := range enum.KOTStatuses {
		counts[st] = 0
	}
	for _, k := range kots {
		counts[k.Status]++
	}
	return counts
}
