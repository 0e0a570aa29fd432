package pos

import (
	"errors"
	"fmt"

	"github.com/kiwari-pos/kot-api/internal/enum"
)

var (
	ErrTableBusy              = errors.New("table already has an active kot")
	ErrInvalidTableTransition = errors.New("invalid table status transition")
	ErrTableInvariant         = errors.New("table status and kot link disagree")
)

// Table is a dining table on the floor.
type Table struct {
	ID          string
	Number      string
	Seats       int
	Status      string
	ActiveKOTID string
	Waiter      string
	Guests      int
}

// Validate checks that occupied and billing tables link exactly one KOT
// and that available and reserved tables link none.
func (t Table) Validate() error {
	switch t.Status {
	case enum.TableStatusOccupied, enum.TableStatusBilling:
		if t.ActiveKOTID == "" {
			return fmt.Errorf("%w: %s table without kot", ErrTableInvariant, t.Status)
		}
	case enum.TableStatusAvailable, enum.TableStatusReserved:
		if t.ActiveKOTID != "" {
			return fmt.Errorf("%w: %s table with kot %s", ErrTableInvariant, t.Status, t.ActiveKOTID)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrTableInvariant, t.Status)
	}
	return nil
}

// Occupy seats a KOT at an available or reserved table.
func Occupy(t *Table, kotID, waiter string, guests int) error {
	if t.Status == enum.TableStatusOccupied || t.Status == enum.TableStatusBilling {
		return ErrTableBusy
	}
	if t.Status != enum.TableStatusAvailable && t.Status != enum.TableStatusReserved {
		return transitionErr(t.Status, enum.TableStatusOccupied)
	}
	t.Status = enum.TableStatusOccupied
	t.ActiveKOTID = kotID
	t.Waiter = waiter
	t.Guests = guests
	return nil
}

// RequestBill moves an occupied table to billing.
func RequestBill(t *Table) error {
	if t.Status != enum.TableStatusOccupied {
		return transitionErr(t.Status, enum.TableStatusBilling)
	}
	t.Status = enum.TableStatusBilling
	return nil
}

// Release frees an occupied or billing table.
func Release(t *Table) error {
	if t.Status != enum.TableStatusOccupied && t.Status != enum.TableStatusBilling {
		return transitionErr(t.Status, enum.TableStatusAvailable)
	}
	t.Status = enum.TableStatusAvailable
	t.ActiveKOTID = ""
	t.Waiter = ""
	t.Guests = 0
	return nil
}

// Reserve holds an available table.
func Reserve(t *Table) error {
	if t.Status != enum.TableStatusAvailable {
		return transitionErr(t.Status, enum.TableStatusReserved)
	}
	t.Status = enum.TableStatusReserved
	return nil
}

// Unreserve returns a reserved table to available.
func Unreserve(t *Table) error {
	if t.Status != enum.TableStatusReserved {
		return transitionErr(t.Status, enum.TableStatusAvailable)
	}
	t.Status = enum.TableStatusAvailable
	return nil
}

// CountTables tallies tables per status.
func CountTables(tables []Table) map[string]int {
	counts := map[string]int{"all": len(tables)}
	for _, st := range enum.TableStatuses {
		counts[st] = 0
	}
	for _, t := range tables {
		counts[t.Status]++
	}
	return counts
}

func transitionErr(from, to string) error {
	return fmt.Errorf("%w: %s to %s", ErrInvalidTableTransition, from, to)
}
