package models

import (
	"errors"
	"fmt"
	"strings"
)

// Guest sheet columns. Position matters, header names do not.
const (
	ColGroup = iota
	ColName
	ColAttending
	ColTimestamp
	ColFoodIntolerance

	GuestColumns
)

// Attendance tokens as stored in the sheet
const (
	AttendingYes = "Sì"
	AttendingNo  = "No"
)

// ErrMalformedRow is returned when a sheet row cannot be parsed into a GuestRow
var ErrMalformedRow = errors.New("malformed guest row")

// GuestRow represents a single invitee row of the guest sheet
type GuestRow struct {
	Row             int    `json:"row"`
	Group           string `json:"group"`
	Name            string `json:"name"`
	Attending       bool   `json:"attending"`
	Timestamp       string `json:"timestamp,omitempty"`
	FoodIntolerance string `json:"food_intolerance,omitempty"`
}

// RSVPStatus represents the attendance confirmation status
type RSVPStatus string

const (
	RSVPPending  RSVPStatus = "pending"
	RSVPAccepted RSVPStatus = "accepted"
	RSVPDeclined RSVPStatus = "declined"
)

// Status reports whether the guest has answered yet. A row without a
// confirmation timestamp is still pending even if the attendance cell was
// pre-filled by hand.
func (g GuestRow) Status() RSVPStatus {
	switch {
	case g.Timestamp == "":
		return RSVPPending
	case g.Attending:
		return RSVPAccepted
	default:
		return RSVPDeclined
	}
}

// ParseGuestRow converts raw sheet cells into a GuestRow. Missing trailing
// cells read as empty.
func ParseGuestRow(row int, cells []string) (GuestRow, error) {
	cell := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}

	attending, err := ParseAttendance(cell(ColAttending))
	if err != nil {
		return GuestRow{}, fmt.Errorf("%w: row %d: %v", ErrMalformedRow, row, err)
	}

	return GuestRow{
		Row:             row,
		Group:           cell(ColGroup),
		Name:            cell(ColName),
		Attending:       attending,
		Timestamp:       cell(ColTimestamp),
		FoodIntolerance: cell(ColFoodIntolerance),
	}, nil
}

// Cells returns the row in sheet column order
func (g GuestRow) Cells() []string {
	cells := make([]string, GuestColumns)
	cells[ColGroup] = g.Group
	cells[ColName] = g.Name
	cells[ColAttending] = AttendanceToken(g.Attending)
	cells[ColTimestamp] = g.Timestamp
	cells[ColFoodIntolerance] = g.FoodIntolerance
	return cells
}

// ParseAttendance reads an attendance cell. Spreadsheet booleans arrive as
// TRUE/FALSE, hand edited cells as Sì/No.
func ParseAttendance(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sì", "si", "yes", "true":
		return true, nil
	case "no", "false", "":
		return false, nil
	}
	return false, fmt.Errorf("unknown attendance value %q", value)
}

// AttendanceToken returns the token written to the sheet on confirmation
func AttendanceToken(attending bool) string {
	if attending {
		return AttendingYes
	}
	return AttendingNo
}

// GuestGroup is every row sharing a group key, in sheet order
type GuestGroup struct {
	Name   string
	Guests []GuestRow
}

// FoodIntolerance returns the first non-empty note among the group's rows
func (g *GuestGroup) FoodIntolerance() string {
	for _, guest := range g.Guests {
		if guest.FoodIntolerance != "" {
			return guest.FoodIntolerance
		}
	}
	return ""
}
