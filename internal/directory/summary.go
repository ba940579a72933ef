package directory

import (
	"context"
	"fmt"

	"wedding-rsvp/internal/models"
)

// Summary counts guests by RSVP status
type Summary struct {
	Guests   []models.GuestRow
	Pending  int
	Accepted int
	Declined int
}

// Summary loads the guest sheet and tallies answers. When status is not
// empty only guests with that status are listed; counts always cover the
// whole sheet.
func (s *Service) Summary(ctx context.Context, status models.RSVPStatus) (*Summary, error) {
	guests, err := s.loadGuests(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	for _, guest := range guests {
		switch guest.Status() {
		case models.RSVPPending:
			summary.Pending++
		case models.RSVPAccepted:
			summary.Accepted++
		case models.RSVPDeclined:
			summary.Declined++
		}
		if status == "" || guest.Status() == status {
			summary.Guests = append(summary.Guests, guest)
		}
	}
	return summary, nil
}

// Import appends guest rows to the guest sheet, creating it if needed.
// Imported rows start unanswered.
func (s *Service) Import(ctx context.Context, guests []models.GuestRow) (int, error) {
	table, err := s.workbook.EnsureTable(ctx, s.opts.GuestSheet, GuestHeader)
	if err != nil {
		return 0, fmt.Errorf("failed to open guest sheet: %w", err)
	}

	for i, guest := range guests {
		cells := []string{guest.Group, guest.Name, "", "", guest.FoodIntolerance}
		if err := table.AppendRow(ctx, cells); err != nil {
			return i, fmt.Errorf("failed to import %s: %w", guest.Name, err)
		}
	}
	s.log.Info().Int("guests", len(guests)).Msg("Guests imported")
	return len(guests), nil
}

// GuestHeader is the header written when the guest sheet is created by Import
var GuestHeader = []string{"Gruppo", "Nome", "Presenza", "Timestamp", "Intolleranze"}
