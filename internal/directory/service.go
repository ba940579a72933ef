// Package directory implements guest lookup and the confirmation and gift
// writers on top of a sheet.Workbook.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/sheet"
)

// TimestampLayout matches the it-IT locale string (toLocaleString) used in the sheet
const TimestampLayout = "2/1/2006, 15:04:05"

var (
	ErrGuestNotFound   = errors.New("guest not found")
	ErrEmptySearchTerm = errors.New("empty search term")
	ErrNoGuests        = errors.New("no guests to confirm")
	ErrMixedGroups     = errors.New("rows belong to different groups")
	ErrUngroupedRow    = errors.New("row has no group")
)

// Notifier delivers a short text to the hosts
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Options configures a Service. Zero values pick the defaults.
type Options struct {
	GuestSheet    string
	GiftSheet     string
	GiftRecipient string
	Location      *time.Location
	Now           func() time.Time
	Logger        zerolog.Logger
	Notifier      Notifier
	NotifyTimeout time.Duration
}

// Service answers search, confirm and gift requests. It keeps no state
// between calls; every call reads the sheet afresh.
type Service struct {
	workbook sheet.Workbook
	opts     Options
	log      zerolog.Logger

	notifications sync.WaitGroup
}

// Update is one attendance change of a confirmation batch
type Update struct {
	Row       int
	Attending bool
}

// New creates a new directory service
func New(workbook sheet.Workbook, opts Options) *Service {
	if opts.GuestSheet == "" {
		opts.GuestSheet = "Guests"
	}
	if opts.GiftSheet == "" {
		opts.GiftSheet = "Messaggi"
	}
	if opts.GiftRecipient == "" {
		opts.GiftRecipient = "Sposi"
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 30 * time.Second
	}

	return &Service{
		workbook: workbook,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "directory").Logger(),
	}
}

// Provision creates the gift sheet if it is missing and checks that the
// guest sheet exists. Run it once before serving requests.
func (s *Service) Provision(ctx context.Context) error {
	if _, err := s.workbook.Table(ctx, s.opts.GuestSheet); err != nil {
		return fmt.Errorf("failed to open guest sheet: %w", err)
	}
	if _, err := s.workbook.EnsureTable(ctx, s.opts.GiftSheet, models.GiftHeader); err != nil {
		return fmt.Errorf("failed to create gift sheet: %w", err)
	}
	s.log.Info().Str("guests", s.opts.GuestSheet).Str("gifts", s.opts.GiftSheet).Msg("Sheets provisioned")
	return nil
}

// Search finds the group of the first guest, in sheet order, whose name
// contains term (case-insensitive) and returns every member of that group.
// A first match without a group key counts as no match.
func (s *Service) Search(ctx context.Context, term string) (*models.GuestGroup, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return nil, ErrEmptySearchTerm
	}

	guests, err := s.loadGuests(ctx)
	if err != nil {
		return nil, err
	}

	var groupKey string
	found := false
	for _, guest := range guests {
		if guest.Name != "" && strings.Contains(strings.ToLower(guest.Name), needle) {
			groupKey = guest.Group
			found = true
			break
		}
	}
	if !found || groupKey == "" {
		return nil, ErrGuestNotFound
	}

	group := &models.GuestGroup{Name: groupKey}
	for _, guest := range guests {
		if guest.Group == groupKey {
			group.Guests = append(group.Guests, guest)
		}
	}

	s.log.Debug().Str("term", needle).Str("group", groupKey).Int("guests", len(group.Guests)).Msg("Guest group found")
	return group, nil
}

// Confirm writes attendance, one shared timestamp and the dietary note to
// every row of the batch. All rows must exist and belong to the same group;
// otherwise nothing is written. Rows already written stay written if a later
// write fails.
func (s *Service) Confirm(ctx context.Context, updates []Update, foodIntolerance string) error {
	if len(updates) == 0 {
		return ErrNoGuests
	}

	table, err := s.workbook.Table(ctx, s.opts.GuestSheet)
	if err != nil {
		return fmt.Errorf("failed to open guest sheet: %w", err)
	}
	guests, err := parseGuests(ctx, table)
	if err != nil {
		return err
	}

	group, err := batchGroup(guests, updates)
	if err != nil {
		return err
	}

	timestamp := s.timestamp()
	note := strings.TrimSpace(foodIntolerance)
	for _, u := range updates {
		values := []string{models.AttendanceToken(u.Attending), timestamp, note}
		if err := table.WriteRow(ctx, u.Row, models.ColAttending, values); err != nil {
			return fmt.Errorf("failed to update row %d: %w", u.Row, err)
		}
	}

	s.log.Info().Str("group", group).Int("rows", len(updates)).Str("timestamp", timestamp).Msg("Attendance confirmed")
	s.notify(ctx, confirmText(group, guests, updates, note))
	return nil
}

// SaveGift appends a gift message. An empty recipient defaults to the hosts.
func (s *Service) SaveGift(ctx context.Context, msg models.GiftMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		msg.To = s.opts.GiftRecipient
	}
	msg.Timestamp = s.timestamp()

	table, err := s.workbook.Table(ctx, s.opts.GiftSheet)
	if errors.Is(err, sheet.ErrTableNotFound) {
		// not provisioned at startup
		table, err = s.workbook.EnsureTable(ctx, s.opts.GiftSheet, models.GiftHeader)
	}
	if err != nil {
		return fmt.Errorf("failed to open gift sheet: %w", err)
	}

	if err := table.AppendRow(ctx, msg.Cells()); err != nil {
		return fmt.Errorf("failed to save gift message: %w", err)
	}

	s.log.Info().Str("from", msg.From).Str("to", msg.To).Msg("Gift message saved")
	s.notify(ctx, fmt.Sprintf("🎁 Nuovo messaggio da %s:\n\n%s", msg.From, msg.Message))
	return nil
}

func (s *Service) timestamp() string {
	return s.opts.Now().In(s.opts.Location).Format(TimestampLayout)
}

func (s *Service) loadGuests(ctx context.Context) ([]models.GuestRow, error) {
	table, err := s.workbook.Table(ctx, s.opts.GuestSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to open guest sheet: %w", err)
	}
	return parseGuests(ctx, table)
}

// notify sends text to the hosts in the background. The request context
// only contributes its values; delivery is bounded by NotifyTimeout.
func (s *Service) notify(ctx context.Context, text string) {
	if s.opts.Notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		defer cancel()
		if err := s.opts.Notifier.Notify(ctx, text); err != nil {
			s.log.Error().Err(err).Msg("Failed to notify hosts")
		}
	}()
}

// Wait blocks until every pending host notification has finished
func (s *Service) Wait() {
	s.notifications.Wait()
}

func parseGuests(ctx context.Context, table sheet.Table) ([]models.GuestRow, error) {
	rows, err := table.LoadRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load guests: %w", err)
	}

	guests := make([]models.GuestRow, 0, len(rows))
	for i, cells := range rows {
		guest, err := models.ParseGuestRow(i+1, cells)
		if err != nil {
			return nil, err
		}
		guests = append(guests, guest)
	}
	return guests, nil
}

// batchGroup checks every update targets an existing row of a single group
// and returns that group's key
func batchGroup(guests []models.GuestRow, updates []Update) (string, error) {
	var group string
	for i, u := range updates {
		if u.Row < 1 || u.Row > len(guests) {
			return "", fmt.Errorf("%w: row %d", sheet.ErrRowOutOfRange, u.Row)
		}
		key := guests[u.Row-1].Group
		if key == "" {
			return "", fmt.Errorf("%w: row %d", ErrUngroupedRow, u.Row)
		}
		if i == 0 {
			group = key
		} else if key != group {
			return "", fmt.Errorf("%w: %q and %q", ErrMixedGroups, group, key)
		}
	}
	return group, nil
}

func confirmText(group string, guests []models.GuestRow, updates []Update, note string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💌 Conferma dal gruppo %s\n", group)
	for _, u := range updates {
		mark := "❌"
		if u.Attending {
			mark = "✅"
		}
		fmt.Fprintf(&b, "\n%s %s", mark, guests[u.Row-1].Name)
	}
	if note != "" {
		fmt.Fprintf(&b, "\n\nIntolleranze: %s", note)
	}
	return b.String()
}
