package directory

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/sheet"
)

var stores = []string{sheet.StoreMemory, sheet.StoreFile, sheet.StoreSQLite}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// fixedClock returns a Now func that advances one second per call
func fixedClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 6, 20, 17, 30, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(time.Second)
		return t
	}
}

// forEachStore runs fn once per workbook implementation
func forEachStore(t *testing.T, fn func(t *testing.T, store string)) {
	t.Helper()
	for _, store := range stores {
		t.Run(store, func(t *testing.T) {
			fn(t, store)
		})
	}
}

// openWorkbook opens a fresh workbook of the given kind holding the guest
// rows. A nil rows slice still creates the guest sheet.
func openWorkbook(t *testing.T, store string, rows [][]string) sheet.Workbook {
	t.Helper()
	ctx := context.Background()

	wb, err := sheet.Open(store, t.TempDir())
	if err != nil {
		t.Fatalf("Open(%s): %v", store, err)
	}
	t.Cleanup(func() { wb.Close() })

	table, err := wb.EnsureTable(ctx, "Guests", GuestHeader)
	if err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	for _, row := range rows {
		if err := table.AppendRow(ctx, row); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}
	return wb
}

func newTestService(t *testing.T, store string, rows [][]string) (*Service, sheet.Workbook, *fakeNotifier) {
	t.Helper()
	wb := openWorkbook(t, store, rows)
	notifier := &fakeNotifier{}
	svc := New(wb, Options{
		Location: time.UTC,
		Now:      fixedClock(),
		Logger:   zerolog.Nop(),
		Notifier: notifier,
	})
	return svc, wb, notifier
}

func loadSheet(t *testing.T, wb sheet.Workbook, name string) [][]string {
	t.Helper()
	rows, err := mustTable(t, wb, name).LoadRows(context.Background())
	if err != nil {
		t.Fatalf("LoadRows(%s): %v", name, err)
	}
	return rows
}

func mustTable(t *testing.T, wb sheet.Workbook, name string) sheet.Table {
	t.Helper()
	table, err := wb.Table(context.Background(), name)
	if err != nil {
		t.Fatalf("Table(%s): %v", name, err)
	}
	return table
}

func TestSearchAndConfirmScenario(t *testing.T) {
	forEachStore(t, func(t *testing.T, store string) {
		ctx := context.Background()
		svc, wb, notifier := newTestService(t, store, [][]string{
			{"Rossi", "Mario", "FALSE", "", ""},
			{"Rossi", "Anna", "FALSE", "", "gluten"},
		})

		group, err := svc.Search(ctx, "mario")
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if group.Name != "Rossi" {
			t.Errorf("group = %q, want %q", group.Name, "Rossi")
		}
		if len(group.Guests) != 2 {
			t.Fatalf("guests = %d, want 2", len(group.Guests))
		}
		if got := group.FoodIntolerance(); got != "gluten" {
			t.Errorf("FoodIntolerance = %q, want %q", got, "gluten")
		}

		updates := []Update{{Row: 1, Attending: true}, {Row: 2, Attending: true}}
		if err := svc.Confirm(ctx, updates, "gluten"); err != nil {
			t.Fatalf("Confirm: %v", err)
		}

		group, err = svc.Search(ctx, "anna")
		if err != nil {
			t.Fatalf("Search after confirm: %v", err)
		}
		for _, guest := range group.Guests {
			if !guest.Attending {
				t.Errorf("%s attending = false, want true", guest.Name)
			}
			if guest.Timestamp != "20/6/2026, 17:30:00" {
				t.Errorf("%s timestamp = %q, want shared batch timestamp", guest.Name, guest.Timestamp)
			}
			if guest.FoodIntolerance != "gluten" {
				t.Errorf("%s note = %q, want %q", guest.Name, guest.FoodIntolerance, "gluten")
			}
		}

		rows := loadSheet(t, wb, "Guests")
		if rows[0][models.ColAttending] != models.AttendingYes {
			t.Errorf("stored token = %q, want %q", rows[0][models.ColAttending], models.AttendingYes)
		}

		svc.Wait()
		texts := notifier.sent()
		if len(texts) != 1 || !strings.Contains(texts[0], "Rossi") {
			t.Errorf("notifications = %q", texts)
		}
	})
}

func TestSearchFirstMatchWins(t *testing.T) {
	forEachStore(t, func(t *testing.T, store string) {
		svc, _, _ := newTestService(t, store, [][]string{
			{"Bianchi", "Marione Bianchi"},
			{"Rossi", "Mario"},
			{"Bianchi", "Sara Bianchi"},
		})

		group, err := svc.Search(context.Background(), "  MARIO ")
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if group.Name != "Bianchi" {
			t.Errorf("group = %q, want earliest match %q", group.Name, "Bianchi")
		}

		var rows []int
		for _, guest := range group.Guests {
			rows = append(rows, guest.Row)
		}
		if want := []int{1, 3}; !reflect.DeepEqual(rows, want) {
			t.Errorf("rows = %v, want %v", rows, want)
		}
	})
}

func TestSearchMatchesNameOnly(t *testing.T) {
	svc, _, _ := newTestService(t, sheet.StoreMemory, [][]string{{"Rossi", "Mario"}})

	if _, err := svc.Search(context.Background(), "rossi"); !errors.Is(err, ErrGuestNotFound) {
		t.Errorf("err = %v, want ErrGuestNotFound", err)
	}
}

func TestSearchErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, sheet.StoreMemory, [][]string{{"Rossi", "Mario"}})

	if _, err := svc.Search(ctx, "nonexistent"); !errors.Is(err, ErrGuestNotFound) {
		t.Errorf("err = %v, want ErrGuestNotFound", err)
	}
	if _, err := svc.Search(ctx, "   "); !errors.Is(err, ErrEmptySearchTerm) {
		t.Errorf("err = %v, want ErrEmptySearchTerm", err)
	}

	bad, _, _ := newTestService(t, sheet.StoreMemory, [][]string{{"Rossi", "Mario", "forse"}})
	if _, err := bad.Search(ctx, "mario"); !errors.Is(err, models.ErrMalformedRow) {
		t.Errorf("err = %v, want ErrMalformedRow", err)
	}
}

func TestUngroupedGuests(t *testing.T) {
	forEachStore(t, func(t *testing.T, store string) {
		ctx := context.Background()
		initial := [][]string{
			{"", "Mario Neri"},
			{"Rossi", "Anna"},
			{"", "Luca Verdi"},
		}
		svc, wb, _ := newTestService(t, store, initial)

		if group, err := svc.Search(ctx, "mario"); !errors.Is(err, ErrGuestNotFound) {
			t.Errorf("Search on ungrouped guest = %+v, %v; want ErrGuestNotFound", group, err)
		}

		err := svc.Confirm(ctx, []Update{{Row: 1, Attending: true}, {Row: 3, Attending: false}}, "")
		if !errors.Is(err, ErrUngroupedRow) {
			t.Fatalf("Confirm on ungrouped rows: err = %v, want ErrUngroupedRow", err)
		}
		if rows := loadSheet(t, wb, "Guests"); !reflect.DeepEqual(rows, initial) {
			t.Errorf("sheet changed after rejected batch: %v", rows)
		}
	})
}

func TestConfirmRejectsBadBatch(t *testing.T) {
	ctx := context.Background()
	initial := [][]string{
		{"Rossi", "Mario", "No"},
		{"Bianchi", "Luca", "No"},
	}

	tests := []struct {
		name    string
		updates []Update
		want    error
	}{
		{"empty", nil, ErrNoGuests},
		{"out of range", []Update{{Row: 1, Attending: true}, {Row: 3, Attending: true}}, sheet.ErrRowOutOfRange},
		{"zero row", []Update{{Row: 0, Attending: true}}, sheet.ErrRowOutOfRange},
		{"mixed groups", []Update{{Row: 1, Attending: true}, {Row: 2, Attending: true}}, ErrMixedGroups},
	}

	forEachStore(t, func(t *testing.T, store string) {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc, wb, notifier := newTestService(t, store, initial)
				err := svc.Confirm(ctx, tt.updates, "")
				if !errors.Is(err, tt.want) {
					t.Fatalf("err = %v, want %v", err, tt.want)
				}
				if rows := loadSheet(t, wb, "Guests"); !reflect.DeepEqual(rows, initial) {
					t.Errorf("sheet changed after rejected batch: %v", rows)
				}
				svc.Wait()
				if texts := notifier.sent(); len(texts) != 0 {
					t.Errorf("notified on rejected batch: %q", texts)
				}
			})
		}
	})
}

func TestNoOpConfirmKeepsAttendance(t *testing.T) {
	forEachStore(t, func(t *testing.T, store string) {
		ctx := context.Background()
		svc, _, _ := newTestService(t, store, [][]string{
			{"Verdi", "Giulia", "Sì", "1/6/2026, 10:00:00", "vegan"},
			{"Verdi", "Paolo", "No", "1/6/2026, 10:00:00", "vegan"},
		})

		before, err := svc.Search(ctx, "giulia")
		if err != nil {
			t.Fatalf("Search: %v", err)
		}

		var updates []Update
		for _, guest := range before.Guests {
			updates = append(updates, Update{Row: guest.Row, Attending: guest.Attending})
		}
		if err := svc.Confirm(ctx, updates, before.FoodIntolerance()); err != nil {
			t.Fatalf("Confirm: %v", err)
		}

		after, err := svc.Search(ctx, "giulia")
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		for i := range before.Guests {
			if before.Guests[i].Attending != after.Guests[i].Attending {
				t.Errorf("%s attending changed by no-op confirm", before.Guests[i].Name)
			}
			if after.Guests[i].Timestamp == before.Guests[i].Timestamp {
				t.Errorf("%s timestamp not refreshed", before.Guests[i].Name)
			}
		}
		if after.FoodIntolerance() != "vegan" {
			t.Errorf("FoodIntolerance = %q, want %q", after.FoodIntolerance(), "vegan")
		}
	})
}

func TestNotifierFailureDoesNotFailConfirm(t *testing.T) {
	svc, _, notifier := newTestService(t, sheet.StoreMemory, [][]string{{"Rossi", "Mario"}})
	notifier.err = errors.New("offline")

	if err := svc.Confirm(context.Background(), []Update{{Row: 1, Attending: true}}, ""); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	svc.Wait()
}

type blockingNotifier struct {
	release chan struct{}
	ctxErr  chan error
}

func (b *blockingNotifier) Notify(ctx context.Context, text string) error {
	<-b.release
	b.ctxErr <- ctx.Err()
	return nil
}

func TestConfirmDoesNotWaitForNotifier(t *testing.T) {
	notifier := &blockingNotifier{release: make(chan struct{}), ctxErr: make(chan error, 1)}
	wb := openWorkbook(t, sheet.StoreMemory, [][]string{{"Rossi", "Mario"}})
	svc := New(wb, Options{Logger: zerolog.Nop(), Notifier: notifier, NotifyTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Confirm(ctx, []Update{{Row: 1, Attending: true}}, "")
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Confirm: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Confirm blocked on the notifier")
	}

	// the request is over; delivery must not be cancelled with it
	cancel()
	close(notifier.release)
	svc.Wait()

	if err := <-notifier.ctxErr; err != nil {
		t.Errorf("notifier context err = %v, want nil after request cancel", err)
	}
}

func TestSaveGiftAppends(t *testing.T) {
	forEachStore(t, func(t *testing.T, store string) {
		ctx := context.Background()
		svc, wb, notifier := newTestService(t, store, nil)

		messages := []models.GiftMessage{
			{From: "Mario", To: "Anna e Luca", Message: "Auguri!"},
			{From: "Sara", Message: "Felicità"},
			{From: "Mario", To: "Anna e Luca", Message: "Auguri!"},
		}
		for _, msg := range messages {
			if err := svc.SaveGift(ctx, msg); err != nil {
				t.Fatalf("SaveGift: %v", err)
			}
		}

		header, err := mustTable(t, wb, "Messaggi").Header(ctx)
		if err != nil {
			t.Fatalf("Header: %v", err)
		}
		if !reflect.DeepEqual(header, models.GiftHeader) {
			t.Errorf("header = %v, want %v", header, models.GiftHeader)
		}

		rows := loadSheet(t, wb, "Messaggi")
		if len(rows) != len(messages) {
			t.Fatalf("rows = %d, want %d", len(rows), len(messages))
		}
		if rows[1][2] != "Sposi" {
			t.Errorf("default recipient = %q, want %q", rows[1][2], "Sposi")
		}
		var prev time.Time
		for i, row := range rows {
			ts, err := time.Parse(TimestampLayout, row[0])
			if err != nil {
				t.Fatalf("row %d timestamp %q: %v", i, row[0], err)
			}
			if ts.Before(prev) {
				t.Errorf("row %d timestamp %v before %v", i, ts, prev)
			}
			prev = ts
		}

		svc.Wait()
		if texts := notifier.sent(); len(texts) != len(messages) {
			t.Errorf("notifications = %d, want %d", len(texts), len(messages))
		}
	})
}

func TestProvision(t *testing.T) {
	forEachStore(t, func(t *testing.T, store string) {
		ctx := context.Background()
		svc, wb, _ := newTestService(t, store, nil)

		for i := 0; i < 2; i++ {
			if err := svc.Provision(ctx); err != nil {
				t.Fatalf("Provision #%d: %v", i+1, err)
			}
		}
		if rows := loadSheet(t, wb, "Messaggi"); len(rows) != 0 {
			t.Errorf("gift rows after provision = %v, want none", rows)
		}
	})

	missing := New(sheet.NewMemory(), Options{Logger: zerolog.Nop()})
	if err := missing.Provision(context.Background()); !errors.Is(err, sheet.ErrTableNotFound) {
		t.Errorf("Provision without guest sheet: err = %v, want ErrTableNotFound", err)
	}
}

func TestSummaryAndImport(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, sheet.StoreMemory, [][]string{
		{"Rossi", "Mario", "Sì", "t"},
		{"Rossi", "Anna", "No", "t"},
	})

	n, err := svc.Import(ctx, []models.GuestRow{{Group: "Neri", Name: "Carla", FoodIntolerance: "nuts"}})
	if err != nil || n != 1 {
		t.Fatalf("Import = %d, %v", n, err)
	}

	summary, err := svc.Summary(ctx, "")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Accepted != 1 || summary.Declined != 1 || summary.Pending != 1 {
		t.Errorf("summary = %d/%d/%d, want 1/1/1", summary.Accepted, summary.Declined, summary.Pending)
	}
	if len(summary.Guests) != 3 {
		t.Errorf("guests = %d, want 3", len(summary.Guests))
	}

	pending, err := svc.Summary(ctx, models.RSVPPending)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(pending.Guests) != 1 || pending.Guests[0].Name != "Carla" || pending.Guests[0].Row != 3 {
		t.Errorf("pending guests = %+v", pending.Guests)
	}
}
