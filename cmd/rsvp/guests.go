package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"wedding-rsvp/internal/config"
	"wedding-rsvp/internal/models"
)

func newGuestsCmd(cfg *config.Config, log zerolog.Logger) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "guests",
		Short: "List guests and RSVP totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch models.RSVPStatus(status) {
			case "", models.RSVPPending, models.RSVPAccepted, models.RSVPDeclined:
			default:
				return fmt.Errorf("invalid status %q", status)
			}

			svc, workbook, err := openDirectory(cfg, log, nil)
			if err != nil {
				return err
			}
			defer workbook.Close()

			summary, err := svc.Summary(cmd.Context(), models.RSVPStatus(status))
			if err != nil {
				return err
			}
			printGuests(cmd.OutOrStdout(), summary.Guests)
			fmt.Fprintf(cmd.OutOrStdout(), "\n✅ %d accepted   ❌ %d declined   ⏳ %d pending\n",
				summary.Accepted, summary.Declined, summary.Pending)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only list guests with this status: pending, accepted or declined")
	return cmd
}

func printGuests(w io.Writer, guests []models.GuestRow) {
	if len(guests) == 0 {
		fmt.Fprintln(w, "\nNo guests found.")
		return
	}

	fmt.Fprintf(w, "\n📋 Guests (%d):\n", len(guests))
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, guest := range guests {
		fmt.Fprintf(w, "Row: %d\n", guest.Row)
		fmt.Fprintf(w, "Group: %s\n", guest.Group)
		fmt.Fprintf(w, "Name: %s\n", guest.Name)
		fmt.Fprintf(w, "Status: %s\n", guest.Status())
		if guest.Timestamp != "" {
			fmt.Fprintf(w, "RSVP Date: %s\n", guest.Timestamp)
		}
		if guest.FoodIntolerance != "" {
			fmt.Fprintf(w, "Food intolerance: %s\n", guest.FoodIntolerance)
		}
		fmt.Fprintln(w, strings.Repeat("-", 60))
	}
}

func newImportCmd(cfg *config.Config, log zerolog.Logger) *cobra.Command {
	var skipHeader bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Append guests from a CSV file (group,name[,food intolerance])",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			guests, err := readGuestsCSV(f, skipHeader)
			if err != nil {
				return err
			}

			svc, workbook, err := openDirectory(cfg, log, nil)
			if err != nil {
				return err
			}
			defer workbook.Close()

			n, err := svc.Import(cmd.Context(), guests)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d guests\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipHeader, "header", true, "the first line is a header")
	return cmd
}

// readGuestsCSV parses group,name[,food intolerance] records
func readGuestsCSV(r io.Reader, skipHeader bool) ([]models.GuestRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var guests []models.GuestRow
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		if line == 1 && skipHeader {
			continue
		}
		if len(record) < 2 || strings.TrimSpace(record[0]) == "" || strings.TrimSpace(record[1]) == "" {
			return nil, fmt.Errorf("line %d: want group and name", line)
		}

		guest := models.GuestRow{
			Group: strings.TrimSpace(record[0]),
			Name:  strings.TrimSpace(record[1]),
		}
		if len(record) > 2 {
			guest.FoodIntolerance = strings.TrimSpace(record[2])
		}
		guests = append(guests, guest)
	}
	return guests, nil
}
