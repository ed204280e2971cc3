package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/certmint/certmint-api/internal/core"
	"github.com/certmint/certmint-api/internal/data"
)

func runListRecipients(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("recipients", flag.ContinueOnError)
	eventID := fs.String("event", "", "event id to list eligible recipients for")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if strings.TrimSpace(*eventID) == "" {
		return errors.New("-event is required")
	}

	db, err := connectDB(&ctx.Config, ctx.Logger)
	if err != nil {
		return err
	}
	defer closeDB(db, ctx.Logger)

	recipients, err := data.NewRecipientRepo(db).ListEligible(ctx.Ctx, core.ListEligibleParams{
		EventID: strings.TrimSpace(*eventID),
	})
	if err != nil {
		return fmt.Errorf("list eligible recipients: %w", err)
	}

	if len(recipients) == 0 {
		return writef(os.Stdout, "no eligible recipients for event %s\n", *eventID)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err = fmt.Fprintln(w, "ID\tNAME\tWALLET\tCOHORT"); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	for _, r := range recipients {
		if _, err = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.FullName, r.WalletAddress, r.Cohort); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return writef(os.Stdout, "\n%d eligible recipients\n", len(recipients))
}

func runListCertificates(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("certificates", flag.ContinueOnError)
	eventID := fs.String("event", "", "event id to list certificates for")
	limit := fs.Int("limit", 100, "maximum rows to print")
	offset := fs.Int("offset", 0, "rows to skip")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if strings.TrimSpace(*eventID) == "" {
		return errors.New("-event is required")
	}

	db, err := connectDB(&ctx.Config, ctx.Logger)
	if err != nil {
		return err
	}
	defer closeDB(db, ctx.Logger)

	records, err := data.NewCertificateRepo(db).ListByEvent(ctx.Ctx, strings.TrimSpace(*eventID), *limit, *offset)
	if err != nil {
		return fmt.Errorf("list certificates: %w", err)
	}

	if len(records) == 0 {
		return writef(os.Stdout, "no certificates recorded for event %s\n", *eventID)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err = fmt.Fprintln(w, "RECIPIENT\tSTATUS\tTOKEN\tTX\tUPDATED"); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	for _, rec := range records {
		token := "-"
		if rec.TokenID != nil {
			token = fmt.Sprintf("%d", *rec.TokenID)
		}
		tx := rec.TxHash
		if tx == "" {
			tx = "-"
		}
		if _, err = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.RecipientID, rec.Status, token, tx, rec.UpdatedAt.Format("2006-01-02 15:04:05")); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
