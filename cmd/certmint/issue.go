package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/certmint/certmint-api/internal/domain/issuance"
	"github.com/certmint/certmint-api/internal/domain/model"
	"github.com/certmint/certmint-api/internal/service"
)

type issueOptions struct {
	EventID      string
	RecipientIDs []string
}

func parseIssueFlags(name string, args []string) (*issueOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	eventID := fs.String("event", "", "event id to issue certificates for")
	recipients := fs.String("recipients", "", "comma separated recipient ids (default: every eligible recipient)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	if strings.TrimSpace(*eventID) == "" {
		return nil, errors.New("-event is required")
	}
	return &issueOptions{
		EventID:      strings.TrimSpace(*eventID),
		RecipientIDs: splitIDs(*recipients),
	}, nil
}

func splitIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

// runIssue executes a batch synchronously. Interrupting the process aborts
// the remaining pipeline work through context cancellation.
func runIssue(ctx *commandContext, args []string) error {
	opts, err := parseIssueFlags("issue", args)
	if err != nil {
		return err
	}

	infra, err := connectIssuanceInfra(ctx, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			ctx.Logger.Error("close infrastructure failed", "error", cerr)
		}
	}()

	runCtx, stop := signal.NotifyContext(ctx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := make(chan issuance.ProgressEvent, 16)
	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		for ev := range progress {
			printProgressEvent(ev)
		}
	}()

	summary, runErr := infra.Services.Issuer.IssueBatch(runCtx, service.IssueBatchParams{
		EventID:      opts.EventID,
		RecipientIDs: opts.RecipientIDs,
		Progress:     progress,
	})
	close(progress)
	<-printerDone

	if summary != nil {
		if perr := printSummary(summary); perr != nil {
			runErr = errors.Join(runErr, perr)
		}
	}
	return runErr
}

// runIssueBackground starts the batch as a background task and polls it.
// The first interrupt requests a cooperative cancel; in-flight recipients
// still finish before the task reports its terminal state.
func runIssueBackground(ctx *commandContext, args []string) error {
	opts, err := parseIssueFlags("issue-background", args)
	if err != nil {
		return err
	}

	infra, err := connectIssuanceInfra(ctx, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			ctx.Logger.Error("close infrastructure failed", "error", cerr)
		}
	}()

	task, err := infra.Services.Tasks.Start(ctx.Ctx, service.StartTaskParams{
		EventID:      opts.EventID,
		RecipientIDs: opts.RecipientIDs,
	})
	if err != nil {
		return err
	}
	if werr := writef(os.Stdout, "task %s started for event %s\n", task.ID, task.EventID); werr != nil {
		return werr
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	lastLine := ""
	for {
		select {
		case <-sigCh:
			ctx.Logger.Info("cancel requested; waiting for in-flight recipients to finish", "task_id", task.ID)
			if _, cerr := infra.Services.Tasks.Cancel(task.ID); cerr != nil {
				return cerr
			}
		case <-ticker.C:
			current, gerr := infra.Services.Tasks.Get(task.ID)
			if gerr != nil {
				return gerr
			}
			line := fmt.Sprintf("%s: %s", current.Status, current.Progress())
			if current.Step != "" {
				line += " (" + current.Step + ")"
			}
			if line != lastLine {
				if werr := writef(os.Stdout, "%s\n", line); werr != nil {
					return werr
				}
				lastLine = line
			}
			if current.Status.Terminal() {
				return finishBackgroundTask(current)
			}
		}
	}
}

func finishBackgroundTask(task *model.BackgroundTask) error {
	if task.Summary != nil {
		if err := printSummary(task.Summary); err != nil {
			return err
		}
	}
	switch task.Status {
	case model.TaskStatusFailed:
		return fmt.Errorf("task %s failed: %s", task.ID, task.Error)
	case model.TaskStatusCancelled:
		return fmt.Errorf("task %s cancelled after %s", task.ID, task.Progress())
	default:
		return nil
	}
}

func printProgressEvent(ev issuance.ProgressEvent) {
	if ev.Result == nil {
		return
	}
	status := "issued"
	if !ev.Result.Success {
		status = "failed"
	}
	// Best-effort console feedback; ignore write errors mid-run.
	_ = writef(os.Stdout, "%-7s %s (%d/%d)\n", status, ev.Result.RecipientName, ev.Completed+ev.Failed, ev.Total)
}

func printSummary(summary *model.BatchSummary) error {
	if err := writef(os.Stdout, "\nBatch for %q: %d issued, %d failed of %d (took %s)\n",
		summary.EventName, summary.Successful, summary.Failed, summary.Total, summary.Duration.Round(time.Millisecond)); err != nil {
		return err
	}
	if summary.NotifyFailed > 0 {
		if err := writef(os.Stdout, "warning: %d recipient notifications could not be queued\n", summary.NotifyFailed); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "RECIPIENT\tSTATUS\tTOKEN\tTX\tERROR"); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	for i := range summary.Results {
		res := &summary.Results[i]
		status := "issued"
		if !res.Success {
			status = "failed at " + string(res.FailedStage)
		} else if res.PublishDegraded {
			status = "issued (local artifact)"
		}
		token := "-"
		if res.TokenIDKnown && res.TokenID != nil {
			token = fmt.Sprintf("%d", *res.TokenID)
		}
		tx := res.TxHash
		if tx == "" {
			tx = "-"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			res.RecipientName, status, token, tx, res.Error); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
