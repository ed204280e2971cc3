package main

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/certmint/certmint-api/internal/domain/model"
)

func TestPrintSummaryIncludesFailures(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	defer func() {
		os.Stdout = oldStdout
	}()

	os.Stdout = w

	token := uint64(7)
	summary := &model.BatchSummary{
		EventName:  "GopherConf 2026",
		Total:      2,
		Successful: 1,
		Failed:     1,
		Duration:   1500 * time.Millisecond,
		Results: []model.PipelineResult{
			{
				RecipientName: "Alice Chen",
				Success:       true,
				TokenID:       &token,
				TokenIDKnown:  true,
				TxHash:        "0xabc",
			},
			{
				RecipientName: "Bob Osei",
				Success:       false,
				FailedStage:   model.StageSubmitted,
				Error:         "execution reverted",
			},
		},
	}

	err = printSummary(summary)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	os.Stdout = oldStdout

	output, readErr := io.ReadAll(r)
	require.NoError(t, readErr)
	require.NoError(t, r.Close())

	outStr := string(output)
	require.Contains(t, outStr, "1 issued, 1 failed of 2")
	require.Contains(t, outStr, "Alice Chen")
	require.Contains(t, outStr, "failed at submitted")
	require.Contains(t, outStr, "execution reverted")
}

func TestSplitIDs(t *testing.T) {
	require.Nil(t, splitIDs(""))
	require.Nil(t, splitIDs("  "))
	require.Equal(t, []string{"a", "b"}, splitIDs("a, b"))
	require.Equal(t, []string{"r-1"}, splitIDs("r-1,"))
}
