package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutcomeClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		outcome   Outcome
		resolved  bool
		retryable bool
	}{
		{"success", Success(Record{Name: "App"}), true, false},
		{"not found", NotFound(), true, false},
		{"fetch failed", FetchFailed("timeout"), false, true},
		{"parse failed", ParseFailed("bad markup"), false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.resolved, tc.outcome.Resolved())
			require.Equal(t, tc.retryable, tc.outcome.Retryable())
		})
	}
}

func TestSuccessCarriesRecord(t *testing.T) {
	t.Parallel()

	out := Success(Record{Name: "App", Downloads: "10m"})
	require.NotNil(t, out.Record)
	require.Equal(t, "App", out.Record.Name)
	require.Empty(t, out.Reason)
}

func TestFailureCarriesReason(t *testing.T) {
	t.Parallel()

	out := FetchFailed("navigation timeout")
	require.Nil(t, out.Record)
	require.Equal(t, "navigation timeout", out.Reason)
}

func TestRecordEmpty(t *testing.T) {
	t.Parallel()

	require.True(t, Record{}.Empty())
	require.False(t, Record{Rating: "4.5"}.Empty())
}

func TestAttemptString(t *testing.T) {
	t.Parallel()

	a := Attempt{Item: WorkItem{Row: 7}, Round: 1, Outcome: FetchFailed("timeout")}
	require.Equal(t, "row 7 round 1: fetch_failed (timeout)", a.String())

	ok := Attempt{Item: WorkItem{Row: 2}, Round: 0, Outcome: Success(Record{Name: "App"})}
	require.Equal(t, "row 2 round 0: success", ok.String())
}
