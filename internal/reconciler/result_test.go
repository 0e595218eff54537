package reconciler

import (
	"strings"
	"testing"
	"time"
)

func TestAction_String(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		want   string
	}{
		{
			name: "successful add",
			action: Action{
				Phase:  PhaseAdd,
				Status: StatusSuccess,
				Name:   "www.example.com",
				Type:   "A",
				Value:  "192.0.2.1",
			},
			want: `[success] add www.example.com A "192.0.2.1"`,
		},
		{
			name: "failed remove",
			action: Action{
				Phase:  PhaseRemove,
				Status: StatusFailed,
				Name:   "home.example.com",
				Type:   "A",
				Value:  "198.51.100.1",
				Error:  "connection refused",
			},
			want: `[failed] remove home.example.com A "198.51.100.1": connection refused`,
		},
		{
			name: "skipped with reason",
			action: Action{
				Phase:  PhaseRemove,
				Status: StatusSkipped,
				Name:   "www.example.com",
				Type:   "TXT",
				Reason: "no live record",
			},
			want: `[skipped] remove www.example.com TXT "" (no live record)`,
		},
		{
			name: "dry-run add",
			action: Action{
				Phase:  PhaseAdd,
				Status: StatusSuccess,
				Name:   "www.example.com",
				Type:   "A",
				Value:  "192.0.2.1",
				DryRun: true,
			},
			want: `[dry-run] add www.example.com A "192.0.2.1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.action.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResult_Counts(t *testing.T) {
	r := NewResult(false)
	r.AddAction(Action{Phase: PhaseRemove, Status: StatusSuccess})
	r.AddAction(Action{Phase: PhaseAdd, Status: StatusSuccess})
	r.AddAction(Action{Phase: PhaseRemove, Status: StatusSkipped})
	r.AddAction(Action{Phase: PhaseAdd, Status: StatusSuccess})
	r.AddAction(Action{Phase: PhaseRemove, Status: StatusFailed, Error: "boom"})

	if got := r.AddedCount(); got != 2 {
		t.Errorf("AddedCount() = %d, want 2", got)
	}
	if got := r.RemovedCount(); got != 1 {
		t.Errorf("RemovedCount() = %d, want 1", got)
	}
	if got := len(r.Skipped()); got != 1 {
		t.Errorf("len(Skipped()) = %d, want 1", got)
	}
	if got := r.FailedCount(); got != 1 {
		t.Errorf("FailedCount() = %d, want 1", got)
	}
	if !r.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
}

func TestResult_AddActionCarriesDryRun(t *testing.T) {
	r := NewResult(true)
	r.AddAction(Action{Phase: PhaseAdd, Status: StatusSuccess})

	if !r.Actions[0].DryRun {
		t.Error("AddAction should mark actions as dry-run when the result is")
	}
	if !r.Actions[0].Mutated() {
		t.Error("Mutated() = false for a successful action")
	}
}

func TestResult_Duration(t *testing.T) {
	r := NewResult(false)
	r.StartTime = time.Now().Add(-2 * time.Second)

	if d := r.Duration(); d < 2*time.Second {
		t.Errorf("Duration() before Complete = %v, want >= 2s", d)
	}

	r.Complete()
	d := r.Duration()
	time.Sleep(5 * time.Millisecond)
	if r.Duration() != d {
		t.Error("Duration() should be fixed after Complete")
	}
}

func TestResult_Summary(t *testing.T) {
	r := NewResult(false)
	r.Address = "203.0.113.5"
	r.RecordsDeclared = 3
	r.RecordsLive = 10
	r.AddAction(Action{Phase: PhaseRemove, Status: StatusSuccess, Name: "home.example.com", Type: "A"})
	r.AddAction(Action{Phase: PhaseAdd, Status: StatusSuccess, Name: "home.example.com", Type: "A"})
	r.AddAction(Action{Phase: PhaseAdd, Status: StatusFailed, Name: "www.example.com", Type: "A", Error: "invalid_record"})
	r.Complete()

	summary := r.Summary()

	for _, want := range []string{
		"(applied)",
		"Public address: 203.0.113.5",
		"Records declared: 3",
		"Records live: 10",
		"Records removed: 1",
		"Records added: 1",
		"Failed: 1",
		"www.example.com A",
		"invalid_record",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() missing %q:\n%s", want, summary)
		}
	}
}

func TestResult_SummaryDryRun(t *testing.T) {
	r := NewResult(true)
	r.Complete()

	summary := r.Summary()
	if !strings.Contains(summary, "(dry-run)") {
		t.Errorf("Summary() missing dry-run marker:\n%s", summary)
	}
	if strings.Contains(summary, "Public address") {
		t.Errorf("Summary() should omit the address when none was resolved:\n%s", summary)
	}
	if strings.Contains(summary, "Failed") {
		t.Errorf("Summary() should omit failures when there are none:\n%s", summary)
	}
}
