package ledger

import (
	"sync"
	"testing"

	"github.com/pithecene-io/stainfetch/types"
)

func outcome(plate, position, sample string, channel types.Channel, status types.TaskStatus) types.TaskOutcome {
	return types.TaskOutcome{
		Key:      types.SampleKey{PlateID: plate, Position: position, Sample: sample},
		Channel:  channel,
		DestPath: "/out/" + string(channel) + "/" + plate + "_" + position + "_" + sample + "_" + string(channel) + ".jpg",
		Status:   status,
		Bytes:    10,
	}
}

func TestLedger_DeterministicOrdering(t *testing.T) {
	led := New(false)

	// Record in scrambled completion order.
	scrambled := []types.TaskOutcome{
		outcome("2", "B1", "1", types.ChannelYellow, types.StatusSuccess),
		outcome("1", "A1", "1", types.ChannelGreen, types.StatusSuccess),
		outcome("1", "A1", "2", types.ChannelRed, types.StatusSuccess),
		outcome("1", "A1", "1", types.ChannelBlue, types.StatusSuccess),
	}
	for _, o := range scrambled {
		if err := led.Record(o); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	summary := led.Finalize()
	wantOrder := []string{
		"1/A1/1 blue",
		"1/A1/1 green",
		"1/A1/2 red",
		"2/B1/1 yellow",
	}
	for i, o := range summary.Outcomes {
		got := o.Key.String() + " " + string(o.Channel)
		if got != wantOrder[i] {
			t.Errorf("outcome %d = %q, want %q", i, got, wantOrder[i])
		}
	}
}

func TestLedger_AppendOncePerDestination(t *testing.T) {
	led := New(false)
	o := outcome("1", "A1", "1", types.ChannelRed, types.StatusSuccess)

	if err := led.Record(o); err != nil {
		t.Fatalf("first Record: %v", err)
	}
	if err := led.Record(o); err == nil {
		t.Fatal("second Record for same destination should be rejected")
	}
}

func TestLedger_FinalizeIdempotent(t *testing.T) {
	led := New(false)
	if err := led.Record(outcome("1", "A1", "1", types.ChannelRed, types.StatusFailed)); err != nil {
		t.Fatal(err)
	}

	first := led.Finalize()
	second := led.Finalize()
	if first != second {
		t.Error("Finalize should return the cached summary")
	}

	if err := led.Record(outcome("1", "A1", "1", types.ChannelBlue, types.StatusSuccess)); err == nil {
		t.Error("Record after Finalize should be rejected")
	}
}

func TestLedger_HardFailureFlag(t *testing.T) {
	strict := New(false)
	if err := strict.Record(outcome("1", "A1", "1", types.ChannelRed, types.StatusFailed)); err != nil {
		t.Fatal(err)
	}
	if !strict.Finalize().HasHardFailure {
		t.Error("failure without skip-failed should be a hard failure")
	}

	tolerant := New(true)
	if err := tolerant.Record(outcome("1", "A1", "1", types.ChannelRed, types.StatusFailed)); err != nil {
		t.Fatal(err)
	}
	if tolerant.Finalize().HasHardFailure {
		t.Error("failure with skip-failed should not be a hard failure")
	}

	clean := New(false)
	if err := clean.Record(outcome("1", "A1", "1", types.ChannelRed, types.StatusSuccess)); err != nil {
		t.Fatal(err)
	}
	if clean.Finalize().HasHardFailure {
		t.Error("all-success run should never be a hard failure")
	}
}

func TestLedger_Counts(t *testing.T) {
	led := New(true)
	for _, o := range []types.TaskOutcome{
		outcome("1", "A1", "1", types.ChannelRed, types.StatusSuccess),
		outcome("1", "A1", "1", types.ChannelBlue, types.StatusSkippedExisting),
		outcome("1", "A1", "1", types.ChannelGreen, types.StatusSkippedSynthesized),
		outcome("1", "A1", "1", types.ChannelYellow, types.StatusFailed),
	} {
		if err := led.Record(o); err != nil {
			t.Fatal(err)
		}
	}

	summary := led.Finalize()
	if summary.Total != 4 || summary.Succeeded != 1 || summary.SkippedExisting != 1 ||
		summary.Synthesized != 1 || summary.Failed != 1 {
		t.Errorf("counts = %+v", summary)
	}
	if summary.Bytes != 40 {
		t.Errorf("Bytes = %d, want 40", summary.Bytes)
	}
}

func TestLedger_ConcurrentAppends(t *testing.T) {
	led := New(false)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o := outcome("1", "A1", "1", types.ChannelRed, types.StatusSuccess)
			o.DestPath = o.DestPath + string(rune('a'+i))
			if err := led.Record(o); err != nil {
				t.Errorf("Record: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if led.Len() != 16 {
		t.Errorf("Len = %d, want 16", led.Len())
	}
}
