package metrics

import (
	"testing"
	"time"
)

func TestNewEngine(t *testing.T) {
	engine := NewEngine()
	if engine == nil {
		t.Fatal("NewEngine() returned nil")
	}
	defer engine.Stop()

	snapshot := engine.GetSnapshot()
	if snapshot.TotalSends != 0 {
		t.Errorf("Initial TotalSends = %d, want 0", snapshot.TotalSends)
	}
	if snapshot.CurrentPhase != PhaseInit {
		t.Errorf("Initial phase = %v, want %v", snapshot.CurrentPhase, PhaseInit)
	}
}

func TestEngine_RecordSend(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.RecordSend(10*time.Millisecond, true, 1000)
	engine.RecordSend(20*time.Millisecond, true, 2000)
	engine.RecordSend(30*time.Millisecond, false, 500)
	engine.RecordInvalid()

	snapshot := engine.GetSnapshot()

	if snapshot.TotalSends != 3 {
		t.Errorf("TotalSends = %d, want 3", snapshot.TotalSends)
	}
	if snapshot.SuccessSends != 2 {
		t.Errorf("SuccessSends = %d, want 2", snapshot.SuccessSends)
	}
	if snapshot.FailedSends != 1 {
		t.Errorf("FailedSends = %d, want 1", snapshot.FailedSends)
	}
	if snapshot.InvalidPayloads != 1 {
		t.Errorf("InvalidPayloads = %d, want 1", snapshot.InvalidPayloads)
	}
	if snapshot.TotalBytes != 3500 {
		t.Errorf("TotalBytes = %d, want 3500", snapshot.TotalBytes)
	}
	if snapshot.ErrorRate < 0.33 || snapshot.ErrorRate > 0.34 {
		t.Errorf("ErrorRate = %v, want ~0.333", snapshot.ErrorRate)
	}
	if snapshot.Latency.Count != 3 {
		t.Errorf("Latency.Count = %d, want 3", snapshot.Latency.Count)
	}
}

func TestEngine_LatencyPercentiles(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	for i := 1; i <= 10; i++ {
		engine.RecordSend(time.Duration(i*10)*time.Millisecond, true, 100)
	}

	percentiles := engine.GetLatencyPercentiles()

	// P50 should be around 50ms (with some tolerance for HDR histogram binning)
	if percentiles.P50 < 40*time.Millisecond || percentiles.P50 > 60*time.Millisecond {
		t.Errorf("P50 = %v, want ~50ms (±10ms)", percentiles.P50)
	}
	if percentiles.P99 < 90*time.Millisecond || percentiles.P99 > 110*time.Millisecond {
		t.Errorf("P99 = %v, want ~100ms (±10ms)", percentiles.P99)
	}
	if percentiles.Min < 9*time.Millisecond || percentiles.Min > 11*time.Millisecond {
		t.Errorf("Min = %v, want ~10ms", percentiles.Min)
	}
}

func TestEngine_RecordPermit(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.RecordPermit(2, 1, 5*time.Millisecond)
	engine.RecordPermit(0, 1, 0)
	engine.RecordPermit(2, 3, 15*time.Millisecond)

	permits := engine.GetWorkerPermits()
	want := []WorkerPermits{{Worker: 0, Permits: 1}, {Worker: 2, Permits: 4}}
	if len(permits) != len(want) {
		t.Fatalf("GetWorkerPermits() = %v, want %v", permits, want)
	}
	for i := range want {
		if permits[i] != want[i] {
			t.Errorf("GetWorkerPermits()[%d] = %v, want %v", i, permits[i], want[i])
		}
	}

	if got := engine.GetSnapshot().Wait.Count; got != 3 {
		t.Errorf("Wait.Count = %d, want 3", got)
	}
}

func TestEngine_Calibrations(t *testing.T) {
	engine := NewEngineWithConfig(EngineConfig{MaxCalibrations: 3})
	defer engine.Stop()

	for i := 1; i <= 5; i++ {
		engine.RecordCalibration(Calibration{Sample: float64(i), CommandedRate: float64(i * 10), EPS: float64(i * 9)})
	}

	cals := engine.GetCalibrations()
	if len(cals) != 3 {
		t.Fatalf("len(GetCalibrations()) = %d, want 3", len(cals))
	}
	if cals[0].Sample != 3 || cals[2].Sample != 5 {
		t.Errorf("GetCalibrations() kept %v, want the three most recent", cals)
	}
	if d := cals[2].Drift(); d != 5 {
		t.Errorf("Drift() = %v, want 5", d)
	}
}

func TestEngine_Phase(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.SetPhase(PhaseBroadcasting)
	engine.RecordSend(time.Millisecond, true, 1)
	engine.SetPhase(PhaseBroadcasting)
	engine.SetPhase(PhaseDraining)
	engine.SetPhase(PhaseDone)

	if engine.GetPhase() != PhaseDone {
		t.Errorf("GetPhase() = %v, want %v", engine.GetPhase(), PhaseDone)
	}

	history := engine.GetPhaseHistory()
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}
	if history[1].Phase != PhaseDraining || history[1].Sends != 1 {
		t.Errorf("history[1] = %+v, want draining after 1 send", history[1])
	}
}

func TestEngine_CommandedRateAndWorkers(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.SetCommandedRate(42.5)
	engine.SetActiveWorkers(7)

	snapshot := engine.GetSnapshot()
	if snapshot.CommandedRate != 42.5 {
		t.Errorf("CommandedRate = %v, want 42.5", snapshot.CommandedRate)
	}
	if snapshot.ActiveWorkers != 7 {
		t.Errorf("ActiveWorkers = %d, want 7", snapshot.ActiveWorkers)
	}
}

func TestEngine_TimeSeries(t *testing.T) {
	engine := NewEngineWithConfig(EngineConfig{BucketInterval: 10 * time.Millisecond})

	engine.SetPhase(PhaseBroadcasting)
	engine.SetCommandedRate(100)
	for i := 0; i < 5; i++ {
		engine.RecordSend(time.Millisecond, true, 10)
	}
	time.Sleep(35 * time.Millisecond)
	engine.Stop()
	engine.Stop()

	series := engine.GetTimeSeries()
	if len(series) < 2 {
		t.Fatalf("len(GetTimeSeries()) = %d, want at least 2", len(series))
	}

	var sends int64
	for _, b := range series {
		sends += b.IntervalSends
		if b.CommandedRate != 100 {
			t.Errorf("bucket CommandedRate = %v, want 100", b.CommandedRate)
		}
	}
	if sends != 5 {
		t.Errorf("sum of IntervalSends = %d, want 5", sends)
	}

	if last := series[len(series)-1]; last.TotalSends != 5 {
		t.Errorf("last bucket TotalSends = %d, want 5", last.TotalSends)
	}

	if sps := engine.GetSnapshot().BroadcastSPS; sps <= 0 {
		t.Errorf("BroadcastSPS = %v, want > 0", sps)
	}
}

func TestEngine_Reset(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.RecordSend(10*time.Millisecond, true, 100)
	engine.RecordPermit(1, 1, time.Millisecond)
	engine.RecordCalibration(Calibration{Sample: 1})
	engine.SetPhase(PhaseBroadcasting)

	engine.Reset()

	snapshot := engine.GetSnapshot()
	if snapshot.TotalSends != 0 || snapshot.Wait.Count != 0 {
		t.Errorf("after Reset: TotalSends = %d, Wait.Count = %d", snapshot.TotalSends, snapshot.Wait.Count)
	}
	if engine.GetPhase() != PhaseInit {
		t.Errorf("after Reset: phase = %v, want %v", engine.GetPhase(), PhaseInit)
	}
	if len(engine.GetCalibrations()) != 0 || len(engine.GetWorkerPermits()) != 0 {
		t.Error("after Reset: calibrations and worker permits should be empty")
	}
}

func TestTimeBucketStore_RingBuffer(t *testing.T) {
	store := NewTimeBucketStore(3)

	for i := 1; i <= 5; i++ {
		store.RecordSend(true)
		store.CreateBucket(BucketTotals{Sends: int64(i), Phase: PhaseBroadcasting}, LatencyPercentiles{})
	}

	if store.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", store.Count())
	}

	buckets := store.GetBuckets()
	for i, b := range buckets {
		if want := int64(i + 3); b.TotalSends != want {
			t.Errorf("buckets[%d].TotalSends = %d, want %d", i, b.TotalSends, want)
		}
	}

	recent := store.GetRecentBuckets(2)
	if len(recent) != 2 || recent[0].TotalSends != 4 || recent[1].TotalSends != 5 {
		t.Errorf("GetRecentBuckets(2) returned wrong buckets")
	}
	if store.GetLatestBucket().TotalSends != 5 {
		t.Errorf("GetLatestBucket().TotalSends = %d, want 5", store.GetLatestBucket().TotalSends)
	}

	store.Reset()
	if store.Count() != 0 || store.GetLatestBucket() != nil {
		t.Error("Reset() should clear all buckets")
	}
}

func TestTimeBucketStore_IntervalErrorRate(t *testing.T) {
	store := NewTimeBucketStore(10)

	store.RecordSend(true)
	store.RecordSend(false)
	store.RecordSend(false)
	store.RecordSend(true)

	b := store.CreateBucket(BucketTotals{Phase: PhaseDraining}, LatencyPercentiles{})
	if b.IntervalSends != 4 {
		t.Errorf("IntervalSends = %d, want 4", b.IntervalSends)
	}
	if b.IntervalErrorRate != 0.5 {
		t.Errorf("IntervalErrorRate = %v, want 0.5", b.IntervalErrorRate)
	}

	if sps, n := store.CalculateBroadcastSPS(); sps != 0 || n != 0 {
		t.Errorf("CalculateBroadcastSPS() = %v, %d; want 0, 0", sps, n)
	}
	if got := store.GetBucketsForPhase(PhaseDraining); len(got) != 1 {
		t.Errorf("GetBucketsForPhase(draining) = %d buckets, want 1", len(got))
	}
}
