package mesh

import "testing"

func TestDuplicateHistoryAddAndContains(t *testing.T) {
	var h DuplicateHistory
	if h.Contains(42) {
		t.Fatalf("empty history should not contain anything")
	}
	h.Add(42)
	if !h.Contains(42) {
		t.Fatalf("history should contain 42 after Add")
	}
}

func TestDuplicateHistoryWrapsAfterCapacity(t *testing.T) {
	var h DuplicateHistory
	for i := uint32(0); i < MaxDuplicateHistory; i++ {
		h.Add(i + 1)
	}
	if !h.Contains(1) {
		t.Fatalf("oldest entry should still be present before wrap")
	}
	h.Add(9999) // overwrites slot 0, evicting id 1
	if h.Contains(1) {
		t.Fatalf("id 1 should have been evicted by ring wraparound")
	}
	if !h.Contains(9999) {
		t.Fatalf("newly added id should be present")
	}
}

func TestDuplicateHistoryAddIfAbsentDedupes(t *testing.T) {
	var h DuplicateHistory
	h.AddIfAbsent(5)
	h.AddIfAbsent(5)
	count := 0
	for _, v := range h.ids {
		if v == 5 {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("id 5 stored %d times, want 1", count)
	}
}

func TestAckReplaySuppressesWithinTTL(t *testing.T) {
	var h AckReplayHistory
	h.Remember(7, 1000)
	if !h.RecentlyAcked(7, 1000+AckReplayTTL) {
		t.Fatalf("should still be within TTL at the boundary")
	}
	if h.RecentlyAcked(7, 1000+AckReplayTTL+1) {
		t.Fatalf("should have expired just past TTL")
	}
}

func TestRouteHistoryCapsAlternates(t *testing.T) {
	var h RouteHistory
	for i := 0; i < RouteMaxAlternates; i++ {
		if !h.CanReenqueue(100) {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if h.CanReenqueue(100) {
		t.Fatalf("attempt beyond RouteMaxAlternates should be refused")
	}
}

func TestAltHistoryCapsPerMessage(t *testing.T) {
	var h AltHistory
	for i := 0; i < AltMaxPerMessage; i++ {
		if !h.CanSendAlt(200) {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if h.CanSendAlt(200) {
		t.Fatalf("attempt beyond AltMaxPerMessage should be refused")
	}
}
