package voicetarget

import "testing"

type fakeResolver struct {
	channels map[string]int64
	users    map[string]int64
}

func (f *fakeResolver) ChannelFind(name string) int64 {
	if id, ok := f.channels[name]; ok {
		return id
	}
	return -1
}

func (f *fakeResolver) UserFind(name string) int64 {
	if id, ok := f.users[name]; ok {
		return id
	}
	return -1
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		channels: map[string]int64{"Lounge": 5},
		users:    map[string]int64{"alice": 9},
	}
}

func TestSetRejectsOutOfRangeTargetID(t *testing.T) {
	table := New(true)
	r := newFakeResolver()

	if _, err := table.Set(r, MinTargetID-1, KindChannel, "Lounge"); err != ErrInvalidTargetID {
		t.Errorf("target below range: expected ErrInvalidTargetID, got %v", err)
	}
	if _, err := table.Set(r, MaxTargetID+1, KindChannel, "Lounge"); err != ErrInvalidTargetID {
		t.Errorf("target above range: expected ErrInvalidTargetID, got %v", err)
	}
}

func TestSetResolvesChannelByNameAndByNumericID(t *testing.T) {
	table := New(true)
	r := newFakeResolver()

	vt, err := table.Set(r, 1, KindChannel, "Lounge")
	if err != nil {
		t.Fatalf("Set by name: %v", err)
	}
	if len(vt.Targets) != 1 || vt.Targets[0].ChannelID != 5 || !vt.Targets[0].Children {
		t.Errorf("Set by name: got %+v, want channel_id=5 children=true", vt.Targets)
	}

	vt, err = table.Set(r, 2, KindChannel, "42")
	if err != nil {
		t.Fatalf("Set by numeric id: %v", err)
	}
	if vt.Targets[0].ChannelID != 42 {
		t.Errorf("Set by numeric id: ChannelID = %d, want 42", vt.Targets[0].ChannelID)
	}
}

func TestSetResolvesUserByNameAndByNumericID(t *testing.T) {
	table := New(true)
	r := newFakeResolver()

	vt, err := table.Set(r, 1, KindUser, "alice")
	if err != nil {
		t.Fatalf("Set by name: %v", err)
	}
	if len(vt.Targets[0].Session) != 1 || vt.Targets[0].Session[0] != 9 {
		t.Errorf("Set by name: Session = %v, want [9]", vt.Targets[0].Session)
	}

	vt, err = table.Set(r, 2, KindUser, "17")
	if err != nil {
		t.Fatalf("Set by numeric id: %v", err)
	}
	if len(vt.Targets[0].Session) != 1 || vt.Targets[0].Session[0] != 17 {
		t.Errorf("Set by numeric id: Session = %v, want [17]", vt.Targets[0].Session)
	}
}

func TestSetUnknownNameReturnsNotFoundErrors(t *testing.T) {
	table := New(true)
	r := newFakeResolver()

	if _, err := table.Set(r, 1, KindChannel, "nope"); err != ErrUnknownChannel {
		t.Errorf("unknown channel: expected ErrUnknownChannel, got %v", err)
	}
	if _, err := table.Set(r, 1, KindUser, "nope"); err != ErrUnknownUser {
		t.Errorf("unknown user: expected ErrUnknownUser, got %v", err)
	}
}

func TestSetClearOnSetReplacesPriorEntry(t *testing.T) {
	table := New(true)
	r := newFakeResolver()

	if _, err := table.Set(r, 1, KindUser, "alice"); err != nil {
		t.Fatalf("Set #1: %v", err)
	}
	vt, err := table.Set(r, 1, KindChannel, "Lounge")
	if err != nil {
		t.Fatalf("Set #2: %v", err)
	}
	if len(vt.Targets) != 1 {
		t.Fatalf("expected clearOnSet to replace the prior entry, got %d entries", len(vt.Targets))
	}
	if vt.Targets[0].ChannelID != 5 {
		t.Errorf("expected the surviving entry to be the channel set second, got %+v", vt.Targets[0])
	}
}

func TestSetAccumulateGrowsWithoutBound(t *testing.T) {
	table := New(false)
	r := newFakeResolver()

	if _, err := table.Set(r, 1, KindUser, "alice"); err != nil {
		t.Fatalf("Set #1: %v", err)
	}
	vt, err := table.Set(r, 1, KindChannel, "Lounge")
	if err != nil {
		t.Fatalf("Set #2: %v", err)
	}
	if len(vt.Targets) != 2 {
		t.Errorf("expected accumulate mode to keep both entries, got %d", len(vt.Targets))
	}
}

func TestResendReturnsEveryConfiguredTarget(t *testing.T) {
	table := New(true)
	r := newFakeResolver()

	if _, err := table.Set(r, 1, KindUser, "alice"); err != nil {
		t.Fatalf("Set(1): %v", err)
	}
	if _, err := table.Set(r, 2, KindChannel, "Lounge"); err != nil {
		t.Fatalf("Set(2): %v", err)
	}

	resent := table.Resend()
	if len(resent) != 2 {
		t.Fatalf("expected 2 target ids in Resend, got %d", len(resent))
	}
}

func TestClearEmptiesTheTable(t *testing.T) {
	table := New(true)
	r := newFakeResolver()

	if _, err := table.Set(r, 1, KindUser, "alice"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	table.Clear()

	if resent := table.Resend(); len(resent) != 0 {
		t.Errorf("expected Resend to be empty after Clear, got %d entries", len(resent))
	}
}
