package ledger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"evquota/internal/models"
	"evquota/internal/storage"
)

const testRoster = `id_tag,header name,surname,quota_kwh,unlimited
U1,Ada,Lovelace,150,FALSE
U2,Grace,Hopper,,TRUE
U3,Alan,Turing,,FALSE
U4,Edsger,Dijkstra,20,false
`

type fixture struct {
	ledger *Ledger
	store  *storage.FileStore
	dir    string
}

func newFixture(t *testing.T, roster string) *fixture {
	t.Helper()
	dir := t.TempDir()
	rosterPath := filepath.Join(dir, "users1.csv")
	if err := os.WriteFile(rosterPath, []byte(roster), 0o600); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	store, err := storage.NewFileStore(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	return &fixture{ledger: New(store, rosterPath, nil), store: store, dir: dir}
}

func (f *fixture) seedUsage(t *testing.T, usage map[string]float64) {
	t.Helper()
	if err := storage.SaveJSON(context.Background(), f.store, storage.DocUsage, usage); err != nil {
		t.Fatalf("seed usage: %v", err)
	}
}

func TestCanStartPolicies(t *testing.T) {
	f := newFixture(t, testRoster)
	f.seedUsage(t, map[string]float64{"U4": 20})
	f.ledger.Load(context.Background())

	cases := []struct {
		tag    string
		want   bool
		reason string
	}{
		{"U1", true, ReasonWithinQuota},
		{"U2", true, ReasonUnlimited},
		{"U3", false, ReasonNoQuota},
		{"U4", false, ReasonQuotaReached},
		{"U999", false, ReasonUnknownUser},
	}
	for _, tc := range cases {
		allowed, reason := f.ledger.CanStart(tc.tag)
		if allowed != tc.want || reason != tc.reason {
			t.Fatalf("CanStart(%s) = %v %q, want %v %q", tc.tag, allowed, reason, tc.want, tc.reason)
		}
	}
}

func TestUserInfoRemaining(t *testing.T) {
	f := newFixture(t, testRoster)
	f.seedUsage(t, map[string]float64{"U1": 148, "U2": 900})
	f.ledger.Load(context.Background())

	info, ok := f.ledger.UserInfo("U1")
	if !ok {
		t.Fatalf("expected U1 to be known")
	}
	if info.FullName != "Ada Lovelace" {
		t.Fatalf("unexpected full name %q", info.FullName)
	}
	if info.RemainingKWh == nil || *info.RemainingKWh != 2 {
		t.Fatalf("expected 2 kWh remaining, got %v", info.RemainingKWh)
	}

	unlimited, _ := f.ledger.UserInfo("U2")
	if unlimited.RemainingKWh != nil {
		t.Fatalf("unlimited users have no remaining allowance, got %v", *unlimited.RemainingKWh)
	}
}

func TestQuotaExceededTriggersOnce(t *testing.T) {
	f := newFixture(t, testRoster)
	f.seedUsage(t, map[string]float64{"U1": 148})
	ctx := context.Background()
	f.ledger.Load(ctx)

	id := f.ledger.NextSessionID()
	f.ledger.StartSession(ctx, id, "U1", 1000, "CP-1")

	if !f.ledger.UpdateUsage(ctx, id, 1003) {
		t.Fatalf("expected quota exceeded on first over-quota sample")
	}
	info, _ := f.ledger.UserInfo("U1")
	if info.UsedKWh != 151 {
		t.Fatalf("expected used 151, got %v", info.UsedKWh)
	}

	if f.ledger.UpdateUsage(ctx, id, 1010) {
		t.Fatalf("stop-pending session must not report exceeded again")
	}
	info, _ = f.ledger.UserInfo("U1")
	if info.UsedKWh != 151 {
		t.Fatalf("stop-pending session must not accumulate, got %v", info.UsedKWh)
	}

	f.ledger.ClearStopPending(id)
	if !f.ledger.UpdateUsage(ctx, id, 1004) {
		t.Fatalf("expected re-armed guard to report exceeded")
	}
}

func TestUpdateUsageClampsRegressions(t *testing.T) {
	f := newFixture(t, testRoster)
	ctx := context.Background()
	f.ledger.Load(ctx)

	f.ledger.StartSession(ctx, 7, "U2", 50, "CP-1")
	f.ledger.UpdateUsage(ctx, 7, 55)
	f.ledger.UpdateUsage(ctx, 7, 40)
	f.ledger.UpdateUsage(ctx, 7, 56)

	info, _ := f.ledger.UserInfo("U2")
	if info.UsedKWh != 6 {
		t.Fatalf("expected 6 kWh, got %v", info.UsedKWh)
	}
	sess, _ := f.ledger.Session(7)
	if sess.LastMeter != 56 {
		t.Fatalf("expected watermark 56, got %v", sess.LastMeter)
	}
}

func TestEndSessionDoesNotDoubleCount(t *testing.T) {
	f := newFixture(t, testRoster)
	ctx := context.Background()
	f.ledger.Load(ctx)

	f.ledger.StartSession(ctx, 11, "U2", 10, "CP-9")
	f.ledger.UpdateUsage(ctx, 11, 14)

	ended, ok := f.ledger.EndSession(ctx, 11, 15)
	if !ok {
		t.Fatalf("expected session to end")
	}
	if ended.DeliveredKWh() != 5 {
		t.Fatalf("expected 5 kWh delivered, got %v", ended.DeliveredKWh())
	}

	info, _ := f.ledger.UserInfo("U2")
	if info.UsedKWh != 4 {
		t.Fatalf("end of session must not add usage, got %v", info.UsedKWh)
	}
	if _, open := f.ledger.Session(11); open {
		t.Fatalf("session should be removed")
	}
	if _, ok := f.ledger.EndSession(ctx, 11, 20); ok {
		t.Fatalf("ending unknown session must be a no-op")
	}
}

func TestUpdateUsageUnknownSession(t *testing.T) {
	f := newFixture(t, testRoster)
	f.ledger.Load(context.Background())
	if f.ledger.UpdateUsage(context.Background(), 404, 10) {
		t.Fatalf("unknown session must not report exceeded")
	}
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	f := newFixture(t, testRoster)
	ctx := context.Background()
	f.ledger.Load(ctx)

	f.ledger.StartSession(ctx, 42, "U1", 100, "CP-2")
	f.ledger.UpdateUsage(ctx, 42, 104.5)

	restarted := New(f.store, f.ledger.RosterPath(), nil)
	restarted.Load(ctx)

	sess, ok := restarted.Session(42)
	if !ok {
		t.Fatalf("expected session to survive restart")
	}
	if sess.LastMeter != 104.5 || sess.FullName != "Ada Lovelace" || sess.ChargerID != "CP-2" {
		t.Fatalf("unexpected restored session %+v", sess)
	}
	info, _ := restarted.UserInfo("U1")
	if info.UsedKWh != 4.5 {
		t.Fatalf("expected restored usage 4.5, got %v", info.UsedKWh)
	}
	if id := restarted.NextSessionID(); id <= 42 {
		t.Fatalf("next id must move past restored ids, got %d", id)
	}
}

func TestLoadFailsOpenOnCorruptDocuments(t *testing.T) {
	f := newFixture(t, testRoster)
	ctx := context.Background()
	if err := f.store.Put(ctx, storage.DocUsage, []byte("{broken")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := f.store.Put(ctx, storage.DocSessions, []byte("[1,2")); err != nil {
		t.Fatalf("put: %v", err)
	}

	f.ledger.Load(ctx)

	info, ok := f.ledger.UserInfo("U1")
	if !ok || info.UsedKWh != 0 {
		t.Fatalf("expected empty usage after corrupt document, got %+v", info)
	}
	if ids := f.ledger.SessionsOnCharger("CP-1"); len(ids) != 0 {
		t.Fatalf("expected no sessions, got %v", ids)
	}
}

func TestMissingRosterDeniesEveryone(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	l := New(store, filepath.Join(t.TempDir(), "absent.csv"), nil)
	l.Load(context.Background())

	if allowed, _ := l.CanStart("U1"); allowed {
		t.Fatalf("missing roster must deny")
	}
}

func TestResetMonthlyUsageIdempotentWithinMonth(t *testing.T) {
	f := newFixture(t, testRoster)
	f.seedUsage(t, map[string]float64{"U1": 120, "U4": 3})
	ctx := context.Background()
	f.ledger.Load(ctx)

	may := time.Date(2024, time.May, 3, 10, 0, 0, 0, time.UTC)
	f.ledger.now = func() time.Time { return may }

	if !f.ledger.ResetMonthlyUsage(ctx) {
		t.Fatalf("expected first reset to run")
	}
	info, _ := f.ledger.UserInfo("U1")
	if info.UsedKWh != 0 {
		t.Fatalf("expected usage zeroed, got %v", info.UsedKWh)
	}

	f.ledger.StartSession(ctx, 1, "U1", 0, "CP-1")
	f.ledger.UpdateUsage(ctx, 1, 5)
	if f.ledger.ResetMonthlyUsage(ctx) {
		t.Fatalf("second reset in the same month must be a no-op")
	}
	info, _ = f.ledger.UserInfo("U1")
	if info.UsedKWh != 5 {
		t.Fatalf("usage must survive no-op reset, got %v", info.UsedKWh)
	}

	marker, err := f.store.Get(ctx, storage.DocResetMarker)
	if err != nil || strings.TrimSpace(string(marker)) != "2024-05" {
		t.Fatalf("unexpected marker %q (%v)", marker, err)
	}

	f.ledger.now = func() time.Time { return may.AddDate(0, 1, 0) }
	if !f.ledger.ResetMonthlyUsage(ctx) {
		t.Fatalf("expected reset in the next month")
	}
}

func TestNextSessionIDUniqueWithinSecond(t *testing.T) {
	f := newFixture(t, testRoster)
	f.ledger.Load(context.Background())
	fixed := time.Unix(1_700_000_000, 0)
	f.ledger.now = func() time.Time { return fixed }

	seen := make(map[int64]bool)
	for i := 0; i < 5; i++ {
		id := f.ledger.NextSessionID()
		if seen[id] {
			t.Fatalf("duplicate session id %d", id)
		}
		seen[id] = true
	}
}

func TestConcurrentUpdatesTriggerSingleStop(t *testing.T) {
	f := newFixture(t, testRoster)
	ctx := context.Background()
	f.ledger.Load(ctx)
	f.ledger.StartSession(ctx, 99, "U4", 0, "CP-5")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		exceeded int
	)
	for i := 1; i <= 40; i++ {
		wg.Add(1)
		go func(reading float64) {
			defer wg.Done()
			if f.ledger.UpdateUsage(ctx, 99, reading) {
				mu.Lock()
				exceeded++
				mu.Unlock()
			}
		}(float64(i))
	}
	wg.Wait()

	if exceeded != 1 {
		t.Fatalf("expected exactly one exceeded signal, got %d", exceeded)
	}
	info, _ := f.ledger.UserInfo("U4")
	if info.UsedKWh < 20 || info.UsedKWh > 40 {
		t.Fatalf("usage out of range: %v", info.UsedKWh)
	}
}

func TestParseRosterSkipsBadRows(t *testing.T) {
	users, err := ParseRoster(strings.NewReader("id_tag,header name,surname,quota_kwh,unlimited\n,No,Tag,1,FALSE\nU5,Bad,Quota,lots,FALSE\nU6,Ok,User,2.5,FALSE\n"), nil)
	if err != nil {
		t.Fatalf("parse roster: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected one valid user, got %d", len(users))
	}
	if users["U6"].QuotaKWh == nil || *users["U6"].QuotaKWh != 2.5 || users["U6"].Plan != models.PlanLimited {
		t.Fatalf("unexpected user %+v", users["U6"])
	}
}

func TestReloadRosterKeepsPreviousOnError(t *testing.T) {
	f := newFixture(t, testRoster)
	f.ledger.Load(context.Background())

	if err := os.WriteFile(f.ledger.RosterPath(), []byte("name\nx\n"), 0o600); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	if err := f.ledger.ReloadRoster(); err == nil {
		t.Fatalf("expected reload error for roster without id_tag")
	}
	if allowed, _ := f.ledger.CanStart("U1"); !allowed {
		t.Fatalf("previous roster must be kept")
	}

	updated := testRoster + "U7,New,Member,10,FALSE\n"
	if err := os.WriteFile(f.ledger.RosterPath(), []byte(updated), 0o600); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	if err := f.ledger.ReloadRoster(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if allowed, _ := f.ledger.CanStart("U7"); !allowed {
		t.Fatalf("expected new user after reload")
	}
}
