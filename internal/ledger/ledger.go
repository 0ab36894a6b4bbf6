// Package ledger is the authoritative record of user quotas, cumulative usage and open
// charging sessions. All mutations and their persistence run under one mutex, so a
// session's watermark, its stop-pending guard and its user's usage total always move together.
package ledger

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"evquota/internal/models"
	"evquota/internal/storage"
)

const monthLayout = "2006-01"

// Denial and admission reasons returned by CanStart.
const (
	ReasonUnknownUser  = "unknown user"
	ReasonUnlimited    = "unlimited plan"
	ReasonNoQuota      = "no quota configured"
	ReasonQuotaReached = "quota exhausted"
	ReasonWithinQuota  = "within quota"
)

// Ledger owns users, usage totals and active sessions.
type Ledger struct {
	mu         sync.Mutex
	store      storage.Store
	rosterPath string
	logger     *zap.Logger
	now        func() time.Time

	users    map[string]models.User
	usage    map[string]float64
	sessions map[int64]*models.ActiveSession
	lastID   int64
}

// New builds an empty ledger. Call Load before serving traffic.
func New(store storage.Store, rosterPath string, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:      store,
		rosterPath: rosterPath,
		logger:     logger.Named("ledger"),
		now:        time.Now,
		users:      make(map[string]models.User),
		usage:      make(map[string]float64),
		sessions:   make(map[int64]*models.ActiveSession),
	}
}

// Load rebuilds state from the roster and the persisted usage and session documents.
// Each source that cannot be read or parsed is replaced by empty state and logged.
func (l *Ledger) Load(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	users, err := LoadRoster(l.rosterPath, l.logger)
	if err != nil {
		l.logger.Error("roster unavailable, all users will be denied", zap.String("path", l.rosterPath), zap.Error(err))
		users = make(map[string]models.User)
	}
	l.users = users

	usage := make(map[string]float64)
	if err := storage.LoadJSON(ctx, l.store, storage.DocUsage, &usage); err != nil && !errors.Is(err, storage.ErrNotFound) {
		l.logger.Error("usage document unreadable, starting from zero", zap.Error(err))
		usage = make(map[string]float64)
	}
	l.usage = usage

	persisted := make(map[int64]models.ActiveSession)
	if err := storage.LoadJSON(ctx, l.store, storage.DocSessions, &persisted); err != nil && !errors.Is(err, storage.ErrNotFound) {
		l.logger.Error("session document unreadable, starting empty", zap.Error(err))
		persisted = make(map[int64]models.ActiveSession)
	}
	l.sessions = make(map[int64]*models.ActiveSession, len(persisted))
	for id, sess := range persisted {
		sess := sess
		sess.ID = id
		sess.StopPending = false
		l.sessions[id] = &sess
		if id > l.lastID {
			l.lastID = id
		}
	}

	l.logger.Info("ledger loaded",
		zap.Int("users", len(l.users)),
		zap.Int("usage_entries", len(l.usage)),
		zap.Int("active_sessions", len(l.sessions)))
}

// ReloadRoster re-reads the roster CSV. On failure the current roster is kept.
func (l *Ledger) ReloadRoster() error {
	users, err := LoadRoster(l.rosterPath, l.logger)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.users = users
	l.mu.Unlock()

	l.logger.Info("roster reloaded", zap.Int("users", len(users)))
	return nil
}

// RosterPath returns the CSV location the ledger reads users from.
func (l *Ledger) RosterPath() string {
	return l.rosterPath
}

// UserInfo returns the quota view of a user.
func (l *Ledger) UserInfo(tag string) (models.UserInfo, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.userInfoLocked(strings.TrimSpace(tag))
}

func (l *Ledger) userInfoLocked(tag string) (models.UserInfo, bool) {
	user, ok := l.users[tag]
	if !ok {
		return models.UserInfo{}, false
	}

	info := models.UserInfo{
		IDTag:    user.IDTag,
		FullName: user.FullName(),
		Plan:     user.Plan,
		QuotaKWh: user.QuotaKWh,
		UsedKWh:  l.usage[tag],
	}
	if user.Plan == models.PlanLimited {
		remaining := 0.0
		if user.QuotaKWh != nil {
			remaining = math.Max(0, *user.QuotaKWh-info.UsedKWh)
		}
		info.RemainingKWh = &remaining
	}
	return info, true
}

// CanStart decides whether tag may begin a new session.
func (l *Ledger) CanStart(tag string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, ok := l.userInfoLocked(strings.TrimSpace(tag))
	switch {
	case !ok:
		return false, ReasonUnknownUser
	case info.Plan == models.PlanUnlimited:
		return true, ReasonUnlimited
	case info.QuotaKWh == nil:
		return false, ReasonNoQuota
	case *info.RemainingKWh <= 0:
		return false, ReasonQuotaReached
	default:
		return true, ReasonWithinQuota
	}
}

// NextSessionID derives an id from the wall clock, bumped past every id already issued
// or open so two starts in the same second never collide.
func (l *Ledger) NextSessionID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.now().Unix()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	for {
		if _, taken := l.sessions[id]; !taken {
			break
		}
		id++
	}
	l.lastID = id
	return id
}

// StartSession opens a session. Any leftover stop-pending state for the id is cleared.
func (l *Ledger) StartSession(ctx context.Context, id int64, tag string, startKWh float64, chargerID string) models.ActiveSession {
	l.mu.Lock()
	defer l.mu.Unlock()

	tag = strings.TrimSpace(tag)
	fullName := tag
	if user, ok := l.users[tag]; ok {
		fullName = user.FullName()
	}

	sess := &models.ActiveSession{
		ID:         id,
		IDTag:      tag,
		FullName:   fullName,
		ChargerID:  chargerID,
		StartMeter: startKWh,
		LastMeter:  startKWh,
		StartTime:  l.now().UTC(),
	}
	l.sessions[id] = sess
	if id > l.lastID {
		l.lastID = id
	}

	l.persistSessionsLocked(ctx)
	l.logger.Info("session started",
		zap.Int64("transaction_id", id),
		zap.String("id_tag", tag),
		zap.String("station_id", chargerID),
		zap.Float64("start_kwh", startKWh))
	return *sess
}

// UpdateUsage accounts a cumulative meter reading against the session's user. It returns
// true exactly once per stop cycle: when a limited user reaches the quota the session is
// marked stop-pending and later readings are ignored until the guard is cleared.
func (l *Ledger) UpdateUsage(ctx context.Context, id int64, meterKWh float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess, ok := l.sessions[id]
	if !ok || sess.StopPending {
		return false
	}

	increment := math.Max(0, meterKWh-sess.LastMeter)
	if meterKWh > sess.LastMeter {
		sess.LastMeter = meterKWh
	}
	l.usage[sess.IDTag] += increment

	l.persistUsageLocked(ctx)
	l.persistSessionsLocked(ctx)

	user, known := l.users[sess.IDTag]
	if !known || user.Plan != models.PlanLimited {
		return false
	}
	quota := 0.0
	if user.QuotaKWh != nil {
		quota = *user.QuotaKWh
	}
	used := l.usage[sess.IDTag]
	if used < quota {
		return false
	}

	sess.StopPending = true
	l.logger.Warn("quota exceeded",
		zap.Int64("transaction_id", id),
		zap.String("id_tag", sess.IDTag),
		zap.Float64("used_kwh", used),
		zap.Float64("quota_kwh", quota))
	return true
}

// EndSession closes a session. The final reading only moves the watermark; usage was
// already accounted by UpdateUsage.
func (l *Ledger) EndSession(ctx context.Context, id int64, finalKWh float64) (models.ActiveSession, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess, ok := l.sessions[id]
	if !ok {
		return models.ActiveSession{}, false
	}
	if finalKWh > sess.LastMeter {
		sess.LastMeter = finalKWh
	}
	sess.StopPending = false
	delete(l.sessions, id)

	l.persistSessionsLocked(ctx)
	l.logger.Info("session ended",
		zap.Int64("transaction_id", id),
		zap.String("id_tag", sess.IDTag),
		zap.Float64("delivered_kwh", sess.DeliveredKWh()))
	return *sess, true
}

// ClearStopPending re-arms quota enforcement for a session after a failed stop.
func (l *Ledger) ClearStopPending(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sess, ok := l.sessions[id]; ok {
		sess.StopPending = false
	}
}

// Session returns a copy of an open session.
func (l *Ledger) Session(id int64) (models.ActiveSession, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sess, ok := l.sessions[id]
	if !ok {
		return models.ActiveSession{}, false
	}
	return *sess, true
}

// SessionsOnCharger lists open session ids on chargerID.
func (l *Ledger) SessionsOnCharger(chargerID string) []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]int64, 0, 1)
	for id, sess := range l.sessions {
		if sess.ChargerID == chargerID {
			ids = append(ids, id)
		}
	}
	return ids
}

// ResetMonthlyUsage zeroes every usage total when the stored month marker differs from
// the current month. It reports whether a reset happened.
func (l *Ledger) ResetMonthlyUsage(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.now().Format(monthLayout)
	marker, err := l.store.Get(ctx, storage.DocResetMarker)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		l.logger.Error("read reset marker failed", zap.Error(err))
		return false
	}
	if strings.TrimSpace(string(marker)) == current {
		return false
	}

	for tag := range l.usage {
		l.usage[tag] = 0
	}
	l.persistUsageLocked(ctx)

	if err := storage.Save(ctx, l.store, storage.DocResetMarker, []byte(current)); err != nil {
		l.logger.Error("write reset marker failed", zap.Error(err))
	}
	l.logger.Info("monthly usage reset", zap.String("month", current), zap.String("previous", strings.TrimSpace(string(marker))))
	return true
}

func (l *Ledger) persistUsageLocked(ctx context.Context) {
	if err := storage.SaveJSON(ctx, l.store, storage.DocUsage, l.usage); err != nil {
		l.logger.Error("persist usage failed", zap.Error(err))
	}
}

func (l *Ledger) persistSessionsLocked(ctx context.Context) {
	out := make(map[int64]models.ActiveSession, len(l.sessions))
	for id, sess := range l.sessions {
		out[id] = *sess
	}
	if err := storage.SaveJSON(ctx, l.store, storage.DocSessions, out); err != nil {
		l.logger.Error("persist sessions failed", zap.Error(err))
	}
}
