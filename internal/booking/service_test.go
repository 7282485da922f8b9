package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"tablebook/internal/apperr"
	"tablebook/internal/jobs"
	"tablebook/internal/model"
	"tablebook/internal/timeslot"
)

// fakeTx satisfies pgx.Tx for the methods the service touches. Begin hands
// out a child fakeTx the way pgx hands out a savepoint.
type fakeTx struct {
	pgx.Tx
	committed bool
}

func (t *fakeTx) Commit(ctx context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{}, nil
}

type fakeBookingStore struct {
	byID          map[string]model.Booking
	upcoming      []model.Booking
	conflict      bool
	lastExcludeID string
	created       *model.Booking
	canceledID    string
	updatedID     string
	lastTx        *fakeTx
}

func (s *fakeBookingStore) Begin(ctx context.Context) (pgx.Tx, error) {
	s.lastTx = &fakeTx{}
	return s.lastTx, nil
}

func (s *fakeBookingStore) CreateTx(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	b.CreatedAt = time.Now()
	s.created = b
	return nil
}

func (s *fakeBookingStore) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (model.Booking, error) {
	b, ok := s.byID[id]
	if !ok {
		return model.Booking{}, pgx.ErrNoRows
	}
	return b, nil
}

func (s *fakeBookingStore) HasConflictTx(ctx context.Context, tx pgx.Tx, tableID string, start, end time.Time, excludeID string) (bool, error) {
	s.lastExcludeID = excludeID
	return s.conflict, nil
}

func (s *fakeBookingStore) UpdateTimeTx(ctx context.Context, tx pgx.Tx, id string, start, end time.Time) error {
	s.updatedID = id
	return nil
}

func (s *fakeBookingStore) CancelTx(ctx context.Context, tx pgx.Tx, id string) error {
	s.canceledID = id
	return nil
}

func (s *fakeBookingStore) ListUpcoming(ctx context.Context, userID string, from time.Time) ([]model.Booking, error) {
	if s.upcoming != nil {
		return s.upcoming, nil
	}
	var out []model.Booking
	for _, b := range s.byID {
		// Inclusive lower bound, same as the repository's start_time >= $2.
		if b.UserID == userID && !b.StartTime.Before(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeTableStore struct {
	tables map[string]model.Table
}

func (s *fakeTableStore) GetByID(ctx context.Context, id string) (model.Table, error) {
	t, ok := s.tables[id]
	if !ok {
		return model.Table{}, pgx.ErrNoRows
	}
	return t, nil
}

type fakeUserStore struct{}

func (s *fakeUserStore) GetByID(ctx context.Context, id string) (model.User, error) {
	return model.User{ID: id, Email: "guest@example.com", FullName: "Guest"}, nil
}

type fakeReminderStore struct {
	scheduled   []jobs.Job
	deleted     []string
	scheduleErr error
	deleteErr   error
}

func (s *fakeReminderStore) ScheduleTx(ctx context.Context, tx pgx.Tx, job jobs.Job) error {
	if s.scheduleErr != nil {
		return s.scheduleErr
	}
	s.scheduled = append(s.scheduled, job)
	return nil
}

func (s *fakeReminderStore) DeleteForBookingTx(ctx context.Context, tx pgx.Tx, bookingID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, bookingID)
	return nil
}

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestService(bookings *fakeBookingStore, tables *fakeTableStore, reminders *fakeReminderStore) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(bookings, tables, &fakeUserStore{}, reminders, timeslot.DefaultRules(), logger)
	svc.now = func() time.Time { return testNow }
	return svc
}

func mustDate(t *testing.T, s string) timeslot.Date {
	t.Helper()
	d, err := timeslot.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func mustTime(t *testing.T, s string) timeslot.TimeOfDay {
	t.Helper()
	tod, err := timeslot.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return tod
}

func TestCreateHappyPath(t *testing.T) {
	bookings := &fakeBookingStore{}
	tables := &fakeTableStore{tables: map[string]model.Table{"t1": {ID: "t1", Name: "Window", Seats: 4}}}
	reminders := &fakeReminderStore{}
	svc := newTestService(bookings, tables, reminders)

	b, err := svc.Create(context.Background(), "u1", "t1", mustDate(t, "2026-03-05"), mustTime(t, "18:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != model.StatusActive {
		t.Fatalf("status = %v, want active", b.Status)
	}
	wantStart := time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC)
	if !b.StartTime.Equal(wantStart) {
		t.Fatalf("start = %v, want %v", b.StartTime, wantStart)
	}
	if !b.EndTime.Equal(wantStart.Add(2 * time.Hour)) {
		t.Fatalf("end = %v, want %v", b.EndTime, wantStart.Add(2*time.Hour))
	}
	if len(reminders.scheduled) != 1 {
		t.Fatalf("scheduled %d reminders, want 1", len(reminders.scheduled))
	}
	wantRemind := wantStart.Add(-ReminderLeadTime)
	if !reminders.scheduled[0].RemindAt.Equal(wantRemind) {
		t.Fatalf("remind_at = %v, want %v", reminders.scheduled[0].RemindAt, wantRemind)
	}
}

func TestCreateRejectsConflict(t *testing.T) {
	bookings := &fakeBookingStore{conflict: true}
	tables := &fakeTableStore{tables: map[string]model.Table{"t1": {ID: "t1"}}}
	svc := newTestService(bookings, tables, &fakeReminderStore{})

	_, err := svc.Create(context.Background(), "u1", "t1", mustDate(t, "2026-03-05"), mustTime(t, "18:00"))
	if apperr.KindOf(err) != apperr.KindBusinessRule {
		t.Fatalf("err = %v, want business rule", err)
	}
	if err.Error() != "Table is not available for the selected time" {
		t.Fatalf("message = %q", err.Error())
	}
	if bookings.created != nil {
		t.Fatal("booking was created despite conflict")
	}
}

func TestCreateUnknownTable(t *testing.T) {
	svc := newTestService(&fakeBookingStore{}, &fakeTableStore{tables: map[string]model.Table{}}, &fakeReminderStore{})

	_, err := svc.Create(context.Background(), "u1", "nope", mustDate(t, "2026-03-05"), mustTime(t, "18:00"))
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestCreateSkipsReminderForNearStart(t *testing.T) {
	bookings := &fakeBookingStore{}
	tables := &fakeTableStore{tables: map[string]model.Table{"t1": {ID: "t1"}}}
	reminders := &fakeReminderStore{}
	svc := newTestService(bookings, tables, reminders)

	// Starts ten hours from now, inside the reminder lead time.
	_, err := svc.Create(context.Background(), "u1", "t1", mustDate(t, "2026-03-02"), mustTime(t, "19:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(reminders.scheduled) != 0 {
		t.Fatalf("scheduled %d reminders, want none", len(reminders.scheduled))
	}
}

func TestRescheduleExcludesOwnInterval(t *testing.T) {
	existing := model.Booking{
		ID: "b1", TableID: "t1", UserID: "u1",
		StartTime: time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 5, 20, 0, 0, 0, time.UTC),
		Status:    model.StatusActive,
	}
	bookings := &fakeBookingStore{byID: map[string]model.Booking{"b1": existing}}
	reminders := &fakeReminderStore{}
	svc := newTestService(bookings, &fakeTableStore{}, reminders)

	b, err := svc.Reschedule(context.Background(), "b1", "u1", mustDate(t, "2026-03-05"), mustTime(t, "19:00"))
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if bookings.lastExcludeID != "b1" {
		t.Fatalf("excludeID = %q, want b1", bookings.lastExcludeID)
	}
	if bookings.updatedID != "b1" {
		t.Fatalf("updatedID = %q, want b1", bookings.updatedID)
	}
	want := time.Date(2026, 3, 5, 19, 0, 0, 0, time.UTC)
	if !b.StartTime.Equal(want) {
		t.Fatalf("start = %v, want %v", b.StartTime, want)
	}
	if len(reminders.deleted) != 1 || reminders.deleted[0] != "b1" {
		t.Fatalf("deleted reminders = %v, want [b1]", reminders.deleted)
	}
	if len(reminders.scheduled) != 1 {
		t.Fatalf("scheduled %d reminders, want 1", len(reminders.scheduled))
	}
}

func TestRescheduleForbiddenForOtherUser(t *testing.T) {
	existing := model.Booking{
		ID: "b1", TableID: "t1", UserID: "owner",
		StartTime: time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC),
		Status:    model.StatusActive,
	}
	bookings := &fakeBookingStore{byID: map[string]model.Booking{"b1": existing}}
	svc := newTestService(bookings, &fakeTableStore{}, &fakeReminderStore{})

	_, err := svc.Reschedule(context.Background(), "b1", "intruder", mustDate(t, "2026-03-05"), mustTime(t, "19:00"))
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestRescheduleRejectsCanceled(t *testing.T) {
	existing := model.Booking{
		ID: "b1", TableID: "t1", UserID: "u1",
		StartTime: time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC),
		Status:    model.StatusCanceled,
	}
	bookings := &fakeBookingStore{byID: map[string]model.Booking{"b1": existing}}
	svc := newTestService(bookings, &fakeTableStore{}, &fakeReminderStore{})

	_, err := svc.Reschedule(context.Background(), "b1", "u1", mustDate(t, "2026-03-05"), mustTime(t, "19:00"))
	if apperr.KindOf(err) != apperr.KindBusinessRule {
		t.Fatalf("err = %v, want business rule", err)
	}
}

func TestCancelCutoff(t *testing.T) {
	soon := model.Booking{
		ID: "b1", UserID: "u1", Status: model.StatusActive,
		StartTime: testNow.Add(30 * time.Minute),
	}
	bookings := &fakeBookingStore{byID: map[string]model.Booking{"b1": soon}}
	svc := newTestService(bookings, &fakeTableStore{}, &fakeReminderStore{})

	err := svc.Cancel(context.Background(), "b1", "u1")
	if apperr.KindOf(err) != apperr.KindBusinessRule {
		t.Fatalf("err = %v, want business rule", err)
	}
	if err.Error() != "Booking cannot be canceled less than 1 hour before start" {
		t.Fatalf("message = %q", err.Error())
	}
	if bookings.canceledID != "" {
		t.Fatal("booking was canceled inside the cutoff")
	}
}

func TestCancelHappyPath(t *testing.T) {
	later := model.Booking{
		ID: "b1", UserID: "u1", Status: model.StatusActive,
		StartTime: testNow.Add(2 * time.Hour),
	}
	bookings := &fakeBookingStore{byID: map[string]model.Booking{"b1": later}}
	reminders := &fakeReminderStore{}
	svc := newTestService(bookings, &fakeTableStore{}, reminders)

	if err := svc.Cancel(context.Background(), "b1", "u1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if bookings.canceledID != "b1" {
		t.Fatalf("canceledID = %q, want b1", bookings.canceledID)
	}
	if len(reminders.deleted) != 1 {
		t.Fatalf("deleted reminders = %v, want one entry", reminders.deleted)
	}
}

func TestCancelAlreadyCanceledIsNoop(t *testing.T) {
	gone := model.Booking{
		ID: "b1", UserID: "u1", Status: model.StatusCanceled,
		StartTime: testNow.Add(30 * time.Minute),
	}
	bookings := &fakeBookingStore{byID: map[string]model.Booking{"b1": gone}}
	svc := newTestService(bookings, &fakeTableStore{}, &fakeReminderStore{})

	if err := svc.Cancel(context.Background(), "b1", "u1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if bookings.canceledID != "" {
		t.Fatal("cancel was re-applied to a canceled booking")
	}
}

func TestCancelForbiddenForOtherUser(t *testing.T) {
	b := model.Booking{
		ID: "b1", UserID: "owner", Status: model.StatusActive,
		StartTime: testNow.Add(2 * time.Hour),
	}
	bookings := &fakeBookingStore{byID: map[string]model.Booking{"b1": b}}
	svc := newTestService(bookings, &fakeTableStore{}, &fakeReminderStore{})

	err := svc.Cancel(context.Background(), "b1", "intruder")
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestCreateSurvivesReminderScheduleFailure(t *testing.T) {
	bookings := &fakeBookingStore{}
	tables := &fakeTableStore{tables: map[string]model.Table{"t1": {ID: "t1"}}}
	reminders := &fakeReminderStore{scheduleErr: errors.New("reminder insert failed")}
	svc := newTestService(bookings, tables, reminders)

	b, err := svc.Create(context.Background(), "u1", "t1", mustDate(t, "2026-03-05"), mustTime(t, "18:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if bookings.created == nil || bookings.created.ID != b.ID {
		t.Fatal("booking was not created")
	}
	if !bookings.lastTx.committed {
		t.Fatal("booking transaction was not committed")
	}
}

func TestCancelSurvivesReminderDeleteFailure(t *testing.T) {
	later := model.Booking{
		ID: "b1", UserID: "u1", Status: model.StatusActive,
		StartTime: testNow.Add(2 * time.Hour),
	}
	bookings := &fakeBookingStore{byID: map[string]model.Booking{"b1": later}}
	reminders := &fakeReminderStore{deleteErr: errors.New("reminder delete failed")}
	svc := newTestService(bookings, &fakeTableStore{}, reminders)

	if err := svc.Cancel(context.Background(), "b1", "u1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if bookings.canceledID != "b1" {
		t.Fatalf("canceledID = %q, want b1", bookings.canceledID)
	}
	if !bookings.lastTx.committed {
		t.Fatal("cancel transaction was not committed")
	}
}

func TestListUpcomingDropsCanceledAndPast(t *testing.T) {
	keep := model.Booking{
		ID: "b1", UserID: "u1", Status: model.StatusActive,
		StartTime: testNow.Add(48 * time.Hour),
	}
	bookings := &fakeBookingStore{upcoming: []model.Booking{
		keep,
		{ID: "b2", UserID: "u1", Status: model.StatusCanceled, StartTime: testNow.Add(48 * time.Hour)},
		{ID: "b3", UserID: "u1", Status: model.StatusActive, StartTime: testNow.Add(-time.Hour)},
	}}
	svc := newTestService(bookings, &fakeTableStore{}, &fakeReminderStore{})

	got, err := svc.ListUpcoming(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != keep.ID {
		t.Fatalf("got %v, want only %s", got, keep.ID)
	}
}

func TestListUpcomingKeepsBookingStartingNow(t *testing.T) {
	starting := model.Booking{
		ID: "b1", UserID: "u1", Status: model.StatusActive,
		StartTime: testNow,
	}
	bookings := &fakeBookingStore{byID: map[string]model.Booking{"b1": starting}}
	svc := newTestService(bookings, &fakeTableStore{}, &fakeReminderStore{})

	got, err := svc.ListUpcoming(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d bookings, want 1", len(got))
	}
}
