package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"campusline/internal/db"
	"campusline/internal/domain"
	"campusline/internal/migrate"
	"campusline/internal/repo"
)

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatal(err)
	}
	e := New(conn)
	e.Now = func() time.Time { return time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC) }
	return e
}

func activeActivity(t *testing.T, e Engine, maxPeople int) domain.Activity {
	t.Helper()
	a, err := e.CreateActivity(context.Background(), ActivityCreateOptions{
		Name:        "Fall Fest",
		StartTime:   time.Date(2025, 9, 15, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2025, 9, 15, 18, 0, 0, 0, time.UTC),
		SignupStart: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		SignupEnd:   time.Date(2025, 9, 14, 0, 0, 0, 0, time.UTC),
		Status:      domain.StatusActive,
		MaxPeople:   maxPeople,
	})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestCreateActivityDefaultsPending(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.CreateActivity(context.Background(), ActivityCreateOptions{
		Name:        "Hackathon",
		StartTime:   time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC),
		SignupStart: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		SignupEnd:   time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC),
		MaxPeople:   50,
	})
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != domain.StatusPending {
		t.Fatalf("status = %q, want pending", a.Status)
	}
	if a.ActivityID == 0 {
		t.Fatal("expected assigned id")
	}
	got, err := e.Repo.GetActivity(context.Background(), a.ActivityID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Hackathon" || !got.StartTime.Equal(a.StartTime) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCreateActivityValidation(t *testing.T) {
	e := newTestEngine(t)
	base := ActivityCreateOptions{
		Name:        "X",
		StartTime:   time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC),
		SignupStart: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		SignupEnd:   time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC),
		MaxPeople:   10,
	}

	noName := base
	noName.Name = ""
	if _, err := e.CreateActivity(context.Background(), noName); err == nil {
		t.Error("missing name accepted")
	}

	backwards := base
	backwards.EndTime = base.StartTime.Add(-time.Hour)
	if _, err := e.CreateActivity(context.Background(), backwards); err == nil {
		t.Error("end before start accepted")
	}

	badStatus := base
	badStatus.Status = "archived"
	if _, err := e.CreateActivity(context.Background(), badStatus); err == nil {
		t.Error("unknown status accepted")
	}

	noCapacity := base
	noCapacity.MaxPeople = 0
	if _, err := e.CreateActivity(context.Background(), noCapacity); err == nil {
		t.Error("zero capacity accepted")
	}
}

func TestSignUpRules(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.SignUp(ctx, 999, "u1"); err == nil || err.Error() != "对应的活动不存在" {
		t.Fatalf("missing activity: %v", err)
	}

	pending, err := e.CreateActivity(ctx, ActivityCreateOptions{
		Name:        "Pending",
		StartTime:   time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC),
		SignupStart: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		SignupEnd:   time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC),
		MaxPeople:   10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.SignUp(ctx, pending.ActivityID, "u1"); err == nil || !strings.Contains(err.Error(), "未处于可报名状态") {
		t.Fatalf("pending activity: %v", err)
	}

	a := activeActivity(t, e, 2)
	s, err := e.SignUp(ctx, a.ActivityID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != domain.SignupStatusSigned {
		t.Fatalf("signup status = %q", s.Status)
	}

	if _, err := e.SignUp(ctx, a.ActivityID, "u1"); err == nil || err.Error() != "用户已报名该活动" {
		t.Fatalf("duplicate signup: %v", err)
	}

	if _, err := e.SignUp(ctx, a.ActivityID, "u2"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SignUp(ctx, a.ActivityID, "u3"); err == nil || !strings.Contains(err.Error(), "已报满") {
		t.Fatalf("over capacity: %v", err)
	}
}

func TestSignUpAfterActivityEnded(t *testing.T) {
	e := newTestEngine(t)
	a := activeActivity(t, e, 10)
	e.Now = func() time.Time { return a.EndTime.Add(time.Hour) }
	if _, err := e.SignUp(context.Background(), a.ActivityID, "u1"); err == nil || !strings.Contains(err.Error(), "已结束") {
		t.Fatalf("ended activity: %v", err)
	}
}

func TestCancelActivityCascadesSignups(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := activeActivity(t, e, 10)
	if _, err := e.SignUp(ctx, a.ActivityID, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SignUp(ctx, a.ActivityID, "u2"); err != nil {
		t.Fatal(err)
	}

	if err := e.ChangeActivityStatus(ctx, a.ActivityID, domain.StatusCancelled); err != nil {
		t.Fatal(err)
	}
	got, err := e.Repo.GetActivity(ctx, a.ActivityID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("activity status = %q", got.Status)
	}
	signups, err := e.ListSignups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range signups {
		if s.Status != domain.StatusCancelled {
			t.Fatalf("signup %d status = %q, want cancelled", s.ID, s.Status)
		}
	}
}

func TestChangeActivityStatusUnknownActivity(t *testing.T) {
	e := newTestEngine(t)
	err := e.ChangeActivityStatus(context.Background(), 999, domain.StatusActive)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestRegisterMaintainsClassCount(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if err := e.Repo.InsertClass(ctx, domain.Class{ClassID: "c1", ClassName: "CS 2025"}); err != nil {
		t.Fatal(err)
	}

	u, err := e.Register(ctx, RegisterOptions{Name: "Alice", ClassID: "c1", Password: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if u.UserID == "" {
		t.Fatal("expected generated user id")
	}

	classes, err := e.ListClasses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if classes[0].MemberCount != 1 {
		t.Fatalf("member count = %d after register, want 1", classes[0].MemberCount)
	}

	if _, err := e.Register(ctx, RegisterOptions{UserID: u.UserID, Name: "Clone"}); err == nil || err.Error() != "用户已存在" {
		t.Fatalf("duplicate register: %v", err)
	}

	if err := e.DeleteUser(ctx, u.UserID); err != nil {
		t.Fatal(err)
	}
	classes, err = e.ListClasses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if classes[0].MemberCount != 0 {
		t.Fatalf("member count = %d after delete, want 0", classes[0].MemberCount)
	}
}

func TestUserName(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	u, err := e.Register(ctx, RegisterOptions{Name: "Alice"})
	if err != nil {
		t.Fatal(err)
	}
	name, err := e.UserName(ctx, u.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if name != "Alice" {
		t.Fatalf("name = %q", name)
	}
	if _, err := e.UserName(ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("missing user: %v", err)
	}
}

func TestCancelSignUp(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a := activeActivity(t, e, 10)
	if _, err := e.SignUp(ctx, a.ActivityID, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := e.CancelSignUp(ctx, a.ActivityID, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := e.CancelSignUp(ctx, a.ActivityID, "u1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second cancel: %v", err)
	}
	// capacity freed up again
	if _, err := e.SignUp(ctx, a.ActivityID, "u1"); err != nil {
		t.Fatal(err)
	}
}
