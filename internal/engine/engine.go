// Package engine holds the server-side business rules of the campus activity
// API: signup validation, the status-change cascade, and class member-count
// maintenance.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"campusline/internal/domain"
	"campusline/internal/repo"
)

type Engine struct {
	DB   *sql.DB
	Repo repo.Repo
	Now  func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:   db,
		Repo: repo.Repo{DB: db},
		Now:  time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ActivityCreateOptions are parameters for creating an activity.
type ActivityCreateOptions struct {
	Name        string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	SignupStart time.Time
	SignupEnd   time.Time
	LeaderID    string
	Budget      float64
	Status      string
	MaxPeople   int
}

func (e Engine) CreateActivity(ctx context.Context, opts ActivityCreateOptions) (domain.Activity, error) {
	if opts.Name == "" {
		return domain.Activity{}, errors.New("name is required")
	}
	if opts.Status == "" {
		opts.Status = domain.StatusPending
	}
	if !domain.KnownStatus(opts.Status) {
		return domain.Activity{}, fmt.Errorf("unknown activity status %q", opts.Status)
	}
	if opts.EndTime.Before(opts.StartTime) {
		return domain.Activity{}, errors.New("activity end time before start time")
	}
	if opts.SignupEnd.Before(opts.SignupStart) {
		return domain.Activity{}, errors.New("signup window closes before it opens")
	}
	if opts.Budget < 0 {
		return domain.Activity{}, errors.New("budget must not be negative")
	}
	if opts.MaxPeople <= 0 {
		return domain.Activity{}, errors.New("maxPeople must be positive")
	}
	a := domain.Activity{
		Name:        opts.Name,
		Description: opts.Description,
		Location:    opts.Location,
		StartTime:   opts.StartTime,
		EndTime:     opts.EndTime,
		SignupStart: opts.SignupStart,
		SignupEnd:   opts.SignupEnd,
		LeaderID:    opts.LeaderID,
		Budget:      opts.Budget,
		Status:      opts.Status,
		MaxPeople:   opts.MaxPeople,
	}
	id, err := e.Repo.InsertActivity(ctx, a)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	a.ActivityID = id
	return a, nil
}

func (e Engine) DeleteActivity(ctx context.Context, id int64) error {
	return e.Repo.DeleteActivity(ctx, id)
}

func (e Engine) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	return e.Repo.ListActivities(ctx)
}

// ChangeActivityStatus moves an activity to status. Cancelling cascades the
// cancellation to every signup of the activity in the same transaction.
func (e Engine) ChangeActivityStatus(ctx context.Context, id int64, status string) error {
	if !domain.KnownStatus(status) {
		return fmt.Errorf("unknown activity status %q", status)
	}
	if _, err := e.Repo.GetActivity(ctx, id); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateActivityStatusTx(ctx, tx, id, status); err != nil {
		return err
	}
	if status == domain.StatusCancelled {
		if err := e.Repo.CascadeSignupStatusTx(ctx, tx, id, domain.StatusCancelled); err != nil {
			return fmt.Errorf("cascade signup status: %w", err)
		}
	}
	return tx.Commit()
}

// SignUp validates and records a signup: the activity must exist and be
// active, must not have ended, must be under capacity, and the user must not
// already be signed up.
func (e Engine) SignUp(ctx context.Context, activityID int64, userID string) (domain.Signup, error) {
	if userID == "" {
		return domain.Signup{}, errors.New("userId is required")
	}
	a, err := e.Repo.GetActivity(ctx, activityID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Signup{}, errors.New("对应的活动不存在")
		}
		return domain.Signup{}, err
	}
	if a.Status != domain.StatusActive {
		return domain.Signup{}, errors.New("该活动未处于可报名状态，无法新增报名")
	}
	if e.now().After(a.EndTime) {
		return domain.Signup{}, errors.New("该活动已结束，无法新增报名")
	}
	count, err := e.Repo.CountSignupsByActivity(ctx, activityID)
	if err != nil {
		return domain.Signup{}, fmt.Errorf("count signups: %w", err)
	}
	if count >= int64(a.MaxPeople) {
		return domain.Signup{}, fmt.Errorf("该活动已报满（最大可报名人数：%d，当前已报名人数：%d）", a.MaxPeople, count)
	}
	if _, err := e.Repo.GetSignup(ctx, activityID, userID); err == nil {
		return domain.Signup{}, errors.New("用户已报名该活动")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Signup{}, err
	}
	s := domain.Signup{
		ActivityID: activityID,
		UserID:     userID,
		Status:     domain.SignupStatusSigned,
		SignupTime: e.now().UTC(),
	}
	id, err := e.Repo.InsertSignup(ctx, s)
	if err != nil {
		return domain.Signup{}, fmt.Errorf("insert signup: %w", err)
	}
	s.ID = id
	return s, nil
}

func (e Engine) CancelSignUp(ctx context.Context, activityID int64, userID string) error {
	return e.Repo.DeleteSignup(ctx, activityID, userID)
}

func (e Engine) ListSignups(ctx context.Context) ([]domain.Signup, error) {
	return e.Repo.ListSignups(ctx)
}

// RegisterOptions are parameters for registering a user.
type RegisterOptions struct {
	UserID    string
	SchoolNum string
	Name      string
	Password  string
	Phone     string
	Email     string
	Role      string
	ClassID   string
}

// Register creates a user and bumps the class member count in one
// transaction. The id is generated when the request omits one.
func (e Engine) Register(ctx context.Context, opts RegisterOptions) (domain.User, error) {
	if opts.Name == "" {
		return domain.User{}, errors.New("name is required")
	}
	if opts.UserID == "" {
		opts.UserID = uuid.New().String()
	}
	if _, err := e.Repo.GetUser(ctx, opts.UserID); err == nil {
		return domain.User{}, errors.New("用户已存在")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	u := domain.User{
		UserID:     opts.UserID,
		SchoolNum:  opts.SchoolNum,
		Name:       opts.Name,
		Phone:      opts.Phone,
		Email:      opts.Email,
		Status:     1,
		Role:       opts.Role,
		ClassID:    opts.ClassID,
		CreateTime: e.now().UTC(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUserTx(ctx, tx, u, opts.Password); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := e.Repo.AdjustClassMembersTx(ctx, tx, u.ClassID, 1); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) DeleteUser(ctx context.Context, userID string) error {
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteUserTx(ctx, tx, userID); err != nil {
		return err
	}
	if err := e.Repo.AdjustClassMembersTx(ctx, tx, u.ClassID, -1); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.Repo.ListUsers(ctx)
}

// UserName resolves a user id to its display name.
func (e Engine) UserName(ctx context.Context, userID string) (string, error) {
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

func (e Engine) ListClasses(ctx context.Context) ([]domain.Class, error) {
	return e.Repo.ListClasses(ctx)
}
