package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// --- activities ---

const activityColumns = `activity_id,name,description,location,start_time,end_time,signup_start,signup_end,leader_id,budget,status,max_people`

func scanActivity(scan func(dest ...any) error) (domain.Activity, error) {
	var a domain.Activity
	var start, end, signupStart, signupEnd string
	err := scan(&a.ActivityID, &a.Name, &a.Description, &a.Location, &start, &end, &signupStart, &signupEnd, &a.LeaderID, &a.Budget, &a.Status, &a.MaxPeople)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.StartTime = parseTime(start)
	a.EndTime = parseTime(end)
	a.SignupStart = parseTime(signupStart)
	a.SignupEnd = parseTime(signupEnd)
	return a, nil
}

func (r Repo) InsertActivity(ctx context.Context, a domain.Activity) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO activities(name,description,location,start_time,end_time,signup_start,signup_end,leader_id,budget,status,max_people) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.Name, a.Description, a.Location, formatTime(a.StartTime), formatTime(a.EndTime), formatTime(a.SignupStart), formatTime(a.SignupEnd), a.LeaderID, a.Budget, a.Status, a.MaxPeople)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetActivity(ctx context.Context, id int64) (domain.Activity, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id=?`, id)
	return scanActivity(row.Scan)
}

func (r Repo) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+activityColumns+` FROM activities ORDER BY activity_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) DeleteActivity(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM activities WHERE activity_id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateActivityStatusTx(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE activities SET status=? WHERE activity_id=?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CascadeSignupStatusTx rewrites the status of every signup of an activity,
// used when a status change has backend-applied consequences.
func (r Repo) CascadeSignupStatusTx(ctx context.Context, tx *sql.Tx, activityID int64, status string) error {
	_, err := tx.ExecContext(ctx, `UPDATE signups SET status=? WHERE activity_id=?`, status, activityID)
	return err
}

// --- signups ---

const signupColumns = `id,activity_id,user_id,status,signup_time`

func scanSignup(scan func(dest ...any) error) (domain.Signup, error) {
	var s domain.Signup
	var ts string
	err := scan(&s.ID, &s.ActivityID, &s.UserID, &s.Status, &ts)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.SignupTime = parseTime(ts)
	return s, nil
}

func (r Repo) InsertSignup(ctx context.Context, s domain.Signup) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO signups(activity_id,user_id,status,signup_time) VALUES (?,?,?,?)`,
		s.ActivityID, s.UserID, s.Status, formatTime(s.SignupTime))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetSignup(ctx context.Context, activityID int64, userID string) (domain.Signup, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+signupColumns+` FROM signups WHERE activity_id=? AND user_id=?`, activityID, userID)
	return scanSignup(row.Scan)
}

func (r Repo) ListSignups(ctx context.Context) ([]domain.Signup, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+signupColumns+` FROM signups ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Signup
	for rows.Next() {
		s, err := scanSignup(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) CountSignupsByActivity(ctx context.Context, activityID int64) (int64, error) {
	var count int64
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM signups WHERE activity_id=?`, activityID).Scan(&count)
	return count, err
}

func (r Repo) DeleteSignup(ctx context.Context, activityID int64, userID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM signups WHERE activity_id=? AND user_id=?`, activityID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- users ---

const userColumns = `user_id,school_num,name,phone,email,status,role,class_id,create_time`

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var created string
	err := scan(&u.UserID, &u.SchoolNum, &u.Name, &u.Phone, &u.Email, &u.Status, &u.Role, &u.ClassID, &created)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.CreateTime = parseTime(created)
	return u, nil
}

func (r Repo) InsertUserTx(ctx context.Context, tx *sql.Tx, u domain.User, password string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(user_id,school_num,name,password,phone,email,status,role,class_id,create_time) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		u.UserID, u.SchoolNum, u.Name, password, u.Phone, u.Email, u.Status, u.Role, u.ClassID, formatTime(u.CreateTime))
	return err
}

func (r Repo) GetUser(ctx context.Context, userID string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=?`, userID)
	return scanUser(row.Scan)
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY create_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) DeleteUserTx(ctx context.Context, tx *sql.Tx, userID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE user_id=?`, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- classes ---

func (r Repo) InsertClass(ctx context.Context, c domain.Class) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO classes(class_id,class_name,grade,major,counselor_id,member_count) VALUES (?,?,?,?,?,?)`,
		c.ClassID, c.ClassName, c.Grade, c.Major, c.CounselorID, c.MemberCount)
	return err
}

func (r Repo) ListClasses(ctx context.Context) ([]domain.Class, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT class_id,class_name,grade,major,counselor_id,member_count FROM classes ORDER BY class_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Class
	for rows.Next() {
		var c domain.Class
		if err := rows.Scan(&c.ClassID, &c.ClassName, &c.Grade, &c.Major, &c.CounselorID, &c.MemberCount); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// AdjustClassMembersTx shifts a class member count by delta. Unknown or empty
// class ids are ignored; membership bookkeeping never fails a user write.
func (r Repo) AdjustClassMembersTx(ctx context.Context, tx *sql.Tx, classID string, delta int) error {
	if classID == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, `UPDATE classes SET member_count=member_count+? WHERE class_id=?`, delta, classID)
	if err != nil {
		return fmt.Errorf("adjust class %s member count: %w", classID, err)
	}
	return nil
}
