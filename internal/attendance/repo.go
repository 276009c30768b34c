package attendance

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Sentinel errors surfaced by the repository and mapped to HTTP codes by
// the handler layer.
var (
	ErrDuplicateSession    = errors.New("session already exists")
	ErrDuplicateAttendance = errors.New("attendance already marked")
)

// User is an identity record. Rows are created by seeding only.
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	FullName     string `json:"full_name"`
	UserID       string `json:"user_id"`
	PasswordHash string `json:"-"`
}

// Session is one class meeting for which attendance can be collected.
type Session struct {
	ID          int64  `json:"id"`
	CourseName  string `json:"course_name"`
	CourseType  string `json:"course_type"`
	SessionDate string `json:"session_date"`
	ProfessorID int64  `json:"professor_id"`
	QRCodeData  string `json:"qr_code_data"`
}

// HistoryEntry is one row of a student's attendance history.
type HistoryEntry struct {
	CourseName  string `json:"course_name"`
	CourseType  string `json:"course_type"`
	SessionDate string `json:"session_date"`
	Status      string `json:"status"`
	Professor   string `json:"professor"`
}

// SessionSummary is one row of a professor's per-session roll-up. Rate is
// filled in by the service.
type SessionSummary struct {
	SessionID   int64  `json:"session_id"`
	CourseName  string `json:"course_name"`
	CourseType  string `json:"course_type"`
	SessionDate string `json:"session_date"`
	Present     int    `json:"present"`
	Total       int    `json:"total"`
	Rate        int    `json:"rate"`
}

// Repository persists users, sessions and attendance marks. Queries use $N
// placeholders, accepted by both the pgx and sqlite3 drivers.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetUserByEmail returns the user with the given email, or nil.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, password, role, full_name, user_id
		FROM users WHERE email = $1
	`, email)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.FullName, &u.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns the user with the given id, or nil.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, password, role, full_name, user_id
		FROM users WHERE id = $1
	`, id)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.FullName, &u.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// CreateSession inserts a session and returns its id. The unique constraint
// on (course_name, course_type, session_date, professor_id) turns a
// duplicate into ErrDuplicateSession without a separate existence check.
func (r *Repository) CreateSession(ctx context.Context, s Session) (int64, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (course_name, course_type, session_date, professor_id, qr_code_data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, s.CourseName, s.CourseType, s.SessionDate, s.ProfessorID, s.QRCodeData)
	var id int64
	if err := row.Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateSession
		}
		return 0, err
	}
	return id, nil
}

// GetSessionByToken returns the session matching a QR token, or nil. The
// token is an opaque equality-matched key; it is never decoded.
func (r *Repository) GetSessionByToken(ctx context.Context, token string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, course_name, course_type, session_date, professor_id, qr_code_data
		FROM sessions WHERE qr_code_data = $1
	`, token)
	var s Session
	if err := row.Scan(&s.ID, &s.CourseName, &s.CourseType, &s.SessionDate, &s.ProfessorID, &s.QRCodeData); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// CreateAttendance inserts one mark. The unique constraint on
// (session_id, student_id) turns a repeat mark into ErrDuplicateAttendance.
func (r *Repository) CreateAttendance(ctx context.Context, sessionID, studentID int64, status string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (session_id, student_id, status)
		VALUES ($1, $2, $3)
	`, sessionID, studentID, status)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateAttendance
	}
	return err
}

// CountAttendance returns the number of marks for a (session, student) pair.
func (r *Repository) CountAttendance(ctx context.Context, sessionID, studentID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID).Scan(&n)
	return n, err
}

// CountSessionMarks returns the number of marks recorded for a session.
func (r *Repository) CountSessionMarks(ctx context.Context, sessionID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance WHERE session_id = $1
	`, sessionID).Scan(&n)
	return n, err
}

// StudentHistory lists a student's marks joined with session and professor
// details, newest session first by insertion order.
func (r *Repository) StudentHistory(ctx context.Context, studentID int64) ([]HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.course_name, s.course_type, s.session_date, a.status, u.full_name
		FROM attendance a
		JOIN sessions s ON a.session_id = s.id
		JOIN users u ON s.professor_id = u.id
		WHERE a.student_id = $1
		ORDER BY a.id
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.CourseName, &e.CourseType, &e.SessionDate, &e.Status, &e.Professor); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ProfessorSummary aggregates marks per session owned by a professor. The
// LEFT JOIN keeps sessions with no marks in the result with zero counts.
func (r *Repository) ProfessorSummary(ctx context.Context, professorID int64) ([]SessionSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.course_name, s.course_type, s.session_date,
			COUNT(CASE WHEN a.status = 'present' THEN 1 END),
			COUNT(a.id)
		FROM sessions s
		LEFT JOIN attendance a ON s.id = a.session_id
		WHERE s.professor_id = $1
		GROUP BY s.id, s.course_name, s.course_type, s.session_date
		ORDER BY s.id
	`, professorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.SessionID, &s.CourseName, &s.CourseType, &s.SessionDate, &s.Present, &s.Total); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// ProfessorStats counts distinct owned sessions and distinct students seen
// across them.
func (r *Repository) ProfessorStats(ctx context.Context, professorID int64) (classes, students int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT s.id), COUNT(DISTINCT a.student_id)
		FROM sessions s
		LEFT JOIN attendance a ON s.id = a.session_id
		WHERE s.professor_id = $1
	`, professorID).Scan(&classes, &students)
	return classes, students, err
}

// StudentStats counts a student's total marks and present marks.
func (r *Repository) StudentStats(ctx context.Context, studentID int64) (total, present int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(CASE WHEN status = 'present' THEN 1 END)
		FROM attendance WHERE student_id = $1
	`, studentID).Scan(&total, &present)
	return total, present, err
}

// isUniqueViolation reports whether err is a unique-constraint violation
// from either backend (Postgres 23505, SQLite constraint-unique).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
