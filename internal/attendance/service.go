package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"classtrack/internal/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownToken       = errors.New("invalid qr code")
	ErrUserNotFound       = errors.New("user not found")
)

// ProfessorStats is the profile stats block for a professor.
type ProfessorStats struct {
	Classes  int `json:"classes"`
	Students int `json:"students"`
}

// StudentStats is the profile stats block for a student.
type StudentStats struct {
	TotalClasses int `json:"total_classes"`
	Present      int `json:"present"`
	Rate         int `json:"rate"`
}

// MarkEvent is published on the queue after a successful attendance mark.
type MarkEvent struct {
	SessionID  int64  `json:"session_id"`
	StudentID  int64  `json:"student_id"`
	CourseName string `json:"course_name"`
}

// Service implements the attendance business rules over the repository.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Login checks credentials and returns the matching user.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GenerateQR creates a session and its QR token. The token concatenates the
// identifying fields with the current time in nanoseconds, making it unique
// per creation instant; it is handed out as an opaque lookup key.
func (s *Service) GenerateQR(ctx context.Context, sessionDate, courseName, courseType string, professorID int64) (int64, string, error) {
	token := fmt.Sprintf("%s-%s-%s-%d-%d", sessionDate, courseName, courseType, professorID, time.Now().UnixNano())
	id, err := s.repo.CreateSession(ctx, Session{
		CourseName:  courseName,
		CourseType:  courseType,
		SessionDate: sessionDate,
		ProfessorID: professorID,
		QRCodeData:  token,
	})
	if err != nil {
		return 0, "", err
	}
	return id, token, nil
}

// MarkAttendance records a student as present at the session identified by
// the QR token. Returns the session so callers can publish events about it.
func (s *Service) MarkAttendance(ctx context.Context, token string, studentID int64) (*Session, error) {
	session, err := s.repo.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrUnknownToken
	}
	if err := s.repo.CreateAttendance(ctx, session.ID, studentID, "present"); err != nil {
		return nil, err
	}
	return session, nil
}

// StudentHistory lists a student's attendance records. Never nil on success.
func (s *Service) StudentHistory(ctx context.Context, studentID int64) ([]HistoryEntry, error) {
	entries, err := s.repo.StudentHistory(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return entries, nil
}

// ProfessorSummary lists per-session attendance roll-ups for a professor
// with the attendance rate filled in. Never nil on success.
func (s *Service) ProfessorSummary(ctx context.Context, professorID int64) ([]SessionSummary, error) {
	summaries, err := s.repo.ProfessorSummary(ctx, professorID)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		summaries[i].Rate = rate(summaries[i].Present, summaries[i].Total)
	}
	if summaries == nil {
		summaries = []SessionSummary{}
	}
	return summaries, nil
}

// Profile returns a user's identity fields plus role-specific stats.
func (s *Service) Profile(ctx context.Context, userID int64) (*User, any, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}

	if user.Role == "professor" {
		classes, students, err := s.repo.ProfessorStats(ctx, userID)
		if err != nil {
			return nil, nil, err
		}
		return user, ProfessorStats{Classes: classes, Students: students}, nil
	}

	total, present, err := s.repo.StudentStats(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return user, StudentStats{TotalClasses: total, Present: present, Rate: rate(present, total)}, nil
}

func rate(present, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(present) / float64(total) * 100))
}
