package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Logins counts login attempts by result (success, failure).
	Logins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classtrack_logins_total",
		Help: "Login attempts by result.",
	}, []string{"result"})

	// SessionsCreated counts generated session QR codes.
	SessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_sessions_created_total",
		Help: "Sessions created via QR generation.",
	})

	// AttendanceMarked counts successful attendance marks.
	AttendanceMarked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_attendance_marked_total",
		Help: "Attendance marks recorded.",
	})
)

func init() {
	prometheus.MustRegister(Logins, SessionsCreated, AttendanceMarked)
}
