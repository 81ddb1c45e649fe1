package models

import "time"

// Audit actions written by the API and the back-office.
const (
	AuditActionLogin        = "LOGIN"
	AuditActionLogout       = "LOGOUT"
	AuditActionEnroll       = "ENROLL"
	AuditActionDrop         = "DROP"
	AuditActionGradeSet     = "GRADE_SET"
	AuditActionCreate       = "CREATE"
	AuditActionUpdate       = "UPDATE"
	AuditActionDelete       = "DELETE"
	AuditActionPasswordSet  = "PASSWORD_SET"
	AuditActionExport       = "EXPORT"
	AuditResourceSession    = "session"
	AuditResourceEnrollment = "enrollment"
	AuditResourceGrade      = "grade"
	AuditResourceUser       = "user"
	AuditResourceCourse     = "course"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *int64    `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Details    *string   `db:"details" json:"details,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditEntry is what callers hand to the audit writer.
type AuditEntry struct {
	UserID     *int64
	Action     string
	Resource   string
	ResourceID string
	Details    map[string]interface{}
	IPAddress  string
	UserAgent  string
}

// DashboardStats backs the back-office index page.
type DashboardStats struct {
	Users       int
	Students    int
	Teachers    int
	Courses     int
	Enrollments int
	Grades      int
	RecentAudit []AuditLog
}
