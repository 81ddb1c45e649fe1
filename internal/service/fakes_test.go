package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

type pair struct{ student, course int64 }

// memDB is a shared in-memory store behind the per-table fakes below.
type memDB struct {
	mu          sync.Mutex
	nextID      int64
	users       map[int64]*models.User
	courses     map[int64]*models.Course
	enrollments map[pair]bool
	grades      map[int64]*models.Grade
}

func newMemDB() *memDB {
	return &memDB{
		users:       make(map[int64]*models.User),
		courses:     make(map[int64]*models.Course),
		enrollments: make(map[pair]bool),
		grades:      make(map[int64]*models.Grade),
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) addUser(username string, role models.UserRole) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	hash, _ := HashPassword(username + "-pw")
	u := &models.User{ID: db.id(), Username: username, PasswordHash: hash, Role: role}
	db.users[u.ID] = u
	return u
}

func (db *memDB) addCourse(name string, capacity int, teacherID int64) *models.Course {
	db.mu.Lock()
	defer db.mu.Unlock()
	c := &models.Course{ID: db.id(), Name: name, Capacity: capacity, Timeslot: "MW 10:00", TeacherID: teacherID}
	db.courses[c.ID] = c
	return c
}

func (db *memDB) gradeFor(student, course int64) *models.Grade {
	for _, g := range db.grades {
		if g.StudentID == student && g.CourseID == course {
			return g
		}
	}
	return nil
}

func (db *memDB) detail(c *models.Course) models.CourseDetail {
	name := models.UnknownTeacher
	if t, ok := db.users[c.TeacherID]; ok {
		name = t.Username
	}
	count := 0
	for p := range db.enrollments {
		if p.course == c.ID {
			count++
		}
	}
	return models.CourseDetail{
		ID: c.ID, Name: c.Name, Description: c.Description, Capacity: c.Capacity,
		Timeslot: c.Timeslot, TeacherID: c.TeacherID, TeacherName: name, EnrolledCount: count,
	}
}

func (db *memDB) sortedCourses() []*models.Course {
	out := make([]*models.Course, 0, len(db.courses))
	for _, c := range db.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memUsers struct{ db *memDB }

func (r memUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memUsers) FindByID(ctx context.Context, id int64) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if u, ok := r.db.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (r memUsers) List(ctx context.Context, role *models.UserRole) ([]models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.User, 0)
	for _, u := range r.db.users {
		if role == nil || u.Role == *role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memUsers) Count(ctx context.Context, role *models.UserRole) (int, error) {
	users, _ := r.List(ctx, role)
	return len(users), nil
}

func (r memUsers) Create(ctx context.Context, user *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Username == user.Username {
			return repository.ErrUniqueViolation
		}
	}
	user.ID = r.db.id()
	cp := *user
	r.db.users[user.ID] = &cp
	return nil
}

func (r memUsers) Upsert(ctx context.Context, user *models.User) error {
	r.db.mu.Lock()
	for _, u := range r.db.users {
		if u.Username == user.Username {
			u.PasswordHash = user.PasswordHash
			u.Role = user.Role
			user.ID = u.ID
			r.db.mu.Unlock()
			return nil
		}
	}
	r.db.mu.Unlock()
	return r.Create(ctx, user)
}

func (r memUsers) Update(ctx context.Context, id int64, mutate func(*models.User) error) (*models.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	for _, other := range r.db.users {
		if other.ID != id && other.Username == cp.Username {
			return nil, repository.ErrUniqueViolation
		}
	}
	r.db.users[id] = &cp
	return &cp, nil
}

func (r memUsers) UpdatePassword(ctx context.Context, id int64, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = hash
	return nil
}

func (r memUsers) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[id]; !ok {
		return sql.ErrNoRows
	}
	for _, c := range r.db.courses {
		if c.TeacherID == id {
			return repository.ErrForeignKeyViolation
		}
	}
	delete(r.db.users, id)
	for p := range r.db.enrollments {
		if p.student == id {
			delete(r.db.enrollments, p)
		}
	}
	for gid, g := range r.db.grades {
		if g.StudentID == id {
			delete(r.db.grades, gid)
		}
	}
	return nil
}

type memCourses struct{ db *memDB }

func (r memCourses) List(ctx context.Context) ([]models.CourseDetail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.CourseDetail, 0)
	for _, c := range r.db.sortedCourses() {
		out = append(out, r.db.detail(c))
	}
	return out, nil
}

func (r memCourses) ListByTeacher(ctx context.Context, teacherID int64) ([]models.CourseDetail, error) {
	all, _ := r.List(ctx)
	out := make([]models.CourseDetail, 0)
	for _, c := range all {
		if c.TeacherID == teacherID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r memCourses) ListForStudent(ctx context.Context, studentID int64) ([]models.StudentCourse, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.StudentCourse, 0)
	for _, c := range r.db.sortedCourses() {
		item := models.StudentCourse{CourseDetail: r.db.detail(c)}
		if r.db.enrollments[pair{studentID, c.ID}] {
			item.Enrolled = true
			if g := r.db.gradeFor(studentID, c.ID); g != nil {
				v := g.Value
				item.Grade = &v
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (r memCourses) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if c, ok := r.db.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (r memCourses) Count(ctx context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.courses), nil
}

func (r memCourses) Create(ctx context.Context, course *models.Course) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	course.ID = r.db.id()
	cp := *course
	r.db.courses[course.ID] = &cp
	return nil
}

func (r memCourses) Update(ctx context.Context, id int64, mutate func(*models.Course) error) (*models.Course, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	r.db.courses[id] = &cp
	return &cp, nil
}

func (r memCourses) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.db.courses, id)
	for p := range r.db.enrollments {
		if p.course == id {
			delete(r.db.enrollments, p)
		}
	}
	for gid, g := range r.db.grades {
		if g.CourseID == id {
			delete(r.db.grades, gid)
		}
	}
	return nil
}

type memEnrollments struct{ db *memDB }

func (r memEnrollments) Enroll(ctx context.Context, studentID, courseID int64) (models.EnrollOutcome, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.courses[courseID]
	if !ok {
		return models.EnrollCourseMissing, nil
	}
	if r.db.enrollments[pair{studentID, courseID}] {
		return models.EnrollAlreadyEnrolled, nil
	}
	if r.db.detail(c).Full() {
		return models.EnrollCourseFull, nil
	}
	r.db.enrollments[pair{studentID, courseID}] = true
	return models.EnrollOK, nil
}

func (r memEnrollments) Drop(ctx context.Context, studentID, courseID int64) (models.DropOutcome, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.courses[courseID]; !ok {
		return models.DropCourseMissing, nil
	}
	if !r.db.enrollments[pair{studentID, courseID}] {
		return models.DropNotEnrolled, nil
	}
	delete(r.db.enrollments, pair{studentID, courseID})
	if g := r.db.gradeFor(studentID, courseID); g != nil {
		delete(r.db.grades, g.ID)
	}
	return models.DropOK, nil
}

func (r memEnrollments) Roster(ctx context.Context, courseID int64) ([]models.RosterEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.RosterEntry, 0)
	for p := range r.db.enrollments {
		if p.course != courseID {
			continue
		}
		u := r.db.users[p.student]
		entry := models.RosterEntry{ID: u.ID, Username: u.Username, Role: u.Role}
		if g := r.db.gradeFor(p.student, courseID); g != nil {
			v := g.Value
			entry.Grade = &v
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r memEnrollments) Count(ctx context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.enrollments), nil
}

func (r memEnrollments) Add(ctx context.Context, studentID, courseID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.enrollments[pair{studentID, courseID}] = true
	return nil
}

type memGrades struct{ db *memDB }

func (r memGrades) UpsertForEnrolled(ctx context.Context, studentID, courseID int64, value float64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if !r.db.enrollments[pair{studentID, courseID}] {
		return 0, sql.ErrNoRows
	}
	if g := r.db.gradeFor(studentID, courseID); g != nil {
		g.Value = value
		return g.ID, nil
	}
	g := &models.Grade{ID: r.db.id(), StudentID: studentID, CourseID: courseID, Value: value}
	r.db.grades[g.ID] = g
	return g.ID, nil
}

func (r memGrades) List(ctx context.Context) ([]models.GradeDetail, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.GradeDetail, 0)
	for _, g := range r.db.grades {
		out = append(out, models.GradeDetail{
			ID: g.ID, StudentID: g.StudentID, StudentUsername: r.db.users[g.StudentID].Username,
			CourseID: g.CourseID, CourseName: r.db.courses[g.CourseID].Name, Value: g.Value,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memGrades) FindByID(ctx context.Context, id int64) (*models.Grade, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if g, ok := r.db.grades[id]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (r memGrades) Count(ctx context.Context) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.grades), nil
}

func (r memGrades) Create(ctx context.Context, grade *models.Grade) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.gradeFor(grade.StudentID, grade.CourseID) != nil {
		return repository.ErrUniqueViolation
	}
	grade.ID = r.db.id()
	cp := *grade
	r.db.grades[grade.ID] = &cp
	return nil
}

func (r memGrades) Update(ctx context.Context, id int64, mutate func(*models.Grade) error) (*models.Grade, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	g, ok := r.db.grades[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *g
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	if other := r.db.gradeFor(cp.StudentID, cp.CourseID); other != nil && other.ID != id {
		return nil, repository.ErrUniqueViolation
	}
	r.db.grades[id] = &cp
	return &cp, nil
}

func (r memGrades) Delete(ctx context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.grades[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.db.grades, id)
	return nil
}

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *memCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, pattern)
	c.data = make(map[string][]byte)
	return nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (a *recordingAudit) Record(entry models.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

func sessionFor(u *models.User) *models.Session {
	return &models.Session{
		ID:            "sess-" + u.Username,
		UserID:        u.ID,
		Role:          u.Role,
		AdminLoggedIn: u.Role == models.RoleAdmin,
	}
}

func errCode(err error) string {
	if err == nil {
		return ""
	}
	return appErrors.FromError(err).Code
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
