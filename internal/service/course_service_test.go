package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

func TestListAllServesFromCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	teacher := f.db.addUser("t", models.RoleTeacher)
	f.db.addCourse("C1", 5, teacher.ID)

	first, hit, err := f.courses.ListAll(ctx, sessionFor(teacher))
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, first, 1)
	assert.Equal(t, "t", first[0].TeacherName)

	f.db.addCourse("C2", 5, teacher.ID)
	cached, hit, err := f.courses.ListAll(ctx, sessionFor(teacher))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, cached, 1)

	_, _, err = f.courses.ListAll(ctx, nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

// interleavedCourses runs during after reading the catalog, before the caller can cache it.
type interleavedCourses struct {
	memCourses
	during func()
}

func (r interleavedCourses) List(ctx context.Context) ([]models.CourseDetail, error) {
	out, err := r.memCourses.List(ctx)
	if r.during != nil {
		r.during()
	}
	return out, err
}

func TestListAllSkipsCachingAfterConcurrentInvalidation(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	cacheRepo := newMemCache()
	cache := NewCacheService(cacheRepo, nil, 0, zap.NewNop(), true)
	teacher := db.addUser("t", models.RoleTeacher)
	student := db.addUser("s", models.RoleStudent)
	course := db.addCourse("C1", 5, teacher.ID)

	repo := interleavedCourses{memCourses: memCourses{db}}
	repo.during = func() {
		db.mu.Lock()
		db.enrollments[pair{student.ID, course.ID}] = true
		db.mu.Unlock()
		cache.InvalidateCourses(ctx)
	}
	svc := NewCourseService(repo, memUsers{db}, cache, nil, nil)

	stale, hit, err := svc.ListAll(ctx, sessionFor(student))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 0, stale[0].EnrolledCount)
	assert.Empty(t, cacheRepo.data)

	svc.repo = memCourses{db}
	fresh, hit, err := svc.ListAll(ctx, sessionFor(student))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, fresh[0].EnrolledCount)

	cached, hit, err := svc.ListAll(ctx, sessionFor(student))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, cached[0].EnrolledCount)
}

func TestListForStudentPartitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	teacher := f.db.addUser("t", models.RoleTeacher)
	student := f.db.addUser("s", models.RoleStudent)
	c1 := f.db.addCourse("C1", 5, teacher.ID)
	c2 := f.db.addCourse("C2", 5, teacher.ID)
	f.db.addCourse("C3", 5, teacher.ID)
	f.db.enrollments[pair{student.ID, c1.ID}] = true
	f.db.enrollments[pair{student.ID, c2.ID}] = true
	_, _ = memGrades{f.db}.UpsertForEnrolled(ctx, student.ID, c1.ID, 91)

	result, err := f.courses.ListForStudent(ctx, sessionFor(student))
	require.NoError(t, err)
	require.Len(t, result.Enrolled, 2)
	require.Len(t, result.Available, 1)
	require.NotNil(t, result.Enrolled[0].Grade)
	assert.Equal(t, 91.0, *result.Enrolled[0].Grade)
	assert.Nil(t, result.Enrolled[1].Grade)
	assert.False(t, result.Available[0].Enrolled)
	assert.Equal(t, "C3", result.Available[0].Name)
}

func TestListForTeacherReturnsOwnedCourses(t *testing.T) {
	f := newFixture()
	t1 := f.db.addUser("t1", models.RoleTeacher)
	t2 := f.db.addUser("t2", models.RoleTeacher)
	f.db.addCourse("A", 5, t1.ID)
	f.db.addCourse("B", 5, t2.ID)

	courses, err := f.courses.ListForTeacher(context.Background(), sessionFor(t1))
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "A", courses[0].Name)
}

func TestAdminCourseCreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	admin := f.db.addUser("admin", models.RoleAdmin)
	teacher := f.db.addUser("t", models.RoleTeacher)
	student := f.db.addUser("s", models.RoleStudent)
	session := sessionFor(admin)

	tests := []struct {
		name string
		form dto.CourseForm
	}{
		{"missing name", dto.CourseForm{Capacity: "10", Timeslot: "MW", TeacherID: itoa(teacher.ID)}},
		{"zero capacity", dto.CourseForm{Name: "X", Capacity: "0", Timeslot: "MW", TeacherID: itoa(teacher.ID)}},
		{"non numeric capacity", dto.CourseForm{Name: "X", Capacity: "ten", Timeslot: "MW", TeacherID: itoa(teacher.ID)}},
		{"teacher is a student", dto.CourseForm{Name: "X", Capacity: "10", Timeslot: "MW", TeacherID: itoa(student.ID)}},
		{"unknown teacher", dto.CourseForm{Name: "X", Capacity: "10", Timeslot: "MW", TeacherID: "999"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.courses.Create(ctx, session, tc.form)
			assert.Equal(t, appErrors.ErrValidation.Code, errCode(err))
		})
	}
	assert.Empty(t, f.db.courses)
}

func TestAdminCourseLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	admin := f.db.addUser("admin", models.RoleAdmin)
	t1 := f.db.addUser("t1", models.RoleTeacher)
	t2 := f.db.addUser("t2", models.RoleTeacher)
	student := f.db.addUser("s", models.RoleStudent)
	session := sessionFor(admin)

	course, err := f.courses.Create(ctx, session, dto.CourseForm{
		Name: " Biology ", Description: "cells", Capacity: "12", Timeslot: "TTH 9:00", TeacherID: itoa(t1.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, "Biology", course.Name)
	require.NotNil(t, course.Description)

	updated, err := f.courses.Update(ctx, session, course.ID, dto.CourseForm{Capacity: "20", TeacherID: itoa(t2.ID)})
	require.NoError(t, err)
	assert.Equal(t, "Biology", updated.Name)
	assert.Equal(t, "TTH 9:00", updated.Timeslot)
	assert.Equal(t, 20, updated.Capacity)
	assert.Equal(t, t2.ID, updated.TeacherID)

	_, err = f.courses.Update(ctx, session, 999, dto.CourseForm{Name: "Y"})
	assert.Equal(t, "Record 999 not found", appErrors.FromError(err).Message)

	f.db.enrollments[pair{student.ID, course.ID}] = true
	_, _ = memGrades{f.db}.UpsertForEnrolled(ctx, student.ID, course.ID, 60)
	require.NoError(t, f.courses.Delete(ctx, session, course.ID))
	assert.Empty(t, f.db.enrollments)
	assert.Empty(t, f.db.grades)

	assert.Equal(t, []string{models.AuditActionCreate, models.AuditActionUpdate, models.AuditActionDelete}, f.audit.actions())
	assert.Len(t, f.cache.deleted, 3)
}
