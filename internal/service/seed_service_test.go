package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
)

func TestSeedLoadsSampleData(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	svc := NewSeedService(memUsers{db}, memCourses{db}, memEnrollments{db}, memGrades{db}, nil)

	result, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 6, result.Users)
	assert.Equal(t, 3, result.Courses)
	assert.Equal(t, 4, result.Enrollments)
	assert.Equal(t, 4, result.Grades)

	admin, err := memUsers{db}.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin123")))

	courses, err := memCourses{db}.List(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 3)
	assert.Equal(t, "Introduction to Python", courses[0].Name)
	assert.Equal(t, "teacher1", courses[0].TeacherName)
	assert.Equal(t, 2, courses[0].EnrolledCount)
	assert.Equal(t, "teacher2", courses[2].TeacherName)

	again, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Len(t, db.users, 6)
}
