package db

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonathan/perfect-fit/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditAssignments(t *testing.T) {
	title := "Staff Engineer"
	salary := 150000
	remote := true
	id := uuid.New()

	tests := []struct {
		name     string
		edit     *JobRoleEdit
		wantSet  []string
		wantArgs []any
	}{
		{
			name:     "children only still bumps version",
			edit:     &JobRoleEdit{ID: id, ExpectedVersion: 3, Changes: &types.UpdateJobRoleRequest{}},
			wantSet:  []string{"version = version + 1", "updated_at = NOW()"},
			wantArgs: []any{id, 3},
		},
		{
			name: "fields numbered after id and version",
			edit: &JobRoleEdit{ID: id, ExpectedVersion: 1, Changes: &types.UpdateJobRoleRequest{
				Title:            &title,
				SalaryMax:        &salary,
				IsCodingRequired: &remote,
			}},
			wantSet: []string{
				"title = $3", "salary_max = $4", "is_coding_required = $5",
				"version = version + 1", "updated_at = NOW()",
			},
			wantArgs: []any{id, 1, title, salary, remote},
		},
		{
			name: "reset clears approval stamps",
			edit: &JobRoleEdit{ID: id, ExpectedVersion: 2, ResetApproval: true, Changes: &types.UpdateJobRoleRequest{Title: &title}},
			wantSet: []string{
				"title = $3", "status = 'pending'", "approved_by = NULL", "approved_at = NULL",
				"rejection_reason = NULL", "version = version + 1", "updated_at = NOW()",
			},
			wantArgs: []any{id, 2, title},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, args := editAssignments(tt.edit)
			assert.Equal(t, tt.wantSet, set)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestJobRoleWhere(t *testing.T) {
	status := types.JobStatusApproved
	open := true
	creator := uuid.New()

	where, args := jobRoleWhere(JobRoleFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = jobRoleWhere(JobRoleFilter{Status: &status, IsOpen: &open, CreatedBy: &creator})
	assert.Equal(t, " WHERE status = $1 AND is_open = $2 AND created_by = $3", where)
	assert.Equal(t, []any{status, open, creator}, args)
}

func TestAppendPaging(t *testing.T) {
	query, args := appendPaging("SELECT 1", []any{"a"}, 0, 10)
	assert.Equal(t, "SELECT 1", query)
	assert.Len(t, args, 1)

	query, args = appendPaging("SELECT 1", []any{"a"}, 20, 40)
	assert.True(t, strings.HasSuffix(query, " LIMIT $2 OFFSET $3"))
	assert.Equal(t, []any{"a", 20, 40}, args)
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintOneApplicationPerJob}
	wrapped := fmt.Errorf("failed to create application: %w", pgErr)

	assert.True(t, isUniqueViolation(wrapped, ""))
	assert.True(t, isUniqueViolation(wrapped, constraintOneApplicationPerJob))
	assert.False(t, isUniqueViolation(wrapped, "some_other_constraint"))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, isUniqueViolation(errors.New("boom"), ""))
}

func TestIsForeignKeyViolation(t *testing.T) {
	wrapped := fmt.Errorf("failed to save score: %w", &pgconn.PgError{Code: foreignKeyViolation})

	assert.True(t, isForeignKeyViolation(wrapped))
	assert.False(t, isForeignKeyViolation(&pgconn.PgError{Code: uniqueViolation}))
	assert.False(t, isForeignKeyViolation(errors.New("boom")))
	assert.False(t, isForeignKeyViolation(nil))
}

func TestSchemaEmbedded(t *testing.T) {
	require.NotEmpty(t, schemaSQL)
	for _, table := range []string{
		"job_roles", "technical_assessments", "job_responsibilities", "job_skills",
		"approval_requests", "job_applications", "assessment_responses", "candidate_profiles",
	} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table, table)
	}
	assert.Contains(t, schemaSQL, "WHERE status = 'pending'")
	assert.Contains(t, schemaSQL, constraintOneApplicationPerJob)
}
