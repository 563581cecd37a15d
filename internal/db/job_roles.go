package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonathan/perfect-fit/internal/types"
	"go.uber.org/zap"
)

const jobRoleColumns = `id, title, department, description, requirements, employment_type, work_mode,
	location, salary_min, salary_max, key_business_objective, min_experience,
	is_english_required, is_coding_required, is_technical_required,
	status, is_open, version, created_by, approved_by, approved_at, rejection_reason,
	closed_at, created_at, updated_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanJobRole(row pgx.Row) (*types.JobRole, error) {
	var j types.JobRole
	err := row.Scan(&j.ID, &j.Title, &j.Department, &j.Description, &j.Requirements,
		&j.EmploymentType, &j.WorkMode, &j.Location, &j.SalaryMin, &j.SalaryMax,
		&j.KeyBusinessObjective, &j.MinExperience,
		&j.IsEnglishRequired, &j.IsCodingRequired, &j.IsTechnicalRequired,
		&j.Status, &j.IsOpen, &j.Version, &j.CreatedBy, &j.ApprovedBy, &j.ApprovedAt,
		&j.RejectionReason, &j.ClosedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateJobRole inserts a pending, open role at version 1 together with its
// children and the first pending approval request.
func (db *DB) CreateJobRole(ctx context.Context, createdBy uuid.UUID, req *types.CreateJobRoleRequest) (*types.JobRole, error) {
	var job *types.JobRole
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		job, err = scanJobRole(tx.QueryRow(ctx,
			`INSERT INTO job_roles (title, department, description, requirements, employment_type,
			     work_mode, location, salary_min, salary_max, key_business_objective, min_experience,
			     is_english_required, is_coding_required, is_technical_required, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			 RETURNING `+jobRoleColumns,
			req.Title, req.Department, req.Description, req.Requirements, req.EmploymentType,
			req.WorkMode, req.Location, req.SalaryMin, req.SalaryMax, req.KeyBusinessObjective,
			req.MinExperience, req.IsEnglishRequired, req.IsCodingRequired, req.IsTechnicalRequired,
			createdBy,
		))
		if err != nil {
			return fmt.Errorf("failed to create job role: %w", err)
		}

		if err := replaceChildren(ctx, tx, job.ID, &req.JobChildren); err != nil {
			return err
		}

		if err := insertPendingApproval(ctx, tx, job.ID, createdBy, nil); err != nil {
			return err
		}

		return loadChildren(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}

	db.log.Info("job role created", zap.String("job_id", job.ID.String()), zap.String("created_by", createdBy.String()))
	return job, nil
}

// GetJobRole retrieves a job role without its child collections.
// Returns nil, nil when the role does not exist.
func (db *DB) GetJobRole(ctx context.Context, id uuid.UUID) (*types.JobRole, error) {
	job, err := scanJobRole(db.pool.QueryRow(ctx,
		`SELECT `+jobRoleColumns+` FROM job_roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job role: %w", err)
	}
	return job, nil
}

// LoadJobChildren fills the questions, responsibilities and skills of job.
func (db *DB) LoadJobChildren(ctx context.Context, job *types.JobRole) error {
	return loadChildren(ctx, db.pool, job)
}

// ListJobRoles lists roles matching filter, newest first.
func (db *DB) ListJobRoles(ctx context.Context, filter JobRoleFilter) ([]types.JobRole, error) {
	where, args := jobRoleWhere(filter)
	query := `SELECT ` + jobRoleColumns + ` FROM job_roles` + where + ` ORDER BY created_at DESC`
	query, args = appendPaging(query, args, filter.Limit, filter.Offset)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list job roles: %w", err)
	}
	defer rows.Close()

	jobs := []types.JobRole{}
	for rows.Next() {
		job, err := scanJobRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job role: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list job roles: %w", err)
	}
	return jobs, nil
}

// EditJobRole applies e as a single conditional update on (id, version).
// Returns nil, nil when no row matched; the caller disambiguates by re-reading.
func (db *DB) EditJobRole(ctx context.Context, e *JobRoleEdit) (*types.JobRole, error) {
	set, args := editAssignments(e)
	query := fmt.Sprintf(`UPDATE job_roles SET %s WHERE id = $1 AND version = $2 RETURNING %s`,
		strings.Join(set, ", "), jobRoleColumns)

	var job *types.JobRole
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		job, err = scanJobRole(tx.QueryRow(ctx, query, args...))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				job = nil
				return nil
			}
			return fmt.Errorf("failed to update job role: %w", err)
		}

		if e.Changes != nil {
			if err := replaceChildren(ctx, tx, job.ID, &e.Changes.JobChildren); err != nil {
				return err
			}
		}

		if e.Reapproval != nil {
			reason := types.ReapprovalReason
			if err := insertPendingApproval(ctx, tx, job.ID, *e.Reapproval, &reason); err != nil {
				return err
			}
		}

		return loadChildren(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// editAssignments builds the SET list for an edit. $1 and $2 are the id and
// expected version.
func editAssignments(e *JobRoleEdit) ([]string, []any) {
	args := []any{e.ID, e.ExpectedVersion}
	var set []string
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if c := e.Changes; c != nil {
		if c.Title != nil {
			add("title", *c.Title)
		}
		if c.Department != nil {
			add("department", *c.Department)
		}
		if c.Description != nil {
			add("description", *c.Description)
		}
		if c.Requirements != nil {
			add("requirements", *c.Requirements)
		}
		if c.EmploymentType != nil {
			add("employment_type", *c.EmploymentType)
		}
		if c.WorkMode != nil {
			add("work_mode", *c.WorkMode)
		}
		if c.Location != nil {
			add("location", *c.Location)
		}
		if c.SalaryMin != nil {
			add("salary_min", *c.SalaryMin)
		}
		if c.SalaryMax != nil {
			add("salary_max", *c.SalaryMax)
		}
		if c.KeyBusinessObjective != nil {
			add("key_business_objective", *c.KeyBusinessObjective)
		}
		if c.MinExperience != nil {
			add("min_experience", *c.MinExperience)
		}
		if c.IsEnglishRequired != nil {
			add("is_english_required", *c.IsEnglishRequired)
		}
		if c.IsCodingRequired != nil {
			add("is_coding_required", *c.IsCodingRequired)
		}
		if c.IsTechnicalRequired != nil {
			add("is_technical_required", *c.IsTechnicalRequired)
		}
	}

	if e.ResetApproval {
		set = append(set,
			"status = 'pending'",
			"approved_by = NULL",
			"approved_at = NULL",
			"rejection_reason = NULL",
		)
	}

	set = append(set, "version = version + 1", "updated_at = NOW()")
	return set, args
}

// ReviewJobRole records an approve or reject decision as a conditional update
// on (id, version) and resolves the outstanding approval request.
// Returns nil, nil when no row matched.
func (db *DB) ReviewJobRole(ctx context.Context, r *JobRoleReview) (*types.JobRole, error) {
	var approvedBy *uuid.UUID
	var rejectionReason *string
	switch r.Decision {
	case types.JobStatusApproved:
		approvedBy = &r.ReviewerID
	case types.JobStatusRejected:
		rejectionReason = r.Reason
	default:
		return nil, fmt.Errorf("invalid review decision: %q", r.Decision)
	}

	var job *types.JobRole
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		job, err = scanJobRole(tx.QueryRow(ctx,
			`UPDATE job_roles
			 SET status = $3,
			     approved_by = $4,
			     approved_at = CASE WHEN $4::uuid IS NULL THEN NULL ELSE NOW() END,
			     rejection_reason = $5,
			     version = version + 1,
			     updated_at = NOW()
			 WHERE id = $1 AND version = $2
			 RETURNING `+jobRoleColumns,
			r.ID, r.ExpectedVersion, r.Decision, approvedBy, rejectionReason,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				job = nil
				return nil
			}
			return fmt.Errorf("failed to review job role: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE approval_requests
			 SET status = $2, reviewed_by = $3, reviewed_at = NOW(), reason = COALESCE($4, reason)
			 WHERE job_id = $1 AND status = 'pending'`,
			r.ID, r.Decision, r.ReviewerID, r.Reason,
		)
		if err != nil {
			return fmt.Errorf("failed to resolve approval request: %w", err)
		}

		if tag.RowsAffected() == 0 {
			// No outstanding request: append an already-resolved one so the review is still audited.
			_, err = tx.Exec(ctx,
				`INSERT INTO approval_requests (job_id, requested_by, reviewed_by, status, reason, reviewed_at)
				 VALUES ($1, $2, $3, $4, $5, NOW())`,
				r.ID, job.CreatedBy, r.ReviewerID, r.Decision, r.Reason,
			)
			if err != nil {
				return fmt.Errorf("failed to record approval request: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// SetJobRoleOpen opens or closes a role as a conditional update on (id, version).
// Returns nil, nil when no row matched.
func (db *DB) SetJobRoleOpen(ctx context.Context, id uuid.UUID, expectedVersion int, open bool) (*types.JobRole, error) {
	job, err := scanJobRole(db.pool.QueryRow(ctx,
		`UPDATE job_roles
		 SET is_open = $3,
		     closed_at = CASE WHEN $3::boolean THEN NULL ELSE NOW() END,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $1 AND version = $2
		 RETURNING `+jobRoleColumns,
		id, expectedVersion, open,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to set job role availability: %w", err)
	}
	return job, nil
}

// DeleteJobRole removes a role; children, approvals, applications and
// responses cascade. Reports whether a row was deleted.
func (db *DB) DeleteJobRole(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM job_roles WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete job role: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListApprovalRequests returns the approval history of a role, newest first.
func (db *DB) ListApprovalRequests(ctx context.Context, jobID uuid.UUID) ([]types.ApprovalRequest, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, requested_by, reviewed_by, status, reason, created_at, reviewed_at
		 FROM approval_requests
		 WHERE job_id = $1
		 ORDER BY created_at DESC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval requests: %w", err)
	}
	defer rows.Close()

	requests := []types.ApprovalRequest{}
	for rows.Next() {
		var a types.ApprovalRequest
		if err := rows.Scan(&a.ID, &a.JobID, &a.RequestedBy, &a.ReviewedBy, &a.Status,
			&a.Reason, &a.CreatedAt, &a.ReviewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		requests = append(requests, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list approval requests: %w", err)
	}
	return requests, nil
}

// ListTechnicalQuestions returns the question set of a role in authoring order.
func (db *DB) ListTechnicalQuestions(ctx context.Context, jobID uuid.UUID) ([]types.TechnicalQuestion, error) {
	return listQuestions(ctx, db.pool, jobID)
}

func insertPendingApproval(ctx context.Context, q querier, jobID, requestedBy uuid.UUID, reason *string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO approval_requests (job_id, requested_by, status, reason)
		 VALUES ($1, $2, 'pending', $3)
		 ON CONFLICT (job_id) WHERE status = 'pending' DO NOTHING`,
		jobID, requestedBy, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to create approval request: %w", err)
	}
	return nil
}

// replaceChildren deletes and re-inserts every supplied collection. Nil
// collections are left untouched.
func replaceChildren(ctx context.Context, q querier, jobID uuid.UUID, c *types.JobChildren) error {
	if c.TechnicalQuestions != nil {
		if _, err := q.Exec(ctx, `DELETE FROM technical_assessments WHERE job_id = $1`, jobID); err != nil {
			return fmt.Errorf("failed to clear technical questions: %w", err)
		}
		for i, tq := range c.TechnicalQuestions {
			_, err := q.Exec(ctx,
				`INSERT INTO technical_assessments (job_id, position, question, desired_answer)
				 VALUES ($1, $2, $3, $4)`,
				jobID, i, tq.Question, tq.DesiredAnswer,
			)
			if err != nil {
				return fmt.Errorf("failed to insert technical question: %w", err)
			}
		}
	}

	if c.Responsibilities != nil {
		if _, err := q.Exec(ctx, `DELETE FROM job_responsibilities WHERE job_id = $1`, jobID); err != nil {
			return fmt.Errorf("failed to clear responsibilities: %w", err)
		}
		for i, r := range c.Responsibilities {
			_, err := q.Exec(ctx,
				`INSERT INTO job_responsibilities (job_id, position, content, importance)
				 VALUES ($1, $2, $3, $4)`,
				jobID, i, r.Content, r.Importance,
			)
			if err != nil {
				return fmt.Errorf("failed to insert responsibility: %w", err)
			}
		}
	}

	if c.Skills != nil {
		if _, err := q.Exec(ctx, `DELETE FROM job_skills WHERE job_id = $1`, jobID); err != nil {
			return fmt.Errorf("failed to clear skills: %w", err)
		}
		for i, s := range c.Skills {
			_, err := q.Exec(ctx,
				`INSERT INTO job_skills (job_id, position, skill_name, min_years, is_mandatory)
				 VALUES ($1, $2, $3, $4, $5)`,
				jobID, i, s.SkillName, s.MinYears, s.IsMandatory,
			)
			if err != nil {
				return fmt.Errorf("failed to insert skill: %w", err)
			}
		}
	}
	return nil
}

func loadChildren(ctx context.Context, q querier, job *types.JobRole) error {
	questions, err := listQuestions(ctx, q, job.ID)
	if err != nil {
		return err
	}
	job.TechnicalQuestions = questions

	rows, err := q.Query(ctx,
		`SELECT id, job_id, content, importance FROM job_responsibilities
		 WHERE job_id = $1 ORDER BY position`,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load responsibilities: %w", err)
	}
	job.Responsibilities = []types.Responsibility{}
	for rows.Next() {
		var r types.Responsibility
		if err := rows.Scan(&r.ID, &r.JobID, &r.Content, &r.Importance); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan responsibility: %w", err)
		}
		job.Responsibilities = append(job.Responsibilities, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load responsibilities: %w", err)
	}

	rows, err = q.Query(ctx,
		`SELECT id, job_id, skill_name, min_years, is_mandatory FROM job_skills
		 WHERE job_id = $1 ORDER BY position`,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load skills: %w", err)
	}
	defer rows.Close()
	job.Skills = []types.Skill{}
	for rows.Next() {
		var s types.Skill
		if err := rows.Scan(&s.ID, &s.JobID, &s.SkillName, &s.MinYears, &s.IsMandatory); err != nil {
			return fmt.Errorf("failed to scan skill: %w", err)
		}
		job.Skills = append(job.Skills, s)
	}
	return rows.Err()
}

func listQuestions(ctx context.Context, q querier, jobID uuid.UUID) ([]types.TechnicalQuestion, error) {
	rows, err := q.Query(ctx,
		`SELECT id, job_id, question, desired_answer FROM technical_assessments
		 WHERE job_id = $1 ORDER BY position`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load technical questions: %w", err)
	}
	defer rows.Close()

	questions := []types.TechnicalQuestion{}
	for rows.Next() {
		var tq types.TechnicalQuestion
		if err := rows.Scan(&tq.ID, &tq.JobID, &tq.Question, &tq.DesiredAnswer); err != nil {
			return nil, fmt.Errorf("failed to scan technical question: %w", err)
		}
		questions = append(questions, tq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load technical questions: %w", err)
	}
	return questions, nil
}

// jobRoleWhere builds the WHERE clause for filter, numbering placeholders from $1.
func jobRoleWhere(filter JobRoleFilter) (string, []any) {
	var conditions []string
	var args []any
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.IsOpen != nil {
		args = append(args, *filter.IsOpen)
		conditions = append(conditions, fmt.Sprintf("is_open = $%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// appendPaging adds LIMIT/OFFSET placeholders when limit is positive.
func appendPaging(query string, args []any, limit, offset int) (string, []any) {
	if limit <= 0 {
		return query, args
	}
	args = append(args, limit, offset)
	return query + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}
