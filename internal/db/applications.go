package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/perfect-fit/internal/types"
)

const applicationColumns = `a.id, a.job_id, a.applicant_id, a.status, a.cover_letter, a.resume_url,
	a.phone, a.linkedin_url, a.feedback, a.created_at, a.updated_at`

func scanApplication(row pgx.Row, extra ...any) (*types.Application, error) {
	var a types.Application
	dest := []any{&a.ID, &a.JobID, &a.ApplicantID, &a.Status, &a.CoverLetter, &a.ResumeURL,
		&a.Phone, &a.LinkedInURL, &a.Feedback, &a.CreatedAt, &a.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateApplication inserts a submitted application. A second application for
// the same (job, applicant) pair returns a duplicate_application conflict.
func (db *DB) CreateApplication(ctx context.Context, app *types.Application) (*types.Application, error) {
	created, err := scanApplication(db.pool.QueryRow(ctx,
		`INSERT INTO job_applications AS a (job_id, applicant_id, status, cover_letter, resume_url, phone, linkedin_url)
		 VALUES ($1, $2, 'submitted', $3, $4, $5, $6)
		 RETURNING `+applicationColumns,
		app.JobID, app.ApplicantID, app.CoverLetter, app.ResumeURL, app.Phone, app.LinkedInURL,
	))
	if err != nil {
		if isUniqueViolation(err, constraintOneApplicationPerJob) {
			return nil, &types.ErrConflict{
				Code:    types.ConflictDuplicateApplication,
				Message: "You have already applied for this job",
			}
		}
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	return created, nil
}

// FindApplication returns the application of applicantID for jobID, or nil, nil.
func (db *DB) FindApplication(ctx context.Context, jobID, applicantID uuid.UUID) (*types.Application, error) {
	app, err := scanApplication(db.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM job_applications a
		 WHERE a.job_id = $1 AND a.applicant_id = $2`,
		jobID, applicantID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	return app, nil
}

// GetApplication retrieves an application by ID, or nil, nil.
func (db *DB) GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error) {
	app, err := scanApplication(db.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM job_applications a WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

// ListApplications lists applications newest first, enriched with the job
// title and the candidate's name and email.
func (db *DB) ListApplications(ctx context.Context, filter ApplicationFilter) ([]types.Application, error) {
	var conditions []string
	var args []any
	if filter.JobID != nil {
		args = append(args, *filter.JobID)
		conditions = append(conditions, fmt.Sprintf("a.job_id = $%d", len(args)))
	}
	if filter.ApplicantID != nil {
		args = append(args, *filter.ApplicantID)
		conditions = append(conditions, fmt.Sprintf("a.applicant_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)))
	}

	query := `SELECT ` + applicationColumns + `, j.title, p.full_name, p.email
		 FROM job_applications a
		 JOIN job_roles j ON j.id = a.job_id
		 LEFT JOIN profiles p ON p.id = a.applicant_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY a.created_at DESC"
	query, args = appendPaging(query, args, filter.Limit, filter.Offset)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := []types.Application{}
	for rows.Next() {
		var title string
		var name, email *string
		app, err := scanApplication(rows, &title, &name, &email)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		app.JobTitle = &title
		app.CandidateName = name
		app.CandidateEmail = email
		apps = append(apps, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, nil
}

// UpdateApplicationStatus sets the status, and the feedback when supplied.
// Returns nil, nil when the application does not exist.
func (db *DB) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status types.ApplicationStatus, feedback *string) (*types.Application, error) {
	app, err := scanApplication(db.pool.QueryRow(ctx,
		`UPDATE job_applications AS a
		 SET status = $2, feedback = COALESCE($3, feedback), updated_at = NOW()
		 WHERE a.id = $1
		 RETURNING `+applicationColumns,
		id, status, feedback,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update application status: %w", err)
	}
	return app, nil
}

// GetCandidateProfile retrieves the contact details used to pre-fill
// applications, or nil, nil when the candidate has no profile.
func (db *DB) GetCandidateProfile(ctx context.Context, userID uuid.UUID) (*types.CandidateProfile, error) {
	var p types.CandidateProfile
	err := db.pool.QueryRow(ctx,
		`SELECT p.id, p.email, p.full_name, c.phone, c.linkedin_url, c.resume_url
		 FROM profiles p
		 LEFT JOIN candidate_profiles c ON c.id = p.id
		 WHERE p.id = $1`,
		userID,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.Phone, &p.LinkedInURL, &p.ResumeURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get candidate profile: %w", err)
	}
	return &p, nil
}
