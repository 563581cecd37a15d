package jobroles

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/db"
	"github.com/jonathan/perfect-fit/internal/memstore"
	"github.com/jonathan/perfect-fit/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	employee  = types.Principal{UserID: uuid.New(), Role: types.RoleEmployee}
	colleague = types.Principal{UserID: uuid.New(), Role: types.RoleEmployee}
	hr        = types.Principal{UserID: uuid.New(), Role: types.RoleHR}
	admin     = types.Principal{UserID: uuid.New(), Role: types.RoleAdmin}
	candidate = types.Principal{UserID: uuid.New(), Role: types.RoleCandidate}
)

func setup(t *testing.T) (*Lifecycle, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return New(store, nil), store
}

func createRequest() *types.CreateJobRoleRequest {
	return &types.CreateJobRoleRequest{
		Title:        "Platform Engineer",
		Department:   "Infrastructure",
		Description:  "Runs the deployment platform for product teams.",
		Requirements: "Kubernetes, Go and on-call experience.",
		JobChildren: types.JobChildren{
			TechnicalQuestions: []types.TechnicalQuestionInput{
				{Question: "How does a rolling update work?", DesiredAnswer: "Pods are replaced incrementally."},
			},
			Responsibilities: []types.ResponsibilityInput{{Content: "Own the CI pipeline"}},
		},
	}
}

func createJob(t *testing.T, l *Lifecycle) *types.JobRole {
	t.Helper()
	job, err := l.Create(context.Background(), employee, createRequest())
	require.NoError(t, err)
	return job
}

func pendingCount(t *testing.T, store *memstore.Store, jobID uuid.UUID) int {
	t.Helper()
	history, err := store.ListApprovalRequests(context.Background(), jobID)
	require.NoError(t, err)
	return countPending(history)
}

func countPending(history []types.ApprovalRequest) int {
	n := 0
	for _, a := range history {
		if a.Status == types.ApprovalPending {
			n++
		}
	}
	return n
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreate(t *testing.T) {
	l, store := setup(t)
	job := createJob(t, l)

	assert.Equal(t, types.JobStatusPending, job.Status)
	assert.Equal(t, 1, job.Version)
	assert.True(t, job.IsOpen)
	assert.Equal(t, employee.UserID, job.CreatedBy)
	assert.Len(t, job.TechnicalQuestions, 1)
	assert.Equal(t, 1, pendingCount(t, store, job.ID))
}

func TestCreate_Authorization(t *testing.T) {
	l, _ := setup(t)
	for _, p := range []types.Principal{hr, candidate} {
		_, err := l.Create(context.Background(), p, createRequest())
		var forbidden *types.ErrForbidden
		assert.ErrorAs(t, err, &forbidden, "role %s", p.Role)
	}

	_, err := l.Create(context.Background(), admin, createRequest())
	assert.NoError(t, err)
}

func TestCreate_Validation(t *testing.T) {
	l, _ := setup(t)
	req := createRequest()
	req.Title = ""
	_, err := l.Create(context.Background(), employee, req)
	var ve *types.ErrValidation
	assert.ErrorAs(t, err, &ve)
}

// Scenario: create v1 pending, approve v2, edit v3 pending with a fresh
// request, approve again v4.
func TestLifecycleScenario(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	job := createJob(t, l)

	approved, err := l.Approve(ctx, hr, job.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, approved.Version)
	assert.Equal(t, types.JobStatusApproved, approved.Status)
	assert.Equal(t, &hr.UserID, approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, 0, pendingCount(t, store, job.ID))

	edited, err := l.Edit(ctx, employee, job.ID, &types.UpdateJobRoleRequest{Title: strPtr("Senior Platform Engineer")})
	require.NoError(t, err)
	assert.Equal(t, 3, edited.Version)
	assert.Equal(t, types.JobStatusPending, edited.Status)
	assert.Nil(t, edited.ApprovedBy)
	assert.Nil(t, edited.ApprovedAt)
	assert.Equal(t, 1, pendingCount(t, store, job.ID))

	history, err := l.Approvals(ctx, hr, job.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.ApprovalPending, history[0].Status)
	assert.Equal(t, types.ReapprovalReason, *history[0].Reason)
	assert.Equal(t, types.ApprovalApproved, history[1].Status)

	again, err := l.Approve(ctx, hr, job.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, again.Version)
	assert.Equal(t, types.JobStatusApproved, again.Status)
	assert.Equal(t, 0, pendingCount(t, store, job.ID))
}

func TestEdit_PendingOrRejectedNeverAddsApprovalRequest(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	job := createJob(t, l)

	_, err := l.Edit(ctx, employee, job.ID, &types.UpdateJobRoleRequest{Department: strPtr("Platform")})
	require.NoError(t, err)
	history, _ := store.ListApprovalRequests(ctx, job.ID)
	assert.Len(t, history, 1)

	rejected, err := l.Reject(ctx, hr, job.ID, &types.ReviewRequest{Reason: "Missing salary range"})
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusRejected, rejected.Status)
	assert.Equal(t, "Missing salary range", *rejected.RejectionReason)

	edited, err := l.Edit(ctx, employee, job.ID, &types.UpdateJobRoleRequest{SalaryMin: intPtr(100), SalaryMax: intPtr(200)})
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusPending, edited.Status)
	assert.Nil(t, edited.RejectionReason)

	history, _ = store.ListApprovalRequests(ctx, job.ID)
	assert.Len(t, history, 1)
	assert.Equal(t, types.ApprovalRejected, history[0].Status)
	assert.Equal(t, 0, pendingCount(t, store, job.ID))

	// Approving the resubmission is still audited with a terminal row.
	approved, err := l.Approve(ctx, hr, job.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusApproved, approved.Status)

	history, _ = store.ListApprovalRequests(ctx, job.ID)
	require.Len(t, history, 2)
	assert.Equal(t, types.ApprovalApproved, history[0].Status)
	assert.Equal(t, hr.UserID, *history[0].ReviewedBy)
	assert.Equal(t, 0, pendingCount(t, store, job.ID))
}

func TestEdit_VersionConflictVersusNotFound(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()
	job := createJob(t, l)

	_, err := l.Edit(ctx, employee, job.ID, &types.UpdateJobRoleRequest{Title: strPtr("Stale title"), CurrentVersion: intPtr(9)})
	assert.True(t, types.IsConflict(err, types.ConflictVersion))

	_, err = l.Edit(ctx, employee, uuid.New(), &types.UpdateJobRoleRequest{Title: strPtr("Ghost role"), CurrentVersion: intPtr(1)})
	assert.True(t, types.IsNotFound(err))

	unchanged, err := l.Get(ctx, employee, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unchanged.Version)
	assert.Equal(t, "Platform Engineer", unchanged.Title)
}

func TestEdit_ConcurrentEditorsOneWinsPerVersion(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()
	job := createJob(t, l)

	const editors = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0
	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Edit(ctx, employee, job.ID, &types.UpdateJobRoleRequest{
				Title: strPtr("Title " + uuid.NewString()[:6]), CurrentVersion: intPtr(1),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case types.IsConflict(err, types.ConflictVersion):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, editors-1, conflicts)

	current, err := l.Get(ctx, employee, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)
}

func TestEdit_ReplacesSuppliedChildrenOnly(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()
	job := createJob(t, l)

	edited, err := l.Edit(ctx, employee, job.ID, &types.UpdateJobRoleRequest{
		JobChildren: types.JobChildren{
			Skills: []types.SkillInput{{SkillName: "Terraform", IsMandatory: true}, {SkillName: "Rust"}},
		},
	})
	require.NoError(t, err)
	assert.Len(t, edited.Skills, 2)
	assert.Len(t, edited.TechnicalQuestions, 1, "omitted collections are untouched")
	assert.Len(t, edited.Responsibilities, 1)

	cleared, err := l.Edit(ctx, employee, job.ID, &types.UpdateJobRoleRequest{
		JobChildren: types.JobChildren{Responsibilities: []types.ResponsibilityInput{}},
	})
	require.NoError(t, err)
	assert.Empty(t, cleared.Responsibilities)
	assert.Equal(t, 3, cleared.Version)
}

func TestEdit_Ownership(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()
	job := createJob(t, l)

	// A colleague cannot even see a pending role.
	_, err := l.Edit(ctx, colleague, job.ID, &types.UpdateJobRoleRequest{Title: strPtr("Hijacked")})
	assert.True(t, types.IsNotFound(err))

	_, err = l.Approve(ctx, hr, job.ID, nil)
	require.NoError(t, err)

	// Once public, the colleague sees it but still may not edit it.
	_, err = l.Edit(ctx, colleague, job.ID, &types.UpdateJobRoleRequest{Title: strPtr("Hijacked")})
	var forbidden *types.ErrForbidden
	assert.ErrorAs(t, err, &forbidden)

	_, err = l.Edit(ctx, hr, job.ID, &types.UpdateJobRoleRequest{Title: strPtr("HR edit")})
	assert.ErrorAs(t, err, &forbidden)

	edited, err := l.Edit(ctx, admin, job.ID, &types.UpdateJobRoleRequest{Title: strPtr("Admin edit")})
	require.NoError(t, err)
	assert.Equal(t, "Admin edit", edited.Title)
}

func TestReview_AlreadyInTargetState(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()
	job := createJob(t, l)

	_, err := l.Approve(ctx, hr, job.ID, nil)
	require.NoError(t, err)
	_, err = l.Approve(ctx, admin, job.ID, nil)
	assert.True(t, types.IsConflict(err, types.ConflictAlreadyApproved))

	_, err = l.Reject(ctx, hr, job.ID, &types.ReviewRequest{Reason: "Budget was cut"})
	require.NoError(t, err)
	_, err = l.Reject(ctx, hr, job.ID, &types.ReviewRequest{Reason: "Budget was cut"})
	assert.True(t, types.IsConflict(err, types.ConflictAlreadyRejected))
}

func TestReview_Authorization(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()
	job := createJob(t, l)

	for _, p := range []types.Principal{employee, candidate} {
		_, err := l.Approve(ctx, p, job.ID, nil)
		var forbidden *types.ErrForbidden
		assert.ErrorAs(t, err, &forbidden)
	}

	_, err := l.Approve(ctx, hr, uuid.New(), nil)
	assert.True(t, types.IsNotFound(err))
}

func TestReject_RequiresReason(t *testing.T) {
	l, _ := setup(t)
	job := createJob(t, l)

	_, err := l.Reject(context.Background(), hr, job.ID, &types.ReviewRequest{Reason: "no"})
	var ve *types.ErrValidation
	assert.ErrorAs(t, err, &ve)

	_, err = l.Reject(context.Background(), hr, job.ID, nil)
	assert.ErrorAs(t, err, &ve)
}

func TestReview_StaleClientVersion(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()
	job := createJob(t, l)

	_, err := l.Edit(ctx, employee, job.ID, &types.UpdateJobRoleRequest{Title: strPtr("Edited meanwhile")})
	require.NoError(t, err)

	_, err = l.Approve(ctx, hr, job.ID, &types.ReviewRequest{CurrentVersion: intPtr(1)})
	assert.True(t, types.IsConflict(err, types.ConflictVersion))
}

// raceStore lets a concurrent writer slip in between the read and the review.
type raceStore struct {
	*memstore.Store
	once sync.Once
}

func (r *raceStore) ReviewJobRole(ctx context.Context, rv *db.JobRoleReview) (*types.JobRole, error) {
	r.once.Do(func() {
		title := "Edited during review"
		_, _ = r.Store.EditJobRole(ctx, &db.JobRoleEdit{
			ID: rv.ID, ExpectedVersion: rv.ExpectedVersion,
			Changes: &types.UpdateJobRoleRequest{Title: &title},
		})
	})
	return r.Store.ReviewJobRole(ctx, rv)
}

func TestReview_ConcurrentEditWins(t *testing.T) {
	store := &raceStore{Store: memstore.New()}
	l := New(store, nil)
	ctx := context.Background()
	job := createJob(t, l)

	_, err := l.Approve(ctx, hr, job.ID, nil)
	assert.True(t, types.IsConflict(err, types.ConflictVersion))

	current, err := l.Get(ctx, hr, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusPending, current.Status)
	assert.Equal(t, 2, current.Version)
}

func TestCloseAndReopen(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()
	job := createJob(t, l)
	_, err := l.Approve(ctx, hr, job.ID, nil)
	require.NoError(t, err)

	closed, err := l.Close(ctx, hr, job.ID)
	require.NoError(t, err)
	assert.False(t, closed.IsOpen)
	assert.Equal(t, types.JobStatusApproved, closed.Status)
	assert.Equal(t, 3, closed.Version)

	again, err := l.Close(ctx, hr, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Version, "closing a closed role is a no-op")

	// Candidates lose sight of closed roles.
	_, err = l.Get(ctx, candidate, job.ID)
	assert.True(t, types.IsNotFound(err))

	reopened, err := l.Reopen(ctx, admin, job.ID)
	require.NoError(t, err)
	assert.True(t, reopened.IsOpen)
	assert.Nil(t, reopened.ClosedAt)

	_, err = l.Close(ctx, employee, job.ID)
	var forbidden *types.ErrForbidden
	assert.ErrorAs(t, err, &forbidden)
}

func TestGet_Visibility(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()
	job := createJob(t, l)

	_, err := l.Get(ctx, candidate, job.ID)
	assert.True(t, types.IsNotFound(err), "pending roles are hidden from candidates")

	own, err := l.Get(ctx, employee, job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, own.TechnicalQuestions[0].DesiredAnswer)

	_, err = l.Approve(ctx, hr, job.ID, nil)
	require.NoError(t, err)

	public, err := l.Get(ctx, candidate, job.ID)
	require.NoError(t, err)
	require.Len(t, public.TechnicalQuestions, 1)
	assert.Empty(t, public.TechnicalQuestions[0].DesiredAnswer)
}

func TestDelete(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()
	job := createJob(t, l)

	err := l.Delete(ctx, hr, job.ID)
	var forbidden *types.ErrForbidden
	assert.ErrorAs(t, err, &forbidden)

	require.NoError(t, l.Delete(ctx, employee, job.ID))

	err = l.Delete(ctx, employee, job.ID)
	assert.True(t, types.IsNotFound(err))
}

func TestLists(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()
	mine := createJob(t, l)
	theirs, err := l.Create(ctx, colleague, createRequest())
	require.NoError(t, err)
	_, err = l.Approve(ctx, hr, theirs.ID, nil)
	require.NoError(t, err)

	own, err := l.List(ctx, employee, ListOptions{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)

	all, err := l.List(ctx, hr, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = l.List(ctx, candidate, ListOptions{})
	var forbidden *types.ErrForbidden
	assert.True(t, errors.As(err, &forbidden))

	pending, err := l.ListPending(ctx, admin)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, mine.ID, pending[0].ID)

	public, err := l.ListPublic(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, theirs.ID, public[0].ID)
}

// For arbitrary interleavings of edit/approve/reject there is never more
// than one pending approval request.
func TestAtMostOnePendingApproval(t *testing.T) {
	l, store := setup(t)
	ctx := context.Background()
	job := createJob(t, l)

	const workers = 30
	observed := make([]int, workers)
	listErrs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				_, _ = l.Approve(ctx, hr, job.ID, nil)
			case 1:
				_, _ = l.Reject(ctx, hr, job.ID, &types.ReviewRequest{Reason: "Needs another pass"})
			default:
				_, _ = l.Edit(ctx, employee, job.ID, &types.UpdateJobRoleRequest{Title: strPtr("Revision")})
			}
			history, err := store.ListApprovalRequests(ctx, job.ID)
			listErrs[i] = err
			observed[i] = countPending(history)
		}(i)
	}
	wg.Wait()

	for i := range observed {
		require.NoError(t, listErrs[i])
		assert.LessOrEqual(t, observed[i], 1, "worker %d saw more than one pending request", i)
	}
	assert.LessOrEqual(t, pendingCount(t, store, job.ID), 1)
}
