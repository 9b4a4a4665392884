package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrintake/internal/database"
	"qrintake/internal/submission"
)

func seedSubmission(t *testing.T, env *testEnv, owner uint, name, resumePath string) *database.Submission {
	t.Helper()
	sub := &database.Submission{
		OwnerID:         owner,
		Name:            name,
		Email:           "applicant@example.com",
		ApplicationType: "interview",
		ResumePath:      resumePath,
		Status:          database.StatusPending,
	}
	require.NoError(t, submission.NewStore(env.db).Create(context.Background(), sub))
	return sub
}

func submissionPath(sub *database.Submission) string {
	return "/v1/submissions/" + strconv.FormatUint(uint64(sub.ID), 10)
}

func TestSubmissions_ListScopedAndFiltered(t *testing.T) {
	env := newTestEnv(t)
	first := seedSubmission(t, env, 1, "First", "")
	seedSubmission(t, env, 1, "Second", "")
	seedSubmission(t, env, 2, "Elsewhere", "")

	review := env.doJSON(t, http.MethodPatch, submissionPath(first), 1, map[string]string{"status": "shortlisted"})
	require.Equal(t, http.StatusOK, review.Code)

	var all []database.Submission
	w := env.doJSON(t, http.MethodGet, "/v1/submissions", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	var shortlisted []database.Submission
	w = env.doJSON(t, http.MethodGet, "/v1/submissions?status=shortlisted", 1, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &shortlisted))
	require.Len(t, shortlisted, 1)
	assert.Equal(t, "First", shortlisted[0].Name)

	assert.Equal(t, http.StatusBadRequest, env.doJSON(t, http.MethodGet, "/v1/submissions?status=hired", 1, nil).Code)
}

func TestSubmissions_Review(t *testing.T) {
	env := newTestEnv(t)
	sub := seedSubmission(t, env, 1, "Grace", "")

	w := env.doJSON(t, http.MethodPatch, submissionPath(sub), 1, map[string]string{
		"status":      "accepted",
		"designation": "Engineer",
		"department":  "Platform",
	})
	require.Equal(t, http.StatusOK, w.Code, "body=%s", w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "accepted", body["status"])
	assert.Equal(t, true, body["reviewed"])
	assert.Equal(t, "Engineer", body["designation"])
	assert.Equal(t, "Platform", body["department"])

	assert.Equal(t, http.StatusNotFound, env.doJSON(t, http.MethodPatch, submissionPath(sub), 2, map[string]string{"status": "rejected"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.doJSON(t, http.MethodPatch, submissionPath(sub), 1, map[string]string{"status": "maybe"}).Code)
	assert.Equal(t, http.StatusNotFound, env.doJSON(t, http.MethodGet, submissionPath(sub), 2, nil).Code)
}

func TestSubmissions_ResumeURL(t *testing.T) {
	env := newTestEnv(t)
	with := seedSubmission(t, env, 1, "With", "resumes/1/abc.pdf")
	without := seedSubmission(t, env, 1, "Without", "")

	w := env.doJSON(t, http.MethodGet, submissionPath(with)+"/resume", 1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://storage.example.invalid/resumes/1/abc.pdf", decode(t, w)["url"])

	assert.Equal(t, http.StatusNotFound, env.doJSON(t, http.MethodGet, submissionPath(without)+"/resume", 1, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.doJSON(t, http.MethodGet, submissionPath(with)+"/resume", 2, nil).Code)
}
