package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"printlyapi/dbhelper"
	"printlyapi/models"
	"printlyapi/planner"
	"printlyapi/services"
	"printlyapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginGenerationPlanNotReady(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})
	user := test.FakeUser(db)
	// no orientation picked yet
	session := test.FakeSession(db, user, &planner.DesignPlan{Intent: "A fox poster"})

	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/studio/sessions/%s/generate", session.SessionKey), strconv.FormatUint(uint64(user.ID), 10), BeginGenerationIn{})
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var response map[string]string
	err = json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "plan_not_ready", response["error"])

	var count int64
	db.Model(&models.PrintJob{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestJobStatusReportsArtifactUrls(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})
	user := test.FakeUser(db)
	session := test.FakeSession(db, user, nil)

	masterKey := "jobs/7/master.png"
	mockupKey := "jobs/7/mockup.png"
	job := models.PrintJob{
		SessionID:  session.ID,
		Status:     models.JobStatusDone,
		Stage:      models.StageMockup,
		MasterKey:  &masterKey,
		PreviewKey: &masterKey,
		MockupKey:  &mockupKey,
		ResultKey:  &mockupKey,
		Trace:      []string{"preview:fallback_master"},
	}
	db.Create(&job)

	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/studio/jobs/%d", job.ID), strconv.FormatUint(uint64(user.ID), 10), nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response JobStatusResponse
	err = json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusDone, response.Status)
	assert.Equal(t, "https://cdn.example.com/jobs/7/master.png", response.MasterUrl)
	// preview fell back to the master key, so the URLs are identical strings
	assert.Equal(t, response.MasterUrl, response.PreviewUrl)
	assert.Equal(t, "https://cdn.example.com/jobs/7/mockup.png", response.ResultUrl)
	assert.Contains(t, response.Trace, "preview:fallback_master")
	assert.Nil(t, response.Blocked)
}

func TestJobStatusBlockedPayload(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})
	user := test.FakeUser(db)
	session := test.FakeSession(db, user, nil)

	job := models.PrintJob{
		SessionID:   session.ID,
		Status:      models.JobStatusBlocked,
		Stage:       models.StageMaster,
		Blocked:     true,
		BlockReason: test.NewRefString("content violation: rejected by safety filter"),
		Suggestion:  test.NewRefString("A peaceful reimagining of the idea"),
		BlockNote:   test.NewRefString("Your idea was refused by the image service. Try the suggested prompt instead."),
	}
	db.Create(&job)

	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/studio/jobs/%d", job.ID), strconv.FormatUint(uint64(user.ID), 10), nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response JobStatusResponse
	err = json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusBlocked, response.Status)
	require.NotNil(t, response.Blocked)
	assert.Equal(t, "A peaceful reimagining of the idea", response.Blocked.Suggestion)
	assert.NotEmpty(t, response.Blocked.Note)
	assert.Empty(t, response.ResultUrl)
	assert.Nil(t, response.ErrorMessage)
}

func TestJobStatusForeignJobIsNotFound(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})
	owner := test.FakeUser(db)
	session := test.FakeSession(db, owner, nil)

	job := models.PrintJob{SessionID: session.ID, Status: models.JobStatusQueued, Stage: models.StageMaster}
	db.Create(&job)

	other := test.FakeUser2(db)
	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/studio/jobs/%d", job.ID), strconv.FormatUint(uint64(other.ID), 10), nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobsForSession(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})
	user := test.FakeUser(db)
	session := test.FakeSession(db, user, nil)

	db.Create(&models.PrintJob{SessionID: session.ID, Status: models.JobStatusDone, Stage: models.StageMockup})
	db.Create(&models.PrintJob{SessionID: session.ID, Status: models.JobStatusQueued, Stage: models.StageMaster})

	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/studio/sessions/%s/jobs", session.SessionKey), strconv.FormatUint(uint64(user.ID), 10), nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response struct {
		Jobs []JobStatusResponse `json:"jobs"`
	}
	err = json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Len(t, response.Jobs, 2)
}
