package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"printlyapi/dbhelper"
	"printlyapi/planner"
	"printlyapi/services"
	"printlyapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})
	user := test.FakeUser(db)

	req := test.NewJSONAuthRequest("POST", "/studio/sessions", strconv.FormatUint(uint64(user.ID), 10), CreateSessionIn{})
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, "Expected status code 201 Created, got %d", rec.Code)

	var response SessionResponse
	err = json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.NotEmpty(t, response.SessionKey)
	assert.NotEmpty(t, response.Name)
	assert.Nil(t, response.SelectedProduct)
}

func TestCreateSessionUnauthorized(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})

	req := test.NewJSONRequest("POST", "/studio/sessions", CreateSessionIn{})
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSessionsOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})
	user := test.FakeUser(db)
	test.FakeSession(db, user, nil)
	test.FakeSession(db, user, &planner.DesignPlan{Vibe: "watercolor"})

	req := test.NewJSONAuthRequest("GET", "/studio/sessions", strconv.FormatUint(uint64(user.ID), 10), nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response struct {
		Sessions []SessionResponse `json:"sessions"`
	}
	err = json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Len(t, response.Sessions, 2)
}

func TestGetSessionForeignKeyIsNotFound(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})
	owner := test.FakeUser(db)
	session := test.FakeSession(db, owner, nil)

	other := test.FakeUser2(db)
	req := test.NewJSONAuthRequest("GET", fmt.Sprintf("/studio/sessions/%s", session.SessionKey), strconv.FormatUint(uint64(other.ID), 10), nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatePlanExplicitActions(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})
	user := test.FakeUser(db)
	session := test.FakeSession(db, user, &planner.DesignPlan{Vibe: "watercolor"})

	reqBody := UpdatePlanIn{
		Orientation:     StrPointer("Vertical"),
		SelectedProduct: StrPointer("poster"),
		FinalizedPrompt: StrPointer("A watercolor fox under northern lights"),
		UserConfirmed:   BoolPointer(true),
	}
	req := test.NewJSONAuthRequest("PATCH", fmt.Sprintf("/studio/sessions/%s/plan", session.SessionKey), strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response SessionResponse
	err = json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "Vertical", response.Plan.Orientation)
	assert.Equal(t, "A watercolor fox under northern lights", response.Plan.FinalizedPrompt)
	assert.True(t, response.Plan.UserConfirmed)
	// untouched fields survive the merge
	assert.Equal(t, "watercolor", response.Plan.Vibe)
	require.NotNil(t, response.SelectedProduct)
	assert.Equal(t, "poster", *response.SelectedProduct)
}

func TestUpdatePlanRejectsBadOrientation(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})
	user := test.FakeUser(db)
	session := test.FakeSession(db, user, nil)

	reqBody := UpdatePlanIn{Orientation: StrPointer("Diagonal")}
	req := test.NewJSONAuthRequest("PATCH", fmt.Sprintf("/studio/sessions/%s/plan", session.SessionKey), strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdatePlanRejectsUnknownProduct(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})
	user := test.FakeUser(db)
	session := test.FakeSession(db, user, nil)

	reqBody := UpdatePlanIn{SelectedProduct: StrPointer("hologram")}
	req := test.NewJSONAuthRequest("PATCH", fmt.Sprintf("/studio/sessions/%s/plan", session.SessionKey), strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var response map[string]string
	err = json.Unmarshal(rec.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Contains(t, response["error"], "hologram")
}

func TestAddReferenceSettlesNeededLabel(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})
	user := test.FakeUser(db)
	session := test.FakeSession(db, user, &planner.DesignPlan{
		ReferencesNeeded: []string{"pet photo", "house photo"},
	})

	reqBody := AddReferenceIn{FileName: "rex.png", Label: "pet photo"}
	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/studio/sessions/%s/references", session.SessionKey), strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var response ReferenceCreatedResponse
	err = json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Contains(t, response.FileUploadUrl, "fakebucketurl.com")
	assert.Equal(t, "pet photo", response.Reference.Label)
	require.Len(t, response.Plan.References, 1)
	assert.Equal(t, []string{"house photo"}, response.Plan.ReferencesNeeded)
}

func TestAddReferenceRejectsUnsupportedFile(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})
	user := test.FakeUser(db)
	session := test.FakeSession(db, user, nil)

	reqBody := AddReferenceIn{FileName: "notes.pdf", Label: "pet photo"}
	req := test.NewJSONAuthRequest("POST", fmt.Sprintf("/studio/sessions/%s/references", session.SessionKey), strconv.FormatUint(uint64(user.ID), 10), reqBody)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
