package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"printlyapi/dbhelper"
	"printlyapi/services"
	"printlyapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogProductsPublic(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})

	// no auth header, catalog browsing is public
	req := httptest.NewRequest("GET", "/catalog/products", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response struct {
		Products []ProductSummary `json:"products"`
	}
	err = json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	require.Len(t, response.Products, 4)

	byName := map[string]ProductSummary{}
	for _, p := range response.Products {
		byName[p.Name] = p
	}
	assert.True(t, byName["poster"].HasMockup)
	assert.False(t, byName["canvas"].HasMockup)
	assert.NotEmpty(t, byName["mug"].Variants)
}

func TestResolveVariantOk(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})

	req := httptest.NewRequest("GET", "/catalog/resolve?product=framed-print&size=A3&orientation=Vertical&frame_color=oak", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var response ResolveResponse
	err = json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "FRM-A3-V-OAK", response.VendorSku)
	assert.Equal(t, int64(4200), response.Prices["GBP"])
}

func TestResolveVariantMissIs404(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})

	req := httptest.NewRequest("GET", "/catalog/resolve?product=poster&size=A7&orientation=Vertical", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var response map[string]string
	err = json.Unmarshal(rec.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "variant_not_found", response["error"])
}

func TestResolveVariantMissingParams(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	catalog, err := services.LoadCatalog()
	require.NoError(t, err)
	e := SetupServer(db, test.StudioLLMMock{}, &test.AWSProviderMock{}, nil, nil, test.URLCacheMock{}, catalog, &test.PaymentServiceMock{})

	req := httptest.NewRequest("GET", "/catalog/resolve?product=poster", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
