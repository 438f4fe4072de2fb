package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"printlyapi/models"
	"printlyapi/planner"
	"printlyapi/services"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	log.Println(JsonString(param))
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewJSONAuthRequestRaw(method string, target string, userPk string, json string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(json))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func Int64Pointer(i int64) *int64 {
	return &i
}

func NewRefString(data string) *string {
	return &data
}

func FakeUser(db *gorm.DB) *models.UserAccount {
	user := &models.UserAccount{
		Name:                 "OurName",
		Email:                "email@example.com",
		Platform:             models.PlatformIOS,
		LastIp:               "123.122.122.122",
		StorefrontSkin:       "classic",
		ReceiveNotifications: true,
	}
	db.Create(&user)

	tokenDb := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      "android",
		Token:         "cX-UZ3zwQEiPt-2GJkG2gA:APA91bGqRflaGrJrnynhRwZ442HdgUjVcO7mWMFnx6IwAdJ9RRKopvSP4QU7hbvTmk1XAp8XGvtHZLvo5JmOPTVKBbGqqvhfbZWKlXA9csEjx1hgpNvrWepU",
		Active:        true,
	}
	db.Save(&tokenDb)

	return user
}

// FakeUser2 is a second account for ownership checks.
func FakeUser2(db *gorm.DB) *models.UserAccount {
	user := &models.UserAccount{
		Name:           "OtherName",
		Email:          "other@example.com",
		Platform:       models.PlatformAndroid,
		LastIp:         "123.122.122.123",
		StorefrontSkin: "classic",
	}
	db.Create(&user)
	return user
}

// FakeSession creates a design session with an optional pre-seeded plan.
func FakeSession(db *gorm.DB, owner *models.UserAccount, plan *planner.DesignPlan) *models.DesignSession {
	planJSON := ""
	if plan != nil {
		planJSON = JsonString(plan)
	}
	session := &models.DesignSession{
		SessionKey: fmt.Sprintf("sess-%d-%d", owner.ID, time.Now().UnixNano()),
		Name:       "Golden Meadow",
		OwnerID:    owner.ID,
		PlanJSON:   planJSON,
	}
	db.Create(&session)
	return session
}

type AWSProviderMock struct {
	MockUrl string
	Stored  map[string][]byte
	// simulate a broken bucket
	FailStore bool
}

func (awsService *AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService *AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {
	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService *AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	if awsService.MockUrl != "" {
		return awsService.MockUrl, nil
	}
	return fmt.Sprintf("https://fakebucketurl.com/%s", fileKey), nil
}

func (awsService *AWSProviderMock) UploadToPresignedURL(ctx context.Context, bucketName, url string, fileContent []byte) (string, int, error) {
	return url, 204, nil
}

func (awsService *AWSProviderMock) StoreObject(ctx context.Context, bucketName, fileKey string, fileContent []byte) error {
	if awsService.FailStore {
		return fmt.Errorf("bucket unavailable")
	}
	if awsService.Stored == nil {
		awsService.Stored = make(map[string][]byte)
	}
	awsService.Stored[fileKey] = fileContent
	return nil
}

// StudioLLMMock stubs the model backend. Each func field defaults to a benign
// canned answer so tests only override the calls they care about.
type StudioLLMMock struct {
	CompleteFunc      func(system string, turns []services.ChatTurn, modelName services.LLMModelName) (*services.LLMResponse, error)
	GenerateImageFunc func(prompt string, referenceImages [][]byte, aspect float64, sizeHint string, modelName services.LLMModelName) (*services.LLMResponse, error)
	RewriteFunc       func(prompt string) (string, error)
}

func (m StudioLLMMock) Complete(system string, turns []services.ChatTurn, modelName services.LLMModelName) (*services.LLMResponse, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(system, turns, modelName)
	}
	return &services.LLMResponse{
		Response: `{"reply": "Sounds lovely, I noted that down.", "plan_delta": {"vibe": "watercolor"}}`,

		InputTokenCount:    10,
		TotalTokenCount:    11,
		ThoughtsTokenCount: 12,
		OutputTokenCount:   13,
	}, nil
}

func (m StudioLLMMock) GenerateImage(prompt string, referenceImages [][]byte, aspect float64, sizeHint string, modelName services.LLMModelName) (*services.LLMResponse, error) {
	if m.GenerateImageFunc != nil {
		return m.GenerateImageFunc(prompt, referenceImages, aspect, sizeHint, modelName)
	}
	return &services.LLMResponse{
		Images:             [][]byte{TinyPNG()},
		InputTokenCount:    10,
		TotalTokenCount:    11,
		ThoughtsTokenCount: 12,
		OutputTokenCount:   13,
	}, nil
}

func (m StudioLLMMock) RewritePrompt(prompt string) (string, error) {
	if m.RewriteFunc != nil {
		return m.RewriteFunc(prompt)
	}
	return "A friendly, family-safe version of: " + prompt, nil
}

// URLCacheMock derives a deterministic URL from the key, so URL equality in
// assertions mirrors key equality.
type URLCacheMock struct{}

func (URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", nil
	}
	return fmt.Sprintf("https://cdn.example.com/%s", objectKey), nil
}

type PaymentServiceMock struct {
	FailSubmit bool
	LastOrder  *services.VendorOrder
}

func (m *PaymentServiceMock) SubmitOrder(ctx context.Context, order services.VendorOrder) (string, error) {
	m.LastOrder = &order
	if m.FailSubmit {
		return "", fmt.Errorf("vendor order failed, status 502: gateway down")
	}
	return "ORD-TEST-0001", nil
}

// TinyPNG returns a small valid PNG, enough for the pipeline's decode paths.
func TinyPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		log.Fatalf("Error encoding test png: %v", err)
	}
	return buf.Bytes()
}
