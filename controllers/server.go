package controllers

import (
	"context"
	"log"
	"net/http"
	"os"

	"printlyapi/models"
	"printlyapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/go-playground/validator"
	"github.com/hibiken/asynq"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		// Optionally, you could return the error to give each route more control over the status code
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func SetupServer(
	db *gorm.DB,
	studioLLM services.StudioLLMProvider,
	awsService services.AWSServiceProvider,
	firebaseApp *firebase.App,
	asynqClient *asynq.Client,
	urlCache services.URLCacheServiceProvider,
	catalog *services.Catalog,
	paymentService services.PaymentServiceProvider,
) *echo.Echo {

	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("Failed to initialize AWS provider: S3")
	}

	e := echo.New()
	v := validator.New()
	v.RegisterValidation("platform", models.ValidatePlatform)
	v.RegisterValidation("orientation", models.ValidateOrientation)
	e.Validator = &CustomValidator{validator: v}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__asynqclient", asynqClient)
			return next(c)
		}
	})

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	planStore := services.NewPlanStore()

	catalogController := CatalogController{Catalog: catalog}
	catalogGroup := e.Group("/catalog")
	catalogController.Routes(catalogGroup)

	studioGroup := e.Group("/studio", echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))))
	studioGroup.Use(UserMiddleware)

	sessionsController := SessionsController{
		AWSService:  awsService,
		FirebaseApp: firebaseApp,
		PlanStore:   planStore,
		Catalog:     catalog,
	}
	sessionsGroup := studioGroup.Group("/sessions")
	sessionsController.SessionRoutes(sessionsGroup)

	generationController := GenerationController{PlanStore: planStore, URLCache: urlCache}
	generationController.JobRoutes(studioGroup)

	singleSessionGroup := sessionsGroup.Group("/:sessionKey", SessionMiddleware)
	sessionsController.SingleSessionRoutes(singleSessionGroup)
	generationController.SessionRoutes(singleSessionGroup)

	conversationController := ConversationController{
		StudioLLM:  studioLLM,
		AWSService: awsService,
		PlanStore:  planStore,
		Catalog:    catalog,
	}
	conversationController.Routes(singleSessionGroup)

	checkoutController := CheckoutController{
		Catalog:        catalog,
		PaymentService: paymentService,
		URLCache:       urlCache,
	}
	checkoutController.Routes(singleSessionGroup)

	return e
}
