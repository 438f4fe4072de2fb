package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"printlyapi/models"
	"printlyapi/services"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func UserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		db := c.Get("__db").(*gorm.DB)
		userRaw := c.Get("user")
		if userRaw == nil {
			return echo.ErrUnauthorized
		}
		user := userRaw.(*jwt.Token)
		claims := user.Claims.(jwt.MapClaims)
		userId := claims["sub"]
		if userId == nil || userId == "" {
			log.Println("Error while getting the token information!")
			return echo.ErrUnauthorized
		}

		var currentUser models.UserAccount
		result := db.Where("ID = ?", userId).Take(&currentUser)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return echo.ErrUnauthorized
		}
		if result.Error != nil {
			fmt.Println("Failed to fetch user info", result.Error)
			return echo.ErrInternalServerError
		}
		if currentUser.Banned {
			return echo.NewHTTPError(http.StatusLocked)
		}
		c.Set("currentUser", currentUser)
		fmt.Printf("Fetched user %s \n", currentUser.Name)
		return next(c)
	}
}

// SessionMiddleware resolves the :sessionKey path param into a session owned
// by the current user. Ownership miss is reported as not-found, not forbidden,
// so session keys of other users cannot be probed.
func SessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		db := c.Get("__db").(*gorm.DB)
		user, ok := c.Get("currentUser").(models.UserAccount)
		if !ok {
			return echo.ErrUnauthorized
		}
		sessionKey := c.Param("sessionKey")
		if sessionKey == "" {
			return echo.ErrBadRequest
		}

		var session models.DesignSession
		result := db.Where("session_key = ? AND owner_id = ?", sessionKey, user.ID).Take(&session)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": services.ErrSessionNotFound.Error()})
		}
		if result.Error != nil {
			fmt.Println("Failed to fetch session", result.Error)
			return echo.ErrInternalServerError
		}
		c.Set("currentSession", session)
		return next(c)
	}
}
