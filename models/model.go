package models

import (
	"regexp"
	"time"

	"github.com/go-playground/validator"
)

type JsonModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

func (l *Platform) Scan(value interface{}) error {
	*l = Platform(value.(string))
	return nil
}

func (l Platform) Value() string {
	return string(l)
}

func ValidatePlatform(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	matched, _ := regexp.MatchString("^ios|android|web$", string(value))
	return matched
}

// ValidateOrientation accepts the three print orientations, or empty for "not picked yet".
func ValidateOrientation(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	matched, _ := regexp.MatchString("^$|^Horizontal|Vertical|Square$", value)
	return matched
}

type UserAccount struct {
	JsonModel
	Name   string `json:"name"`
	Email  string `json:"email" gorm:"unique"`
	Banned bool   `gorm:"default:false" json:"-"`
	LastIp string `json:"-"`
	// shopper identity is managed by the storefront edge; we only carry the subject id
	Platform Platform `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	// which storefront skin the user came through (same core serves all skins)
	StorefrontSkin string `json:"storefront_skin"`

	ReceiveNotifications bool `json:"receive_notifications"`
}

type UserPushToken struct {
	JsonModel
	UserAccountID uint
	UserAccount   UserAccount `json:"user_account"`
	Platform      Platform    `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	Token         string      `json:"token"`
	Active        bool        `gorm:"default:false" json:"-"`
}
