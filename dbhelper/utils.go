package dbhelper

import (
	"log"

	"printlyapi/models"

	"gorm.io/gorm"
)

func SetupCleaner(db *gorm.DB) func() {

	return func() {

		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.FulfillmentOrder{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.PrintJob{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ConversationTurn{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.DesignSession{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserPushToken{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserAccount{})

	}
}

func Migrate(db *gorm.DB, model interface{}) {
	err := db.AutoMigrate(model)
	if err != nil {
		log.Printf("Error while migrating %s", model)
		log.Fatal(err)
	}
}
