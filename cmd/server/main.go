package main

import (
	"context"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sparklabs/spark-backend/cache"
	"github.com/sparklabs/spark-backend/file_store"
	"github.com/sparklabs/spark-backend/mail"
	"github.com/sparklabs/spark-backend/server/handler"
	"github.com/sparklabs/spark-backend/utils"
	"github.com/sparklabs/spark-backend/utils/dotenv"
	"github.com/sparklabs/spark-backend/utils/log"
)

func main() {
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	db, err := utils.GetDBConnection()
	if err != nil {
		panic("failed to connect to database: " + err.Error())
	}
	if err := utils.DatabaseSetupAndMigration(db); err != nil {
		panic("failed to migrate database: " + err.Error())
	}

	redisClient, err := cache.NewRedisClient(context.Background())
	if err != nil {
		panic("failed to connect to redis: " + err.Error())
	}
	codes := cache.NewRedisCache(redisClient)

	var mailer mail.Mailer
	mailer, err = mail.NewSMTPMailer()
	if err != nil {
		log.Log.Warn("smtp not configured, logging mails instead: " + err.Error())
		mailer = mail.LogMailer{}
	}

	var media file_store.MediaStore
	media, err = file_store.NewS3MediaStore()
	if err != nil {
		log.Log.Warn("s3 not configured, keeping media in memory: " + err.Error())
		media = file_store.NewMemoryMediaStore()
	}

	// Default with the Logger and Recovery middleware already attached.
	router := gin.Default()
	router.Use(cors.Default())

	h := handler.NewHandler(db, codes, mailer, media)
	h.RegisterRoutes(router)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	log.Log.Info("spark server starts up on " + addr)
	if err := router.Run(addr); err != nil {
		log.Log.Fatal(err)
	}
}
