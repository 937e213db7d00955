package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/app_config"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/feed"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/filestore"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/moderation"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/server"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/server/middlewares"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/session"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/source"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/utils"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/utils/dotenv"
	"github.com/murakami-kaito-dev/bouldering-app-sub000/utils/flag"
	Logger "github.com/murakami-kaito-dev/bouldering-app-sub000/utils/log"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"

	"github.com/DataDog/datadog-go/statsd"
)

const appConfigPath = "cmd/server/app_config.yaml"

func cleanup() {
	utils.CloseProfiler()
	utils.CloseTracer()
	Logger.Log.Info("api server shutdown")
}

func main() {
	flag.Parse()
	Logger.InitLogger()

	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	utils.InitTracer()
	utils.InitProfiler()
	defer cleanup()

	if !flag.ByPassAuth {
		middlewares.Setup()
	}

	config := app_config.ParseClientAppConfig(appConfigPath)
	terms := moderation.StaticTermList(app_config.ParseForbiddenTerms(config.FORBIDDEN_TERMS_PATH))

	db, err := utils.GetDBConnection()
	if err != nil {
		Logger.Log.Fatal("fail to connect to DB: ", err)
	}
	if err := source.SetupAndMigrate(db); err != nil {
		Logger.Log.Fatal("fail to migrate DB: ", err)
	}
	backend := source.NewGormSource(db)

	statsdClient, err := statsd.New("")
	if err != nil {
		Logger.Log.Error("statsd unavailable, metrics disabled: ", err)
	}

	likeStore, err := utils.GetRedisStatusStore()
	if err != nil {
		Logger.Log.Error("redis unavailable, liked status disabled: ", err)
	}

	mediaBucket := filestore.DevS3MediaBucket
	if os.Getenv("BOULDER_ENV") == dotenv.ProdEnv {
		mediaBucket = filestore.ProdS3MediaBucket
	}
	mediaStore, err := filestore.NewS3FileStore(mediaBucket)
	if err != nil {
		Logger.Log.Error("s3 unavailable, media upload disabled: ", err)
	}

	var engineOpts []moderation.Option
	if config.KANA_BOUNDARY_HEURISTIC {
		engineOpts = append(engineOpts, moderation.WithKanaBoundaryHeuristic(true))
	}

	manager := server.NewSessionManager(func(c *gin.Context, userId string) (*session.Session, error) {
		opts := []feed.CoordinatorOption{feed.WithPageSize(config.PAGE_SIZE)}
		if statsdClient != nil {
			opts = append(opts, feed.WithStatsd(statsdClient))
		}
		if likeStore != nil {
			opts = append(opts, feed.WithLikeStatusStore(likeStore))
		}
		// The request context already carries the configured deadline, set
		// below on the manager.
		return session.New(c.Request.Context(), userId, backend, backend, terms, engineOpts, opts...)
	})
	if config.NETWORK_TIMEOUT_SECOND > 0 {
		manager.SetRequestTimeout(time.Duration(config.NETWORK_TIMEOUT_SECOND) * time.Second)
	}

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()

	router.Use(cors.Default())
	router.Use(gintrace.Middleware(flag.ServiceName))
	if !flag.ByPassAuth {
		router.Use(middlewares.Auth())
	}

	server.RegisterRoutes(router, manager)
	if mediaStore != nil {
		server.RegisterMediaRoutes(router, mediaStore)
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	Logger.Log.Info("api server starts up")
	router.Run(":8080")
}
