package main

import (
	"context"
	"fmt"
	"ipfs-service-provider/background"
	"ipfs-service-provider/controller"
	"ipfs-service-provider/infra"
	"ipfs-service-provider/metrics"
	appMiddleware "ipfs-service-provider/middleware"
	"ipfs-service-provider/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type Options struct {
	Port int `help:"服務監聽端口，0 表示使用 config.yml 設定" short:"p" default:"0"`
}

type AppServices struct {
	MongoDB  *infra.MongoDB
	Redis    *infra.Redis
	RabbitMQ *infra.RabbitMQ
}

type healthStatusResponse struct {
	Body struct {
		Status  string  `json:"status" example:"healthy"`
		Latency float64 `json:"latency" example:"1.23"`
		Message string  `json:"message" example:"連接正常"`
	}
}

// 全局變量用於存儲 OpenTelemetry cleanup 函數
var otelCleanup func()

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		// 載入設定檔
		if err := infra.LoadConfig(); err != nil {
			log.Fatal().
				Err(err).
				Msg("讀取 config.yml 失敗")
		}

		// 初始化 logger（在載入配置後）
		infra.InitLogger()

		port := options.Port
		if port == 0 {
			port = infra.AppConfig.App.Port
		}

		// /metrics 的 registry 先建立，OTel 的 Prometheus exporter 也註冊在這裡
		if err := appMiddleware.InitPrometheusMetrics(log.Logger); err != nil {
			log.Error().
				Err(err).
				Msg("Prometheus metrics 初始化失敗，將繼續運行")
		}

		telemetry := infra.AppConfig.Telemetry
		otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		if otelEndpoint == "" {
			otelEndpoint = telemetry.OTLPEndpoint
		}

		otelConfig := appMiddleware.OtelConfig{
			ServiceName:     infra.ServiceName,
			ServiceVersion:  infra.AppConfig.App.AppVersion,
			Environment:     os.Getenv("ENV"),
			OTLPEndpoint:    otelEndpoint,
			SampleRatio:     telemetry.SampleRatio,
			TracesEnabled:   telemetry.Enabled,
			MetricsEnabled:  telemetry.Enabled,
			Enabled:         telemetry.Enabled,
			DevelopmentMode: os.Getenv("ENV") != "production",
		}
		if registry := appMiddleware.GetPrometheusRegistry(); registry != nil {
			otelConfig.Registerer = registry
		}

		var err error
		otelCleanup, err = appMiddleware.InitOpenTelemetry(otelConfig, log.Logger)
		if err != nil {
			log.Fatal().
				Err(err).
				Msg("OpenTelemetry 初始化失敗")
		}

		infra.InitTracer()

		if err := metrics.InitServiceMetrics(appMiddleware.GetPrometheusRegistry()); err != nil {
			log.Error().
				Err(err).
				Msg("Service metrics 初始化失敗，將繼續運行")
		}

		log.Info().
			Int("port", port).
			Msg("啟動 IPFS Service Provider API服務")

		services, err := initializeServices()
		if err != nil {
			log.Fatal().
				Err(err).
				Msg("初始化服務失敗")
		}

		// === 使用量統計 ===
		usageStore := service.NewUsageStore()
		usageService := service.NewUsageService(log.Logger, usageStore, infra.NewUsageCollection(services.MongoDB), infra.AppConfig.Usage.Retention())

		// 啟動時從資料庫載入上次的備份，失敗時以空紀錄繼續
		loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
		loadStart := time.Now()
		loaded, err := usageService.LoadUsage(loadCtx)
		loadCancel()
		metrics.RecordUsageOperation(metrics.OperationLoadUsage, metrics.StatusFromError(err), metrics.SourceStartup, time.Since(loadStart))
		if err != nil {
			log.Error().
				Err(err).
				Msg("載入使用紀錄備份失敗，以空紀錄啟動")
		} else {
			log.Info().
				Int("events", loaded).
				Msg("使用紀錄備份載入完成")
		}

		usageMiddleware := appMiddleware.NewUsageMiddleware(
			log.Logger,
			usageStore,
			infra.AppConfig.Usage.TrustProxy,
			appMiddleware.LogErrorReporter(log.Logger),
		)

		router := chi.NewRouter()
		router.Use(middleware.Logger)
		router.Use(middleware.Recoverer)
		router.Use(middleware.RequestID)
		router.Use(middleware.Heartbeat("/ping"))

		// CORS 設定 - 允許所有來源
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300,
		}))

		// 每個請求完成後寫入使用紀錄
		router.Use(usageMiddleware.Handler)

		apiConfig := huma.DefaultConfig("IPFS Service Provider API", infra.AppConfig.App.AppVersion)
		apiConfig.Info.Description = "IPFS 服務節點 REST API，含使用量統計"

		serverURL := fmt.Sprintf("http://localhost:%d", port)
		if infra.AppConfig.CertBaseURL != "" {
			serverURL = infra.AppConfig.CertBaseURL
		}
		apiConfig.Servers = []*huma.Server{
			{URL: serverURL},
		}

		// 配置 JWT Bearer 認證
		apiConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
			"bearerAuth": {
				Type:         "http",
				Scheme:       "bearer",
				BearerFormat: "JWT",
				Description:  "JWT Bearer Token 認證",
			},
		}

		api := humachi.New(router, apiConfig)

		api.UseMiddleware(appMiddleware.OpenTelemetryMiddleware(otelConfig, log.Logger))
		api.UseMiddleware(appMiddleware.PrometheusMiddleware(log.Logger))

		// === 用戶與認證 ===
		userService := service.NewUserService(log.Logger, infra.NewUserCollection(services.MongoDB), infra.AppConfig.JWT.SecretKey, infra.AppConfig.JWT.ExpiresHours)
		userAuthMiddleware := appMiddleware.NewUserAuthMiddleware(log.Logger, api, userService, infra.AppConfig.JWT.SecretKey)

		controller.NewAuthController(log.Logger, userService).RegisterRoutes(api)
		controller.NewUserController(log.Logger, userService, userAuthMiddleware).RegisterRoutes(api)
		controller.NewUsageController(log.Logger, usageService, infra.AppConfig.Usage.TopLimit).RegisterRoutes(api)

		// === IPFS 協調層 ===
		consumerCtx, stopConsumer := context.WithCancel(context.Background())
		if services.Redis != nil && services.RabbitMQ != nil {
			peerDirectory := infra.NewRedisPeerDirectory(log.Logger, services.Redis.Client, infra.AppConfig.IPFS.PeerTTL())
			peerConnector := infra.NewAMQPPeerConnector(log.Logger, services.RabbitMQ, infra.AppConfig.IPFS.ConnectTimeout())
			ipfsService := service.NewIPFSService(log.Logger, peerDirectory, peerConnector, infra.AppConfig.IPFS.V1Relays)
			ipfsService.SetConnectLimiter(rate.NewLimiter(
				rate.Every(time.Minute/time.Duration(infra.AppConfig.IPFS.ConnectPerMinute)),
				infra.AppConfig.IPFS.ConnectBurst,
			))
			controller.NewIPFSController(log.Logger, ipfsService).RegisterRoutes(api)

			consumer := background.NewAnnouncementConsumer(log.Logger, services.RabbitMQ, peerDirectory)
			go consumer.Start(consumerCtx)
		} else {
			log.Warn().Msg("Redis 或 RabbitMQ 未連線，/ipfs 相關端點停用")
		}

		// 註冊 Prometheus metrics 端點
		router.Handle("/metrics", appMiddleware.GetStandardPrometheusHandler())

		// === 排程工作 ===
		timers := background.NewTimerControllers(log.Logger, usageService, infra.AppConfig.Usage.CleanInterval(), infra.AppConfig.Usage.BackupInterval())
		timers.StartTimers()

		// 啟動 metrics 更新器
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-consumerCtx.Done():
					return
				case <-ticker.C:
				}

				metrics.SetUsageEventsInMemory(usageStore.Len())

				updateInfraHealth("database", "mongodb", services.MongoDB.Ping)
				if services.Redis != nil {
					updateInfraHealth("cache", "redis", services.Redis.Ping)
				}
				if services.RabbitMQ != nil {
					updateInfraHealth("queue", "rabbitmq", services.RabbitMQ.Ping)
				}
			}
		}()
		log.Info().Msg("Metrics 更新器已啟動")

		huma.Register(api, huma.Operation{
			OperationID: "health-check",
			Method:      "GET",
			Path:        "/health",
			Summary:     "健康檢查",
			Tags:        []string{"system"},
		}, func(ctx context.Context, input *struct{}) (*struct {
			Body struct {
				Status  string `json:"status" example:"ok"`
				Message string `json:"message" example:"服務運行正常"`
				Events  int    `json:"events" doc:"記憶體中的使用紀錄數"`
			}
		}, error) {
			resp := &struct {
				Body struct {
					Status  string `json:"status" example:"ok"`
					Message string `json:"message" example:"服務運行正常"`
					Events  int    `json:"events" doc:"記憶體中的使用紀錄數"`
				}
			}{}
			resp.Body.Status = "ok"
			resp.Body.Message = "IPFS Service Provider 服務運行正常"
			resp.Body.Events = usageStore.Len()
			return resp, nil
		})

		registerMonitoring(api, "mongodb", "MongoDB", services.MongoDB.Ping)
		registerMonitoring(api, "redis", "Redis", func(ctx context.Context) error {
			if services.Redis == nil {
				return fmt.Errorf("Redis 服務未啟用")
			}
			return services.Redis.Ping(ctx)
		})
		registerMonitoring(api, "rabbitmq", "RabbitMQ", func(ctx context.Context) error {
			if services.RabbitMQ == nil {
				return fmt.Errorf("RabbitMQ 服務未啟用或未連接")
			}
			return services.RabbitMQ.Ping(ctx)
		})

		hooks.OnStart(func() {
			log.Info().
				Int("port", port).
				Str("docs_url", fmt.Sprintf("%s/docs", serverURL)).
				Msg("API文檔已啟用")
			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", port),
				Handler: router,
			}
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().
						Err(err).
						Msg("服務器啟動失敗")
				}
			}()
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			log.Info().Msg("正在關閉服務器...")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				log.Error().
					Err(err).
					Msg("服務器關閉錯誤")
			}

			stopConsumer()

			// 停止排程並等待進行中的備份，再做最後一次備份
			log.Info().Msg("正在停止排程工作...")
			timers.StopTimers()
			backupStart := time.Now()
			backupErr := usageService.BackupUsage(ctx)
			metrics.RecordUsageOperation(metrics.OperationBackupUsage, metrics.StatusFromError(backupErr), metrics.SourceShutdown, time.Since(backupStart))
			if backupErr != nil {
				log.Error().
					Err(backupErr).
					Msg("關閉前備份使用紀錄失敗")
			}

			if otelCleanup != nil {
				log.Info().Msg("正在關閉 OpenTelemetry...")
				otelCleanup()
			}
			cleanupServices(services)
			log.Info().Msg("服務器已關閉")
		})
	})
	cli.Run()
}

// updateInfraHealth ping 一次並更新 infrastructure_health_status
func updateInfraHealth(serviceType, component string, ping func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	appMiddleware.UpdateInfrastructureHealth(serviceType, component, err == nil, time.Since(start))
	if err != nil {
		log.Warn().Err(err).Str("component", component).Msg("基礎設施健康檢查失敗")
	}
}

// registerMonitoring 註冊 /api/monitoring/{name} 健康狀態端點
func registerMonitoring(api huma.API, name, display string, ping func(ctx context.Context) error) {
	huma.Register(api, huma.Operation{
		OperationID: name + "-monitoring",
		Method:      "GET",
		Path:        "/api/monitoring/" + name,
		Summary:     display + " 健康狀態監控",
		Tags:        []string{"monitoring"},
	}, func(ctx context.Context, input *struct{}) (*healthStatusResponse, error) {
		start := time.Now()
		err := ping(ctx)
		latency := float64(time.Since(start).Nanoseconds()) / 1e6

		resp := &healthStatusResponse{}
		resp.Body.Latency = latency
		if err != nil {
			resp.Body.Status = "unhealthy"
			resp.Body.Message = fmt.Sprintf("%s 連接失敗: %v", display, err)
		} else {
			resp.Body.Status = "healthy"
			resp.Body.Message = display + " 連接正常"
		}
		return resp, nil
	})
}

func initializeServices() (*AppServices, error) {
	mongoDB, err := infra.NewMongoDB(log.Logger, infra.AppConfig.MongoConfig())
	if err != nil {
		return nil, fmt.Errorf("MongoDB初始化失敗: %w", err)
	}

	// Redis 與 RabbitMQ 只有 /ipfs 端點需要，失敗時繼續運行
	redisClient, err := infra.NewRedis(log.Logger, infra.AppConfig.RedisConfig())
	if err != nil {
		log.Error().
			Err(err).
			Msg("Redis連接失敗 (繼續運行)")
		redisClient = nil
	}

	rabbitMQ, err := infra.NewRabbitMQ(log.Logger, infra.AppConfig.RabbitMQConfig())
	if err != nil {
		log.Error().
			Err(err).
			Msg("RabbitMQ連接失敗 (繼續運行)")
		rabbitMQ = nil
	}

	return &AppServices{
		MongoDB:  mongoDB,
		Redis:    redisClient,
		RabbitMQ: rabbitMQ,
	}, nil
}

func cleanupServices(services *AppServices) {
	if services.MongoDB != nil {
		if err := services.MongoDB.Close(context.Background()); err != nil {
			log.Error().
				Err(err).
				Msg("MongoDB關閉錯誤")
		}
	}

	if services.Redis != nil {
		if err := services.Redis.Close(); err != nil {
			log.Error().
				Err(err).
				Msg("Redis關閉錯誤")
		}
	}

	if services.RabbitMQ != nil {
		if err := services.RabbitMQ.Close(); err != nil {
			log.Error().
				Err(err).
				Msg("RabbitMQ關閉錯誤")
		}
	}
}
