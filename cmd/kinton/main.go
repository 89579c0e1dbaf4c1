package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/katsuopg/kinton/internal/config"
	"github.com/katsuopg/kinton/internal/kinton/entity"
	"github.com/katsuopg/kinton/internal/kinton/handler"
	"github.com/katsuopg/kinton/internal/kinton/repository"
	"github.com/katsuopg/kinton/internal/kinton/service"
	"github.com/katsuopg/kinton/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting kinton service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Role{},
		&entity.UserRole{},
		&entity.Organization{},
		&entity.OrgMembership{},
		&entity.Application{},
		&entity.FieldDefinition{},
		&entity.Record{},
		&entity.RecordComment{},
		&entity.RecordAttachment{},
		&entity.AppPermissionRule{},
		&entity.RecordPermissionRule{},
		&entity.ProcessDefinition{},
		&entity.ProcessStatus{},
		&entity.ProcessAction{},
		&entity.ProcessActionExecutor{},
		&entity.RecordProcessState{},
		&entity.ProcessActionLog{},
		&entity.AppTemplate{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	// Seed: 系统管理员角色
	db.Exec(`INSERT INTO roles (id, code, name, is_system_role, can_manage_apps, created_at, updated_at)
		VALUES (gen_random_uuid(), ?, '系统管理员', true, true, NOW(), NOW())
		ON CONFLICT (code) DO NOTHING`, entity.SystemAdminRoleCode)

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, cfg)
	handlers := handler.NewHandlers(services, cfg)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证 (无需登录)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的接口
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			// 当前用户
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.POST("/auth/logout", h.Auth.Logout)

			// 用户
			authorized.GET("/users", h.User.List)

			// 应用管理
			apps := authorized.Group("/apps")
			{
				apps.GET("", h.App.List)
				apps.POST("", h.App.Create)
				apps.GET("/:code", h.App.Get)
				apps.DELETE("/:code", h.App.Delete)
				apps.POST("/:code/purge", h.App.Purge)
				apps.POST("/:code/fields", h.App.AddField)

				// 记录
				apps.GET("/:code/records", h.Record.List)
				apps.POST("/:code/records", h.Record.Create)
				apps.POST("/:code/records/validate", h.Record.Validate)
				apps.GET("/:code/records/:number", h.Record.Get)
				apps.PUT("/:code/records/:number", h.Record.Update)
				apps.DELETE("/:code/records/:number", h.Record.Delete)
				apps.POST("/:code/records/:number/comments", h.Record.AddComment)
				apps.POST("/:code/records/:number/attachments", h.Record.UploadAttachment)
				apps.GET("/:code/export", h.Record.Export)

				// 流程
				apps.GET("/:code/process", h.Process.GetDefinition)
				apps.PUT("/:code/process", h.Process.ReplaceDefinition)
				apps.GET("/:code/records/:number/actions", h.Process.ListAvailableActions)
				apps.POST("/:code/records/:number/actions", h.Process.ApplyAction)
				apps.GET("/:code/records/:number/action-logs", h.Process.ListActionLogs)

				// 权限规则
				apps.GET("/:code/permissions/app", h.Permission.ListAppRules)
				apps.POST("/:code/permissions/app", h.Permission.CreateAppRule)
				apps.GET("/:code/permissions/records", h.Permission.ListRecordRules)
				apps.POST("/:code/permissions/records", h.Permission.CreateRecordRule)
				apps.GET("/:code/permissions/check", h.Permission.CheckCapability)

				// 模板提取
				apps.POST("/:code/template", h.Template.Extract)
			}

			// 附件
			authorized.GET("/attachments/:id", h.Record.DownloadAttachment)
			authorized.DELETE("/attachments/:id", h.Record.DeleteAttachment)

			// 模板
			templates := authorized.Group("/templates")
			{
				templates.GET("", h.Template.List)
				templates.POST("/:id/instantiate", h.Template.Instantiate)
			}
		}
	}
}
