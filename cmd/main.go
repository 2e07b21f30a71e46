package main

import (
	"log"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/SignalRoom/config"
	"github.com/Gopher0727/SignalRoom/internal/handlers"
	"github.com/Gopher0727/SignalRoom/internal/presence"
	"github.com/Gopher0727/SignalRoom/internal/routers"
	"github.com/Gopher0727/SignalRoom/internal/services"
	"github.com/Gopher0727/SignalRoom/internal/storage"
	"github.com/Gopher0727/SignalRoom/internal/store"
	"github.com/Gopher0727/SignalRoom/internal/ws"
	logger "github.com/Gopher0727/SignalRoom/middleware/log"
	"github.com/Gopher0727/SignalRoom/pkg/utils"
	"github.com/Gopher0727/SignalRoom/utils/snowflake"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	// 初始化日志
	zlog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer zlog.Close()

	// JWT 密钥与有效期
	utils.SetJWTSecret(cfg.JWT.Secret)
	utils.SetJWTTTL(time.Duration(cfg.JWT.TTLHours) * time.Hour)

	// 记录 ID 生成器（由存储层持有）
	gen, err := snowflake.NewGenerator(cfg.Snowflake.NodeID)
	if err != nil {
		log.Fatalf("ID 生成器初始化失败: %v", err)
	}

	// 初始化存储后端
	var st store.Store
	switch cfg.Store.Driver {
	case "postgres":
		dsn := storage.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
		db, err := storage.InitPostgres(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
		if err != nil {
			log.Fatalf("postgres 初始化失败: %v", err)
		}
		st = store.NewPostgresStore(db, gen)
	default:
		fs, err := store.NewFileStore(cfg.Store.Path, gen, zlog)
		if err != nil {
			log.Fatalf("文件存储初始化失败: %v", err)
		}
		st = fs
	}

	// 在线状态跟踪（可选，Redis 不可用时退化为 no-op）
	var tracker presence.Tracker = presence.NoopTracker{}
	if cfg.Redis.Enabled {
		redisClient, err := storage.InitRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
		if err != nil {
			log.Printf("redis 初始化失败: %v。在线状态跟踪降级为 no-op。", err)
		} else {
			tracker = presence.NewRedisTracker(redisClient, time.Duration(cfg.Redis.PresenceTTL)*time.Second)
		}
	}

	// 初始化服务层
	authService := services.NewAuthService(st)
	groupService := services.NewGroupService(st)
	messageService := services.NewMessageService(st)

	// 初始化长连接层
	sessions := ws.NewSessionRegistry()
	hub := ws.NewHub(sessions, groupService, zlog)
	gateway := ws.NewGateway(hub, authService, groupService, messageService, tracker, zlog)

	// 初始化处理器
	authHandler := handlers.NewAuthHandler(authService, zlog)
	groupHandler := handlers.NewGroupHandler(groupService, zlog)
	messageHandler := handlers.NewMessageHandler(messageService, zlog)

	// 配置并创建 Gin 引擎
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())

	// 设置路由
	routers.SetupRoutes(r,
		authHandler,
		groupHandler,
		messageHandler,
		gateway,
		zlog,
	)

	// 启动服务器
	log.Printf("正在启动服务器，监听端口 :%d\n", cfg.Server.Port)
	if err := r.Run(":" + strconv.FormatInt(int64(cfg.Server.Port), 10)); err != nil {
		log.Fatalf("启动服务器失败: %v", err)
	}
}
