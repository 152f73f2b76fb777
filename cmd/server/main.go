// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"verona-ai-go/internal/config"
	"verona-ai-go/internal/handler"
	"verona-ai-go/internal/middleware"
	"verona-ai-go/internal/model"
	"verona-ai-go/internal/repository"
	"verona-ai-go/internal/service"
	"verona-ai-go/pkg/braintrust"
	"verona-ai-go/pkg/database"
	"verona-ai-go/pkg/kafka"
	"verona-ai-go/pkg/llm"
	"verona-ai-go/pkg/log"
	"verona-ai-go/pkg/tasks"
	"verona-ai-go/pkg/token"
	"verona-ai-go/pkg/weaviate"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化可选的存储依赖。
	// MySQL 承载账号与搜索审计，Redis 承载训练范例持久化，
	// 任一缺失时对应功能降级，检索主链路不受影响。
	if cfg.Database.MySQL.DSN != "" {
		database.InitMySQL(cfg.Database.MySQL.DSN)
		if err := database.DB.AutoMigrate(&model.User{}, &model.SearchLog{}); err != nil {
			log.Fatalf("数据库迁移失败: %v", err)
		}
	} else {
		log.Warn("未配置 MySQL，账号与搜索历史功能不可用")
	}
	if cfg.Database.Redis.Addr != "" {
		database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	} else {
		log.Warn("未配置 Redis，训练范例仅保存在内存中")
	}

	// 4. 初始化检索与生成的必需依赖
	store, err := weaviate.NewClient(cfg.Weaviate)
	if err != nil {
		log.Fatalf("Weaviate 客户端初始化失败: %v", err)
	}
	llmClient := llm.NewClient(cfg.Anthropic)
	tracer := braintrust.NewClient(cfg.Braintrust)

	// 5. 初始化 Repository（底层依赖缺失时保持 nil，由上层降级）
	var userRepository repository.UserRepository
	var searchLogRepo repository.SearchLogRepository
	if database.DB != nil {
		userRepository = repository.NewUserRepository(database.DB)
		searchLogRepo = repository.NewSearchLogRepository(database.DB)
	}
	var exampleRepo repository.ExampleRepository
	if database.RDB != nil {
		exampleRepo = repository.NewExampleRepository(database.RDB)
	}

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	answerService := service.NewAnswerService(llmClient)
	searchService := service.NewSearchService(store, answerService, cfg.Weaviate)
	optimizer := service.NewOptimizer(cfg.Pipeline, exampleRepo)
	companyService := service.NewCompanyService(store, cfg.Weaviate)
	var userService service.UserService
	if userRepository != nil {
		userService = service.NewUserService(userRepository, jwtManager)
	}

	// 优化任务的触发方式：配置了 Kafka 时走消息队列，
	// 否则由 PipelineService 退化为进程内 goroutine 直接执行。
	var trigger service.OptimizeTrigger
	if cfg.Kafka.Brokers != "" {
		kafka.InitProducer(cfg.Kafka)
		trigger = func(task tasks.OptimizeTask) error {
			return kafka.ProduceOptimizeTask(task)
		}
	} else {
		log.Warn("未配置 Kafka，优化任务将在进程内直接执行")
	}
	pipelineService := service.NewPipelineService(searchService, optimizer, tracer, searchLogRepo, trigger, cfg.Pipeline)

	// 7. 启动后台 Kafka 消费者，由 PipelineService 消费优化任务
	if cfg.Kafka.Brokers != "" {
		go kafka.StartConsumer(cfg.Kafka, pipelineService)
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	searchHandler := handler.NewSearchHandler(pipelineService, searchService)
	pipelineHandler := handler.NewPipelineHandler(pipelineService)
	companyHandler := handler.NewCompanyHandler(companyService)
	streamHandler := handler.NewStreamHandler(searchService)

	apiV1 := r.Group("/api/v1")
	{
		// Search 路由组：匿名可用，带 token 时把用户信息计入审计
		search := apiV1.Group("/search")
		search.Use(middleware.OptionalAuthMiddleware(jwtManager))
		{
			search.POST("", searchHandler.Search)
			search.GET("", searchHandler.QuickSearch)
			search.GET("/history", searchHandler.History)
			search.GET("/stream", streamHandler.Handle)
		}

		// Pipeline 路由组：优化器状态与手动触发。
		// 账号功能可用时手动触发需要认证，否则开放（单机/内网部署场景）。
		pipelineGroup := apiV1.Group("/pipeline")
		{
			pipelineGroup.GET("/status", pipelineHandler.Status)
			optimize := pipelineGroup.Group("")
			if userService != nil {
				optimize.Use(middleware.AuthMiddleware(jwtManager, userService))
			}
			optimize.POST("/optimize", pipelineHandler.Optimize)
		}

		// Companies 路由组：文档集合启发式公司抽取
		companies := apiV1.Group("/companies")
		{
			companies.GET("/extract", companyHandler.Extract)
		}

		// 账号相关路由仅在配置了 MySQL 时开放
		if userService != nil {
			userHandler := handler.NewUserHandler(userService)

			auth := apiV1.Group("/auth")
			{
				auth.POST("/register", userHandler.Register)
				auth.POST("/login", userHandler.Login)
				auth.POST("/refreshToken", userHandler.RefreshToken)
			}

			users := apiV1.Group("/users")
			users.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				users.GET("/me", userHandler.GetProfile)
			}
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个阻塞循环，进程退出时自然结束；
	// 如需更精细的控制，可以在 StartConsumer 中实现一个关闭通道。
	log.Info("服务已优雅关闭")
}
