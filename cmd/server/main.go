// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"prdy-go/internal/config"
	"prdy-go/internal/handler"
	"prdy-go/internal/middleware"
	"prdy-go/internal/repository"
	"prdy-go/internal/service"
	"prdy-go/pkg/database"
	"prdy-go/pkg/llm"
	"prdy-go/pkg/log"
	"prdy-go/pkg/research"
	"syscall"
	"time"

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

	// 3. 初始化会话存储：配置了 Redis 时用 Redis，否则回退到进程内内存存储
	var conversationRepo repository.ConversationRepository
	if cfg.Session.Redis.Addr != "" {
		database.InitRedis(cfg.Session.Redis.Addr, cfg.Session.Redis.Password, cfg.Session.Redis.DB)
		conversationRepo = repository.NewRedisConversationRepository(
			database.RDB, time.Duration(cfg.Session.TTLHours)*time.Hour)
	} else {
		log.Info("未配置 Redis，使用进程内会话存储（仅限开发环境）")
		conversationRepo = repository.NewMemoryConversationRepository()
	}

	// 4. 初始化外部协作方客户端
	llmClient := llm.NewClient(cfg.LLM)
	researchClient := research.NewClient(cfg.Research)

	// 5. 初始化 Service (依赖注入)
	prdService, err := service.NewPRDService(cfg.Storage.OutputDir)
	if err != nil {
		log.Fatal("初始化 PRD 存储失败", err)
	}
	conversationService := service.NewConversationService(conversationRepo)
	chatService := service.NewChatService(conversationRepo, prdService, llmClient, researchClient)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	chatHandler := handler.NewChatHandler(chatService, conversationService)
	prdHandler := handler.NewPRDHandler(prdService)
	researchHandler := handler.NewResearchHandler(chatService, researchClient)

	api := r.Group("/api")
	api.Use(middleware.Session(cfg.Session.CookieName))
	{
		api.POST("/chat", chatHandler.Chat)
		api.POST("/generate-prd", chatHandler.GeneratePRD)
		api.POST("/clear", chatHandler.Clear)
		api.POST("/load-prd/:filename", chatHandler.LoadPRD)

		api.GET("/prds", prdHandler.List)
		api.GET("/prds/:filename", prdHandler.Get)
		api.POST("/prds/:filename/archive", prdHandler.Archive)

		researchGroup := api.Group("/research")
		{
			researchGroup.POST("", researchHandler.Research)
			researchGroup.POST("/search", researchHandler.Search)
			researchGroup.POST("/context", researchHandler.ContextResearch)
			researchGroup.POST("/save", researchHandler.Save)
		}
	}

	// 健康检查，供容器编排使用
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "prdy"})
	})

	// 8. 启动 HTTP 服务器并实现优雅停机
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

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
