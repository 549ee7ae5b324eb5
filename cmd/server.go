/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qmsops/capa-gin/internal/api"
	"github.com/qmsops/capa-gin/internal/config"
	"github.com/qmsops/capa-gin/internal/container"
	"github.com/qmsops/capa-gin/internal/metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Capa Gin API server.
The server will listen on the configured host and port,
and provide REST API interfaces for workflow orchestration,
delegations and permission checks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyServerFlags(cmd, cfg)

		// 2. 初始化日志
		logger, err := api.NewLoggerFromConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if config.IsProduction(cfg) {
			gin.SetMode(gin.ReleaseMode)
		}

		// 3. 初始化容器
		ctr, err := container.NewContainer(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 4. 启动 WebSocket Hub
		go ctr.Hub().Run()

		// 5. 启动后台任务
		bgCtx, bgCancel := context.WithCancel(context.Background())
		defer bgCancel()

		// 超期扫描,间隔为 0 时关闭
		if cfg.Workflow.EscalationScan > 0 {
			scanner := ctr.DeadlineScanner(time.Duration(cfg.Workflow.EscalationScan) * time.Second)
			go scanner.Run(bgCtx)
		}

		// 数据库连接池指标
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-bgCtx.Done():
					return
				case <-ticker.C:
					if err := metrics.UpdateDatabaseConnections(ctr.DB()); err != nil {
						logger.WithError(err).Debug("failed to update database metrics")
					}
				}
			}
		}()

		// 6. 配置热加载,运行时调整日志级别
		if configPath != "" {
			watcher := config.NewWatcher(cfg, configPath, logger)
			watcher.OnChange(func(newCfg *config.Config) {
				level, err := logrus.ParseLevel(newCfg.Log.Level)
				if err != nil {
					logger.WithError(err).Warn("invalid log level in reloaded config")
					return
				}
				logger.SetLevel(level)
			})
			if err := watcher.Start(); err != nil {
				logger.WithError(err).Warn("config hot reload disabled")
			} else {
				defer watcher.Stop()
			}
		}

		// 7. 设置路由
		router := api.SetupRoutes(&api.RouterDeps{
			Config:            cfg,
			DB:                ctr.DB(),
			Logger:            logger,
			Validator:         ctr.KeycloakValidator(),
			Hub:               ctr.Hub(),
			WorkflowService:   ctr.WorkflowService(),
			DefinitionService: ctr.DefinitionService(),
			DelegationService: ctr.DelegationService(),
		})

		// 未匹配的路由返回 JSON 格式的 404
		router.NoRoute(func(c *gin.Context) {
			api.Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
		})

		// 8. 启动服务器
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		go func() {
			logger.WithField("addr", addr).Info("server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Fatal("failed to start server")
			}
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("shutting down server")

		// 优雅关闭
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Fatal("server forced to shutdown")
		}

		logger.Info("server exited")
		return nil
	},
}

// applyServerFlags 用显式传入的命令行标志覆盖配置中的监听地址
func applyServerFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		if host, err := cmd.Flags().GetString("host"); err == nil {
			cfg.Server.Host = host
		}
	}
	if cmd.Flags().Changed("port") {
		if port, err := cmd.Flags().GetInt("port"); err == nil {
			cfg.Server.Port = port
		}
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// 服务器配置标志
	serverCmd.Flags().String("config", "", "Config file path (default: config.yaml)")
	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
}
