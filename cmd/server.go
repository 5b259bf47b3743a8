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
	"github.com/jewelmart/approval-core/internal/api"
	"github.com/jewelmart/approval-core/internal/config"
	"github.com/jewelmart/approval-core/internal/container"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Approval Core API server.
The server will listen on the configured host and port and provide
REST API interfaces for approval requests, workflows, delegations,
spending limits and the spending ledger. Background workers handle
escalation sweeps, limit resets and decision event delivery.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err := api.NewLoggerFromConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logrus.SetLevel(logger.GetLevel())

		// 2. 初始化容器
		ctr, err := container.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 3. 启动后台组件
		ctr.Sweeper().Start()
		ctr.EventDispatcher().Start()
		ctr.MetricsCollector().Start()

		// 4. 监听配置文件变更,运行中只调整日志级别
		if configPath != "" {
			watcher := config.NewConfigWatcher(cfg, configPath)
			watcher.OnConfigChange(func(updated *config.Config) {
				if level, err := logrus.ParseLevel(updated.Log.Level); err == nil {
					logger.SetLevel(level)
					logrus.SetLevel(level)
				}
				logger.Info("configuration reloaded")
			})
			if err := watcher.Start(); err != nil {
				logger.WithError(err).Warn("config watcher failed to start")
			} else {
				defer watcher.Stop()
			}
		}

		// 5. 设置路由
		controllers := api.NewControllers(
			ctr.ApprovalService(),
			ctr.WorkflowService(),
			ctr.SpendingService(),
			ctr.QueryService(),
		)
		router := api.SetupRoutes(cfg, ctr.DB(), controllers)

		// 自定义 NoRoute 处理器,返回 JSON 格式的 404
		router.NoRoute(func(c *gin.Context) {
			api.Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
		})

		// 6. 启动服务器
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		// 启动服务器（在 goroutine 中）
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

func init() {
	rootCmd.AddCommand(serverCmd)

	// 服务器配置标志
	serverCmd.Flags().String("config", "", "Config file path (default: config.yaml)")
	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
}

// LoadConfig 加载配置
func LoadConfig(configPath string) (*config.Config, error) {
	return config.Load(configPath)
}
