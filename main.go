package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chaos-io/packshot/config"
	"github.com/chaos-io/packshot/handler"
	"github.com/chaos-io/packshot/middleware"
	"github.com/chaos-io/packshot/pipeline"
	"github.com/chaos-io/packshot/pipeline/rembg"
	"github.com/chaos-io/packshot/util"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".bmp": true, ".tiff": true, ".webp": true,
}

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	inputDir := flag.String("input", "", "批量模式：输入目录（留空则启动 HTTP 服务）")
	outputDir := flag.String("output", "./processed_images", "批量模式：输出目录")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.New()
	}

	if err := util.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.Sync()

	var remover rembg.Remover = rembg.Disabled{}
	if cfg.Rembg.Endpoint != "" {
		remover = rembg.NewHTTPRemover(cfg.Rembg.Endpoint)
	}

	if *inputDir != "" {
		runBatch(*inputDir, *outputDir, cfg.Processing, remover)
		return
	}

	util.Logger.Info("starting packshot server",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit))

	if err := os.MkdirAll(cfg.Upload.UploadDir, 0755); err != nil {
		util.Logger.Fatal("failed to create upload directory", zap.Error(err))
	}

	// 定时清理过期的临时上传文件
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Upload.SweepEvery, func() {
		sweepUploads(cfg.Upload.UploadDir, cfg.Upload.MaxAge)
	}); err != nil {
		util.Logger.Warn("invalid sweep schedule, cleanup disabled", zap.Error(err))
	} else {
		sweeper.Start()
		defer sweeper.Stop()
	}

	processHandler := handler.NewProcessHandler(cfg, remover, *configPath)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	api := r.Group("/api")
	{
		api.GET("/health", processHandler.Health)
		api.POST("/process-single", processHandler.ProcessSingle)
		api.POST("/process-batch", processHandler.ProcessBatch)
		api.POST("/process-base64", processHandler.ProcessBase64)
		api.GET("/config", processHandler.GetConfig)
		api.POST("/config", processHandler.UpdateConfig)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	util.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		util.Logger.Fatal("failed to start server", zap.Error(err))
	}
}

// runBatch 把目录下的所有图片跑一遍流水线
func runBatch(inputDir, outputDir string, cfg pipeline.Config, remover rembg.Remover) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		util.Logger.Fatal("failed to create output directory", zap.Error(err))
	}

	total, processed := 0, 0
	err := filepath.WalkDir(inputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !imageExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		total++

		img, err := util.OpenImage(path)
		if err != nil {
			util.Logger.Warn("failed to open image", zap.String("file", path), zap.Error(err))
			return nil
		}
		result, err := pipeline.Process(context.Background(), img, cfg, remover)
		if err != nil {
			util.Logger.Warn("failed to process image", zap.String("file", path), zap.Error(err))
			return nil
		}

		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		outPath := filepath.Join(outputDir, "processed_"+base+"."+string(result.Format))
		if err := os.WriteFile(outPath, result.Data, 0644); err != nil {
			util.Logger.Warn("failed to write output", zap.String("file", outPath), zap.Error(err))
			return nil
		}
		processed++

		util.Logger.Info("processed",
			zap.String("file", path),
			zap.Bool("product_found", result.Diagnostics.ProductFound),
			zap.Int("size", result.Diagnostics.EncodedSize),
			zap.Int("quality", result.Diagnostics.Quality))
		return nil
	})
	if err != nil {
		util.Logger.Fatal("failed to walk input directory", zap.Error(err))
	}

	util.Logger.Info("batch done", zap.Int("total", total), zap.Int("processed", processed))
}

// sweepUploads 删除超过 maxAge 的临时文件
func sweepUploads(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		util.Logger.Warn("failed to read upload directory", zap.Error(err))
		return
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		util.Logger.Info("swept stale uploads", zap.Int("removed", removed))
	}
}
