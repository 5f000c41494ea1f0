// 手动导出某个用户的教程进度
//
// 读取持久化存储中的原始数据，按课程汇总后以 YAML 输出，用于排查"进度丢失"一类的反馈。
// 只读，不会修改任何数据。
//
// 用法: go run scripts/progress_report.go -user 42

package main

import (
	"color_academy_backend/internal/config"
	"color_academy_backend/internal/progress"
	"color_academy_backend/internal/repository"
	"color_academy_backend/pkg/database"
	"color_academy_backend/pkg/logger"
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type report struct {
	Key      string                                    `yaml:"key"`
	Backend  string                                    `yaml:"backend"`
	Summary  []progress.CourseSummary                  `yaml:"summary"`
	Chapters map[progress.Course]progress.CourseProgress `yaml:"chapters"`
}

func main() {
	userID := flag.Uint("user", 0, "用户 ID")
	flag.Parse()
	if *userID == 0 {
		log.Fatal("缺少 -user 参数")
	}

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}
	logger.InitLogger(cfg)

	var storage progress.Storage
	switch cfg.Progress.Backend {
	case "redis":
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			log.Fatalf("Redis 连接失败: %v", err)
		}
		defer rdb.Close()
		storage = repository.NewProgressCache(rdb)
	case "database":
		db, err := database.InitDB(cfg)
		if err != nil {
			log.Fatalf("数据库连接失败: %v", err)
		}
		storage = repository.NewProgressRepository(db)
	default:
		log.Fatalf("progress.backend=%s 不会持久化，没有可导出的数据", cfg.Progress.Backend)
	}

	key := fmt.Sprintf("%s:%d", cfg.Progress.KeyPrefix, *userID)
	store := progress.NewStore(storage, key)
	if err := store.Load(context.Background()); err != nil {
		log.Fatalf("读取进度失败: %v", err)
	}
	st := store.State()

	out := report{
		Key:      key,
		Backend:  cfg.Progress.Backend,
		Summary:  st.Summary(),
		Chapters: st.Courses,
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		log.Fatalf("输出失败: %v", err)
	}
}
