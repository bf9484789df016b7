package main

import (
	"context"
	"os"
	"time"

	"ipfs-service-provider/infra"
	"ipfs-service-provider/service"

	"github.com/rs/zerolog/log"
)

func main() {
	// 自動尋找配置檔位置
	configPaths := []string{
		"config.yml",       // 當前目錄
		"../config.yml",    // 上層目錄
		"../../config.yml", // cmd/init 執行時的專案根目錄
	}

	usedPath := ""
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			usedPath = path
			break
		}
	}
	if usedPath == "" {
		log.Fatal().Strs("paths", configPaths).Msg("無法找到 config.yml 配置檔")
	}

	if err := infra.LoadConfigFrom(usedPath); err != nil {
		log.Fatal().Err(err).Str("path", usedPath).Msg("解析 config.yml 失敗")
	}
	infra.InitLogger()
	log.Info().Str("path", usedPath).Msg("找到配置檔")

	mongoDB, err := infra.NewMongoDB(log.Logger, infra.AppConfig.MongoConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("連接 MongoDB 失敗")
	}
	defer mongoDB.Close(context.Background())

	if err := infra.InitializeCollections(log.Logger, mongoDB.Database); err != nil {
		log.Fatal().Err(err).Msg("建立集合索引失敗")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	userService := service.NewUserService(log.Logger, infra.NewUserCollection(mongoDB), infra.AppConfig.JWT.SecretKey, infra.AppConfig.JWT.ExpiresHours)
	created, err := userService.EnsureAdmin(ctx, infra.AppConfig.Admin.Username, infra.AppConfig.Admin.Password)
	if err != nil {
		log.Fatal().Err(err).Msg("建立管理員帳號失敗")
	}
	if created {
		log.Info().Str("username", infra.AppConfig.Admin.Username).Msg("已建立管理員帳號")
	} else {
		log.Info().Str("username", infra.AppConfig.Admin.Username).Msg("管理員帳號已存在，略過")
	}

	log.Info().Msg("初始化完成")
}
