package paths

import (
	"os"
	"path/filepath"
)

// appName 数据目录名
const appName = "roundtable"

// GetDataDir 获取应用数据目录
func GetDataDir() string {
	userConfigDir, err := os.UserConfigDir()
	if err != nil || userConfigDir == "" {
		return filepath.Join(".", "data")
	}
	return filepath.Join(userConfigDir, appName)
}

// GetConfigDir 获取配置文件目录（与数据目录相同）
func GetConfigDir() string {
	return GetDataDir()
}

// GetCacheDir 获取缓存目录
func GetCacheDir(dataDir string) string {
	if dataDir == "" {
		dataDir = GetDataDir()
	}
	return filepath.Join(dataDir, "cache")
}

// EnsureCacheDir 确保缓存目录存在并返回路径
func EnsureCacheDir(dataDir, subDir string) string {
	dir := filepath.Join(GetCacheDir(dataDir), subDir)
	os.MkdirAll(dir, 0755)
	return dir
}
