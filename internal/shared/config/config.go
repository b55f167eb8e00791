package config

import (
	"os"
	"path/filepath"
)

const defaultConfigRelPath = "configs/conf.yml"

// Load 读取配置文件。
// 约定：
// 1) 传入 cfgName（相对/绝对路径）则优先使用；
// 2) 否则从当前目录开始向上查找 `configs/conf.yml`。
func Load(cfgName string) (*Loader, error) {
	curDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if cfgName != "" {
		if !filepath.IsAbs(cfgName) {
			cfgName = filepath.Join(curDir, cfgName)
		}
		return load(cfgName)
	}

	path, err := findConfigUpward(curDir)
	if err != nil {
		return nil, err
	}
	return load(path)
}

func findConfigUpward(startDir string) (string, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, defaultConfigRelPath)
		if fileExist(candidate) {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &NotFoundError{From: startDir}
		}
		dir = parent
	}
}

type NotFoundError struct {
	From string
}

func (e *NotFoundError) Error() string {
	return "config file not exist, searched " + defaultConfigRelPath + " from: " + e.From
}
