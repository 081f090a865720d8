package embed

import (
	_ "embed"
)

// ConfigTemplate 带注释的默认配置文件
// 编译时从 config.example.yaml 嵌入到二进制文件中
//
//go:embed config.example.yaml
var ConfigTemplate []byte
