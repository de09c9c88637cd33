// Package config 提供 AIHub 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加，
// 环境变量使用 AIHUB_ 前缀，并兼容 GEMINI_API_KEY 与 OPENAI_API_KEY。
package config
