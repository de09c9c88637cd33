// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 AIHub 服务端程序入口。

# 概述

cmd/aihub 是 AIHub 的可执行入口，提供 HTTP API 服务、健康检查和版本查询
等子命令。程序支持 YAML 配置文件加载与 AIHUB_ 前缀环境变量覆盖、结构化日志
（zap，可选 lumberjack 滚动文件）、OpenTelemetry 与 Prometheus 指标。

# 核心类型

  - Server：装配 Provider、路由、处理器，管理 API 与 Metrics 双端口
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、version、health、help
  - 中间件链：Recovery、RequestID（uuid）、SecurityHeaders、RequestLogger、
    MetricsMiddleware、OTelTracing、CORS、RateLimiter（基于 IP）
  - Provider 初始化失败时记为不可用，由 /api/health 报告
  - 优雅关闭：信号监听 → 并行关闭 API 与 Metrics → 关闭遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
