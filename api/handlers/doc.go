// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 AIHub HTTP API 的请求处理器实现。

# 核心类型

  - AIHandler：生成、对话、带图对话、分析、编辑五个端点，
    将 HTTP 请求转换为 dispatch.Request 并输出统一结果信封
  - HealthHandler：/api/health 服务状态，/healthz 与 /ready 探针
  - HealthCheck：可插拔就绪检查，/ready 并发执行

# 主要能力

  - WriteEnvelope：按错误码映射 HTTP 状态码并输出扁平 JSON
  - DecodeJSONBody：请求体大小限制与 JSON 解码
  - ResponseWriter：捕获状态码与响应字节数，供中间件使用
*/
package handlers
