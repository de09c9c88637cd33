/*
包 metrics 提供基于 Prometheus 的服务指标采集能力，覆盖
HTTP、请求分发、Token 用量与图片摄入四个维度。

# 概述

Collector 使用 promauto 注册到默认 Registry，所有指标按 namespace
隔离。Collector 同时满足 dispatch.Recorder 与 imaging.Recorder，
由 main 注入到 Router 与 Ingestor。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 分发指标：按 kind/provider/outcome 统计的请求数与耗时。
  - Token 指标：按 provider/model/type 累计。
  - 图片摄入：按 source/outcome 统计，附原始字节数分布。
  - Provider 可用性：provider_up Gauge。
*/
package metrics
