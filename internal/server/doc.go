/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
优雅关闭与多服务器编排。

# 核心类型

  - Manager：封装 net/http.Server，持有监听器与异步错误通道，
    提供 Start/Shutdown/Errors/Addr 等生命周期方法。
  - Config：监听地址、读写超时、请求头上限与优雅关闭超时。

# 主要能力

  - Run：同时启动 API 与 metrics 服务器，ctx 结束或任一服务器
    异常退出时并行关闭全部服务器。信号处理由调用方通过
    signal.NotifyContext 注入 ctx。
*/
package server
