// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 AIHub 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 dispatch、convo、imaging、
providers、api 等模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - Role / ConversationTurn / ContentPart：对话历史（user / assistant，文本或图片片段）
  - Error / ErrorCode：结构化错误，含 HTTP 状态码、Retryable、Provider 标记
  - ResultEnvelope：所有分发请求的唯一输出形态，序列化为扁平 JSON

# 主要能力

  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode
  - 错误码到 HTTP 状态码映射：DefaultHTTPStatus
  - 信封构造：Success / Failure
*/
package types
