// Package httpclient 提供出站 HTTP 客户端的统一构造，
// 为图片抓取、Pollinations 与 OpenAI 兼容接口提供 TLS 加固（TLS 1.2+，仅 AEAD 密码套件）
// 与统一的 User-Agent。
package httpclient
