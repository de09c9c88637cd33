// Package api holds the wire types of the AIHub HTTP API.
//
// # API Overview
//
// AIHub exposes a small JSON API in front of external generative-AI services:
//   - POST /api/generate          text-to-image generation
//   - POST /api/chat              text chat with optional history
//   - POST /api/chat-with-image   multipart chat with an optional image
//   - POST /api/analyze           image description
//   - POST /api/edit              instruction-driven image editing
//   - GET  /api/health            per-service availability
//
// Every dispatch endpoint answers with a flat envelope: "status" is "success"
// or "error"; errors carry "error" and "code"; success payload keys sit next
// to "status".
//
// # Base URL
//
//	http://localhost:5000
package api
