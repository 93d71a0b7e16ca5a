/*
Package http provides the gateway's REST handlers.

# Overview

Handlers translate HTTP requests into community service calls and map the
resiliency errors back to status codes: an open circuit becomes 503, a
missing row becomes 404, and platform errors pass their status through.

# Endpoints

Content:
  - GET  /feed
  - GET  /posts/:id
  - POST /posts
  - GET  /posts/:id/comments
  - POST /posts/:id/comments
  - POST /posts/:id/like
  - POST /posts/:id/unlike

Messaging:
  - GET  /users/:userId/conversations
  - GET  /conversations/:id/messages
  - POST /conversations/:id/messages

Notifications and profiles:
  - GET   /users/:userId/notifications
  - POST  /users/:userId/notifications/seen
  - GET   /users/:userId/profile
  - PATCH /users/:userId/profile
  - GET   /users/:userId/achievements
  - GET   /users/:userId/activity

System:
  - GET  /            (liveness)
  - GET  /health
  - GET  /status
  - POST /system/cache/invalidate
  - POST /system/recovery
  - POST /system/reconnect
*/
package http
