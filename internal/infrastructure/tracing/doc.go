/*
Package tracing provides distributed tracing for debugging production issues.

# Overview

This package implements lightweight distributed tracing to track requests
from the browser through the gateway and into the hosted platform. It follows
OpenTelemetry concepts but with a minimal implementation tailored to the
system's needs.

# Features

- Trace context propagation via HTTP headers
- Span creation and management with parent-child relationships
- Automatic trace ID generation
- HTTP middleware for automatic instrumentation
- Client spans around platform calls
- Structured logging integration
- Low overhead with buffered span collection

# Usage

	// Create tracer
	tracer := tracing.New("gateway", logger)

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// Platform call span
	ctx, finish := tracing.PlatformSpan(ctx, tracer, "content", "list_posts")
	posts, err := svc.ListPosts(ctx, 20)
	finish(err)

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	span.SetTag("key", "value")
	span.Log("message", map[string]interface{}{"detail": "info"})

# Trace Format

Traces use standard HTTP headers for propagation:
- X-Trace-ID: Unique identifier for entire request flow
- X-Span-ID: Identifier for current operation

# Performance

The tracing system is designed for minimal overhead:
- Buffered span collection (1000 spans)
- Async span processing
- Structured logging integration
- No external dependencies
*/
package tracing
