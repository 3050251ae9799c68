// Package tracing 提供 OpenTelemetry 分布式追踪
//
// 佣金计算、打款生成与供应商同步各自开 span，HTTP 入口的 span 由 common/middleware 创建。
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const defaultServiceName = "marketplace-commission"

// Config 追踪配置
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string // OTLP gRPC 地址，为空时输出到 stdout
	SampleRate     float64
	Enabled        bool
}

// Tracer 追踪器
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

var defaultTracer *Tracer

// Init 初始化全局追踪器，禁用时返回空追踪器，span 退化为 noop
func Init(cfg *Config) (*Tracer, error) {
	if cfg == nil {
		cfg = &Config{ServiceName: defaultServiceName, SampleRate: 1.0, Enabled: true}
	}
	if !cfg.Enabled {
		defaultTracer = &Tracer{}
		return defaultTracer, nil
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, err
	}
	return install(cfg, sdktrace.WithBatcher(exporter))
}

func newExporter(cfg *Config) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("创建 stdout 导出器失败: %w", err)
		}
		return exporter, nil
	}

	client := otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	exporter, err := otlptrace.New(context.Background(), client)
	if err != nil {
		return nil, fmt.Errorf("创建 OTLP 导出器失败: %w", err)
	}
	return exporter, nil
}

// sampler 按比例采样，已有父 span 时跟随父 span 的决定
func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case rate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

func install(cfg *Config, processor sdktrace.TracerProviderOption) (*Tracer, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	// 不带 schema URL，避免与 resource.Default 的版本冲突
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("创建资源失败: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	defaultTracer = &Tracer{provider: provider, tracer: provider.Tracer(serviceName)}
	return defaultTracer, nil
}

// Shutdown 刷新并关闭导出器
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// StartSpan 使用全局追踪器开始 span，未初始化时返回上下文中已有的 span
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if defaultTracer == nil || defaultTracer.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return defaultTracer.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetError 记录错误并将当前 span 标记为失败
func SetError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes 设置当前 span 属性
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// 常用属性键
var (
	AttrVendorID     = attribute.Key("vendor.id")
	AttrOrderID      = attribute.Key("order.id")
	AttrOrderItemID  = attribute.Key("order_item.id")
	AttrSupplierCode = attribute.Key("supplier.code")
	AttrOperation    = attribute.Key("operation")
)

func WithVendorID(id int64) attribute.KeyValue {
	return AttrVendorID.Int64(id)
}

func WithOrderID(id int64) attribute.KeyValue {
	return AttrOrderID.Int64(id)
}

func WithOrderItemID(id int64) attribute.KeyValue {
	return AttrOrderItemID.Int64(id)
}

func WithSupplierCode(code string) attribute.KeyValue {
	return AttrSupplierCode.String(code)
}

func WithOperation(op string) attribute.KeyValue {
	return AttrOperation.String(op)
}
