package tracing

import (
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

type Config struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

// InitGlobalTracer installs a jaeger tracer configured by the JAEGER_* environment variables.
func InitGlobalTracer(c Config) (io.Closer, error) {
	if !c.Enabled {
		return noopCloser{}, nil
	}
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, err
	}
	if c.ServiceName != "" {
		cfg.ServiceName = c.ServiceName
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "protocolo"
	}
	tracer, closer, err := cfg.NewTracer(jaegercfg.Logger(jaeger.StdLogger))
	if err != nil {
		return nil, err
	}
	opentracing.SetGlobalTracer(tracer)
	logrus.WithField("service", cfg.ServiceName).Info("jaeger tracer installed")
	return closer, nil
}
