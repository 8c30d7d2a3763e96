package server

import (
	"net/http"

	"cheshire/internal/health"
	"cheshire/internal/plugin"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Factory IDs match the transport kind strings the runtime resolves from
// exposure bindings.
const (
	FactoryHTTPJSON  = "HTTP_JSON"
	FactoryJSONRPC   = "JSONRPC"
	FactoryStdio     = "STDIO"
	FactoryStreaming = "STREAMING"
)

// RegisterBuiltinServers publishes the in-tree transport server factories on
// the catalog. The HTTP/JSON factory carries the health monitor, the
// metrics, and a Prometheus handler for the observability endpoints.
func RegisterBuiltinServers(catalog *plugin.Catalog, monitor *health.Monitor, metrics *health.Metrics) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		health.NewCollector(metrics, monitor),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	factories := []plugin.ServerFactory{
		&httpJSONFactory{monitor: monitor, metrics: metrics, promHandler: promHandler},
		&jsonrpcFactory{metrics: metrics},
		&stdioFactory{metrics: metrics},
		&streamingFactory{metrics: metrics},
	}
	for _, f := range factories {
		if err := catalog.RegisterServerFactory(f); err != nil {
			return err
		}
	}
	return nil
}

type httpJSONFactory struct {
	monitor     *health.Monitor
	metrics     *health.Metrics
	promHandler http.Handler
}

func (f *httpJSONFactory) ID() string { return FactoryHTTPJSON }

func (f *httpJSONFactory) Create(binding plugin.ServerBinding) (plugin.Server, error) {
	return NewHTTPJSONServer(binding, f.monitor, f.metrics, f.promHandler), nil
}

type jsonrpcFactory struct {
	metrics *health.Metrics
}

func (f *jsonrpcFactory) ID() string { return FactoryJSONRPC }

func (f *jsonrpcFactory) Create(binding plugin.ServerBinding) (plugin.Server, error) {
	return NewJSONRPCServer(binding, f.metrics), nil
}

type stdioFactory struct {
	metrics *health.Metrics
}

func (f *stdioFactory) ID() string { return FactoryStdio }

func (f *stdioFactory) Create(binding plugin.ServerBinding) (plugin.Server, error) {
	return NewStdioServer(binding, f.metrics), nil
}

type streamingFactory struct {
	metrics *health.Metrics
}

func (f *streamingFactory) ID() string { return FactoryStreaming }

func (f *streamingFactory) Create(binding plugin.ServerBinding) (plugin.Server, error) {
	return NewStreamingServer(binding, f.metrics), nil
}
