package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	_ "go.uber.org/automaxprocs"

	"docreview/cmd/review-service/internal/infrastructure/event"
	"docreview/pkg/observability"
)

var (
	// Name is the name of the compiled software.
	Name = "review-service"
	// Version is the version of the compiled software.
	Version = "v1.0.0"

	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/review-service.yaml", "config path, eg: -conf config.yaml")
}

func newApp(logger log.Logger, hs *http.Server, consumer *event.ResultConsumer) *kratos.App {
	return kratos.New(
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
			consumer,
		),
	)
}

func main() {
	flag.Parse()

	// 创建日志
	logger := log.With(log.NewStdLogger(os.Stdout),
		"service.name", Name,
		"service.version", Version,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
	)

	// 加载配置
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var conf Config
	if err := c.Scan(&conf); err != nil {
		panic(err)
	}

	// 初始化链路追踪
	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		ServiceName:    Name,
		ServiceVersion: Version,
		Endpoint:       conf.Trace.Endpoint,
		SamplingRate:   conf.Trace.SamplingRate,
		Enabled:        conf.Trace.Enabled,
	})
	if err != nil {
		panic(err)
	}
	defer shutdownTracing(context.Background())

	// 使用Wire依赖注入初始化应用
	app, cleanup, err := wireApp(&conf, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 启动应用
	helper := log.NewHelper(logger)
	helper.Infof("starting %s version %s...", Name, Version)
	helper.Infof("http server: %s", conf.Server.HTTP.Addr)

	if err := app.Run(); err != nil {
		helper.Errorf("failed to run app: %v", err)
		panic(err)
	}
}
