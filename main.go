package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/any-hub/hubauth/internal/config"
	"github.com/any-hub/hubauth/internal/hubauth"
	"github.com/any-hub/hubauth/internal/logging"
	"github.com/any-hub/hubauth/internal/server"
	"github.com/any-hub/hubauth/internal/server/routes"
	"github.com/any-hub/hubauth/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

// listen 可在测试中替换，避免真正占用端口。
var listen = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["course_id"] = cfg.Global.CourseID
		fields["remap_url"] = cfg.HubAuth.RemapURL
		fields["graders"] = len(cfg.HubAuth.Graders)
		fields["tokens"] = cfg.TokenSources()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 出站 client → identity → 向 proxy 注册 → Fiber server。
	// 注册失败视为致命错误，进程不进入监听状态。
	client := server.NewRemoteClient(cfg)
	adapter, err := hubauth.New(context.Background(), hubauth.Options{
		Config:   cfg,
		Identity: buildIdentity(cfg, client, logger),
		Client:   client,
		Logger:   logger,
	})
	if err != nil {
		logger.WithFields(logging.BaseFields("register", opts.configPath)).WithError(err).Error("proxy 路由注册失败")
		fmt.Fprintf(stdErr, "注册 proxy 路由失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["course_id"] = cfg.Global.CourseID
	fields["auth_mode"] = cfg.HubAuth.AuthMode
	fields["listen_port"] = cfg.Global.ListenPort
	fields["tokens"] = cfg.TokenSources()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, adapter, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildIdentity 按 auth_mode 选择 cookie 校验方式。
func buildIdentity(cfg *config.Config, client *http.Client, logger *logrus.Logger) hubauth.Identity {
	if cfg.HubAuth.AuthMode == config.AuthModeDisabled {
		logger.WithField("action", "startup").Warn("auth_mode=disabled，所有 grader 请求都将被拒绝")
		return hubauth.DisabledIdentityFromConfig(cfg.HubAuth)
	}
	opts := hubauth.HubIdentityOptionsFromConfig(cfg.HubAuth)
	opts.Client = client
	opts.Logger = logger
	return hubauth.NewHubIdentity(opts)
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := pflag.NewFlagSet("hubauth", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 HUBAUTH_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("HUBAUTH_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// printVersion 输出注入的版本 + 提交信息。
func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
}

func startHTTPServer(cfg *config.Config, adapter *hubauth.Adapter, logger *logrus.Logger) error {
	app, err := server.NewApp(server.AppOptions{
		Logger:  logger,
		Adapter: adapter,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnostics(app)
	paths := routes.RegisterGraderRoutes(app, adapter, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Global.ListenIP, cfg.Global.ListenPort)
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"addr":   addr,
		"routes": paths,
	}).Info("Fiber 服务启动")

	return listen(app, addr)
}
