package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studycal/internal/capture"
	"studycal/internal/config"
	"studycal/internal/controller"
	"studycal/internal/gateway"
	"studycal/internal/ics"
	appLog "studycal/internal/log"
	"studycal/internal/refresh"
	"studycal/internal/render"
	"studycal/internal/schedule"
	"studycal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath  string
	listen      string
	once        bool
	capturePath string
	exportPath  string
}

func main() {
	appLog.Info("studycal starting", "version", version)

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		if conf == nil {
			appLog.Error("failed to load config", err, "config_path", flags.configPath)
			os.Exit(1)
		}
		appLog.Warn("could not write default config, continuing with defaults", "config_path", flags.configPath, "err", err)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("unknown timezone, using local time", err, "timezone", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"api_base_url", conf.APIBaseURL,
		"group", conf.Group,
		"subgroup", conf.Subgroup,
		"timezone", loc.String(),
		"refresh", conf.RefreshCron,
		"include_tasks", conf.IncludeTasks,
		"once", flags.once,
		"capture", flags.capturePath,
		"export", flags.exportPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	client := gateway.NewClient(conf.APIBaseURL,
		gateway.WithTimeout(conf.RequestTimeout()),
		gateway.WithLocation(loc),
	)
	opts := controller.Options{
		Group:    conf.Group,
		Subgroup: conf.Subgroup,
		Location: loc,
		Layout: render.Options{
			MaxPerDay:  conf.MaxEventsPerDay,
			TitleLimit: conf.TitleLimit,
		},
	}
	if conf.IncludeTasks {
		opts.Tasks = client
	}
	ctrl := controller.New(client, opts)

	if err := ctrl.Load(ctx); err != nil {
		appLog.Error("initial load failed", err)
	}

	switch {
	case flags.once:
		err = printSummary(ctrl, loc)
	case flags.exportPath != "":
		err = exportICS(ctrl, flags.exportPath)
	case flags.capturePath != "":
		err = captureOnce(ctx, conf, ctrl, flags.capturePath)
	default:
		err = serve(ctx, conf, ctrl, loc)
	}
	if err != nil {
		appLog.Error("studycal failed", err)
		os.Exit(1)
	}

	appLog.Info("studycal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/studycal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch once, print the loaded schedule and exit")
	flag.StringVar(&cfg.capturePath, "capture", "", "Fetch once, write a PNG of the calendar page to this path and exit")
	flag.StringVar(&cfg.exportPath, "export", "", "Fetch once, write an iCalendar file to this path and exit")

	flag.Parse()

	return cfg
}

// serve runs the UI server and the refresh scheduler until ctx ends.
func serve(ctx context.Context, conf *config.Config, ctrl *controller.Controller, loc *time.Location) error {
	var serverOpts []web.Option
	refreshOpts := []refresh.Option{refresh.WithExpected(controller.ErrNoGroup)}

	pageURL := localURL(conf.Listen) + "/calendar"
	serverOpts = append(serverOpts, web.WithPreview(func(ctx context.Context) ([]byte, error) {
		return capture.Screenshot(ctx, captureOptions(conf, pageURL))
	}))
	if conf.Capture.OutputPath != "" {
		refreshOpts = append(refreshOpts, refresh.WithAfter(func(ctx context.Context) error {
			return capture.ToFile(ctx, captureOptions(conf, pageURL), conf.Capture.OutputPath)
		}))
	}

	sched, err := refresh.New(conf.RefreshCron, loc, ctrl, refreshOpts...)
	if err != nil {
		return fmt.Errorf("refresh schedule %q: %w", conf.RefreshCron, err)
	}
	sched.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			appLog.Error("refresh scheduler did not stop in time", err)
		}
	}()

	return web.NewServer(conf, ctrl, serverOpts...).Run(ctx)
}

// captureOnce serves the page on a loopback port just long enough to
// screenshot it.
func captureOnce(ctx context.Context, conf *config.Config, ctrl *controller.Controller, path string) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	srvCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- web.NewServer(conf, ctrl).Serve(srvCtx, ln) }()

	url := "http://" + ln.Addr().String() + "/calendar"
	capErr := capture.ToFile(ctx, captureOptions(conf, url), path)
	stop()
	srvErr := <-done

	if capErr == nil {
		appLog.Info("capture written", "path", path)
	}
	return errors.Join(capErr, srvErr)
}

func exportICS(ctrl *controller.Controller, path string) error {
	st := ctrl.Snapshot()
	body, err := ics.Export(fmt.Sprintf("%s (subgroup %d)", st.Group, st.Subgroup), ctrl.Events(), time.Now())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return err
	}
	appLog.Info("calendar exported", "path", path, "events", len(st.Events))
	return nil
}

func printSummary(ctrl *controller.Controller, loc *time.Location) error {
	st := ctrl.Snapshot()
	if st.LastError != "" {
		return errors.New(st.LastError)
	}

	byDay := schedule.GroupByDay(st.Events, loc)
	fmt.Printf("%s, subgroup %d: %d events\n", st.Group, st.Subgroup, len(st.Events))
	for _, day := range byDay.Keys() {
		fmt.Println(day)
		for _, ev := range byDay[day] {
			mark := " "
			if ev.Editable {
				mark = "*"
			}
			fmt.Printf("  %s %-11s %s [%s]\n", mark, render.TimeText(ev, loc), ev.Title, ev.Category)
		}
	}
	return nil
}

func captureOptions(conf *config.Config, url string) capture.Options {
	o := capture.Options{
		URL:    url,
		Width:  conf.Capture.Width,
		Height: conf.Capture.Height,
	}
	if conf.BasicAuth != nil {
		o.Username = conf.BasicAuth.Username
		o.Password = conf.BasicAuth.Password
	}
	return o
}

// localURL turns a listen address into a URL reachable from this host.
func localURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
