package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/speedtest-statuspage/internal/cache"
	"github.com/m-lab/speedtest-statuspage/internal/handler"
	"github.com/m-lab/speedtest-statuspage/internal/query"
	"github.com/m-lab/speedtest-statuspage/internal/runner"
	"github.com/m-lab/speedtest-statuspage/internal/scheduler"
	"github.com/m-lab/speedtest-statuspage/pkg/speedtest/spec"
)

var (
	flagBindAddress     = flag.String("bind-address", "127.0.0.1", "Address to listen on")
	flagBindPort        = flag.String("bind-port", "8080", "Port to listen on")
	flagIntervalMinutes = flag.Int("interval-minutes", int(spec.DefaultInterval/time.Minute), "Minutes between two speedtests")
	flagSpeedtestBin    = flag.String("speedtest-bin", spec.DefaultBinary, "Speedtest tool to run")
	flagSpeedtestTime   = flag.Duration("speedtest-timeout", spec.DefaultTimeout, "Maximum duration of a single speedtest")
	flagJitter          = flag.Bool("jitter", false, "Randomize the time between speedtests around the interval")
	flagEnvFile         = flag.String("env-file", ".env", "File to load environment variables from, if it exists")
	flagDebug           = flag.Bool("debug", false, "Enable debug logging")

	errInvalidPort = errors.New("invalid port")
)

// schedulerStopTimeout bounds the wait for the scheduler at shutdown. It is
// larger than the runner's WaitDelay.
const schedulerStopTimeout = 10 * time.Second

// parsePort validates a TCP port number.
func parsePort(s string) (int, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil || port == 0 {
		return 0, errInvalidPort
	}
	return int(port), nil
}

// loadEnvFile loads environment variables from path without overriding the
// existing ones. A missing file is not an error.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Debug("No env file found", "path", path)
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return err
	}
	log.Debug("Loaded env file", "path", path)
	return nil
}

// waitDone waits for done to be closed and reports whether that happened
// within timeout.
func waitDone(done <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// httpServer creates a new *http.Server with explicit Read and Write
// timeouts and the provided address and handler.
func httpServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: handler,
		// NOTE: set absolute read and write timeouts for server connections.
		// This prevents clients from opening a connection and holding it
		// open indefinitely.
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}
}

func main() {
	flag.Parse()

	// Initialize logging.
	log.SetReportCaller(true)
	log.SetReportTimestamp(true)

	// Command-line flags take precedence over the environment, which takes
	// precedence over the env file. Invalid configuration aborts startup
	// before anything is started.
	rtx.Must(loadEnvFile(*flagEnvFile), "Failed to load env file %s", *flagEnvFile)
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Failed to read flags from environment")
	if *flagDebug {
		log.SetLevel(log.DebugLevel)
	}
	port, err := parsePort(*flagBindPort)
	rtx.Must(err, "BIND_PORT must be a valid port number, got %q", *flagBindPort)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	promSrv := prometheusx.MustServeMetrics()
	defer promSrv.Close()

	// The cache is shared by the scheduler (the only writer) and the HTTP
	// handlers.
	results := cache.New()

	opts := []scheduler.Option{}
	if *flagJitter {
		opts = append(opts, scheduler.WithTicker(scheduler.JitteredTicker()))
	}
	sched := scheduler.New(
		runner.NewCommand(*flagSpeedtestBin, *flagSpeedtestTime),
		results,
		time.Duration(*flagIntervalMinutes)*time.Minute,
		opts...)

	speedHandler := handler.New(query.New(results))
	mux := http.NewServeMux()
	mux.Handle(spec.SpeedPath, http.HandlerFunc(speedHandler.Speed))

	addr := net.JoinHostPort(*flagBindAddress, strconv.Itoa(port))
	srv := httpServer(addr, mux)
	l, err := net.Listen("tcp", addr)
	rtx.Must(err, "Failed to create listener")

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		err := sched.Run(ctx)
		rtx.Must(err, "Speedtest scheduler failed")
	}()

	go func() {
		log.Info("Starting server", "url", "http://"+addr+spec.SpeedPath)
		err := srv.Serve(l)
		if !errors.Is(err, http.ErrServerClosed) {
			rtx.Must(err, "Could not start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
	}
	// Wait for an in-flight speedtest to be killed and reaped so that it does
	// not outlive the process.
	if !waitDone(schedDone, schedulerStopTimeout) {
		log.Warn("Speedtest scheduler did not stop in time", "timeout", schedulerStopTimeout)
	}
}
