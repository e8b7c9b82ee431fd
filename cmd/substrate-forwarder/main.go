//go:build windows

// substrate-forwarder runs the named-pipe-to-downstream forwarding
// service: it listens on a Windows named pipe, bridges each client
// connection to a TCP or WSL unix-domain-socket target, and exits
// cleanly on shutdown after draining in-flight sessions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sirupsen/logrus"

	"github.com/substratehq/forwarder/pkg/bridge"
	"github.com/substratehq/forwarder/pkg/config"
	"github.com/substratehq/forwarder/pkg/downstream"
	"github.com/substratehq/forwarder/pkg/logging"
	"github.com/substratehq/forwarder/pkg/osversion"
	"github.com/substratehq/forwarder/pkg/pipeforwarder"
	"github.com/substratehq/forwarder/pkg/pipename"
	"github.com/substratehq/forwarder/pkg/security"
	"github.com/substratehq/forwarder/pkg/supervisor"
)

// Exit codes per spec.md §7's propagation policy.
const (
	exitOK            = 0
	exitOwnership     = 1
	exitConfiguration = 2
)

const shutdownDrainDeadline = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	app := kingpin.New("substrate-forwarder", "Named-pipe to downstream forwarder.")
	flags := config.Flags{}
	app.Flag("distro", "WSL distro the UDS helper runs against.").StringVar(&flags.Distro)
	app.Flag("pipe", "Named pipe path or bare name.").StringVar(&flags.Pipe)
	app.Flag("log-dir", "Directory to write rotating JSON logs to.").StringVar(&flags.LogDir)
	app.Flag("run-as-service", "Write a PID file for warm/stop scripts.").BoolVar(&flags.RunAsService)
	app.Flag("tcp-bridge", "host:port to additionally accept raw TCP on (soak testing).").StringVar(&flags.TCPBridge)

	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfiguration
	}

	var fileBytes []byte
	if b, err := os.ReadFile(configFilePath()); err == nil {
		fileBytes = b
	}

	cfg, err := config.Resolve(flags, os.Getenv, fileBytes)
	if err != nil {
		fmt.Fprintln(os.Stderr, "substrate-forwarder: configuration error:", err)
		return exitConfiguration
	}

	logDir := expandWindowsEnv(cfg.LogDir)
	if logDir == "" {
		logDir = expandWindowsEnv(config.DefaultLogDir)
	}
	log, closeLog, err := logging.New(logging.Options{Dir: logDir, Filename: "forwarder.log", AlsoStderr: !cfg.RunAsService})
	if err != nil {
		fmt.Fprintln(os.Stderr, "substrate-forwarder: cannot open log file:", err)
		return exitConfiguration
	}
	defer closeLog()

	log = log.WithField("os_version", osversion.Get().String())

	pipePath := pipename.Canonical(cfg.Pipe)
	log.WithFields(logrus.Fields{
		"event":           "starting_forwarder",
		"distro":          cfg.DistroName,
		"pipe":            pipePath,
		"host_tcp_bridge": cfg.HostTCPBridge,
		"target_mode":     cfg.TargetMode(),
		"target":          cfg.Target.String(),
	}).Infof("starting forwarder: distro=%s, pipe=%s, host_tcp_bridge=%s, target_mode=%s, target=%s",
		cfg.DistroName, pipePath, cfg.HostTCPBridge, cfg.TargetMode(), cfg.Target.String())

	if cfg.RunAsService {
		if err := writePIDFile(); err != nil {
			log.WithError(err).Warn("could not write PID file")
		}
		defer removePIDFile()
	}

	sd, err := security.SddlToSecurityDescriptor(security.BuildPipeSDDL(""))
	if err != nil {
		fmt.Fprintln(os.Stderr, "substrate-forwarder: building pipe security descriptor:", err)
		return exitConfiguration
	}

	listener, err := pipeforwarder.Start(pipePath, pipeforwarder.PipeConfig{SecurityDescriptor: sd})
	if err != nil {
		var lerr *pipeforwarder.ListenerError
		if errors.As(err, &lerr) && lerr.Kind == pipeforwarder.ErrAddrInUse {
			fmt.Fprintf(os.Stderr, "substrate-forwarder: AddrInUse: %s\n", pipePath)
			return exitOwnership
		}
		fmt.Fprintln(os.Stderr, "substrate-forwarder:", err)
		return exitConfiguration
	}
	log.WithFields(logrus.Fields{"event": "listening_on_pipe", "pipe": pipePath}).Info("listening on pipe")

	sup := supervisor.New(log)

	connector, err := buildConnector(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "substrate-forwarder:", err)
		return exitConfiguration
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sessionID uint64

	if cfg.HostTCPBridge != "" {
		go runTCPBridge(ctx, cfg.HostTCPBridge, connector, sup, &sessionID, log)
	}

acceptLoop:
	for {
		select {
		case <-ctx.Done():
			break acceptLoop
		default:
		}

		accepted, err := listener.AcceptNext(ctx)
		if err != nil {
			if err == pipeforwarder.ErrListenerClosed || ctx.Err() != nil {
				break acceptLoop
			}
			log.WithError(err).WithField("event", "accept_error").Warn("accept error, retrying")
			time.Sleep(200 * time.Millisecond)
			continue
		}

		id := atomic.AddUint64(&sessionID, 1)
		log.WithFields(logrus.Fields{"event": "client_connected", "session": id, "kind": "pipe"}).Info("client connected")

		sessCtx, cancel := context.WithCancel(ctx)
		sess := &bridgeSession{id: id, cancel: cancel}
		done, err := sup.Track(sess)
		if err != nil {
			cancel()
			_ = accepted.Instance.Close()
			continue
		}

		go func() {
			defer done()
			defer cancel()
			down, err := connector.Connect(sessCtx)
			if err != nil {
				log.WithError(err).WithFields(logrus.Fields{"session": id, "result": bridge.ResultDownstreamUnreachable}).Warn("downstream unreachable")
				_ = accepted.Instance.Close()
				return
			}
			bridge.Run(sessCtx, id, "pipe", accepted.Instance, down, 2*time.Second, log)
		}()
	}

	if err := listener.Shutdown(context.Background()); err != nil {
		log.WithError(err).Warn("listener shutdown")
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), shutdownDrainDeadline)
	defer cancelDrain()
	if err := sup.Shutdown(drainCtx); err != nil {
		log.WithError(err).WithField("event", "shutdown").Warn("drain deadline exceeded, sessions force-closed")
	} else {
		log.WithField("event", "shutdown").Info("clean shutdown")
	}

	return exitOK
}

// bridgeSession adapts a session's cancel func to supervisor.Session.
type bridgeSession struct {
	id     uint64
	cancel context.CancelFunc
}

func (s *bridgeSession) ID() uint64 { return s.id }
func (s *bridgeSession) Stop()      { s.cancel() }

func buildConnector(cfg config.ForwarderConfig) (downstream.Connector, error) {
	switch t := cfg.Target.(type) {
	case config.TCPEndpoint:
		return downstream.NewTCPConnector(t.Host, t.Port, cfg.ConnectTimeout), nil
	case config.UDSEndpoint:
		return downstream.NewUDSConnector(t.Path, cfg.DistroName), nil
	default:
		return nil, fmt.Errorf("unknown target endpoint %T", t)
	}
}

func configFilePath() string {
	dir := os.Getenv("LOCALAPPDATA")
	if dir == "" {
		return ""
	}
	return dir + `\Substrate\forwarder.toml`
}

func pidFilePath() string {
	return expandWindowsEnv(`%LOCALAPPDATA%\Substrate\forwarder.pid`)
}

func writePIDFile() error {
	path := pidFilePath()
	if err := os.MkdirAll(dirOf(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePIDFile() {
	_ = os.Remove(pidFilePath())
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '\\' || path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// expandWindowsEnv replaces %NAME% references (the cmd.exe expansion
// syntax used throughout spec.md's path conventions, e.g.
// %LOCALAPPDATA%) with their process environment values.
func expandWindowsEnv(s string) string {
	for {
		start := strings.IndexByte(s, '%')
		if start < 0 {
			return s
		}
		end := strings.IndexByte(s[start+1:], '%')
		if end < 0 {
			return s
		}
		end += start + 1
		name := s[start+1 : end]
		s = s[:start] + os.Getenv(name) + s[end+1:]
	}
}
