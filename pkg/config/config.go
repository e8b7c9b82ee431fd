// Package config resolves the forwarder's downstream target and runtime
// settings from CLI flags, environment variables, and an optional config
// file, in that precedence order, per spec.md §3-4.1.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/substratehq/forwarder/pkg/pipename"
)

// Endpoint is the sum type of downstream targets: exactly one of TCPEndpoint
// or UDSEndpoint is active per spec.md §3.
type Endpoint interface {
	isEndpoint()
	String() string
}

// TCPEndpoint targets a loopback TCP port inside the guest's network
// namespace.
type TCPEndpoint struct {
	Host string
	Port uint16
}

func (TCPEndpoint) isEndpoint() {}

func (e TCPEndpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// UDSEndpoint targets a Unix domain socket resolved inside the guest-side
// helper process, not on the host.
type UDSEndpoint struct {
	Path string
}

func (UDSEndpoint) isEndpoint() {}

func (e UDSEndpoint) String() string { return e.Path }

// Mode names, used on the wire (env, config file) and in the startup log.
const (
	ModeTCP = "tcp"
	ModeUDS = "uds"
)

// Defaults per spec.md §3.
const (
	DefaultTCPHost = "127.0.0.1"
	DefaultTCPPort = uint16(61337)
	DefaultLogDir  = `%LOCALAPPDATA%\Substrate\logs`
)

// DefaultConnectTimeout bounds the downstream connector's TCP dial
// (spec.md §4.4: "default ~3s").
const DefaultConnectTimeout = 3 * time.Second

// ForwarderConfig is the immutable, once-loaded snapshot of everything the
// forwarder needs to run. Reload requires a process restart.
type ForwarderConfig struct {
	Pipe           string
	Target         Endpoint
	DistroName     string
	HostTCPBridge  string // empty when the opt-in soak-test TCP accept is disabled
	LogDir         string
	RunAsService   bool
	ConnectTimeout time.Duration
}

// TargetMode returns the operator-facing mode string for the startup log
// line required by spec.md §4.1/§4.8.
func (c ForwarderConfig) TargetMode() string {
	switch c.Target.(type) {
	case TCPEndpoint:
		return ModeTCP
	case UDSEndpoint:
		return ModeUDS
	default:
		return "unknown"
	}
}

// Flags holds the subset of the CLI surface (spec.md §4.8) that feeds
// config resolution. The distro/log-dir/run-as-service/tcp-bridge flags do
// not affect target-mode resolution and simply pass through.
type Flags struct {
	Distro       string
	Pipe         string
	LogDir       string
	RunAsService bool
	TCPBridge    string
}

// Getenv abstracts os.Getenv so tests don't need to mutate process
// environment.
type Getenv func(string) string

// Resolve applies CLI > env > file > default precedence and produces
// exactly one Endpoint variant, per spec.md §4.1.
func Resolve(flags Flags, getenv Getenv, fileBytes []byte) (ForwarderConfig, error) {
	var fileCfg fileConfig
	if len(fileBytes) > 0 {
		var err error
		fileCfg, err = parseFile(fileBytes)
		if err != nil {
			return ForwarderConfig{}, errors.Wrap(err, "parse forwarder.toml")
		}
	}

	modeExplicit := ""
	if m := strings.ToLower(strings.TrimSpace(getenv("SUBSTRATE_FORWARDER_TARGET"))); m != "" {
		modeExplicit = m
	} else if fileCfg.Mode != "" {
		modeExplicit = strings.ToLower(fileCfg.Mode)
	}
	if modeExplicit != "" && modeExplicit != ModeTCP && modeExplicit != ModeUDS {
		return ForwarderConfig{}, &ConfigError{Kind: ErrInvalidAddress, Detail: fmt.Sprintf("unknown target mode %q", modeExplicit)}
	}

	tcpAddr, tcpIndicated, err := resolveTCP(getenv, fileCfg)
	if err != nil {
		return ForwarderConfig{}, err
	}
	udsPath, udsIndicated := resolveUDS(getenv, fileCfg)

	if modeExplicit == "" && tcpIndicated && udsIndicated {
		return ForwarderConfig{}, &ConfigError{Kind: ErrAmbiguous, Detail: "both tcp and uds target settings are present; set mode explicitly"}
	}

	var target Endpoint
	switch {
	case modeExplicit == ModeUDS || (modeExplicit == "" && udsIndicated && !tcpIndicated):
		if udsPath == "" {
			return ForwarderConfig{}, &ConfigError{Kind: ErrInvalidAddress, Detail: "uds mode selected but no uds path configured"}
		}
		target = UDSEndpoint{Path: udsPath}
	default:
		target = tcpAddr
	}

	pipe := flags.Pipe
	if pipe == "" {
		pipe = pipename.DefaultName
	}

	logDir := flags.LogDir
	if logDir == "" {
		logDir = DefaultLogDir
	}

	return ForwarderConfig{
		Pipe:           pipename.Canonical(pipe),
		Target:         target,
		DistroName:     flags.Distro,
		HostTCPBridge:  flags.TCPBridge,
		LogDir:         logDir,
		RunAsService:   flags.RunAsService,
		ConnectTimeout: DefaultConnectTimeout,
	}, nil
}

func resolveTCP(getenv Getenv, fileCfg fileConfig) (TCPEndpoint, bool, error) {
	indicated := false
	host := DefaultTCPHost
	port := DefaultTCPPort

	if fileCfg.TCPPort != 0 {
		port = fileCfg.TCPPort
		indicated = true
	}

	if raw := strings.TrimSpace(getenv("SUBSTRATE_FORWARDER_TCP_PORT")); raw != "" {
		p, err := parsePort(raw)
		if err != nil {
			return TCPEndpoint{}, false, err
		}
		port = p
		indicated = true
	}
	if raw := strings.TrimSpace(getenv("SUBSTRATE_FORWARDER_TCP")); raw != "" {
		p, err := parsePort(raw)
		if err != nil {
			return TCPEndpoint{}, false, err
		}
		port = p
		indicated = true
	}
	if raw := strings.TrimSpace(getenv("SUBSTRATE_FORWARDER_TCP_ADDR")); raw != "" {
		h, p, err := splitHostPort(raw)
		if err != nil {
			return TCPEndpoint{}, false, err
		}
		host, port = h, p
		indicated = true
	}

	return TCPEndpoint{Host: host, Port: port}, indicated, nil
}

func resolveUDS(getenv Getenv, fileCfg fileConfig) (string, bool) {
	if raw := strings.TrimSpace(getenv("SUBSTRATE_FORWARDER_UDS_PATH")); raw != "" {
		return raw, true
	}
	if fileCfg.UDSPath != "" {
		return fileCfg.UDSPath, true
	}
	return "", false
}

func parsePort(raw string) (uint16, error) {
	n, err := strconv.ParseUint(raw, 10, 16)
	if err != nil || n == 0 {
		return 0, &ConfigError{Kind: ErrInvalidAddress, Detail: fmt.Sprintf("invalid port %q", raw)}
	}
	return uint16(n), nil
}

func splitHostPort(raw string) (string, uint16, error) {
	idx := strings.LastIndex(raw, ":")
	if idx < 0 {
		return "", 0, &ConfigError{Kind: ErrInvalidAddress, Detail: fmt.Sprintf("invalid address %q: missing port", raw)}
	}
	host, portStr := raw[:idx], raw[idx+1:]
	if host == "" {
		host = DefaultTCPHost
	}
	port, err := parsePort(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// fileConfig mirrors the `[target]` table of forwarder.toml.
type fileConfig struct {
	Mode    string `toml:"mode"`
	TCPPort uint16 `toml:"tcp_port"`
	UDSPath string `toml:"uds_path"`
}

func parseFile(b []byte) (fileConfig, error) {
	tree, err := toml.LoadBytes(b)
	if err != nil {
		return fileConfig{}, err
	}
	var doc struct {
		Target fileConfig `toml:"target"`
	}
	if err := tree.Unmarshal(&doc); err != nil {
		return fileConfig{}, err
	}
	return doc.Target, nil
}
