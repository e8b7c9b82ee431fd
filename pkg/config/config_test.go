package config

import (
	"testing"
)

func noEnv(string) string { return "" }

func envFrom(m map[string]string) Getenv {
	return func(k string) string { return m[k] }
}

func TestResolveDefaultsToTCP(t *testing.T) {
	cfg, err := Resolve(Flags{}, noEnv, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	tcp, ok := cfg.Target.(TCPEndpoint)
	if !ok {
		t.Fatalf("expected TCPEndpoint, got %T", cfg.Target)
	}
	if tcp.Host != DefaultTCPHost || tcp.Port != DefaultTCPPort {
		t.Errorf("got %+v, want default host/port", tcp)
	}
	if cfg.TargetMode() != ModeTCP {
		t.Errorf("TargetMode() = %q, want %q", cfg.TargetMode(), ModeTCP)
	}
}

func TestResolveEnvTCPPortOverride(t *testing.T) {
	cfg, err := Resolve(Flags{}, envFrom(map[string]string{"SUBSTRATE_FORWARDER_TCP_PORT": "9000"}), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	tcp := cfg.Target.(TCPEndpoint)
	if tcp.Port != 9000 {
		t.Errorf("Port = %d, want 9000", tcp.Port)
	}
}

func TestResolveEnvUDSPath(t *testing.T) {
	cfg, err := Resolve(Flags{}, envFrom(map[string]string{"SUBSTRATE_FORWARDER_UDS_PATH": "/run/substrate.sock"}), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	uds, ok := cfg.Target.(UDSEndpoint)
	if !ok {
		t.Fatalf("expected UDSEndpoint, got %T", cfg.Target)
	}
	if uds.Path != "/run/substrate.sock" {
		t.Errorf("Path = %q", uds.Path)
	}
}

func TestResolveAmbiguousWithoutExplicitMode(t *testing.T) {
	_, err := Resolve(Flags{}, envFrom(map[string]string{
		"SUBSTRATE_FORWARDER_TCP_PORT": "9000",
		"SUBSTRATE_FORWARDER_UDS_PATH": "/run/substrate.sock",
	}), nil)
	cerr, ok := err.(*ConfigError)
	if !ok || cerr.Kind != ErrAmbiguous {
		t.Fatalf("expected ConfigError{Kind: ErrAmbiguous}, got %v", err)
	}
}

func TestResolveExplicitModeResolvesAmbiguity(t *testing.T) {
	cfg, err := Resolve(Flags{}, envFrom(map[string]string{
		"SUBSTRATE_FORWARDER_TARGET":   "uds",
		"SUBSTRATE_FORWARDER_TCP_PORT": "9000",
		"SUBSTRATE_FORWARDER_UDS_PATH": "/run/substrate.sock",
	}), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := cfg.Target.(UDSEndpoint); !ok {
		t.Fatalf("expected UDSEndpoint, got %T", cfg.Target)
	}
}

func TestResolveInvalidPort(t *testing.T) {
	_, err := Resolve(Flags{}, envFrom(map[string]string{"SUBSTRATE_FORWARDER_TCP_PORT": "not-a-port"}), nil)
	cerr, ok := err.(*ConfigError)
	if !ok || cerr.Kind != ErrInvalidAddress {
		t.Fatalf("expected ConfigError{Kind: ErrInvalidAddress}, got %v", err)
	}
}

func TestResolveTCPAddrOverridesHost(t *testing.T) {
	cfg, err := Resolve(Flags{}, envFrom(map[string]string{"SUBSTRATE_FORWARDER_TCP_ADDR": "127.0.0.2:7000"}), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	tcp := cfg.Target.(TCPEndpoint)
	if tcp.Host != "127.0.0.2" || tcp.Port != 7000 {
		t.Errorf("got %+v", tcp)
	}
}

func TestResolveFromFile(t *testing.T) {
	file := []byte("[target]\nmode = \"uds\"\nuds_path = \"/run/substrate.sock\"\n")
	cfg, err := Resolve(Flags{}, noEnv, file)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	uds, ok := cfg.Target.(UDSEndpoint)
	if !ok || uds.Path != "/run/substrate.sock" {
		t.Fatalf("got %+v, %v", cfg.Target, ok)
	}
}

func TestResolveEnvOverridesFile(t *testing.T) {
	file := []byte("[target]\nmode = \"tcp\"\ntcp_port = 1234\n")
	cfg, err := Resolve(Flags{}, envFrom(map[string]string{"SUBSTRATE_FORWARDER_TCP_PORT": "5555"}), file)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	tcp := cfg.Target.(TCPEndpoint)
	if tcp.Port != 5555 {
		t.Errorf("Port = %d, want 5555 (env should win over file)", tcp.Port)
	}
}

func TestResolvePipeNameDefault(t *testing.T) {
	cfg, err := Resolve(Flags{}, noEnv, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := `\\.\pipe\substrate-agent`
	if cfg.Pipe != want {
		t.Errorf("Pipe = %q, want %q", cfg.Pipe, want)
	}
}

func TestResolvePipeNameFromFlag(t *testing.T) {
	cfg, err := Resolve(Flags{Pipe: "my-custom-pipe"}, noEnv, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := `\\.\pipe\my-custom-pipe`
	if cfg.Pipe != want {
		t.Errorf("Pipe = %q, want %q", cfg.Pipe, want)
	}
}
