// Package probe measures how long a freshly booted server takes to
// become reachable over SSH. The wait duration feeds the statistics
// series alongside the control plane latencies, separating data plane
// readiness from API convergence.
//
// Host key verification is disabled: the probed servers are ephemeral
// and their keys change every iteration.
package probe

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/plusserver/openstack-apimonitor/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 60
	defaultRetryDelay  = 5 * time.Second
	defaultMaxDelay    = 10 * time.Second
	// defaultCommand is the trivial command run once the connection is
	// up, proving the machine answers beyond the TCP handshake.
	defaultCommand = "uptime"
)

// Config holds probe configuration.
type Config struct {
	User       string
	PrivateKey []byte
	Port       int

	// DialTimeout bounds each TCP connection attempt.
	DialTimeout time.Duration
	// MaxRetries caps the connection attempts per server.
	MaxRetries int
	// RetryDelay is the initial delay between attempts.
	RetryDelay time.Duration
	// Command overrides the command run after connecting.
	Command string
}

// Prober dials servers until they answer. The private key is parsed
// once during construction; each Wait call dials on demand.
type Prober struct {
	cfg    Config
	signer ssh.Signer
	log    *logrus.Entry
}

// New creates a Prober and validates the private key.
func New(cfg Config, log *logrus.Entry) (*Prober, error) {
	if cfg.User == "" {
		return nil, fmt.Errorf("probe user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("probe private key cannot be empty")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Command == "" {
		cfg.Command = defaultCommand
	}

	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Prober{cfg: cfg, signer: signer, log: log}, nil
}

// NewFromKeyFile reads the private key from disk and builds a Prober.
func NewFromKeyFile(user, keyFile string, port int, log *logrus.Entry) (*Prober, error) {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", keyFile, err)
	}
	return New(Config{User: user, PrivateKey: key, Port: port}, log)
}

// Wait blocks until the server at addr accepts an SSH session and runs
// a trivial command, and returns the elapsed time. Booting servers
// refuse connections for a while, so dial failures are retried with
// backoff until the attempt budget or ctx runs out.
func (p *Prober) Wait(ctx context.Context, addr string) (time.Duration, error) {
	start := time.Now()

	clientCfg := &ssh.ClientConfig{
		User:            p.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(p.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // ephemeral servers
		Timeout:         p.cfg.DialTimeout,
	}
	target := fmt.Sprintf("%s:%d", addr, p.cfg.Port)

	var client *ssh.Client
	err := retry.WithExponentialBackoff(ctx, func() error {
		var dialErr error
		client, dialErr = ssh.Dial("tcp", target, clientCfg)
		return dialErr
	},
		retry.WithMaxRetries(p.cfg.MaxRetries),
		retry.WithInitialDelay(p.cfg.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)
	if err != nil {
		return 0, fmt.Errorf("server %s not reachable after %d attempts: %w", target, p.cfg.MaxRetries+1, err)
	}
	defer func() { _ = client.Close() }()

	if err := p.run(client, p.cfg.Command); err != nil {
		return 0, err
	}

	elapsed := time.Since(start)
	if p.log != nil {
		p.log.WithFields(logrus.Fields{"addr": target, "elapsed": elapsed.Round(time.Millisecond)}).
			Info("server reachable over ssh")
	}
	return elapsed, nil
}

func (p *Prober) run(client *ssh.Client, command string) error {
	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open SSH session: %w", err)
	}
	defer func() { _ = session.Close() }()

	output, err := session.CombinedOutput(command)
	if err != nil {
		return fmt.Errorf("probe command failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}
