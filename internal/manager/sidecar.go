package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/oulianov/audioghost-ai/internal/model"
)

// SidecarConfig configures the runtime process spawned per slot.
type SidecarConfig struct {
	Bin       string
	Host      string
	PortStart int
	PortEnd   int
	ExtraArgs []string
	// ReadyTimeout bounds the wait for GET /health; defaults to 10m since
	// the first load may download the checkpoint.
	ReadyTimeout time.Duration
	// StopTimeout is the grace period between SIGTERM and kill.
	StopTimeout time.Duration
	Publisher   EventPublisher
	Logger      zerolog.Logger
}

// SidecarLoader spawns one separation runtime process per loaded slot.
// Closing the returned backend stops the process, which hands every byte of
// device memory back to the driver.
type SidecarLoader struct {
	cfg        SidecarConfig
	httpClient *http.Client
	publisher  EventPublisher
	log        zerolog.Logger
}

// NewSidecarLoader constructs a subprocess-backed loader.
func NewSidecarLoader(cfg SidecarConfig) *SidecarLoader {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 10 * time.Minute
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = noopPublisher{}
	}
	// Timeout=0: every call carries a context deadline instead.
	return &SidecarLoader{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 0},
		publisher:  pub,
		log:        cfg.Logger.With().Str("adapter", "sidecar").Logger(),
	}
}

// lockedBuffer collects stderr while the process is running.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Tail returns at most the last n bytes written.
func (b *lockedBuffer) Tail(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}

type sidecarProc struct {
	cmd    *exec.Cmd
	exited chan struct{}
	err    error
}

func (l *SidecarLoader) args(spec LoadSpec, port int) []string {
	args := []string{
		"--model", spec.ModelName,
		"--device", string(spec.Device),
		"--dtype", string(spec.Precision),
		"--host", l.cfg.Host,
		"--port", strconv.Itoa(port),
	}
	if spec.Lite {
		args = append(args, "--lite")
	}
	return append(args, l.cfg.ExtraArgs...)
}

// Load starts the runtime and waits until it reports healthy.
func (l *SidecarLoader) Load(ctx context.Context, spec LoadSpec) (model.Backend, model.Info, error) {
	if strings.TrimSpace(l.cfg.Bin) == "" {
		return nil, model.Info{}, errors.New("runtime binary not configured")
	}
	var port int
	var err error
	if l.cfg.PortStart > 0 && l.cfg.PortEnd >= l.cfg.PortStart {
		port, err = pickPortInRange(l.cfg.Host, l.cfg.PortStart, l.cfg.PortEnd)
	} else {
		port, err = pickFreePort(l.cfg.Host)
	}
	if err != nil {
		return nil, model.Info{}, err
	}
	baseURL := fmt.Sprintf("http://%s:%d", l.cfg.Host, port)
	key := Key{ModelName: spec.ModelName, Device: spec.Device, Precision: spec.Precision}.String()

	// Not CommandContext: the process outlives the job that loaded it.
	cmd := exec.Command(l.cfg.Bin, l.args(spec, port)...)
	cmd.Env = os.Environ()
	if spec.Token != "" {
		cmd.Env = append(cmd.Env, "HF_TOKEN="+spec.Token)
	}
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, model.Info{}, fmt.Errorf("start runtime: %w", err)
	}
	pid := cmd.Process.Pid
	l.log.Info().Str("event", "start").Str("key", key).Int("pid", pid).Str("host", l.cfg.Host).Int("port", port).Msg("adapter")
	l.publisher.Publish(Event{Name: EventSpawnStart, Key: key, Fields: map[string]any{"pid": pid, "host": l.cfg.Host, "port": port}})

	p := &sidecarProc{cmd: cmd, exited: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.exited)
	}()

	info, err := l.waitReady(ctx, p, baseURL, key, stderr)
	if err != nil {
		l.stop(p, key)
		return nil, model.Info{}, err
	}
	b := &httpBackend{baseURL: baseURL, client: l.httpClient}
	b.onClose = func() error {
		l.stop(p, key)
		return nil
	}
	return b, info, nil
}

// waitReady polls GET /health until it succeeds, the process exits, the
// deadline passes or ctx is cancelled.
func (l *SidecarLoader) waitReady(ctx context.Context, p *sidecarProc, baseURL, key string, stderr *lockedBuffer) (model.Info, error) {
	pid := p.cmd.Process.Pid
	deadline := time.Now().Add(l.cfg.ReadyTimeout)
	for {
		if time.Now().After(deadline) {
			l.log.Warn().Str("event", "timeout").Str("key", key).Int("pid", pid).Msg("adapter")
			l.publisher.Publish(Event{Name: EventSpawnTimeout, Key: key, Fields: map[string]any{"pid": pid}})
			return model.Info{}, fmt.Errorf("runtime not ready in time: %s", baseURL)
		}
		select {
		case <-p.exited:
			tail := stderr.Tail(4096)
			l.log.Error().Str("event", "exit_early").Str("key", key).Int("pid", pid).AnErr("wait_error", p.err).Msg("adapter")
			l.publisher.Publish(Event{Name: EventSpawnExit, Key: key, Fields: map[string]any{"pid": pid, "before_ready": true}})
			if p.err != nil {
				return model.Info{}, fmt.Errorf("runtime exited early: %v; stderr tail: %s", p.err, tail)
			}
			return model.Info{}, fmt.Errorf("runtime exited before ready: %s; stderr tail: %s", baseURL, tail)
		case <-ctx.Done():
			return model.Info{}, ctx.Err()
		default:
		}

		info, err := fetchHealth(ctx, l.httpClient, baseURL, time.Second)
		if err == nil {
			l.log.Info().Str("event", "ready").Str("key", key).Int("pid", pid).Str("url", baseURL).
				Int("sample_rate", info.SampleRate).Msg("adapter")
			l.publisher.Publish(Event{Name: EventSpawnReady, Key: key, Fields: map[string]any{"pid": pid, "url": baseURL}})
			return info, nil
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return model.Info{}, ctx.Err()
		}
	}
}

// stop sends SIGTERM, then kills the process after StopTimeout.
func (l *SidecarLoader) stop(p *sidecarProc, key string) {
	select {
	case <-p.exited:
		return
	default:
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.exited:
	case <-time.After(l.cfg.StopTimeout):
		_ = p.cmd.Process.Kill()
		<-p.exited
	}
	l.log.Info().Str("event", "stop").Str("key", key).Int("pid", p.cmd.Process.Pid).Msg("adapter")
	l.publisher.Publish(Event{Name: EventSpawnStop, Key: key, Fields: map[string]any{"pid": p.cmd.Process.Pid}})
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected addr: %s", l.Addr())
	}
	return addr.Port, nil
}
