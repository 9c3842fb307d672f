package manager

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oulianov/audioghost-ai/internal/model"
)

func buildFakeRuntime(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
	bin := filepath.Join(t.TempDir(), "fake_runtime")
	cmd := exec.Command("go", "build", "-o", bin, "./testdata/fake_runtime.go")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build fake runtime: %v\n%s", err, out)
	}
	return bin
}

func TestSidecarLoader_SpawnSeparateStop(t *testing.T) {
	bin := buildFakeRuntime(t)
	pub := NewMemoryPublisher()
	l := NewSidecarLoader(SidecarConfig{Bin: bin, ReadyTimeout: 20 * time.Second, StopTimeout: 2 * time.Second, Publisher: pub})

	b, info, err := l.Load(context.Background(), LoadSpec{ModelName: "facebook/sam-audio-small", Device: model.DeviceCPU, Precision: model.PrecisionFP32, Token: "hf_x", Lite: true})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if info.SampleRate != 16000 || info.FeatureHop != 640 {
		t.Fatalf("info=%+v", info)
	}
	out, err := b.Separate(context.Background(), model.Batch{Audios: [][]float32{{0.5, 0.25}}, Descriptions: []string{"x"}}, model.SeparateOptions{})
	if err != nil {
		t.Fatalf("separate: %v", err)
	}
	if out.Target[0][0] != 0.5 || out.Residual[0][1] != 0 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if err := b.ReleaseCache(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	names := strings.Join(pub.Names(), ",")
	if names != "spawn_start,spawn_ready,spawn_stop" {
		t.Fatalf("events=%s", names)
	}
	if _, err := b.Separate(context.Background(), model.Batch{Audios: [][]float32{{1}}}, model.SeparateOptions{}); err == nil {
		t.Fatalf("expected error after stop")
	}
}

func TestSidecarLoader_EarlyExit(t *testing.T) {
	bin, err := exec.LookPath("false")
	if err != nil {
		t.Skip("false not available")
	}
	pub := NewMemoryPublisher()
	l := NewSidecarLoader(SidecarConfig{Bin: bin, ReadyTimeout: 5 * time.Second, Publisher: pub})
	_, _, err = l.Load(context.Background(), LoadSpec{ModelName: "m", Device: model.DeviceCPU, Precision: model.PrecisionFP32})
	if err == nil || !strings.Contains(err.Error(), "exited") {
		t.Fatalf("expected early exit error, got %v", err)
	}
	found := false
	for _, n := range pub.Names() {
		if n == EventSpawnExit {
			found = true
		}
	}
	if !found {
		t.Fatalf("spawn_exit not published: %v", pub.Names())
	}
}

func TestSidecarLoader_NoBinary(t *testing.T) {
	l := NewSidecarLoader(SidecarConfig{})
	if _, _, err := l.Load(context.Background(), LoadSpec{ModelName: "m"}); err == nil {
		t.Fatalf("expected error without binary")
	}
}

func TestSidecarArgs(t *testing.T) {
	l := NewSidecarLoader(SidecarConfig{Bin: "runtime", ExtraArgs: []string{"--cache-dir", "/c"}})
	got := strings.Join(l.args(LoadSpec{ModelName: "m", Device: model.DeviceCUDA, Precision: model.PrecisionBF16, Lite: true}, 4242), " ")
	want := "--model m --device cuda --dtype bf16 --host 127.0.0.1 --port 4242 --lite --cache-dir /c"
	if got != want {
		t.Fatalf("args=%q want %q", got, want)
	}
}

func TestPickPorts(t *testing.T) {
	p, err := pickFreePort("127.0.0.1")
	if err != nil || p <= 0 {
		t.Fatalf("free port: %d %v", p, err)
	}
	if _, err := pickPortInRange("127.0.0.1", 2, 1); err == nil {
		t.Fatalf("expected empty range error")
	}
}

func TestSanityCheck(t *testing.T) {
	r := SanityCheck("", "definitely-not-a-real-ffmpeg-binary")
	if !r.RuntimeFound || r.FFmpegFound || r.OK() || r.Error == "" {
		t.Fatalf("unexpected report: %+v", r)
	}
}
