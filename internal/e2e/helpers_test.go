package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/oulianov/audioghost-ai/internal/audio"
	"github.com/oulianov/audioghost-ai/internal/auth"
	"github.com/oulianov/audioghost-ai/internal/httpapi"
	"github.com/oulianov/audioghost-ai/internal/jobs"
	"github.com/oulianov/audioghost-ai/internal/manager"
	"github.com/oulianov/audioghost-ai/internal/model"
	"github.com/oulianov/audioghost-ai/internal/registry"
	"github.com/oulianov/audioghost-ai/internal/store"
	"github.com/oulianov/audioghost-ai/pkg/types"
)

const runtimeRate = 8000

// fakeRuntime speaks the separation runtime protocol: the target is the
// input scaled by 0.25, the residual the remainder.
type fakeRuntime struct {
	mu        sync.Mutex
	loads     []map[string]any
	unloads   int
	separates int
	// block, when non-nil, holds /separate until closed.
	block chan struct{}
}

func (f *fakeRuntime) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "sample_rate": runtimeRate})
	})
	mux.HandleFunc("/load", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.loads = append(f.loads, req)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/unload", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.unloads++
		f.mu.Unlock()
	})
	mux.HandleFunc("/release", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/separate", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.separates++
		block := f.block
		f.mu.Unlock()
		if block != nil {
			select {
			case <-block:
			case <-r.Context().Done():
				return
			}
		}
		var req struct {
			Items []struct {
				Audio string `json:"audio"`
			} `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Target   string `json:"target"`
			Residual string `json:"residual"`
		}
		var resp struct {
			Items []item `json:"items"`
		}
		for _, it := range req.Items {
			pcm, err := manager.DecodePCM(it.Audio)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			tgt := make([]float32, len(pcm))
			res := make([]float32, len(pcm))
			for i, v := range pcm {
				tgt[i] = v * 0.25
				res[i] = v - tgt[i]
			}
			resp.Items = append(resp.Items, item{Target: manager.EncodePCM(tgt), Residual: manager.EncodePCM(res)})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func (f *fakeRuntime) loadModels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.loads))
	for i, l := range f.loads {
		out[i], _ = l["model"].(string)
	}
	return out
}

type stack struct {
	srv    *httptest.Server
	rt     *fakeRuntime
	svc    *jobs.Service
	outDir string
	// wait bounds waitStatus.
	wait time.Duration
}

// newStack wires the whole service in-process against a fake runtime.
func newStack(t *testing.T, queueDepth int, block bool) *stack {
	t.Helper()
	rt := &fakeRuntime{}
	if block {
		rt.block = make(chan struct{})
	}
	rtSrv := httptest.NewServer(rt.handler())
	t.Cleanup(rtSrv.Close)
	if block {
		t.Cleanup(func() { close(rt.block) })
	}
	s := newStackWith(t, &manager.RemoteLoader{BaseURL: rtSrv.URL}, queueDepth, false)
	s.rt = rt
	return s
}

// newSpawnStack spawns bin per slot, the way ghostd serve does.
func newSpawnStack(t *testing.T, bin string) *stack {
	t.Helper()
	loader := manager.NewSidecarLoader(manager.SidecarConfig{Bin: bin, Logger: zerolog.Nop()})
	s := newStackWith(t, loader, 1, true)
	s.wait = 30 * time.Minute
	return s
}

func newStackWith(t *testing.T, loader manager.Loader, queueDepth int, allowEmptyToken bool) *stack {
	t.Helper()
	dataDir := t.TempDir()
	st, err := store.Open(filepath.Join(dataDir, "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Loader:          loader,
		Logger:          zerolog.Nop(),
		AllowEmptyToken: allowEmptyToken,
	})
	t.Cleanup(func() { _ = mgr.Close() })

	tokens := auth.NewTokenStore(dataDir)
	catalog := registry.New("", filepath.Join(dataDir, "checkpoints"))
	outDir := filepath.Join(dataDir, "outputs")
	ctrl := jobs.NewController(jobs.ControllerConfig{
		Slots:     mgr,
		Tokens:    tokens,
		Catalog:   catalog,
		Sink:      st,
		Device:    model.DetectDevice(),
		OutputDir: outDir,
		Logger:    zerolog.Nop(),
	})
	svc := jobs.NewService(jobs.ServiceConfig{
		Store:      st,
		Executor:   ctrl,
		Slots:      mgr,
		QueueDepth: queueDepth,
		JobTimeout: time.Hour,
		Logger:     zerolog.Nop(),
	})
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	})

	httpapi.SetLogger(zerolog.Nop())
	mux := httpapi.NewMux(httpapi.Deps{
		Jobs:             svc,
		Tokens:           tokens,
		Catalog:          catalog,
		UploadDir:        filepath.Join(dataDir, "uploads"),
		DefaultModelSize: registry.DefaultSize,
		ChunkDuration:    jobs.DefaultChunkDuration,
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &stack{srv: srv, svc: svc, outDir: outDir, wait: 15 * time.Second}
}

// writeTone writes a mono 440 Hz tone at the runtime rate.
func writeTone(t *testing.T, seconds float64) string {
	t.Helper()
	n := int(seconds * runtimeRate)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/runtimeRate))
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := audio.WriteWAV(path, samples, runtimeRate, 16); err != nil {
		t.Fatalf("write tone: %v", err)
	}
	return path
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func httpDo(t *testing.T, method, url, contentType string, body io.Reader) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

// submit posts path with the given form fields to /api/separate.
func (s *stack) submit(t *testing.T, path string, fields map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()
	return httpDo(t, http.MethodPost, s.srv.URL+"/api/separate", mw.FormDataContentType(), &buf)
}

func (s *stack) saveToken(t *testing.T) {
	t.Helper()
	resp, body := httpDo(t, http.MethodPost, s.srv.URL+"/api/auth/token", "application/json", bytes.NewBufferString(`{"token":"hf_e2e"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save token: %d %s", resp.StatusCode, body)
	}
}

// waitStatus polls the task until its coarse status is terminal.
func (s *stack) waitStatus(t *testing.T, id string) types.TaskStatus {
	t.Helper()
	deadline := time.Now().Add(s.wait)
	for time.Now().Before(deadline) {
		resp, body := httpGet(t, s.srv.URL+"/api/tasks/"+id)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %s: %d %s", id, resp.StatusCode, body)
		}
		var st types.TaskStatus
		if err := json.Unmarshal(body, &st); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		switch st.Status {
		case store.StatusCompleted, store.StatusFailed, store.StatusCancelled:
			return st
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("task %s did not settle", id)
	return types.TaskStatus{}
}
