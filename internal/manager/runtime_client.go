package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oulianov/audioghost-ai/internal/model"
)

// Wire types of the separation runtime HTTP protocol.
type (
	runtimeHealth struct {
		Status     string `json:"status"`
		SampleRate int    `json:"sample_rate"`
		VisionDim  int    `json:"vision_dim"`
		FeatureHop int    `json:"feature_hop"`
	}

	runtimeItem struct {
		Audio       string         `json:"audio"`
		Description string         `json:"description"`
		Anchors     []model.Anchor `json:"anchors,omitempty"`
	}

	runtimeSeparateRequest struct {
		SampleRate int                      `json:"sample_rate"`
		Items      []runtimeItem            `json:"items"`
		Video      *model.ZeroVideoFeatures `json:"video,omitempty"`
		Options    model.SeparateOptions    `json:"options"`
	}

	runtimeSeparateResponse struct {
		Items []struct {
			Target   string `json:"target"`
			Residual string `json:"residual"`
		} `json:"items"`
	}

	runtimeError struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}

	runtimeLoadRequest struct {
		Model  string `json:"model"`
		Device string `json:"device"`
		DType  string `json:"dtype"`
		Lite   bool   `json:"lite"`
		Token  string `json:"token,omitempty"`
	}
)

const kindOutOfMemory = "out_of_memory"

// httpBackend talks to a running separation runtime.
type httpBackend struct {
	baseURL string
	client  *http.Client
	// onClose releases the runtime (stop the process or unload remotely).
	onClose   func() error
	closeOnce sync.Once
	closeErr  error
}

func (b *httpBackend) Separate(ctx context.Context, batch model.Batch, opts model.SeparateOptions) (model.Separation, error) {
	req := runtimeSeparateRequest{
		SampleRate: batch.SampleRate,
		Items:      make([]runtimeItem, len(batch.Audios)),
		Video:      batch.Video,
		Options:    opts,
	}
	for i, a := range batch.Audios {
		it := runtimeItem{Audio: EncodePCM(a)}
		if i < len(batch.Descriptions) {
			it.Description = batch.Descriptions[i]
		}
		if i < len(batch.Anchors) {
			it.Anchors = batch.Anchors[i]
		}
		req.Items[i] = it
	}
	var resp runtimeSeparateResponse
	if err := b.post(ctx, "/separate", req, &resp); err != nil {
		return model.Separation{}, err
	}
	if len(resp.Items) != len(batch.Audios) {
		return model.Separation{}, fmt.Errorf("runtime returned %d items for %d inputs", len(resp.Items), len(batch.Audios))
	}
	out := model.Separation{
		Target:   make([][]float32, len(resp.Items)),
		Residual: make([][]float32, len(resp.Items)),
	}
	for i, it := range resp.Items {
		t, err := DecodePCM(it.Target)
		if err != nil {
			return model.Separation{}, fmt.Errorf("item %d target: %w", i, err)
		}
		r, err := DecodePCM(it.Residual)
		if err != nil {
			return model.Separation{}, fmt.Errorf("item %d residual: %w", i, err)
		}
		out.Target[i], out.Residual[i] = t, r
	}
	return out, nil
}

func (b *httpBackend) ReleaseCache(ctx context.Context) error {
	return b.post(ctx, "/release", struct{}{}, nil)
}

func (b *httpBackend) Close() error {
	b.closeOnce.Do(func() {
		if b.onClose != nil {
			b.closeErr = b.onClose()
		}
	})
	return b.closeErr
}

// post sends a JSON body and decodes a JSON reply into out (when non-nil).
func (b *httpBackend) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readRuntimeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode runtime %s response: %w", path, err)
	}
	return nil
}

func readRuntimeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var re runtimeError
	_ = json.Unmarshal(b, &re)
	msg := strings.TrimSpace(re.Error)
	if msg == "" {
		msg = strings.TrimSpace(string(b))
	}
	if resp.StatusCode == http.StatusInsufficientStorage || re.Kind == kindOutOfMemory {
		return fmt.Errorf("%w: %s", model.ErrOutOfMemory, msg)
	}
	return fmt.Errorf("runtime http error: %s: %s", resp.Status, msg)
}

// fetchHealth queries GET /health and returns the runtime geometry.
func fetchHealth(ctx context.Context, client *http.Client, baseURL string, timeout time.Duration) (model.Info, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return model.Info{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return model.Info{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.Info{}, fmt.Errorf("health: %s", resp.Status)
	}
	var h runtimeHealth
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return model.Info{}, fmt.Errorf("health: %w", err)
	}
	if h.Status != "" && h.Status != "ok" && h.Status != "ready" {
		return model.Info{}, errors.New("health: runtime status " + h.Status)
	}
	return model.Info{SampleRate: h.SampleRate, VisionDim: h.VisionDim, FeatureHop: h.FeatureHop}.WithDefaults(), nil
}

// RemoteLoader attaches to an externally managed runtime. Load asks it to
// load the requested checkpoint; Close on the returned backend unloads it.
type RemoteLoader struct {
	BaseURL string
	Client  *http.Client
	// HealthTimeout bounds each health probe; defaults to 5s.
	HealthTimeout time.Duration
}

func (l *RemoteLoader) Load(ctx context.Context, spec LoadSpec) (model.Backend, model.Info, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := l.HealthTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	base := strings.TrimRight(l.BaseURL, "/")
	b := &httpBackend{baseURL: base, client: client}
	load := runtimeLoadRequest{
		Model:  spec.ModelName,
		Device: string(spec.Device),
		DType:  string(spec.Precision),
		Lite:   spec.Lite,
		Token:  spec.Token,
	}
	if err := b.post(ctx, "/load", load, nil); err != nil {
		return nil, model.Info{}, err
	}
	info, err := fetchHealth(ctx, client, base, timeout)
	if err != nil {
		return nil, model.Info{}, err
	}
	b.onClose = func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return b.post(ctx, "/unload", struct{}{}, nil)
	}
	return b, info, nil
}
