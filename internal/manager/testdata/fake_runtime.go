package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// A stand-in separation runtime: returns the input as target and silence as
// residual. Accepts the flags the sidecar loader passes.
func main() {
	var model, device, dtype, host, port string
	var lite bool
	flag.StringVar(&model, "model", "", "model name")
	flag.StringVar(&device, "device", "cpu", "device")
	flag.StringVar(&dtype, "dtype", "fp32", "dtype")
	flag.BoolVar(&lite, "lite", false, "lite variant")
	flag.StringVar(&host, "host", "127.0.0.1", "host")
	flag.StringVar(&port, "port", "0", "port")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok", "sample_rate": 16000, "vision_dim": 1024, "feature_hop": 640,
			"model": model, "lite": lite, "token_set": os.Getenv("HF_TOKEN") != "",
		})
	})
	mux.HandleFunc("/separate", func(w http.ResponseWriter, r *http.Request) {
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
		out := struct {
			Items []item `json:"items"`
		}{}
		for _, it := range req.Items {
			// Zero bytes of equal length decode to silence.
			out.Items = append(out.Items, item{Target: it.Audio, Residual: zeros(it.Audio)})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/release", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{Addr: fmt.Sprintf("%s:%s", host, port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// zeros returns a base64 string of the same decoded length filled with zero
// bytes ("A" encodes six zero bits).
func zeros(b64 string) string {
	out := []byte(b64)
	for i, c := range out {
		if c != '=' {
			out[i] = 'A'
		}
	}
	return string(out)
}
