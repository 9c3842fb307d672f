package types

// SeparationResponse is returned by POST /api/separate and each element of
// POST /api/separate/batch.
type SeparationResponse struct {
	// example: 5b1e2f7c-7a43-4d55-9a36-0f1f4a3c9d10
	TaskID string `json:"task_id" example:"5b1e2f7c-7a43-4d55-9a36-0f1f4a3c9d10"`
	// example: pending
	Status string `json:"status" example:"pending"`
	// example: Task submitted successfully
	Message string `json:"message" example:"Task submitted successfully"`
}

// TaskStatus is returned by GET /api/tasks/{id}.
type TaskStatus struct {
	// example: 5b1e2f7c-7a43-4d55-9a36-0f1f4a3c9d10
	TaskID string `json:"task_id" example:"5b1e2f7c-7a43-4d55-9a36-0f1f4a3c9d10"`
	// Coarse status: pending, processing, completed, failed or cancelled.
	// example: processing
	Status string `json:"status" example:"processing"`
	// Fine-grained controller state (e.g. loading_model, separating).
	// example: separating
	State string `json:"state" example:"separating"`
	// Progress percent in [0,100].
	// example: 46
	Progress int `json:"progress" example:"46"`
	// example: Processing chunk 2/3...
	Message string `json:"message,omitempty" example:"Processing chunk 2/3..."`
	// Error kind for failed tasks (configuration, input, device_memory, ...).
	ErrorKind string `json:"error_kind,omitempty"`
	// Result descriptor, only set for completed tasks.
	Result *JobResult `json:"result,omitempty"`
}

// AuthStatus is returned by GET /api/auth/status.
type AuthStatus struct {
	Authenticated   bool   `json:"authenticated"`
	ModelDownloaded bool   `json:"model_downloaded"`
	ModelName       string `json:"model_name,omitempty"`
}

// TokenRequest is the body of POST /api/auth/token.
type TokenRequest struct {
	Token string `json:"token"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: description is required
	Error string `json:"error" example:"description is required"`
	// Error kind from the failure taxonomy, when known.
	Kind string `json:"kind,omitempty"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// SlotStatus summarizes the model slot for GET /status.
type SlotStatus struct {
	// Slot state: empty, loading, ready or error.
	// example: ready
	State string `json:"state" example:"ready"`
	// Slot key rendered as <model>_<variant>_<device>_<precision>.
	// example: facebook/sam-audio-base_lite_cuda_bf16
	Key string `json:"key,omitempty" example:"facebook/sam-audio-base_lite_cuda_bf16"`
	// example: facebook/sam-audio-base
	ModelName string `json:"model_name,omitempty" example:"facebook/sam-audio-base"`
	// example: cuda
	Device string `json:"device,omitempty" example:"cuda"`
	// example: bf16
	Precision string `json:"precision,omitempty" example:"bf16"`
	// example: lite
	Variant string `json:"variant,omitempty" example:"lite"`
	// Components resident in the loaded model.
	Components []string `json:"components,omitempty"`
	// Native sample rate of the loaded processor.
	// example: 48000
	SampleRate   int   `json:"sample_rate,omitempty" example:"48000"`
	LoadedAtUnix int64 `json:"loaded_at_unix,omitempty"`
	LastUsedUnix int64 `json:"last_used_unix,omitempty"`
	// example: 4
	LoadsTotal uint64 `json:"loads_total" example:"4"`
	// example: 3
	EvictionsTotal uint64 `json:"evictions_total" example:"3"`
	// example: 12
	HitsTotal uint64 `json:"hits_total" example:"12"`
	LastError string `json:"last_error,omitempty"`
	// Jobs waiting in the worker queue.
	// example: 2
	QueueLen int `json:"queue_len" example:"2"`
	// Job currently executing, if any.
	RunningJob     string `json:"running_job,omitempty"`
	HostMemTotalMB uint64 `json:"host_mem_total_mb,omitempty"`
	HostMemAvailMB uint64 `json:"host_mem_available_mb,omitempty"`
	UptimeSeconds  int64  `json:"uptime_seconds" example:"3600"`
	ServerTimeUnix int64  `json:"server_time_unix" example:"1700000000"`
}
