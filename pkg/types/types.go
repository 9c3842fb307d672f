package types

// Model describes one separation checkpoint the service can load.
type Model struct {
	// Model size label.
	// example: base
	Size string `json:"size" example:"base"`
	// Hub identifier passed to the runtime.
	// example: facebook/sam-audio-base
	Name string `json:"name" example:"facebook/sam-audio-base"`
	// Whether a local checkpoint was found for this model.
	Local bool `json:"local"`
}

// JobResult is the result descriptor of a completed separation job.
// All paths exist on disk when a JobResult is returned.
type JobResult struct {
	// Mono WAV of the decoded, resampled input.
	// example: outputs/7f0c.original.wav
	OriginalPath string `json:"original_path" example:"outputs/7f0c.original.wav"`
	// Audio matching the description ("ghost").
	// example: outputs/7f0c.ghost.wav
	GhostPath string `json:"ghost_path" example:"outputs/7f0c.ghost.wav"`
	// Everything else ("clean").
	// example: outputs/7f0c.clean.wav
	CleanPath string `json:"clean_path" example:"outputs/7f0c.clean.wav"`
	// Copy of the source container when the input was a video file.
	VideoPath string `json:"video_path,omitempty"`
	// example: dog barking
	Description string `json:"description" example:"dog barking"`
	// example: extract
	Mode string `json:"mode" example:"extract"`
	// Input duration in seconds (2 decimals).
	// example: 60.5
	AudioDuration float64 `json:"audio_duration" example:"60.5"`
	// Wall-clock processing time in seconds (2 decimals).
	// example: 41.27
	ProcessingTime float64 `json:"processing_time" example:"41.27"`
	// example: base
	ModelSize string `json:"model_size" example:"base"`
	// Sample rate of every written artifact.
	// example: 48000
	SampleRate int `json:"sample_rate" example:"48000"`
	// Number of chunks that were separated.
	// example: 3
	Chunks int `json:"chunks" example:"3"`
}

// Paths lists the artifact paths keyed by download type.
func (r JobResult) Paths() map[string]string {
	out := map[string]string{
		"original": r.OriginalPath,
		"ghost":    r.GhostPath,
		"clean":    r.CleanPath,
	}
	if r.VideoPath != "" {
		out["video"] = r.VideoPath
	}
	return out
}
