package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oulianov/audioghost-ai/internal/common/fsutil"
	"github.com/oulianov/audioghost-ai/internal/failure"
	"github.com/oulianov/audioghost-ai/pkg/types"
)

// DefaultPrefix is prepended to a size label to form the hub model id.
const DefaultPrefix = "facebook/sam-audio-"

// DefaultSize is used when a request names no model size.
const DefaultSize = "base"

// Sizes lists the checkpoints the service knows about, smallest first.
var Sizes = []string{"small", "base", "large"}

// checkpointExts are the weight file extensions counted as a local checkpoint.
var checkpointExts = []string{".safetensors", ".bin"}

// ParseSize normalizes a size label. Empty means DefaultSize.
func ParseSize(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultSize, nil
	}
	for _, v := range Sizes {
		if v == s {
			return s, nil
		}
	}
	return "", failure.New(failure.KindInput, fmt.Sprintf("unknown model size %q (want one of %s)", s, strings.Join(Sizes, ", ")), nil)
}

// Catalog maps size labels to model ids and reports local checkpoints.
type Catalog struct {
	Prefix         string
	CheckpointsDir string
}

// New returns a catalog; an empty prefix means DefaultPrefix.
func New(prefix, checkpointsDir string) *Catalog {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	return &Catalog{Prefix: prefix, CheckpointsDir: checkpointsDir}
}

// ModelName returns <prefix><size> for a valid size label.
func (c *Catalog) ModelName(size string) (string, error) {
	s, err := ParseSize(size)
	if err != nil {
		return "", err
	}
	return c.Prefix + s, nil
}

// Models lists every known checkpoint. Local is set on all of them when
// weights are present under CheckpointsDir.
func (c *Catalog) Models() []types.Model {
	local := c.HasLocalCheckpoints()
	out := make([]types.Model, 0, len(Sizes))
	for _, s := range Sizes {
		out = append(out, types.Model{Size: s, Name: c.Prefix + s, Local: local})
	}
	return out
}

// HasLocalCheckpoints reports whether CheckpointsDir holds weight files.
// A missing or unreadable directory counts as none.
func (c *Catalog) HasLocalCheckpoints() bool {
	if strings.TrimSpace(c.CheckpointsDir) == "" {
		return false
	}
	files, err := Checkpoints(c.CheckpointsDir)
	return err == nil && len(files) > 0
}

// Checkpoints scans dir (not recursively) for *.safetensors and *.bin
// files and returns their absolute paths.
func Checkpoints(dir string) ([]string, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range checkpointExts {
			if ext == want {
				out = append(out, filepath.Join(abs, e.Name()))
				break
			}
		}
	}
	return out, nil
}
