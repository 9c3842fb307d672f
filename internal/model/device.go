package model

import (
	"fmt"
	"os"
	"strings"
)

// Device names the compute device a model is placed on.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
	DeviceMPS  Device = "mps"
)

// Accelerated reports whether the device is a GPU-class accelerator.
func (d Device) Accelerated() bool {
	return d == DeviceCUDA || d == DeviceMPS
}

// ParseDevice accepts cpu, cuda, mps or auto. Auto (and empty) resolves
// through DetectDevice.
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return DetectDevice(), nil
	case "cpu":
		return DeviceCPU, nil
	case "cuda", "gpu":
		return DeviceCUDA, nil
	case "mps":
		return DeviceMPS, nil
	default:
		return "", fmt.Errorf("unknown device %q", s)
	}
}

// nvidiaDevicePath is a var so tests can point it elsewhere.
var nvidiaDevicePath = "/dev/nvidia0"

// DetectDevice picks cuda when an NVIDIA device is visible to the process,
// cpu otherwise. CUDA_VISIBLE_DEVICES set to "" or "-1" hides the GPUs.
func DetectDevice() Device {
	if v, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		v = strings.TrimSpace(v)
		if v == "" || v == "-1" {
			return DeviceCPU
		}
	}
	if _, err := os.Stat(nvidiaDevicePath); err == nil {
		return DeviceCUDA
	}
	return DeviceCPU
}

// Precision is the numeric precision weights are cast to on load.
type Precision string

const (
	PrecisionBF16 Precision = "bf16"
	PrecisionFP32 Precision = "fp32"
)

// DefaultPrecision is bf16 on accelerators and fp32 on cpu.
func DefaultPrecision(d Device) Precision {
	if d.Accelerated() {
		return PrecisionBF16
	}
	return PrecisionFP32
}

// ParsePrecision accepts bf16, fp32 or empty (derive from device).
func ParsePrecision(s string, d Device) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultPrecision(d), nil
	case "bf16", "bfloat16":
		return PrecisionBF16, nil
	case "fp32", "float32":
		return PrecisionFP32, nil
	default:
		return "", fmt.Errorf("unknown precision %q", s)
	}
}
