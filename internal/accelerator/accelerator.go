// Package accelerator loads TensorFlow Lite models onto an Edge TPU when one is
// present and falls back to the CPU otherwise. Detector and classifier only
// see the Inferencer interface; neither branches on the backend.
package accelerator

import (
	"os"
	"time"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
)

// Backend names the runtime a model was loaded on.
type Backend string

const (
	BackendCPU     Backend = "cpu"
	BackendEdgeTPU Backend = "edgetpu"
)

// TensorType is the element type of a model tensor.
type TensorType int

const (
	TypeFloat32 TensorType = iota
	TypeUInt8
)

func (t TensorType) String() string {
	if t == TypeUInt8 {
		return "uint8"
	}
	return "float32"
}

// Tensor is a copy of one model output. Exactly one of Float32 and UInt8 is set.
type Tensor struct {
	Type    TensorType
	Shape   []int
	Float32 []float32
	UInt8   []uint8
}

// Len returns the number of elements.
func (t Tensor) Len() int {
	if t.Type == TypeUInt8 {
		return len(t.UInt8)
	}
	return len(t.Float32)
}

// At returns element i as float32 without dequantization.
func (t Tensor) At(i int) float32 {
	if t.Type == TypeUInt8 {
		return float32(t.UInt8[i])
	}
	return t.Float32[i]
}

// Inferencer runs one model. Implementations serialize Run internally so a
// single Inferencer may be shared between goroutines.
type Inferencer interface {
	// Run feeds an RGB uint8 image laid out NHWC and returns copies of every output tensor.
	Run(input []uint8) ([]Tensor, error)
	// InputSize returns the model input width and height.
	InputSize() (width, height int)
	Backend() Backend
	Close()
}

// Probe is the result of looking for an accelerator at startup.
type Probe struct {
	Available  bool     `json:"available"`
	DevicePath string   `json:"device_path,omitempty"` // first device path found
	Devices    int      `json:"devices"`               // devices reported by the delegate
	Reason     string   `json:"reason,omitempty"`      // why Available is false
	Checked    []string `json:"checked"`
}

// statPaths returns the first path in paths that exists.
func statPaths(paths []string) (string, bool) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// Loader creates Inferencers for one runtime. The tflite implementation is
// the production loader; tests substitute their own.
type Loader interface {
	LoadAccelerated(modelPath string) (Inferencer, error)
	LoadCPU(modelPath string, threads int) (Inferencer, error)
}

// Dispatcher picks a backend for each model it loads.
type Dispatcher struct {
	probe   Probe
	loader  Loader
	threads int
}

// NewDispatcher returns a dispatcher that trusts probe for device presence.
// threads is the CPU interpreter thread count, 0 for automatic.
func NewDispatcher(probe Probe, loader Loader, threads int) *Dispatcher {
	if loader == nil {
		loader = NewTFLiteLoader()
	}
	return &Dispatcher{probe: probe, loader: loader, threads: ThreadCount(threads)}
}

// Probe returns the probe result the dispatcher was built with.
func (d *Dispatcher) Probe() Probe {
	return d.probe
}

// Threads returns the CPU interpreter thread count.
func (d *Dispatcher) Threads() int {
	return d.threads
}

// Backend reports where Load would try a model first.
func (d *Dispatcher) Backend(acceleratorModelPath string) Backend {
	if d.probe.Available && fileExists(acceleratorModelPath) {
		return BackendEdgeTPU
	}
	return BackendCPU
}

// Load returns a model on the accelerator if possible, otherwise on the CPU.
// The boolean reports whether the accelerator is in use. An error is returned
// only when no model could be loaded at all.
func (d *Dispatcher) Load(cpuModelPath, acceleratorModelPath string) (Inferencer, bool, error) {
	log := GetLogger()
	start := time.Now()

	if d.probe.Available && fileExists(acceleratorModelPath) {
		m, err := d.loader.LoadAccelerated(acceleratorModelPath)
		if err == nil {
			log.Info("loaded model on accelerator",
				logger.String("model", baseName(acceleratorModelPath)),
				logger.String("device", d.probe.DevicePath),
				logger.Duration("elapsed", time.Since(start)))
			return m, true, nil
		}
		log.Warn("failed to load accelerator model, falling back to CPU",
			logger.String("model", baseName(acceleratorModelPath)),
			logger.Error(err))
	}

	if !fileExists(cpuModelPath) {
		return nil, false, errors.Newf("model not found: %s", cpuModelPath).
			Component("accelerator").
			Category(errors.CategoryModelLoad).
			ModelContext(cpuModelPath, string(BackendCPU)).
			Context("accelerator_available", d.probe.Available).
			Build()
	}

	m, err := d.loader.LoadCPU(cpuModelPath, d.threads)
	if err != nil {
		return nil, false, errors.New(err).
			Component("accelerator").
			Category(errors.CategoryModelInit).
			ModelContext(cpuModelPath, string(BackendCPU)).
			Timing("model-load", time.Since(start)).
			Build()
	}
	log.Info("loaded model on CPU",
		logger.String("model", baseName(cpuModelPath)),
		logger.Int("threads", d.threads),
		logger.Duration("elapsed", time.Since(start)))
	return m, false, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return p[i+1:]
		}
	}
	return p
}
