package accelerator

import (
	"fmt"
	"sync"

	"github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/edgetpu"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/ando01/BirdView/internal/errors"
	"github.com/ando01/BirdView/internal/logger"
)

// ProbeSystem checks the configured device paths and asks the Edge TPU
// runtime for devices. Call it once at startup and pass the result on.
func ProbeSystem(devicePaths []string) Probe {
	p := Probe{Checked: devicePaths}

	path, ok := statPaths(devicePaths)
	if !ok {
		p.Reason = "no accelerator device path found"
		GetLogger().Info("no accelerator device path found", logger.Any("checked", devicePaths))
		return p
	}
	p.DevicePath = path

	devices, err := edgetpu.DeviceList()
	if err != nil {
		p.Reason = fmt.Sprintf("edgetpu runtime unavailable: %v", err)
		GetLogger().Info("accelerator delegate not available", logger.Error(err))
		return p
	}
	p.Devices = len(devices)
	if p.Devices == 0 {
		p.Reason = "edgetpu runtime reports no devices"
		return p
	}

	p.Available = true
	GetLogger().Info("accelerator available",
		logger.String("device_path", path),
		logger.Int("devices", p.Devices))
	return p
}

// TFLiteLoader loads models with the TensorFlow Lite C runtime.
type TFLiteLoader struct{}

// NewTFLiteLoader returns the production loader.
func NewTFLiteLoader() *TFLiteLoader {
	return &TFLiteLoader{}
}

// LoadAccelerated loads an Edge TPU compiled model on the first device.
func (l *TFLiteLoader) LoadAccelerated(modelPath string) (Inferencer, error) {
	devices, err := edgetpu.DeviceList()
	if err != nil {
		return nil, errors.New(err).
			Component("accelerator").
			Category(errors.CategoryAccelerator).
			ModelContext(modelPath, string(BackendEdgeTPU)).
			Build()
	}
	if len(devices) == 0 {
		return nil, errors.Newf("no edgetpu devices").
			Component("accelerator").
			Category(errors.CategoryAccelerator).
			ModelContext(modelPath, string(BackendEdgeTPU)).
			Build()
	}

	delegate := edgetpu.New(devices[0])
	if delegate == nil {
		return nil, errors.Newf("failed to create edgetpu delegate").
			Component("accelerator").
			Category(errors.CategoryAccelerator).
			ModelContext(modelPath, string(BackendEdgeTPU)).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	options.AddDelegate(delegate)
	options.SetNumThread(1)

	m, err := newTFLiteModel(modelPath, options, BackendEdgeTPU)
	if err != nil {
		delegate.Delete()
		return nil, err
	}
	m.release = delegate.Delete
	return m, nil
}

// LoadCPU loads a plain model, with XNNPACK when the CPU supports it.
func (l *TFLiteLoader) LoadCPU(modelPath string, threads int) (Inferencer, error) {
	options := tflite.NewInterpreterOptions()

	var release func()
	if xnnpackSupported() {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: bounded by CPU count
		if delegate == nil {
			GetLogger().Warn("failed to create XNNPACK delegate, using default CPU kernels")
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
			release = delegate.Delete
		}
	} else {
		options.SetNumThread(threads)
	}

	m, err := newTFLiteModel(modelPath, options, BackendCPU)
	if err != nil {
		if release != nil {
			release()
		}
		return nil, err
	}
	m.release = release
	return m, nil
}

// tfliteModel wraps an interpreter; mu serializes Invoke.
type tfliteModel struct {
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	backend     Backend
	width       int
	height      int
	release     func()
}

func newTFLiteModel(modelPath string, options *tflite.InterpreterOptions, backend Backend) (*tfliteModel, error) {
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("tflite error", logger.String("message", msg))
	}, nil)

	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		options.Delete()
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("accelerator").
			Category(errors.CategoryModelLoad).
			ModelContext(modelPath, string(backend)).
			Build()
	}

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		model.Delete()
		options.Delete()
		return nil, errors.Newf("cannot create interpreter").
			Component("accelerator").
			Category(errors.CategoryModelInit).
			ModelContext(modelPath, string(backend)).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		model.Delete()
		options.Delete()
		return nil, errors.Newf("tensor allocation failed: %v", status).
			Component("accelerator").
			Category(errors.CategoryModelInit).
			ModelContext(modelPath, string(backend)).
			Build()
	}

	input := interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 {
		interpreter.Delete()
		model.Delete()
		options.Delete()
		return nil, errors.Newf("model input must be NHWC").
			Component("accelerator").
			Category(errors.CategoryModelInit).
			ModelContext(modelPath, string(backend)).
			Build()
	}

	return &tfliteModel{
		model:       model,
		options:     options,
		interpreter: interpreter,
		backend:     backend,
		height:      input.Dim(1),
		width:       input.Dim(2),
	}, nil
}

func (m *tfliteModel) InputSize() (width, height int) {
	return m.width, m.height
}

func (m *tfliteModel) Backend() Backend {
	return m.backend
}

func (m *tfliteModel) Run(input []uint8) ([]Tensor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.interpreter == nil {
		return nil, errors.Newf("model is closed").
			Component("accelerator").
			Category(errors.CategoryInference).
			Build()
	}

	in := m.interpreter.GetInputTensor(0)
	switch in.Type() {
	case tflite.UInt8:
		dst := in.UInt8s()
		if len(dst) != len(input) {
			return nil, inputSizeError(len(input), len(dst))
		}
		copy(dst, input)
	case tflite.Int8:
		dst := in.Int8s()
		if len(dst) != len(input) {
			return nil, inputSizeError(len(input), len(dst))
		}
		for i, v := range input {
			dst[i] = int8(int(v) - 128) //nolint:gosec // G115: range is [-128,127]
		}
	case tflite.Float32:
		dst := in.Float32s()
		if len(dst) != len(input) {
			return nil, inputSizeError(len(input), len(dst))
		}
		for i, v := range input {
			dst[i] = float32(v) / 255
		}
	default:
		return nil, errors.Newf("unsupported input tensor type %v", in.Type()).
			Component("accelerator").
			Category(errors.CategoryInference).
			Build()
	}

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.Newf("invoke failed: %v", status).
			Component("accelerator").
			Category(errors.CategoryInference).
			Context("backend", string(m.backend)).
			Build()
	}

	count := m.interpreter.GetOutputTensorCount()
	outputs := make([]Tensor, 0, count)
	for i := range count {
		outputs = append(outputs, copyTensor(m.interpreter.GetOutputTensor(i)))
	}
	return outputs, nil
}

func (m *tfliteModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.interpreter == nil {
		return
	}
	m.interpreter.Delete()
	m.model.Delete()
	m.options.Delete()
	if m.release != nil {
		m.release()
	}
	m.interpreter = nil
}

// copyTensor copies t out of interpreter memory. Int8 outputs are dequantized to float32.
func copyTensor(t *tflite.Tensor) Tensor {
	shape := make([]int, t.NumDims())
	for i := range shape {
		shape[i] = t.Dim(i)
	}

	switch t.Type() {
	case tflite.UInt8:
		return Tensor{Type: TypeUInt8, Shape: shape, UInt8: append([]uint8(nil), t.UInt8s()...)}
	case tflite.Int8:
		q := t.QuantizationParams()
		raw := t.Int8s()
		out := make([]float32, len(raw))
		for i, v := range raw {
			out[i] = float32(q.Scale * float64(int(v)-q.ZeroPoint))
		}
		return Tensor{Type: TypeFloat32, Shape: shape, Float32: out}
	default:
		return Tensor{Type: TypeFloat32, Shape: shape, Float32: append([]float32(nil), t.Float32s()...)}
	}
}

func inputSizeError(got, want int) error {
	return errors.Newf("input has %d elements, model expects %d", got, want).
		Component("accelerator").
		Category(errors.CategoryInference).
		Build()
}
