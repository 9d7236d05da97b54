package accelerator

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ando01/BirdView/internal/errors"
)

type fakeModel struct {
	backend Backend
	closed  bool
}

func (f *fakeModel) Run(input []uint8) ([]Tensor, error) {
	return []Tensor{{Type: TypeFloat32, Shape: []int{1, 1}, Float32: []float32{float32(len(input))}}}, nil
}
func (f *fakeModel) InputSize() (int, int) { return 4, 4 }
func (f *fakeModel) Backend() Backend { return f.backend }
func (f *fakeModel) Close() { f.closed = true }

type fakeLoader struct {
	accelErr    error
	accelCalls  int
	cpuCalls    int
	lastThreads int
}

func (l *fakeLoader) LoadAccelerated(string) (Inferencer, error) {
	l.accelCalls++
	if l.accelErr != nil {
		return nil, l.accelErr
	}
	return &fakeModel{backend: BackendEdgeTPU}, nil
}

func (l *fakeLoader) LoadCPU(_ string, threads int) (Inferencer, error) {
	l.cpuCalls++
	l.lastThreads = threads
	return &fakeModel{backend: BackendCPU}, nil
}

func writeModel(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("tflite"), 0o600))
	return path
}

func TestDispatcherLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cpuModel := writeModel(t, dir, "model.tflite")
	tpuModel := writeModel(t, dir, "model_edgetpu.tflite")
	missing := filepath.Join(dir, "missing.tflite")

	tests := []struct {
		name         string
		probe        Probe
		accelErr     error
		cpuPath      string
		accelPath    string
		wantAccel    bool
		wantBackend  Backend
		wantErr      bool
		wantAccelTry int
	}{
		{"accelerator present", Probe{Available: true}, nil, cpuModel, tpuModel, true, BackendEdgeTPU, false, 1},
		{"no accelerator", Probe{}, nil, cpuModel, tpuModel, false, BackendCPU, false, 0},
		{"delegate fails", Probe{Available: true}, errors.NewStd("driver error"), cpuModel, tpuModel, false, BackendCPU, false, 1},
		{"accelerator model missing", Probe{Available: true}, nil, cpuModel, missing, false, BackendCPU, false, 0},
		{"accelerator only", Probe{Available: true}, nil, missing, tpuModel, true, BackendEdgeTPU, false, 1},
		{"nothing loadable", Probe{}, nil, missing, missing, false, "", true, 0},
		{"accelerator fails and no cpu model", Probe{Available: true}, errors.NewStd("incompatible"), missing, tpuModel, false, "", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			loader := &fakeLoader{accelErr: tt.accelErr}
			d := NewDispatcher(tt.probe, loader, 2)

			m, usingAccel, err := d.Load(tt.cpuPath, tt.accelPath)
			assert.Equal(t, tt.wantAccelTry, loader.accelCalls)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAccel, usingAccel)
			assert.Equal(t, tt.wantBackend, m.Backend())
		})
	}
}

func TestDispatcherThreadCount(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cpuModel := writeModel(t, dir, "model.tflite")

	loader := &fakeLoader{}
	_, _, err := NewDispatcher(Probe{}, loader, 1).Load(cpuModel, "")
	require.NoError(t, err)
	assert.Equal(t, 1, loader.lastThreads)
}

func TestDispatcherBackend(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	accelModel := writeModel(t, dir, "model_edgetpu.tflite")
	missing := filepath.Join(dir, "missing.tflite")

	available := NewDispatcher(Probe{Available: true}, &fakeLoader{}, 1)
	assert.Equal(t, BackendEdgeTPU, available.Backend(accelModel))
	assert.Equal(t, BackendCPU, available.Backend(missing))
	assert.Equal(t, BackendCPU, available.Backend(""))

	absent := NewDispatcher(Probe{Reason: "no device"}, &fakeLoader{}, 1)
	assert.Equal(t, BackendCPU, absent.Backend(accelModel))
}

func TestThreadCount(t *testing.T) {
	t.Parallel()

	assert.GreaterOrEqual(t, ThreadCount(0), 1)
	assert.Equal(t, 1, ThreadCount(1))
	assert.Equal(t, runtime.NumCPU(), ThreadCount(1<<16), "capped at NumCPU")
}

func TestStatPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, ok := statPaths([]string{filepath.Join(dir, "apex_0"), dir})
	assert.True(t, ok)
	assert.Equal(t, dir, path)

	_, ok = statPaths([]string{filepath.Join(dir, "none")})
	assert.False(t, ok)
}

func TestTensorAccessors(t *testing.T) {
	t.Parallel()

	u := Tensor{Type: TypeUInt8, UInt8: []uint8{0, 128, 255}}
	assert.Equal(t, 3, u.Len())
	assert.InDelta(t, 255.0, u.At(2), 1e-6)

	f := Tensor{Type: TypeFloat32, Float32: []float32{0.25}}
	assert.Equal(t, 1, f.Len())
	assert.InDelta(t, 0.25, f.At(0), 1e-6)
	assert.Equal(t, "uint8", TypeUInt8.String())
}
