package bitnet

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/m96-chan/0xBitNet-sub000/device"
)

// TensorStats reports per-tensor numeric health, the kind of thing worth
// printing when a model produces garbage output and the question is
// "which layer went wrong."
type TensorStats struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Mean       float64 `json:"mean"`
	RMS        float64 `json:"rms"`
	NaNCount   int     `json:"nanCount"`
	InfCount   int     `json:"infCount"`
	ZeroCount  int     `json:"zeroCount"`
}

// ProbeBuffer downloads buf from the device and computes TensorStats over
// its contents, interpreted as a packed []float32 of len(raw)/4 elements.
func ProbeBuffer(ctx context.Context, name string, buf device.Buffer) (TensorStats, error) {
	raw := make([]byte, buf.Size())
	if err := buf.Read(ctx, raw); err != nil {
		return TensorStats{}, fmt.Errorf("read buffer %q: %w", name, err)
	}
	return ProbeFloat32Bytes(name, raw), nil
}

// ProbeFloat32Bytes computes TensorStats over raw interpreted as a packed
// little-endian []float32.
func ProbeFloat32Bytes(name string, raw []byte) TensorStats {
	n := len(raw) / 4
	values := make([]float64, 0, n)

	st := TensorStats{Name: name, Min: math.Inf(1), Max: math.Inf(-1)}
	for i := 0; i < n; i++ {
		bits := uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
		v := float64(math.Float32frombits(bits))

		switch {
		case math.IsNaN(v):
			st.NaNCount++
			continue
		case math.IsInf(v, 0):
			st.InfCount++
			continue
		case v == 0:
			st.ZeroCount++
		}

		values = append(values, v)
	}

	st.Count = n
	if len(values) == 0 {
		st.Min, st.Max = 0, 0
		return st
	}

	st.Min = floats.Min(values)
	st.Max = floats.Max(values)
	st.Mean = stat.Mean(values, nil)

	var sumSq float64
	for _, v := range values {
		sumSq += v * v
	}
	st.RMS = math.Sqrt(sumSq / float64(len(values)))

	return st
}

// ProbeReport is a snapshot of TensorStats across a set of named buffers,
// taken at one point in a forward pass.
type ProbeReport struct {
	Stage string        `json:"stage"`
	Stats []TensorStats `json:"stats"`
}

// ProbeBuffers probes every named buffer in bufs and returns the
// aggregate report tagged with stage (e.g. "after_block_3",
// "post_final_norm").
func ProbeBuffers(ctx context.Context, stage string, bufs map[string]device.Buffer) (ProbeReport, error) {
	report := ProbeReport{Stage: stage, Stats: make([]TensorStats, 0, len(bufs))}
	for name, buf := range bufs {
		s, err := ProbeBuffer(ctx, name, buf)
		if err != nil {
			return ProbeReport{}, err
		}
		report.Stats = append(report.Stats, s)
	}
	return report, nil
}
