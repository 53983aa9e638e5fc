package tracing

import "testing"

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{name: "always sampler", strategy: SamplerAlways},
		{name: "never sampler", strategy: SamplerNever},
		{name: "ratio sampler - 0%", strategy: SamplerRatio, ratio: 0.0},
		{name: "ratio sampler - 10%", strategy: SamplerRatio, ratio: 0.1},
		{name: "ratio sampler - 100%", strategy: SamplerRatio, ratio: 1.0},
		{name: "ratio sampler - negative", strategy: SamplerRatio, ratio: -0.1, wantErr: true},
		{name: "ratio sampler - above one", strategy: SamplerRatio, ratio: 1.1, wantErr: true},
		{name: "unknown strategy", strategy: "adaptive", wantErr: true},
		{name: "empty strategy", strategy: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sampler, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && sampler == nil {
				t.Error("createSampler() returned nil sampler")
			}
		})
	}
}
