package xr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mode        SessionMode
		init        SessionInit
		supported   []string
		want        []string
		wantFailure string
	}{
		{
			name:      "required supported feature",
			mode:      ModeImmersiveVR,
			init:      SessionInit{RequiredFeatures: []string{"local-floor"}, OptionalFeatures: []string{"bounded-floor"}},
			supported: []string{"local-floor"},
			want:      []string{"local-floor"},
		},
		{
			name:        "local is not default for inline",
			mode:        ModeInline,
			init:        SessionInit{RequiredFeatures: []string{"local"}},
			supported:   []string{},
			wantFailure: "local",
		},
		{
			name:      "viewer always granted",
			mode:      ModeInline,
			init:      SessionInit{RequiredFeatures: []string{"viewer"}},
			supported: nil,
			want:      []string{"viewer"},
		},
		{
			name:      "local default for immersive vr",
			mode:      ModeImmersiveVR,
			init:      SessionInit{RequiredFeatures: []string{"local"}},
			supported: nil,
			want:      []string{"local"},
		},
		{
			name:      "local default for immersive ar",
			mode:      ModeImmersiveAR,
			init:      SessionInit{RequiredFeatures: []string{"local"}},
			supported: nil,
			want:      []string{"local"},
		},
		{
			name:        "required unsupported feature fails",
			mode:        ModeImmersiveVR,
			init:        SessionInit{RequiredFeatures: []string{"hand-tracking"}},
			supported:   []string{"local-floor"},
			wantFailure: "hand-tracking",
		},
		{
			name:        "first unsupported required feature wins",
			mode:        ModeImmersiveVR,
			init:        SessionInit{RequiredFeatures: []string{"hit-test", "hand-tracking"}},
			supported:   nil,
			wantFailure: "hit-test",
		},
		{
			name:      "unsupported optional feature skipped",
			mode:      ModeImmersiveVR,
			init:      SessionInit{RequiredFeatures: []string{"local"}, OptionalFeatures: []string{"hand-tracking"}},
			supported: nil,
			want:      []string{"local"},
		},
		{
			name: "order required then optional",
			mode: ModeImmersiveAR,
			init: SessionInit{
				RequiredFeatures: []string{"local-floor", "viewer"},
				OptionalFeatures: []string{"hit-test", "anchors", "hand-tracking"},
			},
			supported: []string{"local-floor", "anchors", "hit-test"},
			want:      []string{"local-floor", "viewer", "hit-test", "anchors"},
		},
		{
			name:      "default granted optional",
			mode:      ModeImmersiveVR,
			init:      SessionInit{OptionalFeatures: []string{"viewer", "local"}},
			supported: nil,
			want:      []string{"viewer", "local"},
		},
		{
			name:      "empty request",
			mode:      ModeInline,
			init:      SessionInit{},
			supported: []string{"local-floor"},
			want:      []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			granted, err := tt.init.Validate(tt.mode, tt.supported)

			if tt.wantFailure != "" {
				require.Error(t, err)
				var unsupported *UnsupportedFeatureError
				require.True(t, errors.As(err, &unsupported))
				assert.Equal(t, tt.wantFailure, unsupported.Feature)
				assert.Nil(t, granted)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, granted)
		})
	}
}

func TestValidateIsPure(t *testing.T) {
	init := SessionInit{
		RequiredFeatures: []string{"local"},
		OptionalFeatures: []string{"bounded-floor"},
	}
	supported := []string{"bounded-floor"}

	first, err := init.Validate(ModeImmersiveVR, supported)
	require.NoError(t, err)
	second, err := init.Validate(ModeImmersiveVR, supported)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"local"}, init.RequiredFeatures)
	assert.Equal(t, []string{"bounded-floor"}, init.OptionalFeatures)
}
