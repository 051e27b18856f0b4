package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseImage, s.BaseImage)
	assert.Equal(t, DefaultImagePrefix, s.ImagePrefix)
	assert.Equal(t, DefaultInstanceSuffix, s.InstanceSuffix)
	assert.Equal(t, DefaultMountPoint, s.MountPoint)
	assert.Equal(t, DefaultShell, s.Shell)
	assert.Equal(t, DefaultBuildScript, s.BuildScript)
	assert.Equal(t, DefaultWatchDebounce, s.Watch.Debounce)
	assert.Contains(t, s.Watch.Ignore, ".git")
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
base_image: example/local
image_prefix: proj_
mount_point: /work
history_path: ""
watch:
  debounce: 2s
  ignore: [build]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "example/local", s.BaseImage)
	assert.Equal(t, "proj_", s.ImagePrefix)
	assert.Equal(t, "/work", s.MountPoint)
	assert.Equal(t, DefaultShell, s.Shell, "unset fields keep defaults")
	assert.Equal(t, 2*time.Second, s.Watch.Debounce)
	assert.Equal(t, []string{"build"}, s.Watch.Ignore)

	history, err := s.History()
	require.NoError(t, err)
	assert.Empty(t, history, "explicit empty history_path disables history")
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_image: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestHistoryPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		name string
		set  *string
		want string
	}{
		{"default", nil, filepath.Join(home, ".iotz", "history.log")},
		{"tilde", strPtr("~/logs/iotz.log"), filepath.Join(home, "logs", "iotz.log")},
		{"absolute", strPtr("/var/log/iotz.log"), "/var/log/iotz.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			s.HistoryPath = tt.set
			got, err := s.History()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultPathHonoursEnv(t *testing.T) {
	t.Setenv(EnvPath, "/tmp/custom.yaml")
	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.yaml", p)
}

func strPtr(s string) *string { return &s }
