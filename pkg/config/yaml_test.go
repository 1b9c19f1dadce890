package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskscheduler/pkg/config"
)

type manifest struct {
	Name     string `yaml:"name"`
	Handlers []struct {
		Topic     string        `yaml:"topic"`
		Interval  time.Duration `yaml:"interval"`
		Immediate bool          `yaml:"immediate"`
	} `yaml:"handlers"`
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	t.Run("valid document", func(t *testing.T) {
		t.Parallel()

		var m manifest
		require.NoError(t, config.LoadYAML("testdata/manifest.yaml", &m))
		assert.Equal(t, "billing", m.Name)
		require.Len(t, m.Handlers, 2)
		assert.Equal(t, "invoices", m.Handlers[0].Topic)
		assert.Equal(t, 1500*time.Millisecond, m.Handlers[0].Interval)
		assert.True(t, m.Handlers[0].Immediate)
		assert.Equal(t, 250*time.Millisecond, m.Handlers[1].Interval)
		assert.False(t, m.Handlers[1].Immediate)
	})

	t.Run("unknown field", func(t *testing.T) {
		t.Parallel()

		var m manifest
		err := config.LoadYAML("testdata/unknown_field.yaml", &m)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingYAML)
		assert.Contains(t, err.Error(), "intervall")
	})

	t.Run("malformed document", func(t *testing.T) {
		t.Parallel()

		var m manifest
		assert.ErrorIs(t, config.LoadYAML("testdata/broken.yaml", &m), config.ErrParsingYAML)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		var m manifest
		assert.ErrorIs(t, config.LoadYAML("testdata/nope.yaml", &m), config.ErrReadingFile)
	})

	t.Run("nil pointer", func(t *testing.T) {
		t.Parallel()

		var m *manifest
		assert.ErrorIs(t, config.LoadYAML("testdata/manifest.yaml", m), config.ErrNilPointer)
	})
}

func TestDecodeYAML_Empty(t *testing.T) {
	t.Parallel()

	m := manifest{Name: "keep"}
	require.NoError(t, config.DecodeYAML(strings.NewReader(""), &m))
	assert.Equal(t, "keep", m.Name)
}
