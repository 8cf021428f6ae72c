package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at an empty directory so no user config leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *c)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("RWESTUDY_ALPHA", "0.01")
	t.Setenv("RWESTUDY_CLUSTER_K", "3")
	t.Setenv("RWESTUDY_PREFERRED_ARM", "Semaglutide")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.01, c.Alpha)
	assert.Equal(t, 3, c.ClusterK)
	assert.Equal(t, "Semaglutide", c.PreferredArm)
}

func TestLoadFileAndValidation(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("comparator_arm: Placebo\nequal_variance: false\nwatch_list: [Obesity, PCOS]\n"), 0o644))
	c, err := Load(good)
	require.NoError(t, err)
	assert.Equal(t, "Placebo", c.ComparatorArm)
	assert.False(t, c.EqualVariance)
	assert.Equal(t, []string{"Obesity", "PCOS"}, c.WatchList)
	assert.Equal(t, "Mounjaro", c.PreferredArm)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("alpha: 1.5\ncluster_k: 0\noutput_format: pdf\n"), 0o644))
	_, err = Load(bad)
	require.Error(t, err)
	for _, key := range []string{"alpha", "cluster_k", "output_format"} {
		assert.Contains(t, err.Error(), key)
	}

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RWESTUDY_LOG_LEVEL=debug\n"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("RWESTUDY_LOG_LEVEL")
	})

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestSaveAndReload(t *testing.T) {
	home := isolate(t)
	c := Defaults()
	require.NoError(t, c.Set("cluster_seed", "7"))
	require.NoError(t, c.Set("watch_list", "Obesity, Hypertension"))
	require.NoError(t, Save(&c, ""))

	_, err := os.Stat(filepath.Join(home, ".rwestudy", "config.yaml"))
	require.NoError(t, err)

	got, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ClusterSeed)
	assert.Equal(t, []string{"Obesity", "Hypertension"}, got.WatchList)
}

func TestSetRejectsInvalid(t *testing.T) {
	c := Defaults()
	assert.Error(t, c.Set("nope", "1"))
	assert.Error(t, c.Set("cluster_k", "zero"))
	assert.Error(t, c.Set("cluster_k", "0"))
	assert.Error(t, c.Set("adherence_threshold", "0"), "a zero threshold would be replaced by the default")
	assert.Error(t, c.Set("comparator_arm", "Mounjaro"), "arms must differ")
	assert.NoError(t, c.Set("output_format", "JSON"))
	assert.Equal(t, "json", c.OutputFormat)
}
