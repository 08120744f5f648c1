package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/menta2k/vision-analyzer/pkg/apperror"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "appsettings.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// chdir moves into an empty directory so no stray .env is picked up
func chdir(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvEndpoint, "")
	t.Setenv(EnvKey, "")
	t.Setenv(EnvBackend, "")
}

func TestLoad(t *testing.T) {
	chdir(t)
	clearEnv(t)
	path := writeSettings(t, `{
		"CognitiveServicesEndpoint": "https://example.cognitiveservices.azure.com/",
		"CognitiveServiceKey": "secret"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://example.cognitiveservices.azure.com/", cfg.Endpoint)
	require.Equal(t, "secret", cfg.Key)
	require.Equal(t, BackendAzure, cfg.Backend)
	require.Equal(t, filepath.Join(".", "analyze.txt"), cfg.ReportPath())
	require.Equal(t, filepath.Join(".", "objects.jpg"), cfg.ObjectsPath())
	require.Equal(t, filepath.Join(".", "thumbnail.png"), cfg.ThumbnailPath())
	require.Zero(t, cfg.RequestTimeout())
}

func TestLoadMissingKeys(t *testing.T) {
	chdir(t)
	clearEnv(t)

	tests := map[string]string{
		"no key":      `{"CognitiveServicesEndpoint": "https://example"}`,
		"no endpoint": `{"CognitiveServiceKey": "secret"}`,
		"empty key":   `{"CognitiveServicesEndpoint": "https://example", "CognitiveServiceKey": "  "}`,
		"empty":       `{}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeSettings(t, body))
			require.Error(t, err)
			require.True(t, apperror.Is(err, apperror.KindConfiguration), "got %v", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	chdir(t)
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	require.True(t, apperror.Is(err, apperror.KindConfiguration))
}

func TestLoadMalformedJSON(t *testing.T) {
	chdir(t)
	clearEnv(t)

	_, err := Load(writeSettings(t, `{"CognitiveServicesEndpoint": `))
	require.Error(t, err)
	require.True(t, apperror.Is(err, apperror.KindConfiguration))
}

func TestLoadUnknownBackend(t *testing.T) {
	chdir(t)
	clearEnv(t)

	_, err := Load(writeSettings(t, `{
		"CognitiveServicesEndpoint": "https://example",
		"CognitiveServiceKey": "secret",
		"VisionBackend": "tesseract"
	}`))
	require.Error(t, err)
	require.True(t, apperror.Is(err, apperror.KindConfiguration))
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t)
	clearEnv(t)
	t.Setenv(EnvKey, "from-env")
	t.Setenv(EnvBackend, BackendOllama)

	cfg, err := Load(writeSettings(t, `{"CognitiveServicesEndpoint": "http://localhost:11434"}`))
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Key)
	require.Equal(t, BackendOllama, cfg.Backend)
}

func TestLoadDotEnv(t *testing.T) {
	chdir(t)
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("VISION_KEY=dotenv-key\n"), 0o644))
	// godotenv never overrides variables that are already set, even to ""
	require.NoError(t, os.Unsetenv(EnvKey))

	cfg, err := Load(writeSettings(t, `{"CognitiveServicesEndpoint": "https://example"}`))
	require.NoError(t, err)
	require.Equal(t, "dotenv-key", cfg.Key)
}

func TestLoadCustomOutputs(t *testing.T) {
	chdir(t)
	clearEnv(t)

	cfg, err := Load(writeSettings(t, `{
		"CognitiveServicesEndpoint": "https://example",
		"CognitiveServiceKey": "secret",
		"OutputDir": "out",
		"ObjectsFile": "boxes.webp",
		"RequestTimeoutSeconds": 30
	}`))
	require.NoError(t, err)
	require.Equal(t, filepath.Join("out", "boxes.webp"), cfg.ObjectsPath())
	require.Equal(t, filepath.Join("out", "analyze.txt"), cfg.ReportPath())
	require.Equal(t, int64(30), int64(cfg.RequestTimeout().Seconds()))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Endpoint = "https://example"
	cfg.Key = "secret"
	require.NoError(t, cfg.Validate())

	cfg.RequestTimeoutSeconds = -1
	require.Error(t, cfg.Validate())

	cfg.RequestTimeoutSeconds = 0
	cfg.ThumbnailFile = ""
	require.Error(t, cfg.Validate())
}
