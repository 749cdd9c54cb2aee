// Package profile resolves process configuration from flags/env, the way
// the teacher's own profile.Profile does for its server, generalized here
// to the memory engine's narrower surface: one LLM-compatible provider for
// embeddings (and an optional one for topic-label refinement), plus
// storage driver selection.
package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the memory engine process.
type Profile struct {
	Mode        string
	Addr        string
	Port        int
	UNIXSock    string
	Data        string
	Driver      string
	DSN         string
	Version     string
	InstanceURL string

	// Embedding configuration (component A, spec §4.A). Any OpenAI-compatible
	// provider (siliconflow, ollama, zai, dashscope) is supported.
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int

	// LLM configuration, used only by the optional topic-label refinement
	// path (engine/llmsummary); the pipeline degrades to keyword labels if
	// unset.
	LLMProvider       string
	LLMAPIKey         string
	LLMBaseURL        string
	LLMModel          string
	LLMTimeoutSeconds int

	AIEnabled bool
}

var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-5.2",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-max-latest",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

var embeddingProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "BAAI/bge-m3",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "text-embedding-3-large",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "nomic-embed-text",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if the embedding provider has an API key
// configured; without one, Ingest/Search cannot produce vectors at all.
func (p *Profile) IsAIEnabled() bool {
	return p.AIEnabled && p.EmbeddingAPIKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.EmbeddingProvider = getEnvOrDefault("MNEMOGRAPH_EMBEDDING_PROVIDER", "siliconflow")
	p.EmbeddingAPIKey = getEnvOrDefault("MNEMOGRAPH_EMBEDDING_API_KEY", "")
	p.EmbeddingBaseURL = getEnvOrDefault("MNEMOGRAPH_EMBEDDING_BASE_URL", "")
	p.EmbeddingModel = getEnvOrDefault("MNEMOGRAPH_EMBEDDING_MODEL", "")
	p.EmbeddingDimensions = getEnvOrDefaultInt("MNEMOGRAPH_EMBEDDING_DIMENSIONS", 3072)

	p.AIEnabled = p.EmbeddingAPIKey != ""

	if defaults, ok := embeddingProviderDefaults[p.EmbeddingProvider]; ok {
		if p.EmbeddingBaseURL == "" {
			p.EmbeddingBaseURL = defaults.BaseURL
		}
		if p.EmbeddingModel == "" {
			p.EmbeddingModel = defaults.Model
		}
	}

	p.LLMProvider = getEnvOrDefault("MNEMOGRAPH_LLM_PROVIDER", "")
	p.LLMAPIKey = getEnvOrDefault("MNEMOGRAPH_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("MNEMOGRAPH_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("MNEMOGRAPH_LLM_MODEL", "")
	p.LLMTimeoutSeconds = getEnvOrDefaultInt("MNEMOGRAPH_LLM_TIMEOUT_SECONDS", 30)

	if p.LLMProvider != "" {
		if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
			slog.Warn("unknown LLM provider, topic labels will use keyword fallback only", "provider", p.LLMProvider)
			p.LLMProvider = ""
		}
	}
	if p.LLMProvider != "" && (p.LLMBaseURL == "" || p.LLMModel == "") {
		defaults := llmProviderDefaults[p.LLMProvider]
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "mnemograph")
		} else {
			p.Data = "/var/opt/mnemograph"
		}
		if _, err := os.Stat(p.Data); os.IsNotExist(err) {
			if err := os.MkdirAll(p.Data, 0770); err != nil {
				slog.Error("failed to create data directory", "data", p.Data, "error", err)
				return err
			}
		}
	}
	if p.Data == "" {
		p.Data = "."
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", "data", dataDir, "error", err)
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("mnemograph_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
