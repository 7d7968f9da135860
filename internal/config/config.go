package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/utils"
)

// Config is built once at startup and passed by reference into every
// service and job handler. Nothing reads the environment after Load.
type Config struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"`

	AllowOrigins []string `yaml:"allow_origins"`

	OpenAI struct {
		APIKey         string `yaml:"api_key"`
		BaseURL        string `yaml:"base_url"`
		OutlineModel   string `yaml:"outline_model"`
		LessonModel    string `yaml:"lesson_model"`
		ChatModel      string `yaml:"chat_model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"openai"`

	TavilyAPIKey  string `yaml:"tavily_api_key"`
	YouTubeAPIKey string `yaml:"youtube_api_key"`

	Firestore struct {
		ProjectID string `yaml:"project_id"`
	} `yaml:"firestore"`

	JWT struct {
		SecretKey string `yaml:"secret_key"`
	} `yaml:"jwt"`

	Temporal struct {
		Address   string `yaml:"address"`
		Namespace string `yaml:"namespace"`
		TaskQueue string `yaml:"task_queue"`
	} `yaml:"temporal"`

	Generation GenerationConfig `yaml:"generation"`

	ChatPacingMillis int `yaml:"chat_pacing_millis"`
}

// GenerationConfig carries the course-shape bounds and prompt knobs.
type GenerationConfig struct {
	MaxModules   int `yaml:"max_modules"`
	MinLessons   int `yaml:"min_lessons"`
	MaxLessons   int `yaml:"max_lessons"`
	NumQuestions int `yaml:"num_questions"`
	MinWords     int `yaml:"min_words"`
}

func Load(log *logger.Logger) (*Config, error) {
	cfg := &Config{}

	cfg.Port = utils.GetEnv("PORT", "8080", log)
	cfg.Mode = utils.GetEnv("APP_MODE", "development", log)

	origins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5173", log)
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}

	cfg.OpenAI.APIKey = utils.GetEnv("OPENAI_API_KEY", "", log)
	cfg.OpenAI.BaseURL = utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", log)
	cfg.OpenAI.OutlineModel = utils.GetEnv("OUTLINE_MODEL", "gpt-4o-mini", log)
	cfg.OpenAI.LessonModel = utils.GetEnv("LESSON_MODEL", "gpt-4o", log)
	cfg.OpenAI.ChatModel = utils.GetEnv("CHAT_MODEL", "gpt-4o-mini", log)
	cfg.OpenAI.TimeoutSeconds = utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 180, log)

	cfg.TavilyAPIKey = utils.GetEnv("TAVILY_API_KEY", "", log)
	cfg.YouTubeAPIKey = utils.GetEnv("YOUTUBE_API_KEY", "", log)

	cfg.Firestore.ProjectID = utils.GetEnv("FIRESTORE_PROJECT_ID", "", log)
	cfg.JWT.SecretKey = utils.GetEnv("JWT_SECRET_KEY", "", log)

	cfg.Temporal.Address = utils.GetEnv("TEMPORAL_ADDRESS", "", log)
	cfg.Temporal.Namespace = utils.GetEnv("TEMPORAL_NAMESPACE", "default", log)
	cfg.Temporal.TaskQueue = utils.GetEnv("TEMPORAL_TASK_QUEUE", "lesson-generation", log)

	cfg.Generation.MaxModules = utils.GetEnvAsInt("MAX_MODULES", 8, log)
	cfg.Generation.MinLessons = utils.GetEnvAsInt("MIN_LESSONS", 3, log)
	cfg.Generation.MaxLessons = utils.GetEnvAsInt("MAX_LESSONS", 8, log)
	cfg.Generation.NumQuestions = utils.GetEnvAsInt("NUM_QUESTIONS", 5, log)
	cfg.Generation.MinWords = utils.GetEnvAsInt("MIN_WORDS", 600, log)

	cfg.ChatPacingMillis = utils.GetEnvAsInt("CHAT_PACING_MILLIS", 10, log)

	// Optional file overlay for local/dev setups.
	if path := utils.GetEnv("CONFIG_FILE", "", log); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	return cfg, nil
}
