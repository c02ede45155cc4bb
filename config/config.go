package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`

	MinIO struct {
		Enabled   bool   `yaml:"enabled"`
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"minio"`

	// LLM is the chat-completions backend used for all text generation.
	LLM struct {
		Endpoint         string  `yaml:"endpoint"`
		APIKey           string  `yaml:"api_key"`
		Model            string  `yaml:"model"`
		Temperature      float64 `yaml:"temperature"`
		TimeoutSeconds   int     `yaml:"timeout_seconds"`
		RetryBudget      int     `yaml:"retry_budget"`
		BaseDelaySeconds int     `yaml:"base_delay_seconds"`
		SoftPromptLimit  int     `yaml:"soft_prompt_limit"`
		HardPromptLimit  int     `yaml:"hard_prompt_limit"`
		RateIntervalMS   int     `yaml:"rate_interval_ms"`
	} `yaml:"llm"`

	// Image is optional; with no api_key storyboard frames ship without images.
	Image struct {
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"api_key"`
		Model    string `yaml:"model"`
	} `yaml:"image"`

	Pipeline struct {
		AutoApprove bool   `yaml:"auto_approve"`
		OutputDir   string `yaml:"output_dir"`
		Concurrency int    `yaml:"concurrency"`
	} `yaml:"pipeline"`
}

var AppConfig *Config

func InitConfig() {
	path := os.Getenv("BRIEFTOPACK_CONFIG")
	if path == "" {
		path = "config/config.yaml"
	}
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}
	defer f.Close()
	decoder := yaml.NewDecoder(f)
	AppConfig = &Config{}
	if err := decoder.Decode(AppConfig); err != nil {
		log.Fatalf("failed to parse config file: %v", err)
	}
	applyDefaults(AppConfig)
}

func applyDefaults(c *Config) {
	if c.Server.Port == "" {
		c.Server.Port = ":8000"
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("TAMUS_API_KEY")
	}
	if c.Image.APIKey == "" {
		c.Image.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "protllm"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 120
	}
	if c.LLM.RetryBudget == 0 {
		c.LLM.RetryBudget = 3
	}
	if c.LLM.BaseDelaySeconds == 0 {
		c.LLM.BaseDelaySeconds = 3
	}
	if c.LLM.SoftPromptLimit == 0 {
		c.LLM.SoftPromptLimit = 10000
	}
	if c.LLM.HardPromptLimit == 0 {
		c.LLM.HardPromptLimit = 15000
	}
	if c.Pipeline.OutputDir == "" {
		c.Pipeline.OutputDir = "output"
	}
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = 5
	}
}
