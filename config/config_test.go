package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/campus-gateway/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Environment: config.EnvDev,
		Logging:     config.LoggingConfig{Level: config.LogLevelInfo},
		API: config.APIConfig{
			Candidates:      []string{"http://localhost:8000/api"},
			ProbePath:       "/health",
			ProbeTimeout:    "2s",
			ProbeStrategy:   "sequential",
			RequestTimeout:  "15s",
			NotFoundIsStale: true,
		},
		Health: config.HealthConfig{
			FailureThreshold: 3,
			Cooldown:         "30s",
			MonitorInterval:  "0s",
		},
		Gateway: config.GatewayConfig{Address: ":8080"},
		Metrics: config.MetricsConfig{BufferSize: 10},
	}
}

var _ = Describe("Config", func() {
	var (
		tempDir string
		origDir string
	)

	BeforeEach(func() {
		var err error
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tempDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tempDir)
		os.Unsetenv("API_PROBE_STRATEGY")
		os.Unsetenv("API_CANDIDATES")
		os.Unsetenv("HEALTH_FAILURE_THRESHOLD")
	})

	Describe("Load", func() {
		Context("with valid config file", func() {
			BeforeEach(func() {
				configContent := `
environment: "staging"

logging:
  level: "debug"

api:
  candidates:
    - "http://10.0.0.5:8000/api/"
    - "http://localhost:8000/api"
  fallback_url: "http://localhost:8000/api"
  probe_timeout: "500ms"
  probe_strategy: "race"
  not_found_is_stale: false

health:
  failure_threshold: 5
  cooldown: "1m"
  monitor_interval: "10s"

gateway:
  address: "127.0.0.1:9090"

tokens:
  path: "/tmp/tokens.yaml"
`
				Expect(os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(configContent), 0644)).To(Succeed())
			})

			It("should load configuration successfully", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Environment).To(Equal(config.EnvStaging))
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelDebug))
				Expect(cfg.Gateway.Address).To(Equal("127.0.0.1:9090"))
				Expect(cfg.Tokens.Path).To(Equal("/tmp/tokens.yaml"))
			})

			It("should parse the api section", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.API.Candidates).To(Equal([]string{"http://10.0.0.5:8000/api/", "http://localhost:8000/api"}))
				Expect(cfg.API.ProbeStrategy).To(Equal("race"))
				Expect(cfg.API.NotFoundIsStale).To(BeFalse())
				Expect(cfg.ProbeTimeout()).To(Equal(500 * time.Millisecond))
			})

			It("should keep defaults for keys the file omits", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.API.ProbePath).To(Equal("/health"))
				Expect(cfg.RequestTimeout()).To(Equal(15 * time.Second))
				Expect(cfg.Metrics.BufferSize).To(Equal(1000))
			})

			It("should parse health settings", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Health.FailureThreshold).To(Equal(5))
				Expect(cfg.Cooldown()).To(Equal(time.Minute))
				Expect(cfg.MonitorInterval()).To(Equal(10 * time.Second))
			})

			It("should let environment variables override the file", func() {
				os.Setenv("API_PROBE_STRATEGY", "sequential")
				os.Setenv("HEALTH_FAILURE_THRESHOLD", "7")

				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.API.ProbeStrategy).To(Equal("sequential"))
				Expect(cfg.Health.FailureThreshold).To(Equal(7))
			})
		})

		Context("without a config file", func() {
			It("should use defaults", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Environment).To(Equal(config.EnvDev))
				Expect(cfg.API.Candidates).To(Equal([]string{"http://localhost:8000/api", "http://127.0.0.1:8000/api"}))
				Expect(cfg.API.FallbackURL).To(Equal("http://localhost:8000/api"))
				Expect(cfg.API.ProbeStrategy).To(Equal("sequential"))
				Expect(cfg.API.NotFoundIsStale).To(BeTrue())
				Expect(cfg.Health.FailureThreshold).To(Equal(3))
				Expect(cfg.Cooldown()).To(Equal(30 * time.Second))
				Expect(cfg.MonitorInterval()).To(BeZero())
				Expect(cfg.Gateway.Address).To(Equal(":8080"))
			})

			It("should split a comma separated candidate list from the environment", func() {
				os.Setenv("API_CANDIDATES", "http://192.168.1.20:8000/api,http://localhost:8000/api")

				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.API.Candidates).To(Equal([]string{"http://192.168.1.20:8000/api", "http://localhost:8000/api"}))
			})

			It("should read variables from a .env file", func() {
				Expect(os.WriteFile(filepath.Join(tempDir, config.EnvFile), []byte("API_PROBE_STRATEGY=race\n"), 0644)).To(Succeed())

				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.API.ProbeStrategy).To(Equal("race"))
			})
		})

		Context("with an invalid config file", func() {
			It("should reject an unknown probe strategy", func() {
				Expect(os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte("api:\n  probe_strategy: \"fastest\"\n"), 0644)).To(Succeed())

				_, err := config.Load()
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Validate", func() {
		It("should accept a complete config", func() {
			Expect(validConfig().Validate()).To(Succeed())
		})

		DescribeTable("should reject",
			func(mutate func(*config.Config)) {
				cfg := validConfig()
				mutate(cfg)
				Expect(cfg.Validate()).NotTo(Succeed())
			},
			Entry("an unknown environment", func(c *config.Config) { c.Environment = "qa" }),
			Entry("an unknown log level", func(c *config.Config) { c.Logging.Level = "trace" }),
			Entry("an empty candidate list", func(c *config.Config) { c.API.Candidates = nil }),
			Entry("a candidate without scheme", func(c *config.Config) { c.API.Candidates = []string{"localhost:8000/api"} }),
			Entry("a non-http candidate", func(c *config.Config) { c.API.Candidates = []string{"ftp://localhost/api"} }),
			Entry("an invalid fallback", func(c *config.Config) { c.API.FallbackURL = "not a url" }),
			Entry("a relative probe path", func(c *config.Config) { c.API.ProbePath = "health" }),
			Entry("a zero probe timeout", func(c *config.Config) { c.API.ProbeTimeout = "0s" }),
			Entry("a malformed request timeout", func(c *config.Config) { c.API.RequestTimeout = "soon" }),
			Entry("a threshold below one", func(c *config.Config) { c.Health.FailureThreshold = 0 }),
			Entry("a negative cooldown", func(c *config.Config) { c.Health.Cooldown = "-1s" }),
			Entry("a malformed gateway address", func(c *config.Config) { c.Gateway.Address = "8080" }),
			Entry("an empty metrics buffer", func(c *config.Config) { c.Metrics.BufferSize = 0 }),
		)

		It("should allow an empty fallback", func() {
			cfg := validConfig()
			cfg.API.FallbackURL = ""
			Expect(cfg.Validate()).To(Succeed())
		})
	})
})
