package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/okian/patella/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	config.EnvConfigFile,
	config.EnvDotEnvFile,
	"PATELLA_ADDR",
	"PATELLA_QUEUE_SIZE",
	"PATELLA_WORKER_COUNT",
	"PATELLA_MODEL_PATH",
	"PATELLA_STAGE3_THRESHOLD",
	"PATELLA_MAX_FRAMES",
	"PATELLA_LOG_FORMAT",
	"PATELLA_HISTORY_LIMIT",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestConfig_New(t *testing.T) {
	Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		Convey("Then it should have sensible defaults", func() {
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.QueueSize, ShouldEqual, 1024)
			So(cfg.WorkerCount, ShouldEqual, runtime.NumCPU())
			So(cfg.Stage3Threshold, ShouldEqual, 0.60)
			So(cfg.AmbiguityMargin, ShouldEqual, 0.15)
			So(cfg.HistoryLimit, ShouldEqual, 100)
			So(cfg.MaxFrames, ShouldEqual, 64)
			So(cfg.RequestTimeout(), ShouldEqual, 10*time.Second)
			So(cfg.Validate(), ShouldBeNil)
		})
	})

	Convey("Given invalid values", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":         func(c *config.Config) { c.Addr = "" },
			"threshold of one":   func(c *config.Config) { c.Stage3Threshold = 1 },
			"negative margin":    func(c *config.Config) { c.AmbiguityMargin = -0.1 },
			"zero frames":        func(c *config.Config) { c.MaxFrames = 0 },
			"zero queue":         func(c *config.Config) { c.QueueSize = 0 },
			"zero timeout":       func(c *config.Config) { c.RequestTimeoutMS = 0 },
			"unknown log format": func(c *config.Config) { c.LogFormat = "xml" },
		}
		for name, mutate := range cases {
			Convey("Then "+name+" is rejected", func() {
				cfg := config.New()
				mutate(cfg)
				So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), ShouldBeTrue)
			})
		}
	})
}

func TestConfigLoader(t *testing.T) {
	Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		Reset(clearConfigEnvVars)

		Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			So(err, ShouldBeNil)
			So(cfg, ShouldResemble, config.New())
		})

		Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PATELLA_ADDR", ":8080")
			_ = os.Setenv("PATELLA_QUEUE_SIZE", "10")
			_ = os.Setenv("PATELLA_STAGE3_THRESHOLD", "0.7")
			_ = os.Setenv("PATELLA_MODEL_PATH", "/models/patella.json")

			cfg, err := config.Load(ctx)

			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":8080")
			So(cfg.QueueSize, ShouldEqual, 10)
			So(cfg.Stage3Threshold, ShouldEqual, 0.7)
			So(cfg.ModelPath, ShouldEqual, "/models/patella.json")
		})

		Convey("When loading config with a YAML file and env overrides", func() {
			path := writeFile(t, "patella.yaml", `
addr: ":9090"
queue_size: 300
worker_count: 3
history_dsn: "file:history.db"
max_frames: 8
`)
			_ = os.Setenv(config.EnvConfigFile, path)
			_ = os.Setenv("PATELLA_WORKER_COUNT", "5")

			cfg, err := config.Load(ctx)

			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9090")
			So(cfg.QueueSize, ShouldEqual, 300)
			So(cfg.WorkerCount, ShouldEqual, 5)
			So(cfg.HistoryDSN, ShouldEqual, "file:history.db")
			So(cfg.MaxFrames, ShouldEqual, 8)
		})

		Convey("When a .env file is present", func() {
			path := writeFile(t, "test.env", "PATELLA_HISTORY_LIMIT=7\nPATELLA_LOG_FORMAT=json\n")
			_ = os.Setenv(config.EnvDotEnvFile, path)
			_ = os.Setenv("PATELLA_LOG_FORMAT", "text")

			cfg, err := config.Load(ctx)

			So(err, ShouldBeNil)
			So(cfg.HistoryLimit, ShouldEqual, 7)
			So(cfg.LogFormat, ShouldEqual, "text")
		})

		Convey("When the .env file is missing", func() {
			_ = os.Setenv(config.EnvDotEnvFile, filepath.Join(t.TempDir(), "absent.env"))
			_, err := config.Load(ctx)
			So(err, ShouldBeNil)
		})

		Convey("When the YAML file is invalid", func() {
			_ = os.Setenv(config.EnvConfigFile, writeFile(t, "bad.yaml", "invalid: yaml: content: ["))
			cfg, err := config.Load(ctx)
			So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
			So(cfg, ShouldBeNil)
		})

		Convey("When the YAML file does not exist", func() {
			_ = os.Setenv(config.EnvConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))
			_, err := config.Load(ctx)
			So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
		})

		Convey("When a loaded value is invalid", func() {
			_ = os.Setenv("PATELLA_MAX_FRAMES", "0")
			_, err := config.Load(ctx)
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}
