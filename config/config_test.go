package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestFromReader(t *testing.T) {
	cfg, err := FromReader(strings.NewReader(`{
		// posed server config
		web: {
			bind_address: "0.0.0.0:9090",
			allowed_origins: ["https://viewer.example.com"],
		},
		save: {
			filename: "/var/lib/posed/frames.yaml",
			cron: "*/5 * * * *",
			watch: true,
		},
		geoid_offset: -23.5,
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Web.BindAddress, test.ShouldEqual, "0.0.0.0:9090")
	test.That(t, cfg.Web.AllowedOrigins, test.ShouldResemble, []string{"https://viewer.example.com"})
	test.That(t, cfg.Save.Cron, test.ShouldEqual, "*/5 * * * *")
	test.That(t, cfg.Save.Watch, test.ShouldBeTrue)
	test.That(t, cfg.GeoidOffset, test.ShouldEqual, -23.5)
}

func TestDefaults(t *testing.T) {
	cfg, err := FromReader(strings.NewReader(`{}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Web.BindAddress, test.ShouldEqual, DefaultBindAddress)
	test.That(t, cfg.Save.Filename, test.ShouldEqual, "")
}

func TestValidate(t *testing.T) {
	_, err := FromReader(strings.NewReader(`{save: {cron: "* * * * *"}}`))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("POSED_SAVE_FILE", "/tmp/frames.yaml")
	path := filepath.Join(t.TempDir(), "config.json5")
	content := `{save: {filename: "${POSED_SAVE_FILE}"}}`
	test.That(t, os.WriteFile(path, []byte(content), 0o644), test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Save.Filename, test.ShouldEqual, "/tmp/frames.yaml")
}
