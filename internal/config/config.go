// Package config reads the signer workbench's .playground-sign.ini
// (spec.md §6) into an explicit Config struct passed into every engine
// entry point, rather than read from process-wide state (spec.md §9).
package config

import (
	"io"
	"os"

	"gopkg.in/ini.v1"

	"github.com/jku/repository-playground/internal/signerverifier"
)

// Config is every setting .playground-sign.ini recognizes (spec.md §6
// table), plus the environment-variable contracts that feed a
// signerverifier.BackendConfig.
type Config struct {
	PKCS11LibPath string // pykcs11lib
	UserName      string // user-name
	PullRemote    string // pull-remote
	PushRemote    string // push-remote
}

// Load reads a .playground-sign.ini from disk. A missing file is not an
// error: every field defaults to empty, matching an unconfigured signer
// falling back to ambient keyless signing and no named remotes.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	defer file.Close()
	return LoadFrom(file)
}

// LoadFrom parses data as a .playground-sign.ini document. Recognized keys
// are read from the file's default (unnamed) section, matching the flat
// key table in spec.md §6.
func LoadFrom(data io.Reader) (*Config, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg, err := ini.Load(raw)
	if err != nil {
		return nil, err
	}

	section := cfg.Section("")
	return &Config{
		PKCS11LibPath: section.Key("pykcs11lib").String(),
		UserName:      section.Key("user-name").String(),
		PullRemote:    section.Key("pull-remote").String(),
		PushRemote:    section.Key("push-remote").String(),
	}, nil
}

// BackendConfig resolves the signer backend configuration an engine entry
// point needs, combining the on-disk config with the environment variable
// contracts named in spec.md §6. Cloud identity variables (GCP_*, AZURE_*)
// are read implicitly by their respective client libraries and are not
// reproduced here; LOCAL_TESTING_KEY is the one variable the signer
// backend registry dispatches on directly.
func (c *Config) BackendConfig() signerverifier.BackendConfig {
	return signerverifier.BackendConfig{
		PKCS11LibPath:   c.PKCS11LibPath,
		LocalTestingKey: os.Getenv("LOCAL_TESTING_KEY"),
	}
}
