package prototype

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultStorageDir       = "/var/lib/containers/storage"
	DefaultStorageRunRoot   = "/run/containers/storage"
	DefaultContainersConfig = "/etc/containers"
	storageConfigName       = "storage.conf"
)

// StorageConfig is the schema written to storage.conf.
type StorageConfig struct {
	Storage StorageSection `toml:"storage"`
}

type StorageSection struct {
	Driver    string `toml:"driver"`
	RunRoot   string `toml:"runroot"`
	GraphRoot string `toml:"graphroot"`
}

// Preparer resets container storage on the host so that the builder, which
// shares the host's storage through a bind mount, finds an overlay store it
// understands. GitHub's runners ship a storage setup that it does not.
type Preparer struct {
	Runner Runner

	StorageDir string
	ConfigDir  string
	RunRoot    string
}

func NewPreparer(runner Runner) *Preparer {
	return &Preparer{
		Runner:     runner,
		StorageDir: DefaultStorageDir,
		ConfigDir:  DefaultContainersConfig,
		RunRoot:    DefaultStorageRunRoot,
	}
}

func (p *Preparer) ConfigPath() string {
	return filepath.Join(p.ConfigDir, storageConfigName)
}

// Prepare runs every step even when an earlier one fails. The returned error
// combines all failures; callers are expected to log it and carry on.
func (p *Preparer) Prepare(ctx context.Context) error {
	logrus.Debug("configuring podman storage (see https://github.com/osbuild/bootc-image-builder/issues/446)")

	var result *multierror.Error

	_, err := p.Runner.Run(ctx, "rm", "-rf", p.StorageDir)
	if err != nil {
		result = multierror.Append(result, errors.Wrapf(err, "delete %s", p.StorageDir))
	}

	_, err = p.Runner.Run(ctx, "mkdir", "-p", p.ConfigDir)
	if err != nil {
		result = multierror.Append(result, errors.Wrapf(err, "create %s", p.ConfigDir))
	}

	err = p.writeConfig(ctx)
	if err != nil {
		result = multierror.Append(result, errors.Wrapf(err, "write %s", p.ConfigPath()))
	}

	return result.ErrorOrNil()
}

func (p *Preparer) StorageConfig() StorageConfig {
	return StorageConfig{
		Storage: StorageSection{
			Driver:    "overlay",
			RunRoot:   p.RunRoot,
			GraphRoot: p.StorageDir,
		},
	}
}

// writeConfig encodes the config into an unprivileged temp file and installs
// it with the runner so the destination can be root-owned.
func (p *Preparer) writeConfig(ctx context.Context) error {
	tmp, err := ioutil.TempFile("", "storage-*.conf")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}

	defer os.Remove(tmp.Name())

	enc := toml.NewEncoder(tmp)
	enc.Indent = ""

	err = enc.Encode(p.StorageConfig())
	if err != nil {
		tmp.Close()
		return errors.Wrap(err, "encode storage config")
	}

	err = tmp.Close()
	if err != nil {
		return errors.Wrap(err, "close temp file")
	}

	_, err = p.Runner.Run(ctx, "install", "-m", "0644", tmp.Name(), p.ConfigPath())
	return err
}
