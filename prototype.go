package prototype

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	prototype "github.com/aoldershaw/prototype-sdk-go"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const metadataDir = "metadata"

func Prototype() prototype.Prototype {
	return prototype.New(
		prototype.WithIcon("mdi:harddisk"),
		prototype.WithObject(BootcImage{},
			prototype.WithMessage("build", RunBuild, BuildConfig),
		),
	)
}

func BuildConfig(img BootcImage) prototype.Config {
	var config prototype.Config

	// config_file is relative to the working directory, so its first path
	// segment names the input artifact that carries it
	config.Inputs = []prototype.Input{{Name: inputName(img.ConfigFile)}}

	config.Outputs = []prototype.Output{{Name: img.Output, Path: DefaultOutputDirectory}}
	if img.MetadataOutput != "" {
		config.Outputs = append(config.Outputs, prototype.Output{Name: img.MetadataOutput, Path: metadataDir})
	}

	return config
}

func RunBuild(img BootcImage) ([]prototype.MessageResponse, error) {
	if img.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "get root path")
	}

	var outputs string
	if img.MetadataOutput != "" {
		outputs = filepath.Join(wd, metadataDir)
	}

	platform := NewConcourse(img, outputs)
	builder := NewBuilder(NewExecutor(DetectPrivilege(), os.Stdout))
	builder.Reconciler.Progress = os.Stderr

	err = Run(context.Background(), platform, builder)
	if err != nil {
		return nil, err
	}

	return nil, nil
}

func inputName(path string) string {
	path = filepath.ToSlash(filepath.Clean(path))
	if i := strings.Index(path, "/"); i > 0 {
		return path[:i]
	}
	return path
}

// Concourse is the Platform for a Concourse prototype run. Inputs come from
// the prototype object; outputs are written as files into an optional
// metadata directory.
type Concourse struct {
	inputs      map[string]string
	metadataDir string
}

func NewConcourse(img BootcImage, metadataDir string) *Concourse {
	inputs := map[string]string{
		InputConfigFile:            img.ConfigFile,
		InputImage:                 img.Image,
		InputBuilderImage:          img.BuilderImage,
		InputChown:                 img.Chown,
		InputRootfs:                img.Rootfs,
		InputTypes:                 strings.Join(img.Types, ","),
		InputAdditionalArgs:        img.AdditionalArgs,
		InputAWSAMIName:            img.AWSAMIName,
		InputAWSBucket:             img.AWSBucket,
		InputAWSRegion:             img.AWSRegion,
		InputOutputDirectory:       DefaultOutputDirectory,
		InputSkipStorageWorkaround: strconv.FormatBool(img.SkipStorageWorkaround),
		InputChecksums:             strconv.FormatBool(!img.SkipChecksums),
	}

	if img.TLSVerify != nil {
		inputs[InputTLSVerify] = strconv.FormatBool(*img.TLSVerify)
	}

	return &Concourse{inputs: inputs, metadataDir: metadataDir}
}

func (c *Concourse) Input(name string) string {
	return c.inputs[name]
}

func (c *Concourse) SetOutput(name, value string) error {
	if c.metadataDir == "" {
		logrus.Infof("%s: %s", name, value)
		return nil
	}

	err := os.MkdirAll(c.metadataDir, 0755)
	if err != nil {
		return errors.Wrap(err, "create metadata dir")
	}

	err = ioutil.WriteFile(filepath.Join(c.metadataDir, name), []byte(value), 0644)
	if err != nil {
		return errors.Wrapf(err, "write %s", name)
	}

	return nil
}

var groupColor = color.New(color.Bold, color.FgCyan)

func (c *Concourse) StartGroup(title string) {
	groupColor.Fprintf(os.Stderr, "\n%s\n", title)
}

func (c *Concourse) EndGroup() {}

func (c *Concourse) Debugf(format string, args ...interface{}) {
	logrus.Debugf(format, args...)
}

func (c *Concourse) SetFailed(msg string) {
	logrus.Error(msg)
}
