package prototype

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Platform is the CI system the build runs under.
type Platform interface {
	Grouper

	Input(name string) string
	SetOutput(name, value string) error
	Debugf(format string, args ...interface{})
	SetFailed(msg string)
}

// Input names.
const (
	InputConfigFile            = "config-file"
	InputImage                 = "image"
	InputBuilderImage          = "builder-image"
	InputChown                 = "chown"
	InputRootfs                = "rootfs"
	InputTLSVerify             = "tls-verify"
	InputTypes                 = "types"
	InputAdditionalArgs        = "additional-args"
	InputAWSAMIName            = "aws-ami-name"
	InputAWSBucket             = "aws-bucket"
	InputAWSRegion             = "aws-region"
	InputOutputDirectory       = "output-directory"
	InputSkipStorageWorkaround = "skip-storage-workaround"
	InputChecksums             = "checksums"
)

// Output names.
const (
	OutputManifestPath    = "manifest-path"
	OutputOutputDirectory = "output-directory"
	OutputOutputPaths     = "output-paths"
	OutputChecksums       = "checksums"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Settings is everything read from the platform's inputs.
type Settings struct {
	Options BuildOptions

	SkipStorageWorkaround bool
	Checksums             bool
}

// ReadInputs builds the Settings for a run from the platform's inputs.
func ReadInputs(p Platform) (Settings, error) {
	tlsVerify, err := boolInput(p, InputTLSVerify, true)
	if err != nil {
		return Settings{}, err
	}

	skipWorkaround, err := boolInput(p, InputSkipStorageWorkaround, false)
	if err != nil {
		return Settings{}, err
	}

	checksums, err := boolInput(p, InputChecksums, true)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		Options: BuildOptions{
			ConfigFilePath: p.Input(InputConfigFile),
			Image:          p.Input(InputImage),
			BuilderImage:   p.Input(InputBuilderImage),
			Chown:          p.Input(InputChown),
			Rootfs:         p.Input(InputRootfs),
			TLSVerify:      tlsVerify,
			Types:          SplitTypes(p.Input(InputTypes)),
			AdditionalArgs: p.Input(InputAdditionalArgs),
			AWSOptions: AWSOptions{
				AMIName:    p.Input(InputAWSAMIName),
				BucketName: p.Input(InputAWSBucket),
				Region:     p.Input(InputAWSRegion),
			},
			OutputDirectory: p.Input(InputOutputDirectory),
		},
		SkipStorageWorkaround: skipWorkaround,
		Checksums:             checksums,
	}, nil
}

// SplitTypes splits a list of output types on whitespace and commas.
func SplitTypes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
}

func boolInput(p Platform, name string, def bool) (bool, error) {
	value := strings.TrimSpace(p.Input(name))
	if value == "" {
		return def, nil
	}

	b, err := strconv.ParseBool(strings.ToLower(value))
	if err != nil {
		return false, errors.Errorf("input %s: %q is not a boolean", name, value)
	}

	return b, nil
}

// WriteOutputs publishes a successful result to the platform.
func WriteOutputs(p Platform, result BuildResult) error {
	paths, err := json.Marshal(result.OutputArtifacts.Paths())
	if err != nil {
		return errors.Wrap(err, "encode output paths")
	}

	sums, err := json.Marshal(result.OutputArtifacts.Checksums())
	if err != nil {
		return errors.Wrap(err, "encode checksums")
	}

	outputs := []struct{ name, value string }{
		{OutputManifestPath, result.ManifestPath},
		{OutputOutputDirectory, result.OutputDirectory},
		{OutputOutputPaths, string(paths)},
		{OutputChecksums, string(sums)},
	}

	for _, output := range outputs {
		err := p.SetOutput(output.name, output.value)
		if err != nil {
			return errors.Wrapf(err, "set output %s", output.name)
		}
	}

	return nil
}

// Run reads the inputs, builds, and publishes the outputs. Any failure is
// reported through SetFailed before being returned.
func Run(ctx context.Context, p Platform, b *Builder) error {
	err := run(ctx, p, b)
	if err != nil {
		p.SetFailed("Build process failed: " + err.Error())
	}
	return err
}

func run(ctx context.Context, p Platform, b *Builder) error {
	settings, err := ReadInputs(p)
	if err != nil {
		return stageError(StageConfig, err)
	}

	opts := settings.Options

	p.Debugf("building image %s using config file %s", opts.Image, opts.ConfigFilePath)

	b.Groups = p
	b.SkipStorageWorkaround = settings.SkipStorageWorkaround
	b.Reconciler.DisableChecksums = !settings.Checksums

	result, err := b.Build(ctx, opts)
	if err != nil {
		return err
	}

	logrus.Debugf("manifest: %s", result.ManifestPath)

	return WriteOutputs(p, result)
}
