package prototype

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/shlex"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBuilderImage    = "quay.io/centos-bootc/bootc-image-builder:latest"
	DefaultOutputDirectory = "output"

	// columns allotted to the builder's progress output
	buildOutputColumns = 100
)

// Pipeline stages whose failure aborts the build.
const (
	StageConfig    = "config"
	StagePull      = "pull"
	StageOutput    = "output"
	StageBuild     = "build"
	StageReconcile = "reconcile"
)

// StageError tags a fatal error with the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Grouper folds related log lines together in the CI log.
type Grouper interface {
	StartGroup(title string)
	EndGroup()
}

type nopGrouper struct{}

func (nopGrouper) StartGroup(string) {}
func (nopGrouper) EndGroup()         {}

// Builder runs the whole pipeline: storage workaround, image pulls, the
// builder container, and reconciliation of its output.
type Builder struct {
	Runner     Runner
	Preparer   *Preparer
	Puller     *Puller
	Reconciler *Reconciler
	Groups     Grouper

	SkipStorageWorkaround bool
}

func NewBuilder(runner Runner) *Builder {
	return &Builder{
		Runner:     runner,
		Preparer:   NewPreparer(runner),
		Puller:     &Puller{Runner: runner},
		Reconciler: &Reconciler{},
		Groups:     nopGrouper{},
	}
}

// Build runs every stage in order. On failure the returned result is empty
// and the error is a *StageError naming the stage that failed.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (BuildResult, error) {
	opts, err := sanitize(opts)
	if err != nil {
		return BuildResult{}, stageError(StageConfig, err)
	}

	if !b.SkipStorageWorkaround {
		err = b.Preparer.Prepare(ctx)
		if err != nil {
			logrus.Warnf("failed to configure container storage: %s", err)
		}
	}

	b.Groups.StartGroup("Pulling required images")
	err = b.pull(ctx, opts)
	b.Groups.EndGroup()
	if err != nil {
		return BuildResult{}, stageError(StagePull, err)
	}

	_, err = b.Runner.Run(ctx, "mkdir", "-p", opts.OutputDirectory)
	if err != nil {
		return BuildResult{}, stageError(StageOutput, errors.Wrapf(err, "create %s", opts.OutputDirectory))
	}

	logrus.Debugf("building image %s using config file %s via %s", opts.Image, opts.ConfigFilePath, opts.BuilderImage)

	cmd, err := BuildCommand(opts)
	if err != nil {
		return BuildResult{}, stageError(StageBuild, err)
	}

	b.Groups.StartGroup("Building artifact(s)")
	err = b.run(ctx, cmd)
	b.Groups.EndGroup()
	if err != nil {
		return BuildResult{}, stageError(StageBuild, err)
	}

	result, err := b.Reconciler.Reconcile(ctx, opts.OutputDirectory)
	if err != nil {
		return BuildResult{}, stageError(StageReconcile, err)
	}

	for _, t := range result.OutputArtifacts.Types() {
		artifact := result.OutputArtifacts[t]
		logrus.WithField("type", t).Infof("built %s", artifact.Path)
	}

	return result, nil
}

func (b *Builder) pull(ctx context.Context, opts BuildOptions) error {
	err := b.Puller.Pull(ctx, opts.BuilderImage, opts.TLSVerify)
	if err != nil {
		return err
	}

	return b.Puller.Pull(ctx, opts.Image, opts.TLSVerify)
}

func (b *Builder) run(ctx context.Context, cmd Command) error {
	limitTerminalWidth(buildOutputColumns)

	logrus.Debugf("podman runtime args: %q", cmd.Runtime.Strings())
	logrus.Debugf("builder args: %q", cmd.Tool.Strings())

	_, err := b.Runner.Run(ctx, "podman", cmd.Argv()...)
	if err != nil {
		return errors.Wrap(err, "run image builder")
	}

	return nil
}

// sanitize applies defaults and validates opts, returning the copy the
// pipeline works with.
func sanitize(opts BuildOptions) (BuildOptions, error) {
	if opts.BuilderImage == "" {
		opts.BuilderImage = DefaultBuilderImage
	}

	if opts.OutputDirectory == "" {
		opts.OutputDirectory = DefaultOutputDirectory
	}

	if opts.ConfigFilePath == "" {
		return opts, errors.New("config file is required")
	}

	if opts.Image == "" {
		return opts, errors.New("image is required")
	}

	for _, ref := range []string{opts.Image, opts.BuilderImage} {
		_, err := name.ParseReference(ref)
		if err != nil {
			return opts, errors.Wrapf(err, "invalid image reference %q", ref)
		}
	}

	if opts.HasType(AWSType) {
		var missing []string
		if opts.AWSOptions.AMIName == "" {
			missing = append(missing, "AMI name")
		}
		if opts.AWSOptions.BucketName == "" {
			missing = append(missing, "bucket name")
		}
		if len(missing) > 0 {
			return opts, errors.Errorf("%s output requires %s", AWSType, strings.Join(missing, " and "))
		}
	}

	if strings.TrimSpace(opts.AdditionalArgs) != "" {
		_, err := shlex.Split(opts.AdditionalArgs)
		if err != nil {
			return opts, errors.Wrap(err, "parse additional args")
		}
	}

	// podman reads a relative volume source as a named volume
	var err error
	opts.ConfigFilePath, err = filepath.Abs(opts.ConfigFilePath)
	if err != nil {
		return opts, errors.Wrap(err, "resolve config file")
	}

	opts.OutputDirectory, err = filepath.Abs(opts.OutputDirectory)
	if err != nil {
		return opts, errors.Wrap(err, "resolve output directory")
	}

	types := make([]string, 0, len(opts.Types))
	for _, t := range opts.Types {
		if t = NormalizeType(t); t != "" {
			types = append(types, t)
		}
	}
	opts.Types = types

	return opts, nil
}
