package prototype

import (
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	"github.com/pkg/errors"
)

const (
	containerStorage = DefaultStorageDir
	containerOutput  = "/output"
	containerConfig  = "/config"
)

// Arg is one logical argument: a lone token, or a flag followed by its value.
// Tokens are never split further, so values may contain spaces.
type Arg []string

func (a Arg) String() string {
	return strings.Join(a, " ")
}

// Args is an ordered list of logical arguments.
type Args []Arg

func (a *Args) add(tokens ...string) {
	*a = append(*a, Arg(tokens))
}

// Strings renders each argument as a single string, e.g. "--type qcow2".
func (a Args) Strings() []string {
	var strs []string
	for _, arg := range a {
		if s := arg.String(); s != "" {
			strs = append(strs, s)
		}
	}
	return strs
}

// Argv flattens the arguments into the tokens handed to exec, dropping
// empty placeholders.
func (a Args) Argv() []string {
	var argv []string
	for _, arg := range a {
		for _, token := range arg {
			if token != "" {
				argv = append(argv, token)
			}
		}
	}
	return argv
}

// Command is a podman invocation running the image builder. Runtime holds
// the podman arguments and ends with the builder image; Tool holds the
// builder arguments and ends with the image being converted.
type Command struct {
	Runtime Args
	Tool    Args
}

// Argv returns the full podman argument list.
func (c Command) Argv() []string {
	return append(c.Runtime.Argv(), c.Tool.Argv()...)
}

// BuildCommand assembles the podman and builder arguments for opts. Both
// the image references must be the final positional arguments of their
// respective commands.
func BuildCommand(opts BuildOptions) (Command, error) {
	var cmd Command

	aws := opts.HasType(AWSType)

	cmd.Runtime.add("run")
	cmd.Runtime.add("--rm")
	cmd.Runtime.add("--privileged")
	cmd.Runtime.add("--security-opt", "label=type:unconfined_t")
	cmd.Runtime.add("--volume", containerStorage+":"+containerStorage)
	cmd.Runtime.add("--volume", opts.OutputDirectory+":"+containerOutput)
	cmd.Runtime.add("--volume", opts.ConfigFilePath+":"+configMountPath(opts.ConfigFilePath)+":ro")

	if aws {
		cmd.Runtime.add("--env", "AWS_*")
	}

	cmd.Tool.add("build")
	cmd.Tool.add("--output", containerOutput)

	if !opts.TLSVerify {
		cmd.Tool.add("--tls-verify=false")
	}

	if opts.Chown != "" {
		cmd.Tool.add("--chown", opts.Chown)
	}

	if opts.Rootfs != "" {
		cmd.Tool.add("--rootfs", opts.Rootfs)
	}

	if strings.TrimSpace(opts.AdditionalArgs) != "" {
		extra, err := shlex.Split(opts.AdditionalArgs)
		if err != nil {
			return Command{}, errors.Wrap(err, "parse additional args")
		}

		for _, token := range extra {
			cmd.Tool.add(token)
		}
	}

	for _, t := range opts.Types {
		t = NormalizeType(t)
		if t == "" {
			continue
		}

		cmd.Tool.add("--type", t)
	}

	if aws {
		cmd.Tool.add("--aws-bucket", opts.AWSOptions.BucketName)
		cmd.Tool.add("--aws-ami-name", opts.AWSOptions.AMIName)

		if opts.AWSOptions.Region != "" {
			cmd.Tool.add("--aws-region", opts.AWSOptions.Region)
		}
	}

	cmd.Runtime.add(opts.BuilderImage)
	cmd.Tool.add(opts.Image)

	return cmd, nil
}

// configMountPath keeps the config's extension, which the builder uses to
// pick a parser.
func configMountPath(configPath string) string {
	base := filepath.Base(configPath)

	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return containerConfig
	}

	return containerConfig + base[i:]
}
