package prototype

import (
	"sort"
	"strings"
)

// AWSType is the output type that uploads the disk image as an AMI.
const AWSType = "ami"

// typeAliases maps alternative type names accepted on input to the name the
// builder understands.
var typeAliases = map[string]string{
	"aws": AWSType,
}

// NormalizeType trims t and resolves aliases such as "aws".
func NormalizeType(t string) string {
	t = strings.TrimSpace(t)
	if name, found := typeAliases[t]; found {
		return name
	}
	return t
}

// BootcImage is the object being acted upon by the prototype.
type BootcImage struct {
	Debug bool `json:"debug"`

	ConfigFile   string `json:"config_file" prototype:"required"`
	Image        string `json:"image" prototype:"required"`
	BuilderImage string `json:"builder_image,omitempty"`

	// Concourse output that receives the builder's output directory.
	Output string `json:"output" prototype:"required"`

	// Optional Concourse output that receives one file per result key
	// (manifest-path, output-paths, ...).
	MetadataOutput string `json:"metadata_output,omitempty"`

	Chown          string   `json:"chown,omitempty"`
	Rootfs         string   `json:"rootfs,omitempty"`
	TLSVerify      *bool    `json:"tls_verify,omitempty"`
	Types          []string `json:"types"`
	AdditionalArgs string   `json:"additional_args,omitempty"`

	AWSAMIName string `json:"aws_ami_name,omitempty"`
	AWSBucket  string `json:"aws_bucket,omitempty"`
	AWSRegion  string `json:"aws_region,omitempty"`

	SkipStorageWorkaround bool `json:"skip_storage_workaround,omitempty"`
	SkipChecksums         bool `json:"skip_checksums,omitempty"`
}

// BuildOptions describes a single invocation of the image builder. It is
// constructed once from the CI inputs and never mutated.
type BuildOptions struct {
	ConfigFilePath string
	Image          string
	BuilderImage   string

	Chown  string
	Rootfs string

	TLSVerify bool

	// Requested output types in order. Blank entries are ignored; an empty
	// list lets the builder pick its default.
	Types []string

	// Extra builder arguments, tokenized with shell quoting rules.
	AdditionalArgs string

	// Only consulted when Types contains AWSType.
	AWSOptions AWSOptions

	// Host directory mounted as the builder's output. Defaults to "output".
	OutputDirectory string
}

// AWSOptions are the upload settings for the ami type.
type AWSOptions struct {
	AMIName    string
	BucketName string
	Region     string
}

// HasType reports whether t is one of the requested output types.
func (o BuildOptions) HasType(t string) bool {
	t = NormalizeType(t)
	for _, requested := range o.Types {
		if NormalizeType(requested) == t {
			return true
		}
	}
	return false
}

// BuildResult is what a build attempt reports back to the CI platform.
type BuildResult struct {
	ManifestPath    string
	OutputDirectory string
	OutputArtifacts Artifacts
}

// OutputArtifact is one file produced by the builder.
type OutputArtifact struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	Checksum string `json:"checksum,omitempty"`
}

// Artifacts maps an artifact type to the single artifact retained for it.
type Artifacts map[string]OutputArtifact

// Types returns the artifact types in lexical order.
func (a Artifacts) Types() []string {
	types := make([]string, 0, len(a))
	for t := range a {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Paths maps each artifact type to its path.
func (a Artifacts) Paths() map[string]string {
	paths := make(map[string]string, len(a))
	for t, artifact := range a {
		paths[t] = artifact.Path
	}
	return paths
}

// Checksums maps each artifact type to its checksum, omitting artifacts
// that were not hashed.
func (a Artifacts) Checksums() map[string]string {
	sums := make(map[string]string, len(a))
	for t, artifact := range a {
		if artifact.Checksum != "" {
			sums[t] = artifact.Checksum
		}
	}
	return sums
}
