package prototype

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/docker/go-units"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"golang.org/x/sync/errgroup"
)

// ErrMultipleManifests is returned when the output tree holds more than one
// manifest and there is no way to tell which belongs to the build.
var ErrMultipleManifests = errors.New("multiple manifests in output directory")

// typeNames maps the builder's output directory names to public type names.
var typeNames = map[string]string{
	"bootiso": "anaconda-iso",
	"vpc":     "vhd",
	"image":   "raw",
}

// ArtifactType normalizes the name of the directory an artifact was written
// to into its public type.
func ArtifactType(dir string) string {
	if name, found := typeNames[dir]; found {
		return name
	}
	return dir
}

// ClassifyError is returned for an output file whose type cannot be derived
// from its location.
type ClassifyError struct {
	Path   string
	Reason string
}

func (e *ClassifyError) Error() string {
	return fmt.Sprintf("classify artifact %s: %s", e.Path, e.Reason)
}

// Reconciler turns the builder's output directory into a BuildResult.
type Reconciler struct {
	// Maximum number of checksums computed at once. Defaults to GOMAXPROCS.
	Concurrency int

	// Receives a progress bar per artifact while hashing. Nil disables them.
	Progress io.Writer

	DisableChecksums bool
}

// Reconcile walks root in lexical order. Each *.json file is the manifest;
// every other regular file is an artifact typed by its parent directory.
// Only the first artifact of each type is kept.
func (r *Reconciler) Reconcile(ctx context.Context, root string) (BuildResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return BuildResult{}, errors.Wrap(err, "resolve output directory")
	}

	var manifests []string
	var artifacts []OutputArtifact
	seen := map[string]bool{}

	err = filepath.WalkDir(absRoot, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		if strings.HasSuffix(entry.Name(), ".json") {
			manifests = append(manifests, path)
			return nil
		}

		artifact, err := classify(absRoot, path)
		if err != nil {
			return err
		}

		if seen[artifact.Type] {
			logrus.WithFields(logrus.Fields{
				"type": artifact.Type,
				"path": artifact.Path,
			}).Debug("type already has an artifact; skipping")
			return nil
		}

		seen[artifact.Type] = true
		artifacts = append(artifacts, artifact)

		return nil
	})
	if err != nil {
		return BuildResult{}, errors.Wrap(err, "list output directory")
	}

	if len(manifests) > 1 {
		return BuildResult{}, errors.Wrapf(ErrMultipleManifests, "%s", strings.Join(manifests, ", "))
	}

	if !r.DisableChecksums {
		err = r.checksumAll(ctx, artifacts)
		if err != nil {
			return BuildResult{}, err
		}
	}

	result := BuildResult{
		OutputDirectory: absRoot,
		OutputArtifacts: make(Artifacts, len(artifacts)),
	}

	if len(manifests) == 1 {
		result.ManifestPath = manifests[0]
	}

	for _, artifact := range artifacts {
		result.OutputArtifacts[artifact.Type] = artifact
	}

	return result, nil
}

func classify(root, path string) (OutputArtifact, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return OutputArtifact{}, errors.Wrap(err, "relative artifact path")
	}

	dir, name := filepath.Split(rel)
	if name == "" {
		return OutputArtifact{}, &ClassifyError{Path: path, Reason: "no file name"}
	}

	dir = filepath.Base(filepath.Clean(dir))
	if dir == "." || dir == string(filepath.Separator) || dir == "" {
		return OutputArtifact{}, &ClassifyError{Path: path, Reason: "no type directory"}
	}

	return OutputArtifact{
		Type: ArtifactType(dir),
		Path: path,
	}, nil
}

// checksumAll hashes every artifact concurrently and waits for all of them,
// reporting every failure rather than the first.
func (r *Reconciler) checksumAll(ctx context.Context, artifacts []OutputArtifact) error {
	var progress *mpb.Progress
	if r.Progress != nil {
		progress = mpb.New(mpb.WithOutput(r.Progress), mpb.WithWidth(60))
	}

	limit := r.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(limit)

	var mu sync.Mutex
	var result *multierror.Error

	for i := range artifacts {
		artifact := &artifacts[i]

		g.Go(func() error {
			err := ctx.Err()
			if err == nil {
				artifact.Checksum, err = checksum(artifact.Path, progress, artifact.Type)
			}

			if err != nil {
				mu.Lock()
				result = multierror.Append(result, errors.Wrapf(err, "checksum %s artifact", artifact.Type))
				mu.Unlock()
				return nil
			}

			logrus.WithFields(logrus.Fields{
				"type":   artifact.Type,
				"sha256": artifact.Checksum,
				"size":   artifactSize(artifact.Path),
			}).Debug("hashed artifact")

			return nil
		})
	}

	_ = g.Wait()

	if progress != nil {
		progress.Wait()
	}

	return result.ErrorOrNil()
}

func artifactSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "unknown"
	}
	return units.HumanSize(float64(info.Size()))
}
