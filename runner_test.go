package prototype_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"

	prototype "github.com/aoldershaw/bootc-image-prototype"
)

// FakeRunner records commands instead of running them. Failures are keyed by
// the command line prefix they apply to, e.g. "podman pull".
type FakeRunner struct {
	mu    sync.Mutex
	Calls [][]string

	Failures map[string]error

	// Called for every command that does not fail.
	OnRun func(name string, args []string) error
}

func (r *FakeRunner) Run(ctx context.Context, name string, args ...string) (prototype.ExecResult, error) {
	call := append([]string{name}, args...)

	r.mu.Lock()
	r.Calls = append(r.Calls, call)
	r.mu.Unlock()

	line := strings.Join(call, " ")
	for prefix, err := range r.Failures {
		if strings.HasPrefix(line, prefix) {
			return prototype.ExecResult{ExitCode: 1, Stderr: err.Error()}, err
		}
	}

	if r.OnRun != nil {
		err := r.OnRun(name, args)
		if err != nil {
			return prototype.ExecResult{ExitCode: 1}, err
		}
	}

	return prototype.ExecResult{}, nil
}

func (r *FakeRunner) Fail(prefix string, err error) {
	if r.Failures == nil {
		r.Failures = map[string]error{}
	}
	r.Failures[prefix] = err
}

// Commands returns each recorded call joined into one line.
func (r *FakeRunner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, len(r.Calls))
	for i, call := range r.Calls {
		lines[i] = strings.Join(call, " ")
	}
	return lines
}

// FakeBuilder gives mkdir and podman run just enough behaviour for the
// pipeline to find an output tree: outputs maps paths relative to outputDir
// to their content.
func FakeBuilder(outputDir string, outputs map[string]string) func(string, []string) error {
	return func(name string, args []string) error {
		switch {
		case name == "mkdir" && args[len(args)-1] == outputDir:
			return os.MkdirAll(outputDir, 0755)

		case name == "podman" && args[0] == "run":
			for path, content := range outputs {
				fullPath := filepath.Join(outputDir, path)

				err := os.MkdirAll(filepath.Dir(fullPath), 0755)
				if err != nil {
					return err
				}

				err = ioutil.WriteFile(fullPath, []byte(content), 0644)
				if err != nil {
					return err
				}
			}
		}

		return nil
	}
}
