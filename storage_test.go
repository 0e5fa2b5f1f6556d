package prototype_test

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	prototype "github.com/aoldershaw/bootc-image-prototype"
)

type StorageSuite struct {
	suite.Suite
	*require.Assertions

	rootDir string
}

func (s *StorageSuite) SetupTest() {
	var err error
	s.rootDir, err = ioutil.TempDir("", "bootc-image-prototype-storage")
	s.NoError(err)
}

func (s *StorageSuite) TearDownTest() {
	err := os.RemoveAll(s.rootDir)
	s.NoError(err)
}

func (s *StorageSuite) TestGenerateConfig() {
	storageDir := s.path("var", "lib", "containers", "storage")
	err := os.MkdirAll(filepath.Join(storageDir, "overlay"), 0755)
	s.NoError(err)

	preparer := s.preparer(prototype.NewExecutor(prototype.PrivilegeNone, nil))

	err = os.MkdirAll(preparer.ConfigDir, 0755)
	s.NoError(err)
	err = ioutil.WriteFile(preparer.ConfigPath(), []byte("stale"), 0644)
	s.NoError(err)

	err = preparer.Prepare(context.Background())
	s.NoError(err)

	_, err = os.Stat(storageDir)
	s.True(os.IsNotExist(err))

	var config prototype.StorageConfig
	_, err = toml.DecodeFile(preparer.ConfigPath(), &config)
	s.NoError(err)

	s.Equal(prototype.StorageConfig{
		Storage: prototype.StorageSection{
			Driver:    "overlay",
			RunRoot:   "/run/containers/storage",
			GraphRoot: storageDir,
		},
	}, config)

	var raw map[string]map[string]interface{}
	_, err = toml.DecodeFile(preparer.ConfigPath(), &raw)
	s.NoError(err)
	s.Len(raw, 1)
	s.Len(raw["storage"], 3)
}

func (s *StorageSuite) TestDefaultConfig() {
	preparer := prototype.NewPreparer(&FakeRunner{})

	s.Equal("/etc/containers/storage.conf", preparer.ConfigPath())
	s.Equal(prototype.StorageConfig{
		Storage: prototype.StorageSection{
			Driver:    "overlay",
			RunRoot:   "/run/containers/storage",
			GraphRoot: "/var/lib/containers/storage",
		},
	}, preparer.StorageConfig())
}

func (s *StorageSuite) TestStepOrder() {
	runner := &FakeRunner{}

	err := prototype.NewPreparer(runner).Prepare(context.Background())
	s.NoError(err)

	s.Len(runner.Calls, 3)
	s.Equal([]string{"rm", "-rf", "/var/lib/containers/storage"}, runner.Calls[0])
	s.Equal([]string{"mkdir", "-p", "/etc/containers"}, runner.Calls[1])
	s.Equal("install", runner.Calls[2][0])
	s.Equal("/etc/containers/storage.conf", runner.Calls[2][len(runner.Calls[2])-1])
}

func (s *StorageSuite) TestContinuesAfterFailures() {
	runner := &FakeRunner{}
	runner.Fail("rm", errors.New("permission denied"))
	runner.Fail("mkdir", errors.New("read-only file system"))

	err := prototype.NewPreparer(runner).Prepare(context.Background())
	s.Error(err)
	s.Contains(err.Error(), "permission denied")
	s.Contains(err.Error(), "read-only file system")

	s.Len(runner.Calls, 3)
	s.Equal("install", runner.Calls[2][0])
}

func (s *StorageSuite) preparer(runner prototype.Runner) *prototype.Preparer {
	preparer := prototype.NewPreparer(runner)
	preparer.StorageDir = s.path("var", "lib", "containers", "storage")
	preparer.ConfigDir = s.path("etc", "containers")
	return preparer
}

func (s *StorageSuite) path(path ...string) string {
	return filepath.Join(append([]string{s.rootDir}, path...)...)
}

func TestStorage(t *testing.T) {
	suite.Run(t, &StorageSuite{
		Assertions: require.New(t),
	})
}
