package prototype

import (
	"io"
	"os"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Checksum returns the hex encoded SHA-256 of the file at path. The file is
// streamed; disk images are far too large to hold in memory.
func Checksum(path string) (string, error) {
	return checksum(path, nil, "")
}

func checksum(path string, progress *mpb.Progress, label string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open artifact")
	}

	defer file.Close()

	var reader io.Reader = file
	var bar *mpb.Bar

	if progress != nil {
		info, err := file.Stat()
		if err != nil {
			return "", errors.Wrap(err, "stat artifact")
		}

		bar = progress.AddBar(info.Size(),
			mpb.PrependDecorators(decor.Name(label, decor.WCSyncSpaceR)),
			mpb.AppendDecorators(decor.CountersKibiByte("% .1f / % .1f")),
		)

		reader = bar.ProxyReader(file)
	}

	digester := digest.Canonical.Digester()

	_, err = io.Copy(digester.Hash(), reader)
	if err != nil {
		if bar != nil {
			bar.Abort(false)
		}
		return "", errors.Wrapf(err, "hash %s", path)
	}

	if bar != nil {
		bar.SetTotal(-1, true)
	}

	return digester.Digest().Encoded(), nil
}
