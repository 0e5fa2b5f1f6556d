package prototype

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Puller fetches images into the host's container storage.
type Puller struct {
	Runner Runner
}

func (p *Puller) Pull(ctx context.Context, ref string, tlsVerify bool) error {
	args := []string{"pull"}
	if !tlsVerify {
		args = append(args, "--tls-verify=false")
	}
	args = append(args, ref)

	logrus.Infof("pulling %s", ref)

	_, err := p.Runner.Run(ctx, "podman", args...)
	if err != nil {
		return errors.Wrapf(err, "pull image %s", ref)
	}

	return nil
}
