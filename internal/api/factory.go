package api

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/salmonumbrella/wikinav/internal/secrets"
)

// NewClientFromCredentials returns the client matching the credential mode:
// a LocalClient for encrypted graphs served by the desktop app, a cloud
// Client otherwise.
func NewClientFromCredentials(graphName, token, mode string, log *zap.Logger, opts ...ClientOption) (RoamAPI, error) {
	switch mode {
	case secrets.ModeEncrypted:
		return NewLocalClient(graphName, WithLocalLogger(log)), nil
	case secrets.ModeCloud, "":
		opts = append([]ClientOption{WithLogger(log)}, opts...)
		return NewClient(graphName, token, opts...), nil
	default:
		return nil, fmt.Errorf("unknown mode: %s", mode)
	}
}
