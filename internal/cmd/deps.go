package cmd

import (
	"os"

	"github.com/salmonumbrella/wikinav/internal/api"
	"github.com/salmonumbrella/wikinav/internal/logging"
	"github.com/salmonumbrella/wikinav/internal/secrets"
)

var (
	openSecretsStore       = secrets.OpenDefault
	newClientFromCredsFunc = api.NewClientFromCredentials
	newLogger              = logging.New
	envGet                 = os.Getenv
)
