package cli

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"

	"github.com/reflectsonar/reflectsonar/internal/domain"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitConnection  = 2
	ExitAuth        = 3
	ExitNotFound    = 4
	ExitPermission  = 5
	ExitFile        = 6
	ExitInterrupted = 130
)

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ExitAuth
		case http.StatusNotFound:
			return ExitNotFound
		}
		return ExitError
	}

	var failed *domain.RequestFailedError
	if errors.As(err, &failed) {
		var limited *domain.RateLimitedError
		if errors.As(err, &limited) {
			return ExitError
		}
		return ExitConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ExitConnection
	}

	if errors.Is(err, fs.ErrPermission) {
		return ExitPermission
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return ExitFile
	}
	return ExitError
}

// Hint returns a one-line suggestion for the exit code of err, or "".
func Hint(err error) string {
	switch ExitCode(err) {
	case ExitInterrupted:
		return "Interrupted."
	case ExitConnection:
		return "Could not reach the server. Check --url (or SONARQUBE_URL) and your network."
	case ExitAuth:
		return "Authentication failed. Check the token (--token or SONARQUBE_TOKEN) and its permissions."
	case ExitNotFound:
		return "Project not found. Check the project key and that the token can browse it."
	case ExitPermission:
		return "Permission denied. Choose an output location you can write to (--output)."
	case ExitFile:
		return "Could not write the report. Check that the output directory exists."
	}
	if errors.Is(err, ErrMissingCredentials) {
		return "Run 'reflectsonar init' to create a config file, or pass --token."
	}
	return ""
}
