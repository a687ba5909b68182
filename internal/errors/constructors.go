package errors

import (
	"fmt"
	"os"
	"strings"
)

// InputError reports a bad or missing identifier or field.
func InputError(format string, args ...interface{}) *OpsError {
	return New(KindInput, fmt.Sprintf(format, args...))
}

// CredentialNotFound reports that no credential row matched identifier.
func CredentialNotFound(identifier string) *OpsError {
	err := New(KindCredentialNotFound, fmt.Sprintf("device %q not found in credential source", identifier))
	err.Device = identifier
	err.WithSolutions(
		"Check the identifier against the Device and Hostname columns",
		"List known devices with 'ilmari devices'",
	)
	return err
}

// CredentialSourceUnavailable reports that the credential file could not be read.
func CredentialSourceUnavailable(path string, cause error) *OpsError {
	err := Wrap(KindStoreUnavailable, cause, fmt.Sprintf("credential source %s unavailable", path))
	if os.IsNotExist(cause) {
		err.WithSolutions(
			fmt.Sprintf("Create %s with header Device,Hostname,Username,New_Password", path),
			"Point credentials.file at the right location in config.yaml",
		)
	} else if os.IsPermission(cause) {
		err.WithSolutions(fmt.Sprintf("Grant read access to %s", path))
	}
	err.WithHelp("ilmari devices --help")
	return err
}

// SnapshotNotFound reports that no stored snapshot matches the device prefix.
func SnapshotNotFound(prefix string) *OpsError {
	err := New(KindSnapshotNotFound, fmt.Sprintf("no golden config found for device %q", prefix))
	err.Device = prefix
	err.WithSolutions(fmt.Sprintf("Capture one first: ilmari golden capture %s", prefix))
	return err
}

// StoreUnavailable reports that a storage directory or database cannot be used.
func StoreUnavailable(path string, cause error) *OpsError {
	err := Wrap(KindStoreUnavailable, cause, fmt.Sprintf("storage %s unavailable", path))
	if os.IsPermission(cause) {
		err.WithSolutions(fmt.Sprintf("Grant write access to %s", path))
	} else {
		err.WithSolutions("Set storage.base_dir to a writable directory")
	}
	return err
}

// ConnectionFailed reports a failure to open a command channel to device.
func ConnectionFailed(device string, cause error) *OpsError {
	err := Wrap(KindConnection, cause, "connection failed")
	err.Device = device
	err.Phase = "connecting"

	msg := ""
	if cause != nil {
		msg = strings.ToLower(cause.Error())
	}
	switch {
	case strings.Contains(msg, "unable to authenticate"), strings.Contains(msg, "auth"):
		err.WithSolutions(
			"Verify the username and secret in the credential source",
			"A failed rotation leaves the previous secret in place",
		)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		err.WithSolutions(
			"Check reachability of the device management address",
			"Raise ssh.timeout in config.yaml",
		)
	case strings.Contains(msg, "refused"):
		err.WithSolutions("Confirm SSH is enabled on the device and ssh.port is correct")
	}
	return err
}

// CommandFailed reports a failure while running command on device.
func CommandFailed(device, command string, cause error) *OpsError {
	err := Wrap(KindCommand, cause, fmt.Sprintf("command %q failed", command))
	err.Device = device
	err.Phase = "fetching"
	return err
}

// ConfigurationError reports invalid or missing configuration.
func ConfigurationError(format string, args ...interface{}) *OpsError {
	err := New(KindConfiguration, fmt.Sprintf(format, args...))
	err.WithHelp("ilmari --help")
	return err
}
