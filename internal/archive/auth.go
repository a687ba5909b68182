package archive

import (
	"fmt"
	"os"
	"os/exec"
)

// AuthHelper suggests how to fix credentials for an archive backend, based on
// what it finds in the environment.
type AuthHelper struct {
	getenv   func(string) string
	lookPath func(string) (string, error)
}

// NewAuthHelper creates a new auth helper
func NewAuthHelper() *AuthHelper {
	return &AuthHelper{getenv: os.Getenv, lookPath: exec.LookPath}
}

// Solutions returns the steps to try after an upload to loc failed
func (ah *AuthHelper) Solutions(loc Location) []string {
	switch loc.Backend {
	case BackendS3:
		return ah.awsSolutions(loc)
	case BackendGCS:
		return ah.gcpSolutions(loc)
	case BackendAzure:
		return ah.azureSolutions(loc)
	default:
		return nil
	}
}

func (ah *AuthHelper) awsSolutions(loc Location) []string {
	var steps []string
	switch {
	case ah.getenv("AWS_PROFILE") != "":
		steps = append(steps, fmt.Sprintf("AWS_PROFILE is set to %s; check that the profile can write to s3://%s", ah.getenv("AWS_PROFILE"), loc.Bucket))
	case ah.getenv("AWS_ACCESS_KEY_ID") != "":
		steps = append(steps, "AWS_ACCESS_KEY_ID is set; check that the key is active and allowed s3:PutObject")
	case ah.isCommandAvailable("aws"):
		steps = append(steps, "Run: aws configure")
	default:
		steps = append(steps, "Export AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY, or set AWS_PROFILE")
	}
	if loc.Region == "" && ah.getenv("AWS_REGION") == "" {
		steps = append(steps, "Set the bucket region: ?region=... in the archive URL or AWS_REGION")
	}
	return steps
}

func (ah *AuthHelper) gcpSolutions(loc Location) []string {
	if path := ah.getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
		return []string{fmt.Sprintf("GOOGLE_APPLICATION_CREDENTIALS is set to %s; check that the service account can write to gs://%s", path, loc.Bucket)}
	}
	if ah.isCommandAvailable("gcloud") {
		return []string{"Run: gcloud auth application-default login"}
	}
	return []string{
		"Install the gcloud CLI and run: gcloud auth application-default login",
		"Or point GOOGLE_APPLICATION_CREDENTIALS at a service account key",
	}
}

func (ah *AuthHelper) azureSolutions(loc Location) []string {
	if ah.getenv(SASTokenEnv) == "" {
		return []string{fmt.Sprintf("Export %s with a SAS token that can write to container %s", SASTokenEnv, loc.Container)}
	}
	return []string{fmt.Sprintf("Check that the SAS token in %s has not expired and allows create and write", SASTokenEnv)}
}

// isCommandAvailable checks if command is on PATH
func (ah *AuthHelper) isCommandAvailable(command string) bool {
	_, err := ah.lookPath(command)
	return err == nil
}
