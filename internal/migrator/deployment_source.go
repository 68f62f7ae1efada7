package migrator

import (
	"errors"
	"io"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const suffixPlaceholder = "{deployment_suffix}"

// deploymentSource serves embedded migrations with {deployment_suffix}
// replaced, so several deployments can keep their record tables in one
// ClickHouse database. Listing and versioning come from iofs.
type deploymentSource struct {
	iofs.PartialDriver
	suffix string
}

func newDeploymentSource(fsys fs.FS, path string, deploymentID string) (source.Driver, error) {
	ds := &deploymentSource{suffix: TableSuffix(deploymentID)}
	if err := ds.Init(fsys, path); err != nil {
		return nil, err
	}
	return ds, nil
}

func (ds *deploymentSource) Open(string) (source.Driver, error) {
	return nil, errors.New("deployment source cannot be opened by URL")
}

func (ds *deploymentSource) ReadUp(version uint) (io.ReadCloser, string, error) {
	return ds.rewrite(ds.PartialDriver.ReadUp(version))
}

func (ds *deploymentSource) ReadDown(version uint) (io.ReadCloser, string, error) {
	return ds.rewrite(ds.PartialDriver.ReadDown(version))
}

func (ds *deploymentSource) rewrite(r io.ReadCloser, identifier string, err error) (io.ReadCloser, string, error) {
	if err != nil {
		return nil, "", err
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	sql := strings.ReplaceAll(string(content), suffixPlaceholder, ds.suffix)
	return io.NopCloser(strings.NewReader(sql)), identifier, nil
}

// TableSuffix is appended to record table names for a deployment.
func TableSuffix(deploymentID string) string {
	if deploymentID == "" {
		return ""
	}
	return "_" + deploymentID
}
