package datasource

import (
	"fmt"
	"net/url"
	"strings"

	_ "github.com/databricks/databricks-sql-go"
	"github.com/gitsby/yarg/pkg/config"
	sf "github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite     = "sqlite"
	DriverSnowflake  = "snowflake"
	DriverDatabricks = "databricks"
)

// DSN returns the profile's connection string. An explicit dsn wins;
// otherwise snowflake and databricks profiles are assembled from their keys:
//
//	[lake]
//	driver    = databricks
//	host      = adb-123.azuredatabricks.net
//	http_path = /sql/1.0/warehouses/abc
//	token     = dapi...
//	catalog   = main
func DSN(profile *config.Profile) (string, error) {
	if profile.DSN != "" {
		return profile.DSN, nil
	}
	opts := profile.Options

	switch profile.Driver {
	case DriverSnowflake:
		cfg := &sf.Config{
			Account:   opts["account"],
			User:      opts["user"],
			Password:  opts["password"],
			Database:  opts["database"],
			Schema:    opts["schema"],
			Warehouse: opts["warehouse"],
			Role:      opts["role"],
		}
		dsn, err := sf.DSN(cfg)
		if err != nil {
			return "", fmt.Errorf("failed to create snowflake DSN for %s: %w", profile.Name, err)
		}
		return dsn, nil

	case DriverDatabricks:
		host, token := opts["host"], opts["token"]
		if host == "" || token == "" {
			return "", fmt.Errorf("profile %s: databricks needs host and token", profile.Name)
		}
		host = strings.TrimPrefix(host, "https://")
		if port := opts["port"]; port != "" {
			host += ":" + port
		}
		httpPath := opts["http_path"]
		if httpPath != "" && !strings.HasPrefix(httpPath, "/") {
			httpPath = "/" + httpPath
		}
		dsn := fmt.Sprintf("token:%s@%s%s", token, host, httpPath)

		params := url.Values{}
		if c := opts["catalog"]; c != "" {
			params.Set("catalog", c)
		}
		if s := opts["schema"]; s != "" {
			params.Set("schema", s)
		}
		if qp := params.Encode(); qp != "" {
			dsn = dsn + "?" + qp
		}
		return dsn, nil

	default:
		return "", fmt.Errorf("profile %s: dsn is required for driver %s", profile.Name, profile.Driver)
	}
}
