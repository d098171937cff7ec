package graph

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultDatabase = "neo4j"

type target struct {
	uri      string
	username string
	password string
	database string
}

// parseDSN splits credentials and the database name out of a connection
// URL. The remaining scheme and host are handed to the driver.
func parseDSN(dsn string) (target, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return target{}, fmt.Errorf("parsing neo4j dsn: %w", err)
	}
	switch u.Scheme {
	case "neo4j", "neo4j+s", "neo4j+ssc", "bolt", "bolt+s", "bolt+ssc":
	default:
		return target{}, fmt.Errorf("unsupported neo4j scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return target{}, fmt.Errorf("neo4j dsn %q has no host", dsn)
	}

	t := target{
		uri:      u.Scheme + "://" + u.Host,
		username: defaultDatabase,
		database: strings.Trim(u.Path, "/"),
	}
	if u.User != nil {
		t.username = u.User.Username()
		t.password, _ = u.User.Password()
	}
	if t.database == "" {
		t.database = defaultDatabase
	}
	return t, nil
}
