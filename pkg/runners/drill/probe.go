package drill

import (
	"database/sql"
	"fmt"
	"slices"

	"github.com/leapstack-labs/queryrunner/pkg/runner"
)

// Probe reports whether the client for the configured transport is present
// in this binary. It runs once, when the descriptor is built.
//
// The REST transport only needs net/http and is always available. The SQL
// transport needs a database/sql driver registered under Settings.SQLDriver;
// a binary that does not link one reports the runner as unavailable.
func Probe(s Settings) runner.Availability {
	switch s.transport() {
	case TransportREST:
		return runner.Available()
	case TransportSQL:
		driver := s.sqlDriver()
		if slices.Contains(sql.Drivers(), driver) {
			return runner.Available()
		}
		return runner.Unavailable(fmt.Sprintf("database/sql driver %q is not linked into this binary", driver))
	default:
		return runner.Unavailable(fmt.Sprintf("unknown drill transport %q", s.Transport))
	}
}
