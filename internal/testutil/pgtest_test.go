// README: Tests for the SQL migration splitter.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSQL(t *testing.T) {
	in := stripSQLComments(`-- header
CREATE TABLE a (id INT);

-- index
CREATE INDEX a_idx ON a (id);
`)
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE INDEX a_idx ON a (id)"}, splitSQL(in))
}
