package control

import (
	"testing"

	"github.com/ev3blocks/pblocks/testutils"
)

func TestMain(m *testing.M) {
	testutils.VerifyTestMain(m)
}
