package common

import (
	"bytes"
	"time"
)

// NowFunc is the clock of the whole service, tests replace it.
var NowFunc = func() time.Time {
	return time.Now().Round(time.Millisecond)
}

func StringReader(s string) *bytes.Reader {
	return bytes.NewReader([]byte(s))
}
