package bitnet

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// log is the process-wide logger. Per §9 "Global state": the only
// process-wide mutable state this core keeps is the logger, set once at
// first use and never replaced.
var (
	logOnce sync.Once
	log     = logrus.New()
)

func init() {
	log.SetLevel(logrus.WarnLevel)
}

// SetLogger installs l as the package-wide logger. It has effect only on
// its first call; subsequent calls are no-ops, matching the "set once at
// first-use and never replaced" contract.
func SetLogger(l *logrus.Logger) {
	logOnce.Do(func() {
		if l != nil {
			log = l
		}
	})
}
