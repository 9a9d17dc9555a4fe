package facility

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "facility")
