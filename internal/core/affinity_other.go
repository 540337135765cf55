//go:build !linux

package core

import "github.com/sirupsen/logrus"

func setAffinity(workerID, _ int) {
	logrus.Debugf("CPU pinning not supported on this platform, worker %d runs unpinned", workerID)
}
