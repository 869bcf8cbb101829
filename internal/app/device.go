// Copyright (c) 2025 CarrierGate Inc. All Rights Reserved.
// This is licensed software from CarrierGate Inc, for limitations
// and restrictions contact your company contract manager.

package app

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carriergate/slicepurchase/internal/config"
)

// platformDeviceMonitor answers the device-side admission questions. The
// capability and subscription flags come from service configuration (fed by
// the platform's telephony agent in real deployments); network availability
// is probed from the host's interfaces and cached briefly so admission
// checks stay cheap.
type platformDeviceMonitor struct {
	premiumSupported bool
	defaultDataSub   bool

	mu           sync.Mutex
	lastProbe    time.Time
	lastAvail    bool
	probeTimeout time.Duration
}

func newPlatformDeviceMonitor(cfg *config.Config) *platformDeviceMonitor {
	return &platformDeviceMonitor{
		premiumSupported: cfg.PremiumSupported,
		defaultDataSub:   cfg.DefaultDataSub,
		probeTimeout:     5 * time.Second,
	}
}

func (m *platformDeviceMonitor) SupportsPremiumCapabilities() bool {
	return m.premiumSupported
}

func (m *platformDeviceMonitor) IsDefaultDataSubscription() bool {
	return m.defaultDataSub
}

// IsNetworkAvailable reports whether any non-loopback interface is up.
func (m *platformDeviceMonitor) IsNetworkAvailable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastProbe) < m.probeTimeout {
		return m.lastAvail
	}

	m.lastProbe = time.Now()
	m.lastAvail = probeInterfaces()
	return m.lastAvail
}

func probeInterfaces() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		logrus.Warnf("network probe failed: %v", err)
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagRunning != 0 {
			return true
		}
	}
	return false
}
