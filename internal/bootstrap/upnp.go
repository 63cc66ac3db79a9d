// Package bootstrap implements the optional UPnP address-discovery
// step cmd/dsmnode's -upnp flag triggers, ported from util.go's
// GetLocalExternalAddresses / CreateNewTCPTransport. It never
// influences placement or the wire protocol — it only helps an
// operator learn what (ip, port) to paste into peers' config files.
package bootstrap

import (
	"fmt"
	"net"
	"strconv"

	"github.com/golang/glog"
	"github.com/huin/goupnp/dcps/internetgateway1"
)

// DiscoverAddress returns this host's local and (if UPnP succeeds)
// externally-reachable address for port, mirroring
// GetLocalExternalAddresses plus the AddPortMapping call from
// CreateNewTCPTransport. Failure to reach an Internet gateway is not
// fatal: localAddr is always populated from the first non-loopback
// interface when one exists.
func DiscoverAddress(port int) (localAddr, externalAddr string) {
	clients, _, err := internetgateway1.NewWANIPConnection1Clients()
	if err == nil && len(clients) > 0 {
		externalAddr, err = clients[0].GetExternalIPAddress()
		if err != nil {
			glog.Warningf("bootstrap: UPnP external address query failed: %v", err)
			externalAddr = ""
		}
		if mapErr := clients[0].AddPortMapping("", uint16(port), "TCP", uint16(port), localAddr, true, "dsmnode", 0); mapErr != nil {
			glog.Warningf("bootstrap: UPnP AddPortMapping failed: %v", mapErr)
		}
	} else {
		glog.Infof("bootstrap: no UPnP internet gateway found, falling back to local interfaces only")
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return "", externalAddr
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback == net.FlagLoopback {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		ipNet, ok := addrs[0].(*net.IPNet)
		if !ok {
			continue
		}
		localAddr = ipNet.IP.String()
		break
	}
	return localAddr, externalAddr
}

// EffectiveAddress formats the (ip, port) pair an operator should
// advertise to peers: the external address if UPnP found one, else the
// local one.
func EffectiveAddress(localAddr, externalAddr string, port int) string {
	ip := localAddr
	if externalAddr != "" {
		ip = externalAddr
	}
	return fmt.Sprintf("%s:%s", ip, strconv.Itoa(port))
}
