// Command dsmnode runs one peer of a distributed shared memory
// cluster: it loads cluster membership, wires a coherence.Engine to a
// real HTTP peer transport, and serves both the inter-node RPC surface
// (internal/transport/httprpc) and the operator-facing monitor surface
// (internal/monitor) until interrupted.
//
// Startup sequencing and the signal-driven graceful shutdown are
// grounded on johnjansen-torua's cmd/node/main.go; the -demo in-process
// smoke test replaces original_source/dsm_headless.cpp's headless
// demo loop, and -upnp replaces util.go's CreateNewTCPTransport address
// discovery step.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/bootstrap"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/cluster"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/codec"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/monitor"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/objectid"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/peermsg"
	"github.com/yalidogan/Distributed-Shared-Memory-Middleware/internal/transport/httprpc"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to a cluster config file (.yaml or plain-text id/ip/port table)")
		myID          = flag.Int("my-id", -1, "this node's id (required for plain-text configs; overrides my_id in a yaml config if set)")
		listen        = flag.String("listen", ":9000", "address to bind the peer RPC server on")
		monitorListen = flag.String("monitor-listen", ":9100", "address to bind the operator-facing monitor server on")
		useUPnP       = flag.Bool("upnp", false, "discover an externally-reachable address via UPnP before starting")
		demo          = flag.Bool("demo", false, "run an in-process multi-node smoke test instead of serving a real node")
	)
	flag.Parse()

	if *demo {
		runDemo()
		return
	}

	if *configPath == "" {
		glog.Exit("dsmnode: -config is required (or pass -demo)")
	}

	cfg, err := loadConfig(*configPath, *myID)
	if err != nil {
		glog.Exitf("dsmnode: loading config: %v", err)
	}

	if *useUPnP {
		if _, portStr, splitErr := net.SplitHostPort(*listen); splitErr == nil {
			if port, convErr := strconv.Atoi(portStr); convErr == nil {
				local, external := bootstrap.DiscoverAddress(port)
				glog.Infof("dsmnode: effective address %s", bootstrap.EffectiveAddress(local, external, port))
			}
		}
	}

	peerURLs := make(map[int]string, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		peerURLs[n.ID] = fmt.Sprintf("http://%s", n.Address())
	}
	messenger := httprpc.NewSelfTaggingMessenger(httprpc.NewClient(peerURLs), cfg.MyID)

	cl, err := cluster.New(cfg, messenger)
	if err != nil {
		glog.Exitf("dsmnode: assembling cluster: %v", err)
	}
	cl.LogIdentity()

	rpcServer := &http.Server{Addr: *listen, Handler: httprpc.NewRouter(cl.Handlers()), ReadHeaderTimeout: 5 * time.Second}
	monitorServer := &http.Server{Addr: *monitorListen, Handler: monitor.NewRouter(cl), ReadHeaderTimeout: 5 * time.Second}

	go serveOrExit(rpcServer, "peer RPC")
	go serveOrExit(monitorServer, "monitor")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = rpcServer.Shutdown(shutdownCtx)
	_ = monitorServer.Shutdown(shutdownCtx)
	glog.Info("dsmnode: stopped")
}

func serveOrExit(s *http.Server, name string) {
	glog.Infof("dsmnode: %s server listening on %s", name, s.Addr)
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		glog.Exitf("dsmnode: %s server: %v", name, err)
	}
}

func loadConfig(path string, myID int) (cluster.Config, error) {
	if strings.EqualFold(filepath.Ext(path), ".yaml") || strings.EqualFold(filepath.Ext(path), ".yml") {
		cfg, err := cluster.LoadYAMLFile(path)
		if err != nil {
			return cluster.Config{}, err
		}
		if myID >= 0 {
			cfg.MyID = myID
			if verr := cfg.Validate(); verr != nil {
				return cluster.Config{}, verr
			}
		}
		return cfg, nil
	}
	if myID < 0 {
		return cluster.Config{}, fmt.Errorf("dsmnode: -my-id is required for a plain-text config")
	}
	return cluster.LoadPlainTextFile(path, myID)
}

// runDemo reproduces original_source/dsm_headless.cpp's headless demo
// loop as an in-process smoke test: several cluster.Cluster instances
// wired through peermsg.NewLocalMessenger, no real network, hammering
// a handful of objects from multiple goroutines the way the original
// demo hammers them from its command loop.
func runDemo() {
	const nodes = 3
	lm := peermsg.NewLocalMessenger()
	clusters := make([]*cluster.Cluster, nodes)
	nodeInfos := make([]cluster.NodeInfo, nodes)
	for i := 0; i < nodes; i++ {
		nodeInfos[i] = cluster.NodeInfo{ID: i, IP: "127.0.0.1", Port: 9000 + i}
	}
	for i := 0; i < nodes; i++ {
		cfg := cluster.Config{MyID: i, Nodes: nodeInfos}
		cl, err := cluster.New(cfg, lm.NodeView(i))
		if err != nil {
			glog.Exitf("dsmnode: demo cluster %d: %v", i, err)
		}
		clusters[i] = cl
		lm.Register(i, cl.Handlers())
	}

	ctx := context.Background()
	str := codec.StringCodec{}
	objects := []string{"alpha", "beta", "gamma", "delta"}

	var wg sync.WaitGroup
	for n, id := range objects {
		wg.Add(1)
		go func(nodeIdx int, name string) {
			defer wg.Done()
			objID := objectid.New(name)
			cl := clusters[nodeIdx%nodes]
			for i := 0; i < 10; i++ {
				err := cluster.WithWriteHandle(ctx, cl, objID, str, func(v string) (string, error) {
					return fmt.Sprintf("%s-write-%d", name, i), nil
				})
				if err != nil {
					glog.Errorf("dsmnode: demo write %s: %v", name, err)
				}
			}
		}(n, id)
	}
	wg.Wait()

	for _, id := range objects {
		rh, err := cluster.ReadHandle(ctx, clusters[0], objectid.New(id), str)
		if err != nil {
			glog.Errorf("dsmnode: demo read %s: %v", id, err)
			continue
		}
		fmt.Printf("%s = %s\n", id, rh.Get())
		_ = rh.Close(ctx)
	}
}
