// Copyright 2025 AUTHORS
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command apiserver is the daemon process: it hosts every service actor
// behind one IPC fabric and serves DNS for container hostnames.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"tailscale.com/syncs"

	"github.com/containervm/hostd/pkg/config"
	"github.com/containervm/hostd/pkg/containers"
	"github.com/containervm/hostd/pkg/dns"
	"github.com/containervm/hostd/pkg/eventbus"
	"github.com/containervm/hostd/pkg/harness"
	"github.com/containervm/hostd/pkg/ipc"
	"github.com/containervm/hostd/pkg/launchd"
	"github.com/containervm/hostd/pkg/network"
	"github.com/containervm/hostd/pkg/plugins"
	"github.com/containervm/hostd/pkg/volumes"
)

var (
	stateDir   = flag.String("state-dir", defaultStateDir(), "root directory for daemon state")
	configPath = flag.String("config", "", "path to a YAML config file (defaults to <state-dir>/config.yaml)")
)

func defaultStateDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return "/var/lib/hostd"
	}
	return filepath.Join(home, ".hostd")
}

func main() {
	flag.Parse()
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := os.MkdirAll(*stateDir, 0o700); err != nil {
		log.Fatalf("create state dir %s: %v", *stateDir, err)
	}
	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = filepath.Join(*stateDir, "config.yaml")
	}
	cfg, err := config.Load(cfgPath, *stateDir)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	containerService := containers.NewDefaultService(nil)
	volumesService, err := volumes.New(cfg.VolumesRoot, containers.VolumesView(containerService), nil)
	if err != nil {
		log.Fatalf("init volumes service: %v", err)
	}
	networkService, err := network.New(cfg.NetworkSubnet, nil)
	if err != nil {
		log.Fatalf("init network service: %v", err)
	}
	supervisor := launchd.New(cfg.LaunchdDir)
	pluginsService := plugins.New(cfg.PluginSearchDir, supervisor)
	bus := eventbus.New()
	containerService.HandleContainerEvents(func(ev containers.Event) {
		bus.Publish(eventbus.Event{Source: "containers", Type: eventbus.Type(ev.Type), Data: eventbus.Data{Value: ev}})
	})

	routes := harness.Merge(
		&harness.Containers{Service: containerService, Bus: bus},
		&harness.Volumes{Service: volumesService},
		&harness.Plugins{Service: pluginsService},
		&harness.Network{Service: networkService},
		&harness.Sandbox{Plugins: pluginsService, SocketDir: cfg.SocketDir, NewClient: ipc.NewClient},
	)

	server := ipc.NewServer("apiserver", routes)
	var wg syncs.WaitGroup
	wg.Go(func() {
		socketPath := filepath.Join(cfg.SocketDir, "apiserver.sock")
		if err := server.ListenAndServe(ctx, socketPath); err != nil {
			logrus.WithError(err).Error("ipc server exited")
		}
	})

	dnsChain := &dns.StandardQueryValidator{
		Next: dns.NewComposite(
			&dns.ContainerLookup{Resolver: networkService, TTL: cfg.DNS.ContainerTTL},
			&dns.HostTableResolver{Hosts: cfg.DNS.HostTable, TTL: cfg.DNS.HostTableTTL},
			dns.NxDomainResolver{},
		),
	}
	dnsServer := dns.NewServer(dnsChain)
	wg.Go(func() {
		if err := dnsServer.ListenAndServe(ctx, cfg.DNS.ListenAddr); err != nil {
			logrus.WithError(err).Error("dns server exited")
		}
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logrus.Info("shutting down")
	cancel()
	server.Close()
	wg.Wait()
}
