// Command swimd runs one coreswim node: load config, derive the
// cluster's shared key, bring up the node, and optionally serve the
// read-only debug HTTP surface.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/coreswim/swim/internal/api"
	"github.com/coreswim/swim/internal/config"
	"github.com/coreswim/swim/internal/crypto"
	"github.com/coreswim/swim/internal/diag"
	"github.com/coreswim/swim/internal/domain"
	"github.com/coreswim/swim/internal/swim"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "swimd",
		Short: "Run a coreswim membership node",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "swimd.toml", "path to the node's TOML config file")
	root.AddCommand(startCmd(), joinCmd(), leaveCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func loadNode() (*config.Config, *swim.Node, *diag.RingSink, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	clusterID, err := uuid.Parse(cfg.Cluster.ID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse cluster.id: %w", err)
	}
	nodeID, err := uuid.Parse(cfg.Node.ID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse node.id: %w", err)
	}

	cluster, err := domain.NewCluster(domain.NewClusterParams{
		ID:          clusterID,
		Name:        cfg.Cluster.Name,
		Namespace:   cfg.Cluster.Namespace,
		Tags:        cfg.Cluster.Tags,
		Password:    cfg.Cluster.Password,
		SecretKey:   crypto.DeriveKey(cfg.Cluster.Password),
		ClusterSize: cfg.Cluster.ClusterSize,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build cluster: %w", err)
	}

	ring := diag.NewRingSink(256).WithLogger(log.Default())

	node, err := swim.NewNode(swim.Params{
		Cluster: cluster,
		Config:  cfg.ToSwimConfig(),
		Diag:    ring,
		ID:      nodeID,
		Host:    cfg.Node.Host,
		Port:    cfg.Node.Port,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build node: %w", err)
	}
	return &cfg, node, ring, nil
}

func startCmd() *cobra.Command {
	var contactHost string
	var contactPort uint16

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a node and block until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, node, _, err := loadNode()
			if err != nil {
				return err
			}

			if err := node.Start(func(old, new domain.NodeStatus) {
				log.Printf("status %s -> %s", old, new)
			}, nil); err != nil {
				return fmt.Errorf("start node: %w", err)
			}
			defer node.Stop()

			if contactHost != "" {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.ToSwimConfig().MaxJoinTime*2)
				defer cancel()
				if err := node.Join(ctx, contactHost, contactPort); err != nil {
					return fmt.Errorf("join %s:%d: %w", contactHost, contactPort, err)
				}
			}

			if cfg.Admin.Enabled {
				srv := api.NewServer(node)
				if cfg.Admin.MetricsEnabled {
					srv.EnableMetrics()
				}
				addr := fmt.Sprintf("%s:%d", cfg.Admin.Host, cfg.Admin.Port)
				httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}
				go func() {
					if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Printf("debug http server: %v", err)
					}
				}()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = httpSrv.Shutdown(ctx)
				}()
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			log.Print("shutting down")
			return node.Leave()
		},
	}
	cmd.Flags().StringVar(&contactHost, "join-host", "", "contact host to join through on start")
	cmd.Flags().Uint16Var(&contactPort, "join-port", 0, "contact port to join through on start")
	return cmd
}

func joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <host> <port>",
		Short: "One-shot liveness probe against host:port",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, node, _, err := loadNode()
			if err != nil {
				return err
			}
			var port uint16
			if _, err := fmt.Sscanf(args[1], "%d", &port); err != nil {
				return fmt.Errorf("parse port: %w", err)
			}
			if err := node.Start(nil, nil); err != nil {
				return err
			}
			defer node.Stop()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			ack, err := node.Probe(ctx, args[0], port)
			if err != nil {
				return err
			}
			fmt.Printf("%s is %s\n", ack.ID, ack.Status)
			return nil
		},
	}
}

func leaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Print the config this node would use to leave its cluster (diagnostic only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := loadNode()
			if err != nil {
				return err
			}
			fmt.Printf("cluster=%s node=%s:%d\n", cfg.Cluster.Name, cfg.Node.Host, cfg.Node.Port)
			return nil
		},
	}
}
