package domain

import (
	"fmt"

	"github.com/google/uuid"
)

const minPasswordLen = 16

// Cluster holds identity, the AES-GCM key derived from the cluster
// password, and the administrative node-count ceiling (§3). Identity and
// key are fixed at creation; ClusterSize is replaced when a node accepts
// a NewClusterSize event. Password and SecretKey are never logged — callers must not
// format a Cluster with %+v in a log line.
type Cluster struct {
	ID          uuid.UUID
	Name        string
	Description string
	Namespace   string
	Tags        map[string]struct{}
	password    string
	secretKey   [32]byte
	ClusterSize int
}

// NewClusterParams collects the arguments for NewCluster.
type NewClusterParams struct {
	ID          uuid.UUID
	Name        string
	Description string
	Namespace   string
	Tags        []string
	Password    string
	SecretKey   [32]byte
	ClusterSize int
}

// NewCluster validates and constructs a Cluster. The caller derives
// SecretKey beforehand (see internal/crypto.DeriveKey) so that domain has
// no dependency on the KDF implementation.
func NewCluster(p NewClusterParams) (*Cluster, error) {
	if len(p.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	if p.ClusterSize < 1 {
		return nil, fmt.Errorf("%w: cluster_size must be >= 1", ErrValidation)
	}
	if p.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: cluster id is required", ErrValidation)
	}

	tags := make(map[string]struct{}, len(p.Tags))
	for _, t := range p.Tags {
		tags[t] = struct{}{}
	}

	return &Cluster{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Namespace:   p.Namespace,
		Tags:        tags,
		password:    p.Password,
		secretKey:   p.SecretKey,
		ClusterSize: p.ClusterSize,
	}, nil
}

// SecretKey returns the derived 256-bit AES key. Named as a method rather
// than an exported field so callers can't accidentally dump it via struct
// formatting of an embedded Cluster.
func (c *Cluster) SecretKey() [32]byte { return c.secretKey }

// HasTag reports whether the cluster carries the given tag.
func (c *Cluster) HasTag(tag string) bool {
	_, ok := c.Tags[tag]
	return ok
}

// String deliberately omits password and secretKey.
func (c *Cluster) String() string {
	return fmt.Sprintf("Cluster{id=%s name=%q namespace=%q size=%d}", c.ID, c.Name, c.Namespace, c.ClusterSize)
}
